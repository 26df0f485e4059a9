package transcribe

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scribe/internal/apperr"
	"scribe/internal/db"
	"scribe/internal/model"
	"scribe/internal/repository"
	"scribe/internal/storage"
	"scribe/internal/stt"
)

type fakeCapability struct {
	name  string
	calls atomic.Int32
	fn    func(*storage.Staged) (*stt.Result, error)
}

func (f *fakeCapability) Name() string { return f.name }

func (f *fakeCapability) Transcribe(_ context.Context, audio *storage.Staged) (*stt.Result, error) {
	f.calls.Add(1)
	return f.fn(audio)
}

func rateLimited(provider string) error {
	return &stt.InvocationError{Provider: provider, StatusHint: http.StatusTooManyRequests, Message: "Rate limit reached"}
}

type fixture struct {
	dir  string
	repo repository.TranscriptionRepository
	sink *Sink
	reg  *stt.Registry
	mock *fakeCapability
	orch *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	stager, err := storage.NewStager(filepath.Join(dir, "uploads"), storage.DefaultMaxBytes)
	require.NoError(t, err)
	conn, err := db.Open(context.Background(), filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	f := &fixture{dir: stager.Dir(), repo: repository.NewSQLiteRepository(conn)}
	f.sink = NewSink(f.repo, stager)
	f.mock = &fakeCapability{name: stt.ProviderMock, fn: func(a *storage.Staged) (*stt.Result, error) {
		return &stt.Result{Text: "mock text for " + a.OriginalName}, nil
	}}
	f.reg = stt.NewRegistry()
	f.reg.Register(stt.ProviderMock, func() (stt.Capability, error) { return f.mock, nil })
	f.orch = NewOrchestrator(f.reg, f.sink)
	return f
}

func (f *fixture) register(c *fakeCapability) {
	f.reg.Register(c.name, func() (stt.Capability, error) { return c, nil })
}

func (f *fixture) stage(t *testing.T, name string) *storage.Staged {
	t.Helper()
	stored := storage.NewStoredName(filepath.Ext(name))
	path := filepath.Join(f.dir, stored)
	require.NoError(t, os.WriteFile(path, make([]byte, 2048), 0o644))
	return &storage.Staged{StoredName: stored, OriginalName: name, MimeType: "audio/wav", Path: path, Size: 2048}
}

func TestRunSavesRecord(t *testing.T) {
	f := newFixture(t)
	dur := 3.25
	f.register(&fakeCapability{name: "openai", fn: func(*storage.Staged) (*stt.Result, error) {
		return &stt.Result{Text: "hello", Duration: &dur}, nil
	}})
	audio := f.stage(t, "clip.wav")

	rec, err := f.orch.Run(context.Background(), audio, " OpenAI ")
	require.NoError(t, err)
	assert.Equal(t, "openai", rec.Provider)
	assert.Equal(t, "hello", rec.Text)
	assert.InDelta(t, 3.25, *rec.Duration, 1e-9)
	assert.Nil(t, rec.FallbackProvider)
	assert.Equal(t, "clip.wav", *rec.OriginalName)
	assert.True(t, audio.Kept())

	stored, err := f.repo.GetByID(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, audio.StoredName, stored.StoredName)
	assert.Equal(t, int32(0), f.mock.calls.Load())
}

func TestRunFallsBackOnceOnRateLimit(t *testing.T) {
	f := newFixture(t)
	openai := &fakeCapability{name: "openai", fn: func(*storage.Staged) (*stt.Result, error) {
		return nil, rateLimited("openai")
	}}
	f.register(openai)
	audio := f.stage(t, "clip.wav")

	rec, err := f.orch.Run(context.Background(), audio, "openai")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(rec.Text, "[openai 429: Rate limit reached] "), rec.Text)
	assert.True(t, strings.HasSuffix(rec.Text, "mock text for clip.wav"))
	assert.Equal(t, "openai", rec.Provider)
	require.NotNil(t, rec.FallbackProvider)
	assert.Equal(t, "mock", *rec.FallbackProvider)
	assert.True(t, rec.FellBack())
	assert.Equal(t, int32(1), openai.calls.Load())
	assert.Equal(t, int32(1), f.mock.calls.Load())
	assert.True(t, audio.Kept())
}

func TestRunFallbackDoesNotCascade(t *testing.T) {
	f := newFixture(t)
	f.mock.fn = func(*storage.Staged) (*stt.Result, error) { return nil, rateLimited("mock") }
	f.register(&fakeCapability{name: "google", fn: func(*storage.Staged) (*stt.Result, error) {
		return nil, rateLimited("google")
	}})
	audio := f.stage(t, "clip.wav")

	_, err := f.orch.Run(context.Background(), audio, "google")
	require.Error(t, err)
	assert.Equal(t, http.StatusTooManyRequests, apperr.StatusOf(err))
	assert.Equal(t, int32(1), f.mock.calls.Load())
	assert.False(t, audio.Kept())

	list, err := f.sink.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRunMockRateLimitIsNotRetried(t *testing.T) {
	f := newFixture(t)
	f.mock.fn = func(*storage.Staged) (*stt.Result, error) { return nil, rateLimited("mock") }

	_, err := f.orch.Run(context.Background(), f.stage(t, "clip.wav"), "mock")
	require.Error(t, err)
	assert.True(t, stt.IsRateLimited(err))
	assert.Equal(t, int32(1), f.mock.calls.Load())
}

func TestRunPropagatesOtherFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"status hint", &stt.InvocationError{Provider: "local", StatusHint: http.StatusBadGateway, Message: "local whisper error 502"}, http.StatusBadGateway},
		{"no status", &stt.InvocationError{Provider: "local", Message: "connection refused"}, http.StatusInternalServerError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.register(&fakeCapability{name: "local", fn: func(*storage.Staged) (*stt.Result, error) { return nil, tt.err }})
			audio := f.stage(t, "clip.wav")

			_, err := f.orch.Run(context.Background(), audio, "local")
			require.Error(t, err)
			assert.Equal(t, tt.wantStatus, apperr.StatusOf(err))
			assert.Equal(t, int32(0), f.mock.calls.Load())
			assert.False(t, audio.Kept())
		})
	}
}

func TestRunUnknownProvider(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.Run(context.Background(), f.stage(t, "clip.wav"), "whisperx")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperr.StatusOf(err))
	assert.Equal(t, `Unknown provider "whisperx"`, apperr.MessageOf(err))
}

func TestRunNilResultIsServerFault(t *testing.T) {
	f := newFixture(t)
	f.register(&fakeCapability{name: "local", fn: func(*storage.Staged) (*stt.Result, error) { return nil, nil }})

	_, err := f.orch.Run(context.Background(), f.stage(t, "clip.wav"), "local")
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, apperr.StatusOf(err))
}

func TestSinkListNewestFirst(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"t1.wav", "t2.wav", "t3.wav"} {
		_, err := f.orch.Run(context.Background(), f.stage(t, name), "mock")
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	list, err := f.sink.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "t3.wav", *list[0].OriginalName)
	assert.Equal(t, "t2.wav", *list[1].OriginalName)
	assert.Equal(t, "t1.wav", *list[2].OriginalName)
}

func TestSinkDeleteRemovesFile(t *testing.T) {
	f := newFixture(t)
	audio := f.stage(t, "clip.wav")
	rec, err := f.orch.Run(context.Background(), audio, "mock")
	require.NoError(t, err)
	require.FileExists(t, audio.Path)

	require.NoError(t, f.sink.Delete(context.Background(), rec.ID.String()))
	assert.NoFileExists(t, audio.Path)

	err = f.sink.Delete(context.Background(), rec.ID.String())
	assert.Equal(t, http.StatusNotFound, apperr.StatusOf(err))

	_, err = f.sink.Get(context.Background(), rec.ID.String())
	assert.Equal(t, http.StatusNotFound, apperr.StatusOf(err))
}

func TestSinkDeleteMalformedID(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusNotFound, apperr.StatusOf(f.sink.Delete(context.Background(), "not-a-uuid")))
}

type failingRemover struct{ calls int }

func (r *failingRemover) Remove(string) error {
	r.calls++
	return errors.New("permission denied")
}

func TestSinkDeleteIgnoresFileRemovalFailure(t *testing.T) {
	f := newFixture(t)
	remover := &failingRemover{}
	sink := NewSink(f.repo, remover)

	rec, err := sink.Save(context.Background(), f.stage(t, "clip.wav"), "mock", &stt.Result{Text: "x"}, "")
	require.NoError(t, err)

	require.NoError(t, sink.Delete(context.Background(), rec.ID.String()))
	assert.Equal(t, 1, remover.calls)

	_, err = f.repo.GetByID(context.Background(), rec.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

type brokenRepo struct{ repository.TranscriptionRepository }

func (brokenRepo) Create(context.Context, *model.Transcription) error {
	return errors.New("database is locked")
}

func TestSinkSavePersistenceError(t *testing.T) {
	f := newFixture(t)
	sink := NewSink(brokenRepo{}, nil)
	orch := NewOrchestrator(f.reg, sink)
	audio := f.stage(t, "clip.wav")

	_, err := orch.Run(context.Background(), audio, "mock")
	require.Error(t, err)

	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodePersistence, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.HTTPStatus)
	assert.False(t, audio.Kept())
}
