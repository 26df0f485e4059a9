package transcribe

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"scribe/internal/apperr"
	"scribe/internal/logging"
	"scribe/internal/model"
	"scribe/internal/repository"
	"scribe/internal/storage"
	"scribe/internal/stt"
)

// FileRemover deletes a staged file by stored name.
type FileRemover interface {
	Remove(storedName string) error
}

// Sink persists transcription records and owns their staged files once
// saved.
type Sink struct {
	repo  repository.TranscriptionRepository
	files FileRemover
	log   zerolog.Logger
}

func NewSink(repo repository.TranscriptionRepository, files FileRemover) *Sink {
	return &Sink{repo: repo, files: files, log: logging.Component("sink")}
}

// Save builds a record from the staged upload and provider result. The
// record is written in a single statement; on failure nothing is stored.
func (s *Sink) Save(ctx context.Context, audio *storage.Staged, provider string, result *stt.Result, fallback string) (*model.Transcription, error) {
	rec := &model.Transcription{
		ID:         uuid.New(),
		StoredName: audio.StoredName,
		Provider:   provider,
		MimeType:   audio.MimeType,
		Text:       result.Text,
		Duration:   result.Duration,
		CreatedAt:  time.Now().UTC(),
	}
	if audio.OriginalName != "" {
		name := audio.OriginalName
		rec.OriginalName = &name
	}
	if fallback != "" {
		rec.FallbackProvider = &fallback
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		s.log.Error().Err(err).Str("stored_name", audio.StoredName).Msg("save failed")
		return nil, apperr.Persistence("save", err)
	}
	s.log.Info().Str("id", rec.ID.String()).Str("provider", provider).Msg("transcription saved")
	return rec, nil
}

// List returns every record, newest first.
func (s *Sink) List(ctx context.Context) ([]model.Transcription, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Persistence("list", err)
	}
	return list, nil
}

// Get returns a single record. A malformed id is reported as not found.
func (s *Sink) Get(ctx context.Context, id string) (*model.Transcription, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, apperr.NotFound("Transcription")
	}
	rec, err := s.repo.GetByID(ctx, parsed)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("Transcription")
	}
	if err != nil {
		return nil, apperr.Persistence("get", err)
	}
	return rec, nil
}

// Delete removes the record, then best-effort removes its staged file.
// File removal errors are logged and never fail the deletion.
func (s *Sink) Delete(ctx context.Context, id string) error {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return apperr.NotFound("Transcription")
	}
	rec, err := s.repo.Delete(ctx, parsed)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("Transcription")
	}
	if err != nil {
		return apperr.Persistence("delete", err)
	}

	if s.files != nil && rec.StoredName != "" {
		if err := s.files.Remove(rec.StoredName); err != nil {
			s.log.Warn().Err(err).Str("stored_name", rec.StoredName).Msg("failed to remove staged file")
		}
	}
	s.log.Info().Str("id", rec.ID.String()).Msg("transcription deleted")
	return nil
}
