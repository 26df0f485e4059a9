package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/storage"
)

const (
	defaultLocalURL     = "http://127.0.0.1:7860"
	defaultLocalTimeout = 120 * time.Second
)

// LocalProvider forwards files to a self-hosted whisper server. The
// timeout is long because the model may still be loading.
type LocalProvider struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

func NewLocalProvider(cfg config.LocalConfig) *LocalProvider {
	if cfg.URL == "" {
		cfg.URL = defaultLocalURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultLocalTimeout
	}
	return &LocalProvider{
		baseURL: cfg.URL,
		client:  &http.Client{Timeout: cfg.Timeout},
		log:     logging.Component("stt.local"),
	}
}

func (p *LocalProvider) Name() string { return ProviderLocal }

type localResponse struct {
	Text     string   `json:"text"`
	Language string   `json:"language"`
	Duration *float64 `json:"duration"`
	Error    string   `json:"error"`
}

func (p *LocalProvider) Transcribe(ctx context.Context, audio *storage.Staged) (*Result, error) {
	return Invoke(ctx, NoRetry, p.log, func(ctx context.Context) (*Result, error) {
		return p.post(ctx, audio)
	})
}

func (p *LocalProvider) post(ctx context.Context, audio *storage.Staged) (*Result, error) {
	f, err := os.Open(audio.Path)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	filename := audio.StoredName
	if filename == "" {
		filename = "audio.webm"
	}

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		part, err := writer.CreateFormFile("file", filename)
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = writer.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/transcribe", pr)
	if err != nil {
		_ = pr.CloseWithError(err)
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		_ = pr.CloseWithError(err)
		return nil, &InvocationError{Provider: ProviderLocal, Message: "local whisper request failed", Err: err}
	}
	defer resp.Body.Close()

	var body localResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)

	if !isSuccess(resp.StatusCode) {
		msg := ""
		if decodeErr == nil {
			msg = body.Error
		}
		if msg == "" {
			msg = fmt.Sprintf("local whisper error %d", resp.StatusCode)
		}
		p.log.Error().Int("status", resp.StatusCode).Str("error", msg).Msg("local whisper failed")
		return nil, remoteFailure(ProviderLocal, resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode whisper response: %w", decodeErr)
	}

	var duration *float64
	if body.Duration != nil && *body.Duration > 0 {
		duration = body.Duration
	}
	p.log.Info().Str("stored_name", audio.StoredName).Str("language", body.Language).Int("length", len(body.Text)).Msg("transcription successful")
	return &Result{Text: body.Text, Duration: duration, Language: body.Language}, nil
}
