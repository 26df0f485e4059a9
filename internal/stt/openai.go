package stt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/storage"
)

// OpenAIProvider posts staged files to the hosted transcription endpoint.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	policy RetryPolicy
	log    zerolog.Logger
}

// NewOpenAIProvider fails when no API key is configured.
func NewOpenAIProvider(cfg config.OpenAIConfig, policy RetryPolicy) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OPENAI_API_KEY is not set")
	}
	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		policy: policy,
		log:    logging.Component("stt.openai"),
	}, nil
}

func (p *OpenAIProvider) Name() string { return ProviderOpenAI }

// Transcribe uploads the file, retrying per the provider's policy. The
// file is reopened on every attempt.
func (p *OpenAIProvider) Transcribe(ctx context.Context, audio *storage.Staged) (*Result, error) {
	start := time.Now()
	resp, err := Invoke(ctx, p.policy, p.log, func(ctx context.Context) (openai.AudioResponse, error) {
		resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
			Model:    p.model,
			FilePath: audio.Path,
		})
		if err != nil {
			return resp, p.invocationError(err)
		}
		return resp, nil
	})
	if err != nil {
		p.log.Error().Err(err).Str("stored_name", audio.StoredName).Msg("transcription failed")
		return nil, err
	}

	p.log.Info().
		Str("stored_name", audio.StoredName).
		Int("length", len(resp.Text)).
		Dur("took", time.Since(start)).
		Msg("transcription successful")
	return &Result{Text: resp.Text}, nil
}

func (p *OpenAIProvider) invocationError(err error) *InvocationError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = fmt.Sprintf("OpenAI error %d", apiErr.HTTPStatusCode)
		}
		return &InvocationError{Provider: ProviderOpenAI, StatusHint: apiErr.HTTPStatusCode, Message: msg, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &InvocationError{
			Provider:   ProviderOpenAI,
			StatusHint: reqErr.HTTPStatusCode,
			Message:    fmt.Sprintf("OpenAI error %d", reqErr.HTTPStatusCode),
			Err:        err,
		}
	}
	return &InvocationError{Provider: ProviderOpenAI, Message: err.Error(), Err: err}
}
