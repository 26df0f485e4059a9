package stt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/storage"
)

// FPTProvider implements STT using the FPT.AI Speech-to-Text API.
type FPTProvider struct {
	apiKey string
	url    string
	client *http.Client
	log    zerolog.Logger
}

// NewFPTProvider fails when no API key is configured.
func NewFPTProvider(cfg config.FPTConfig) (*FPTProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("FPT_AI_API_KEY environment variable is not set")
	}
	url := cfg.URL
	if url == "" {
		url = "https://api.fpt.ai/hmi/asr/v1"
	}
	return &FPTProvider{
		apiKey: cfg.APIKey,
		url:    url,
		client: &http.Client{Timeout: 90 * time.Second},
		log:    logging.Component("stt.fpt"),
	}, nil
}

func (p *FPTProvider) Name() string { return ProviderFPT }

type fptResponse struct {
	Hypotheses []struct {
		Utterance  string  `json:"utterance"`
		Confidence float64 `json:"confidence"`
	} `json:"hypotheses"`
	ErrorCode int    `json:"errorCode,omitempty"`
	Message   string `json:"message,omitempty"`
}

func (p *FPTProvider) Transcribe(ctx context.Context, audio *storage.Staged) (*Result, error) {
	return Invoke(ctx, NoRetry, p.log, func(ctx context.Context) (*Result, error) {
		return p.send(ctx, audio)
	})
}

func (p *FPTProvider) send(ctx context.Context, audio *storage.Staged) (*Result, error) {
	f, err := os.Open(audio.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio file: %w", err)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, f)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.ContentLength = audio.Size
	req.Header.Set("api-key", p.apiKey)
	req.Header.Set("Content-Type", "text/plain")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &InvocationError{Provider: ProviderFPT, Message: "failed to send request to FPT.AI", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if !isSuccess(resp.StatusCode) {
		p.log.Error().Int("status", resp.StatusCode).Str("body", preview(body)).Msg("API error")
		return nil, remoteFailure(ProviderFPT, resp.StatusCode, fmt.Sprintf("FPT.AI API returned status %d", resp.StatusCode))
	}

	var parsed fptResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse FPT.AI response: %w", err)
	}
	if parsed.ErrorCode != 0 {
		return nil, &InvocationError{
			Provider: ProviderFPT,
			Message:  fmt.Sprintf("FPT.AI API error %d: %s", parsed.ErrorCode, parsed.Message),
		}
	}

	text := ""
	if len(parsed.Hypotheses) > 0 {
		text = strings.TrimSpace(parsed.Hypotheses[0].Utterance)
	}
	p.log.Info().Str("stored_name", audio.StoredName).Int("length", len(text)).Msg("transcription successful")
	return &Result{Text: text}, nil
}
