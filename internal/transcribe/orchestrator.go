package transcribe

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"scribe/internal/apperr"
	"scribe/internal/logging"
	"scribe/internal/model"
	"scribe/internal/storage"
	"scribe/internal/stt"
)

// Resolver looks up a transcription backend by name.
type Resolver interface {
	Resolve(name string) (stt.Capability, error)
}

// Orchestrator runs one upload through a backend and persists the result.
type Orchestrator struct {
	providers Resolver
	sink      *Sink
	log       zerolog.Logger
}

func NewOrchestrator(providers Resolver, sink *Sink) *Orchestrator {
	return &Orchestrator{providers: providers, sink: sink, log: logging.Component("orchestrator")}
}

// Run transcribes audio with the named provider. A rate-limited provider
// other than mock is replaced by a single mock invocation whose text is
// prefixed with a marker naming the original failure. The staged file is
// kept only when a record was saved.
func (o *Orchestrator) Run(ctx context.Context, audio *storage.Staged, providerName string) (*model.Transcription, error) {
	name := strings.ToLower(strings.TrimSpace(providerName))

	capability, err := o.providers.Resolve(name)
	if err != nil {
		return nil, err
	}

	log := o.log.With().Str("provider", name).Str("stored_name", audio.StoredName).Logger()
	log.Info().Int64("size", audio.Size).Msg("transcribing")

	result, err := capability.Transcribe(ctx, audio)
	fallback := ""
	if err != nil {
		if !stt.IsRateLimited(err) || name == stt.ProviderMock {
			log.Error().Err(err).Msg("transcription failed")
			return nil, err
		}

		log.Warn().Err(err).Msg("rate limited, falling back to mock")
		result, err = o.fallback(ctx, audio, name, err)
		if err != nil {
			return nil, err
		}
		fallback = stt.ProviderMock
	}
	if result == nil {
		return nil, apperr.Internal(fmt.Sprintf("Provider %q returned no result", name), nil)
	}

	rec, err := o.sink.Save(ctx, audio, name, result, fallback)
	if err != nil {
		return nil, err
	}
	audio.Keep()
	return rec, nil
}

func (o *Orchestrator) fallback(ctx context.Context, audio *storage.Staged, requested string, cause error) (*stt.Result, error) {
	mock, err := o.providers.Resolve(stt.ProviderMock)
	if err != nil {
		return nil, err
	}
	result, err := mock.Transcribe(ctx, audio)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, apperr.Internal("Fallback provider returned no result", nil)
	}
	return &stt.Result{
		Text:     FallbackMarker(requested, cause) + result.Text,
		Duration: result.Duration,
		Language: result.Language,
	}, nil
}

// FallbackMarker is the prefix added to fallback text.
func FallbackMarker(provider string, cause error) string {
	return fmt.Sprintf("[%s 429: %s] ", provider, cause.Error())
}
