package stt

import (
	"scribe/internal/config"
)

// Provider names.
const (
	ProviderMock   = "mock"
	ProviderOpenAI = "openai"
	ProviderGoogle = "google"
	ProviderLocal  = "local"
	ProviderFPT    = "fpt"
)

// NewDefaultRegistry registers every built-in backend. Nothing is
// constructed until a name is first resolved.
func NewDefaultRegistry(cfg *config.Config) *Registry {
	r := NewRegistry()

	r.Register(ProviderMock, func() (Capability, error) {
		return NewMockProvider(), nil
	})
	r.Register(ProviderOpenAI, func() (Capability, error) {
		return NewOpenAIProvider(cfg.OpenAI, TransientStatusPolicy())
	})
	r.Register(ProviderGoogle, func() (Capability, error) {
		return NewGoogleProvider(cfg.Google)
	})
	r.Register(ProviderLocal, func() (Capability, error) {
		return NewLocalProvider(cfg.Local), nil
	})
	r.Register(ProviderFPT, func() (Capability, error) {
		return NewFPTProvider(cfg.FPT)
	})

	return r
}
