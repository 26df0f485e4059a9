package stt

import (
	"context"
	"fmt"

	"scribe/internal/storage"
)

// MockProvider returns deterministic placeholder text without any network
// call. It is also the rate-limit fallback target.
type MockProvider struct{}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Name() string { return ProviderMock }

func (p *MockProvider) Transcribe(_ context.Context, audio *storage.Staged) (*Result, error) {
	name, size := "audio", int64(0)
	if audio != nil {
		name = audio.OriginalName
		if name == "" {
			name = audio.StoredName
		}
		size = audio.Size
	}
	return &Result{
		Text: fmt.Sprintf("Mock transcription of %s (%d bytes).", name, size),
	}, nil
}
