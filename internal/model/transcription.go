package model

import (
	"time"

	"github.com/google/uuid"
)

// Transcription is a persisted transcription record. Text is never null,
// an empty transcript is stored as "".
type Transcription struct {
	ID               uuid.UUID `json:"id"`
	StoredName       string    `json:"storedName"`
	OriginalName     *string   `json:"originalName"`
	Provider         string    `json:"provider"`
	MimeType         string    `json:"mimeType"`
	Text             string    `json:"text"`
	Duration         *float64  `json:"duration"`
	FallbackProvider *string   `json:"fallbackProvider"`
	CreatedAt        time.Time `json:"createdAt"`
}

// FellBack reports whether the text came from the fallback backend.
func (t *Transcription) FellBack() bool {
	return t.FallbackProvider != nil
}
