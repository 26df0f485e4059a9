package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"scribe/internal/model"
)

// ErrNotFound is returned when no transcription has the requested id.
var ErrNotFound = errors.New("transcription not found")

// TranscriptionRepository defines data access for transcription records
type TranscriptionRepository interface {
	// Create inserts a new record
	Create(ctx context.Context, t *model.Transcription) error

	// GetByID retrieves a record by ID
	GetByID(ctx context.Context, id uuid.UUID) (*model.Transcription, error)

	// List returns every record, newest first
	List(ctx context.Context) ([]model.Transcription, error)

	// Delete removes a record and returns it, or ErrNotFound
	Delete(ctx context.Context, id uuid.UUID) (*model.Transcription, error)
}
