package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"scribe/internal/model"
)

type sqliteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an opened SQLite handle
func NewSQLiteRepository(db *sql.DB) TranscriptionRepository {
	return &sqliteRepository{db: db}
}

const selectColumns = `
	id, stored_name, original_name, provider, mime_type, text,
	duration, fallback_provider, created_at`

// Create inserts a transcription record
func (r *sqliteRepository) Create(ctx context.Context, t *model.Transcription) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transcriptions (`+selectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(),
		t.StoredName,
		t.OriginalName,
		t.Provider,
		t.MimeType,
		t.Text,
		t.Duration,
		t.FallbackProvider,
		t.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to create transcription: %w", err)
	}
	return nil
}

// GetByID retrieves a transcription by ID
func (r *sqliteRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Transcription, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM transcriptions WHERE id = ?`, id.String())
	t, err := scanTranscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transcription: %w", err)
	}
	return t, nil
}

// List returns all transcriptions, newest first. Rows inserted within the
// same nanosecond keep reverse insertion order.
func (r *sqliteRepository) List(ctx context.Context) ([]model.Transcription, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM transcriptions
		ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcriptions: %w", err)
	}
	defer rows.Close()

	out := make([]model.Transcription, 0)
	for rows.Next() {
		t, err := scanTranscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transcription: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transcriptions: %w", err)
	}
	return out, nil
}

// Delete removes a transcription and returns the deleted record
func (r *sqliteRepository) Delete(ctx context.Context, id uuid.UUID) (*model.Transcription, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin delete tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	t, err := scanTranscription(tx.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM transcriptions WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transcription: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM transcriptions WHERE id = ?`, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to delete transcription: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete: %w", err)
	}
	return t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTranscription(row rowScanner) (*model.Transcription, error) {
	var (
		t         model.Transcription
		id        string
		original  sql.NullString
		duration  sql.NullFloat64
		fallback  sql.NullString
		createdAt int64
	)
	if err := row.Scan(
		&id,
		&t.StoredName,
		&original,
		&t.Provider,
		&t.MimeType,
		&t.Text,
		&duration,
		&fallback,
		&createdAt,
	); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid transcription id %q: %w", id, err)
	}
	t.ID = parsed
	if original.Valid {
		t.OriginalName = &original.String
	}
	if duration.Valid {
		t.Duration = &duration.Float64
	}
	if fallback.Valid {
		t.FallbackProvider = &fallback.String
	}
	t.CreatedAt = time.Unix(0, createdAt).UTC()
	return &t, nil
}
