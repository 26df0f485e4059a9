package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "transcriptions.db")
	conn, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer conn.Close()

	assert.FileExists(t, path)

	var tables int
	require.NoError(t, conn.QueryRow(
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='transcriptions'",
	).Scan(&tables))
	assert.Equal(t, 1, tables)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcriptions.db")

	first, err := Open(context.Background(), path)
	require.NoError(t, err)
	_, err = first.Exec(`INSERT INTO transcriptions (id, stored_name, provider, created_at) VALUES ('a', 'x.wav', 'mock', 1)`)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer second.Close()

	var rows, versions int
	require.NoError(t, second.QueryRow("SELECT COUNT(1) FROM transcriptions").Scan(&rows))
	require.NoError(t, second.QueryRow("SELECT COUNT(1) FROM schema_migrations").Scan(&versions))
	assert.Equal(t, 1, rows)
	assert.Equal(t, 1, versions)
}
