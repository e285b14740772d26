package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/fintrack/internal/common"
)

func TestBackup(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	insertAll(t, store, createTestTransactions("user-1", 3))

	dir := filepath.Join(t.TempDir(), "backups")
	path, err := store.Backup(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.Regexp(t, `^test-\d{8}T\d{6}\.\d{3}\.db$`, filepath.Base(path))

	copied, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer func() { _ = copied.Close() }()

	var count, version int
	require.NoError(t, copied.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&count))
	require.NoError(t, copied.QueryRow(`PRAGMA user_version`).Scan(&version))
	assert.Equal(t, 3, count)
	assert.Equal(t, ExpectedSchemaVersion, version)
}

func TestBackup_InMemory(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	_, err = store.Backup(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestBackup_RejectsQuotedPath(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	_, err := store.Backup(context.Background(), filepath.Join(t.TempDir(), "it's"))
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
