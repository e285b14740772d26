package app

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/fintrack/internal/common"
	"github.com/Veraticus/fintrack/internal/config"
	"github.com/Veraticus/fintrack/internal/connectivity"
	"github.com/Veraticus/fintrack/internal/model"
	"github.com/Veraticus/fintrack/internal/remote"
	"github.com/Veraticus/fintrack/internal/repository"
	"github.com/Veraticus/fintrack/internal/service"
	"github.com/Veraticus/fintrack/internal/storage"
)

func testConfig(path string) *config.Config {
	return &config.Config{
		DatabasePath:        path,
		UserID:              "user-1",
		RemoteTable:         remote.DefaultTable,
		PullPolicy:          service.PullPreservePending,
		DefaultCurrency:     "LKR",
		LogLevel:            "info",
		RemoteTimeout:       time.Second,
		ProbeInterval:       10 * time.Millisecond,
		RetryAttempts:       1,
		BackupBeforeMigrate: true,
	}
}

func newApp(t *testing.T, cfg *config.Config, opts Options) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNew_LocalOnly(t *testing.T) {
	a := newApp(t, testConfig(":memory:"), Options{})

	assert.Nil(t, a.Engine)

	version, err := a.Store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, storage.ExpectedSchemaVersion, version)

	_, err = a.Sync(context.Background())
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestApp_CreateThenSync(t *testing.T) {
	store := remote.NewMockStore()
	a := newApp(t, testConfig(":memory:"), Options{Remote: store})
	ctx := context.Background()

	userID, err := a.UserID(ctx)
	require.NoError(t, err)

	amount := decimal.RequireFromString("1500")
	txn, err := a.Repository.Create(ctx, repository.Draft{
		UserID: userID,
		Type:   model.TypeExpense,
		Amount: &amount,
	})
	require.NoError(t, err)

	pending, err := a.Repository.CountPending(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	report, err := a.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Pushed)

	pending, err = a.Repository.CountPending(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, pending)

	doc, ok := store.Document(userID, txn.ID)
	require.True(t, ok)
	assert.Equal(t, "LKR", *doc.Currency)
}

func TestApp_DeleteReachesRemote(t *testing.T) {
	store := remote.NewMockStore()
	a := newApp(t, testConfig(":memory:"), Options{Remote: store})
	ctx := context.Background()

	amount := decimal.RequireFromString("20")
	txn, err := a.Repository.Create(ctx, repository.Draft{UserID: "user-1", Type: model.TypeIncome, Amount: &amount})
	require.NoError(t, err)
	_, err = a.Sync(ctx)
	require.NoError(t, err)

	require.NoError(t, a.Repository.Delete(ctx, "user-1", txn.ID))
	a.Repository.Close()

	_, ok := store.Document("user-1", txn.ID)
	assert.False(t, ok)

	pending, err := a.Store.ListPendingRemoteDeletes(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestApp_UserIDRequired(t *testing.T) {
	cfg := testConfig(":memory:")
	cfg.UserID = ""
	a := newApp(t, cfg, Options{})

	_, err := a.UserID(context.Background())
	assert.ErrorIs(t, err, common.ErrNotAuthenticated)
}

func TestApp_WatchSyncsWhenOnline(t *testing.T) {
	store := remote.NewMockStore()
	probe := connectivity.ProbeFunc(func(context.Context) error { return nil })
	a := newApp(t, testConfig(":memory:"), Options{Remote: store, Probe: probe})

	amount := decimal.RequireFromString("5")
	txn, err := a.Repository.Create(context.Background(), repository.Draft{UserID: "user-1", Type: model.TypeExpense, Amount: &amount})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	focus := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- a.Watch(ctx, focus) }()

	require.Eventually(t, func() bool {
		_, ok := store.Document("user-1", txn.ID)
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestApp_WatchStaysQuietOffline(t *testing.T) {
	store := remote.NewMockStore()
	probe := connectivity.ProbeFunc(func(context.Context) error { return errors.New("no route") })
	a := newApp(t, testConfig(":memory:"), Options{Remote: store, Probe: probe})

	amount := decimal.RequireFromString("5")
	_, err := a.Repository.Create(context.Background(), repository.Draft{UserID: "user-1", Type: model.TypeExpense, Amount: &amount})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	focus := make(chan struct{}, 1)
	focus <- struct{}{}

	require.NoError(t, a.Watch(ctx, focus))
	assert.Empty(t, store.PutCalls)
	assert.Zero(t, store.ListCalls)
}

func TestNew_BacksUpLegacyDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fintrack.db")

	legacy, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = legacy.Exec(`CREATE TABLE transactions (
		id TEXT PRIMARY KEY NOT NULL,
		user_id TEXT,
		type TEXT NOT NULL,
		amount REAL NOT NULL,
		currency TEXT DEFAULT 'LKR',
		category TEXT,
		note TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT,
		deleted INTEGER DEFAULT 0,
		photo_uri TEXT,
		latitude REAL,
		longitude REAL,
		synced INTEGER DEFAULT 0
	)`)
	require.NoError(t, err)
	_, err = legacy.Exec(`INSERT INTO transactions (id, user_id, type, amount, created_at)
		VALUES ('legacy-1', 'user-1', 'expense', 75.5, '2023-11-02T08:00:00.000Z')`)
	require.NoError(t, err)
	require.NoError(t, legacy.Close())

	a := newApp(t, testConfig(path), Options{})

	backups, err := filepath.Glob(filepath.Join(dir, "backups", "fintrack-*.db"))
	require.NoError(t, err)
	assert.Len(t, backups, 1)

	txns, err := a.Repository.List(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "legacy-1", txns[0].ID)
	assert.Empty(t, txns[0].Address)
	assert.False(t, txns[0].Synced)
}

func TestNew_NoBackupForFreshDatabase(t *testing.T) {
	dir := t.TempDir()
	newApp(t, testConfig(filepath.Join(dir, "fresh.db")), Options{})

	_, err := os.Stat(filepath.Join(dir, "backups"))
	assert.True(t, os.IsNotExist(err))
}
