// Package testutil provides shared fixtures for fintrack tests.
package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/fintrack/internal/model"
	"github.com/Veraticus/fintrack/internal/storage"
)

// TestUser is the user id fixtures are created for unless overridden.
const TestUser = "user-1"

// TestDB represents a migrated test database.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a new in-memory database and runs all migrations.
// The database is closed when the test ends.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	db := SetupTestDBWithOptions(t, TestDBOptions{})
	return db
}

// TestDBOptions provides configuration options for test database setup.
type TestDBOptions struct {
	CustomSetup    func(context.Context, *storage.SQLiteStorage) error
	Path           string
	SkipMigrations bool
}

// SetupTestDBWithOptions creates a test database with custom options.
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	path := opts.Path
	if path == "" {
		path = ":memory:"
	}

	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	ctx := context.Background()

	if opts.CustomSetup != nil {
		if err := opts.CustomSetup(ctx, store); err != nil {
			t.Fatalf("custom setup failed: %v", err)
		}
	}

	if !opts.SkipMigrations {
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{
		Storage: store,
		t:       t,
	}
}

// MustInsert stores txn or fails the test.
func (db *TestDB) MustInsert(txn *model.Transaction) *model.Transaction {
	db.t.Helper()
	if err := db.Storage.InsertTransaction(context.Background(), txn); err != nil {
		db.t.Fatalf("failed to insert transaction %s: %v", txn.ID, err)
	}
	return txn
}

// MustGet loads a transaction or fails the test.
func (db *TestDB) MustGet(id string) *model.Transaction {
	db.t.Helper()
	txn, err := db.Storage.GetTransactionByID(context.Background(), id)
	if err != nil {
		db.t.Fatalf("failed to load transaction %s: %v", id, err)
	}
	return txn
}

var fixtureSeq atomic.Int64

// FixtureTime is the base creation time for generated transactions.
var FixtureTime = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

// NewTransaction returns a valid unsynced expense for TestUser. Each call
// yields a distinct id and a creation time one minute after the last.
func NewTransaction(opts ...func(*model.Transaction)) *model.Transaction {
	n := fixtureSeq.Add(1)
	txn := &model.Transaction{
		ID:        fmt.Sprintf("txn-%04d", n),
		UserID:    TestUser,
		Type:      model.TypeExpense,
		Amount:    decimal.RequireFromString("12.50"),
		Currency:  model.DefaultCurrency,
		Category:  "Food",
		Note:      "lunch",
		CreatedAt: FixtureTime.Add(time.Duration(n) * time.Minute),
	}
	for _, opt := range opts {
		opt(txn)
	}
	return txn
}

// WithID overrides the generated id.
func WithID(id string) func(*model.Transaction) {
	return func(txn *model.Transaction) { txn.ID = id }
}

// WithUser overrides the owning user.
func WithUser(userID string) func(*model.Transaction) {
	return func(txn *model.Transaction) { txn.UserID = userID }
}

// WithAmount overrides the amount.
func WithAmount(amount string) func(*model.Transaction) {
	return func(txn *model.Transaction) { txn.Amount = decimal.RequireFromString(amount) }
}

// Synced marks the fixture as already pushed.
func Synced() func(*model.Transaction) {
	return func(txn *model.Transaction) { txn.Synced = true }
}
