package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/fintrack/internal/model"
)

var testBaseTime = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

// Helper function to create test transactions.
func createTestTransactions(userID string, count int) []model.Transaction {
	txns := make([]model.Transaction, count)
	for i := 0; i < count; i++ {
		txns[i] = model.Transaction{
			ID:        fmt.Sprintf("txn-%02d", i+1),
			UserID:    userID,
			Type:      model.TypeExpense,
			Amount:    decimal.NewFromFloat(float64(i+1) * 10.50),
			Currency:  "LKR",
			Category:  "Food",
			Note:      fmt.Sprintf("Transaction #%d", i+1),
			CreatedAt: testBaseTime.Add(time.Duration(i) * time.Hour),
		}
	}
	return txns
}

func insertAll(t *testing.T, store *SQLiteStorage, txns []model.Transaction) {
	t.Helper()
	for i := range txns {
		if err := store.InsertTransaction(context.Background(), &txns[i]); err != nil {
			t.Fatalf("Failed to insert %s: %v", txns[i].ID, err)
		}
	}
}

func TestNewSQLiteStorage(t *testing.T) {
	t.Run("creates parent directory", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "nested", "dir", "fintrack.db")
		store, err := NewSQLiteStorage(dbPath)
		if err != nil {
			t.Fatalf("NewSQLiteStorage() error = %v", err)
		}
		defer func() { _ = store.Close() }()

		if _, err := os.Stat(filepath.Dir(dbPath)); err != nil {
			t.Errorf("expected directory to exist: %v", err)
		}
		if store.Path() != dbPath {
			t.Errorf("Path() = %q, want %q", store.Path(), dbPath)
		}
	})

	t.Run("in-memory", func(t *testing.T) {
		store, err := NewSQLiteStorage(":memory:")
		if err != nil {
			t.Fatalf("NewSQLiteStorage() error = %v", err)
		}
		defer func() { _ = store.Close() }()

		if err := store.Migrate(context.Background()); err != nil {
			t.Fatalf("Migrate() error = %v", err)
		}
	})

	t.Run("empty path", func(t *testing.T) {
		if _, err := NewSQLiteStorage(" "); err == nil {
			t.Error("expected error for empty path")
		}
	})
}
