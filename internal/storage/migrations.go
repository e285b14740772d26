package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/fintrack/internal/common"
	"github.com/Veraticus/fintrack/internal/model"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 5

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

// column describes an optional transactions column that later clients may add.
type column struct {
	name string
	decl string
}

// additiveColumns lists every transactions column beyond the original core set.
// Databases created by older clients may lack any of them.
var additiveColumns = []column{
	{name: "user_id", decl: "TEXT"},
	{name: "currency", decl: "TEXT DEFAULT '" + model.DefaultCurrency + "'"},
	{name: "category", decl: "TEXT"},
	{name: "note", decl: "TEXT"},
	{name: "updated_at", decl: "TEXT"},
	{name: "deleted", decl: "INTEGER DEFAULT 0"},
	{name: "photo_uri", decl: "TEXT"},
	{name: "latitude", decl: "REAL"},
	{name: "longitude", decl: "REAL"},
	{name: "address", decl: "TEXT"},
	{name: "synced", decl: "INTEGER DEFAULT 0"},
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			// IF NOT EXISTS keeps databases created by earlier app builds intact.
			queries := []string{
				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY NOT NULL,
					user_id TEXT,
					type TEXT NOT NULL,
					amount REAL NOT NULL,
					currency TEXT DEFAULT '` + model.DefaultCurrency + `',
					category TEXT,
					note TEXT,
					created_at TEXT NOT NULL,
					updated_at TEXT,
					deleted INTEGER DEFAULT 0,
					photo_uri TEXT,
					latitude REAL,
					longitude REAL,
					address TEXT,
					synced INTEGER DEFAULT 0
				)`,
				`CREATE TABLE IF NOT EXISTS categories (
					id TEXT PRIMARY KEY NOT NULL,
					name TEXT NOT NULL,
					type TEXT NOT NULL
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Ensure additive transaction columns",
		Up: func(tx *sql.Tx) error {
			for _, col := range additiveColumns {
				if err := addColumnIfMissing(tx, "transactions", col.name, col.decl); err != nil {
					return err
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Add sync lookup indexes",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE INDEX IF NOT EXISTS idx_transactions_user_synced ON transactions(user_id, synced)`,
				`CREATE INDEX IF NOT EXISTS idx_transactions_user_created ON transactions(user_id, created_at)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
	{
		Version:     4,
		Description: "Add pending remote deletes",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS pending_remote_deletes (
					user_id TEXT NOT NULL,
					id TEXT NOT NULL,
					requested_at TEXT NOT NULL,
					PRIMARY KEY (user_id, id)
				)
			`)
			return err
		},
	},
	{
		Version:     5,
		Description: "Seed default categories",
		Up: func(tx *sql.Tx) error {
			stmt, err := tx.Prepare(`INSERT OR IGNORE INTO categories (id, name, type) VALUES (?, ?, ?)`)
			if err != nil {
				return fmt.Errorf("failed to prepare statement: %w", err)
			}
			defer func() { _ = stmt.Close() }()

			for _, name := range model.DefaultCategories {
				id := "default-" + strings.ToLower(name)
				if _, err := stmt.Exec(id, name, string(model.TypeExpense)); err != nil {
					return fmt.Errorf("failed to seed category %s: %w", name, err)
				}
			}
			return nil
		},
	},
}

// addColumnIfMissing adds a column unless it is already present.
// A "duplicate column" failure is treated as success.
func addColumnIfMissing(tx *sql.Tx, table, name, decl string) error {
	exists, err := columnExists(tx, table, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	// #nosec G201 - table, name and decl come from the static column list
	_, err = tx.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, name, decl))
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "duplicate column") {
			return nil
		}
		return fmt.Errorf("failed to add column %s.%s: %w", table, name, err)
	}

	slog.Info("Added column", "table", table, "column", name)
	return nil
}

func columnExists(tx *sql.Tx, table, name string) (bool, error) {
	// #nosec G201 - table comes from the static column list
	rows, err := tx.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("failed to read table info for %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			cid       int
			colName   string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, fmt.Errorf("failed to scan table info: %w", err)
		}
		if strings.EqualFold(colName, name) {
			return true, nil
		}
	}
	return false, rows.Err()
}

// SchemaVersion returns the version recorded in the database.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, common.NewStorageError("schema version", err)
	}
	return version, nil
}

// Migrate applies all pending database migrations. It is safe to call on
// every start: applied migrations are skipped and each one is idempotent.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return common.NewStorageError("migrate", fmt.Errorf("failed to begin transaction: %w", txErr))
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return common.NewStorageError("migrate", fmt.Errorf("migration %d failed: %w", migration.Version, upErr))
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return common.NewStorageError("migrate", fmt.Errorf("failed to update schema version: %w", execErr))
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return common.NewStorageError("migrate", fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr))
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	if finalVersion != ExpectedSchemaVersion {
		return common.NewStorageError("migrate",
			fmt.Errorf("%w: schema version mismatch: expected %d, got %d", common.ErrDatabaseCorrupted, ExpectedSchemaVersion, finalVersion))
	}

	return nil
}
