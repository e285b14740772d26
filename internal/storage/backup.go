package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Veraticus/fintrack/internal/common"
)

// Backup writes a consistent copy of the database into dir and verifies it.
// It returns the path of the copy.
func (s *SQLiteStorage) Backup(ctx context.Context, dir string) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}
	if s.dbPath == ":memory:" {
		return "", common.NewStorageError("backup", fmt.Errorf("%w: in-memory database cannot be backed up", common.ErrInvalidInput))
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", common.NewStorageError("backup", fmt.Errorf("failed to create backup directory: %w", err))
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", common.NewStorageError("backup", err)
	}
	name := fmt.Sprintf("%s-%s.db",
		strings.TrimSuffix(filepath.Base(s.dbPath), filepath.Ext(s.dbPath)),
		time.Now().UTC().Format("20060102T150405.000"))
	destPath := filepath.Join(absDir, name)

	// VACUUM INTO takes a literal, so the path must not be able to escape it.
	if strings.ContainsAny(destPath, `'";`) {
		return "", common.NewStorageError("backup", fmt.Errorf("%w: invalid backup path", common.ErrInvalidInput))
	}

	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return "", common.NewStorageError("backup", fmt.Errorf("failed to checkpoint WAL: %w", err))
	}

	// #nosec G201 - destPath is validated above
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", destPath)); err != nil {
		return "", common.NewStorageError("backup", fmt.Errorf("failed to copy database: %w", err))
	}

	if err := verifyIntegrity(ctx, destPath); err != nil {
		_ = os.Remove(destPath)
		return "", common.NewStorageError("backup", fmt.Errorf("%w: %w", common.ErrDatabaseCorrupted, err))
	}

	slog.Info("Database backed up", "path", destPath)
	return destPath, nil
}

func verifyIntegrity(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return err
	}

	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}

	return nil
}
