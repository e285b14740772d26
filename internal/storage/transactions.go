package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/fintrack/internal/common"
	"github.com/Veraticus/fintrack/internal/model"
	"github.com/Veraticus/fintrack/internal/service"
)

const transactionColumns = `id, user_id, type, amount, currency, category, note, created_at,
	updated_at, deleted, photo_uri, latitude, longitude, address, synced`

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// InsertTransaction persists a new row. A duplicate id is a constraint violation.
func (s *SQLiteStorage) InsertTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return common.NewStorageError("insert transaction", err)
	}

	if err := insertTransaction(ctx, s.db, txn); err != nil {
		return common.NewStorageError("insert transaction", err)
	}

	slog.Debug("Inserted transaction", "id", txn.ID, "user_id", txn.UserID, "synced", txn.Synced)
	return nil
}

func insertTransaction(ctx context.Context, q queryer, txn *model.Transaction) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID,
		txn.UserID,
		string(txn.Type),
		txn.Amount.InexactFloat64(),
		nullString(txn.Currency),
		nullString(txn.Category),
		nullString(txn.Note),
		model.FormatTimestamp(txn.CreatedAt),
		nullTime(txn.UpdatedAt),
		boolToInt(txn.Deleted),
		nullString(txn.PhotoURI),
		nullFloat(txn.Latitude),
		nullFloat(txn.Longitude),
		nullString(txn.Address),
		boolToInt(txn.Synced),
	)
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("%w: transaction %s: %w", common.ErrDuplicateEntry, txn.ID, err)
		}
		return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
	}
	return nil
}

// UpdateTransaction rewrites the user-editable fields of an existing row and
// marks it unsynced. id, user_id and created_at are never changed.
func (s *SQLiteStorage) UpdateTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return common.NewStorageError("update transaction", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET
			type = ?, amount = ?, currency = ?, category = ?, note = ?, updated_at = ?,
			deleted = ?, photo_uri = ?, latitude = ?, longitude = ?, address = ?, synced = 0
		WHERE id = ? AND user_id = ?`,
		string(txn.Type),
		txn.Amount.InexactFloat64(),
		nullString(txn.Currency),
		nullString(txn.Category),
		nullString(txn.Note),
		nullTime(txn.UpdatedAt),
		boolToInt(txn.Deleted),
		nullString(txn.PhotoURI),
		nullFloat(txn.Latitude),
		nullFloat(txn.Longitude),
		nullString(txn.Address),
		txn.ID,
		txn.UserID,
	)
	if err != nil {
		return common.NewStorageError("update transaction", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return common.NewStorageError("update transaction", err)
	}
	if affected == 0 {
		return common.NewStorageError("update transaction", fmt.Errorf("%w: transaction %s", common.ErrNotFound, txn.ID))
	}

	txn.Synced = false
	return nil
}

// GetTransactionByID returns a single row by id.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	txn, err := getTransactionByID(ctx, s.db, id)
	if err != nil {
		return nil, common.NewStorageError("get transaction", err)
	}
	return txn, nil
}

func getTransactionByID(ctx context.Context, q queryer, id string) (*model.Transaction, error) {
	row := q.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// ListTransactions returns a user's non-deleted rows, newest first.
func (s *SQLiteStorage) ListTransactions(ctx context.Context, userID string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	txns, err := s.queryTransactions(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE user_id = ? AND COALESCE(deleted, 0) = 0
		ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, common.NewStorageError("list transactions", err)
	}
	return txns, nil
}

// ListUnsynced returns every row of the user with synced=0.
func (s *SQLiteStorage) ListUnsynced(ctx context.Context, userID string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	txns, err := s.queryTransactions(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE user_id = ? AND COALESCE(synced, 0) = 0
		ORDER BY created_at`, userID)
	if err != nil {
		return nil, common.NewStorageError("list unsynced", err)
	}
	return txns, nil
}

// CountUnsynced returns the number of rows of the user with synced=0.
func (s *SQLiteStorage) CountUnsynced(ctx context.Context, userID string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE user_id = ? AND COALESCE(synced, 0) = 0`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, common.NewStorageError("count unsynced", err)
	}
	return count, nil
}

// MarkSynced flips synced to 1, but only if the row was not modified after
// observed. It reports whether the flag was set.
func (s *SQLiteStorage) MarkSynced(ctx context.Context, id string, observed time.Time) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}

	marked := false
	err := s.withTx(ctx, "mark synced", func(tx *sql.Tx) error {
		var touched string
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(updated_at, created_at) FROM transactions WHERE id = ?`, id,
		).Scan(&touched)
		if errors.Is(err, sql.ErrNoRows) {
			// Deleted while the push was in flight.
			return nil
		}
		if err != nil {
			return err
		}

		ts, err := model.ParseTimestamp(touched)
		if err != nil {
			return err
		}
		if !ts.UTC().Truncate(time.Millisecond).Equal(observed.UTC().Truncate(time.Millisecond)) {
			slog.Debug("Transaction changed during push, leaving unsynced", "id", id)
			return nil
		}

		if _, err := tx.ExecContext(ctx, `UPDATE transactions SET synced = 1 WHERE id = ?`, id); err != nil {
			return err
		}
		marked = true
		return nil
	})
	return marked, err
}

// ApplyRemote writes a pulled document into the local store. Missing rows are
// inserted with synced=1; existing rows get their mutable fields overwritten
// unless policy preserves rows that still have unpushed changes.
func (s *SQLiteStorage) ApplyRemote(ctx context.Context, txn *model.Transaction, policy service.PullPolicy) (service.ApplyOutcome, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateTransaction(txn); err != nil {
		return 0, common.NewStorageError("apply remote", err)
	}

	var outcome service.ApplyOutcome
	err := s.withTx(ctx, "apply remote", func(tx *sql.Tx) error {
		var synced sql.NullInt64
		err := tx.QueryRowContext(ctx, `SELECT synced FROM transactions WHERE id = ?`, txn.ID).Scan(&synced)
		if errors.Is(err, sql.ErrNoRows) {
			pulled := *txn
			pulled.Synced = true
			if err := insertTransaction(ctx, tx, &pulled); err != nil {
				return err
			}
			outcome = service.OutcomeInserted
			return nil
		}
		if err != nil {
			return err
		}

		if policy == service.PullPreservePending && synced.Int64 == 0 {
			outcome = service.OutcomeKept
			return nil
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE transactions SET
				type = ?, amount = ?, currency = ?, category = ?, note = ?, updated_at = ?,
				deleted = ?, photo_uri = ?, latitude = ?, longitude = ?, address = ?, synced = 1
			WHERE id = ?`,
			string(txn.Type),
			txn.Amount.InexactFloat64(),
			nullString(txn.Currency),
			nullString(txn.Category),
			nullString(txn.Note),
			nullTime(txn.UpdatedAt),
			boolToInt(txn.Deleted),
			nullString(txn.PhotoURI),
			nullFloat(txn.Latitude),
			nullFloat(txn.Longitude),
			nullString(txn.Address),
			txn.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update transaction %s: %w", txn.ID, err)
		}
		outcome = service.OutcomeUpdated
		return nil
	})
	if err != nil {
		return 0, err
	}
	return outcome, nil
}

// DeleteTransaction hard-deletes a row and records a pending remote delete
// in the same SQL transaction. It reports whether a row was removed.
func (s *SQLiteStorage) DeleteTransaction(ctx context.Context, userID, id string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateString(id, "id"); err != nil {
		return false, err
	}

	deleted := false
	err := s.withTx(ctx, "delete transaction", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE user_id = ? AND id = ?`, userID, id)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return nil
		}
		deleted = true

		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO pending_remote_deletes (user_id, id, requested_at)
			VALUES (?, ?, ?)`,
			userID, id, model.FormatTimestamp(model.Now()))
		return err
	})
	if err != nil {
		return false, err
	}

	if deleted {
		slog.Debug("Deleted transaction", "id", id, "user_id", userID)
	}
	return deleted, nil
}

// ListPendingRemoteDeletes returns ids deleted locally whose remote copy has
// not been confirmed removed.
func (s *SQLiteStorage) ListPendingRemoteDeletes(ctx context.Context, userID string) ([]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM pending_remote_deletes WHERE user_id = ? ORDER BY requested_at`, userID)
	if err != nil {
		return nil, common.NewStorageError("list pending deletes", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, common.NewStorageError("list pending deletes", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewStorageError("list pending deletes", err)
	}
	return ids, nil
}

// ClearPendingRemoteDelete forgets a pending remote delete.
func (s *SQLiteStorage) ClearPendingRemoteDelete(ctx context.Context, userID, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM pending_remote_deletes WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return common.NewStorageError("clear pending delete", err)
	}
	return nil
}

func (s *SQLiteStorage) queryTransactions(ctx context.Context, query string, args ...any) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var txns []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txns, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (*model.Transaction, error) {
	var (
		txn       model.Transaction
		txnType   string
		amount    float64
		createdAt string
		userID    sql.NullString
		currency  sql.NullString
		category  sql.NullString
		note      sql.NullString
		updatedAt sql.NullString
		deleted   sql.NullInt64
		photoURI  sql.NullString
		latitude  sql.NullFloat64
		longitude sql.NullFloat64
		address   sql.NullString
		synced    sql.NullInt64
	)

	err := row.Scan(
		&txn.ID, &userID, &txnType, &amount, &currency, &category, &note, &createdAt,
		&updatedAt, &deleted, &photoURI, &latitude, &longitude, &address, &synced,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	txn.UserID = userID.String
	txn.Type = model.TransactionType(txnType)
	txn.Amount = decimal.NewFromFloat(amount)
	txn.Currency = currency.String
	txn.Category = category.String
	txn.Note = note.String
	txn.Deleted = deleted.Int64 != 0
	txn.PhotoURI = photoURI.String
	txn.Address = address.String
	txn.Synced = synced.Int64 != 0

	if txn.CreatedAt, err = model.ParseTimestamp(createdAt); err != nil {
		return nil, fmt.Errorf("transaction %s: %w", txn.ID, err)
	}
	if updatedAt.Valid && updatedAt.String != "" {
		ts, err := model.ParseTimestamp(updatedAt.String)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", txn.ID, err)
		}
		txn.UpdatedAt = &ts
	}
	if latitude.Valid {
		lat := latitude.Float64
		txn.Latitude = &lat
	}
	if longitude.Valid {
		lon := longitude.Float64
		txn.Longitude = &lon
	}

	return &txn, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: model.FormatTimestamp(*t), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
