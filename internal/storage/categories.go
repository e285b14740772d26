package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/fintrack/internal/common"
	"github.com/Veraticus/fintrack/internal/model"
)

// GetCategories returns all categories ordered by name.
func (s *SQLiteStorage) GetCategories(ctx context.Context) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, type FROM categories ORDER BY name`)
	if err != nil {
		return nil, common.NewStorageError("get categories", fmt.Errorf("failed to query categories: %w", err))
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		var (
			cat     model.Category
			catType string
		)
		if err := rows.Scan(&cat.ID, &cat.Name, &catType); err != nil {
			return nil, common.NewStorageError("get categories", fmt.Errorf("failed to scan category: %w", err))
		}
		cat.Type = model.TransactionType(catType)
		categories = append(categories, cat)
	}

	if err := rows.Err(); err != nil {
		return nil, common.NewStorageError("get categories", fmt.Errorf("error iterating categories: %w", err))
	}

	slog.Debug("retrieved categories", "count", len(categories))
	return categories, nil
}

// CreateCategory inserts a new category.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, category *model.Category) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCategory(category); err != nil {
		return common.NewStorageError("create category", err)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, type) VALUES (?, ?, ?)`,
		category.ID, category.Name, string(category.Type))
	if err != nil {
		if isConstraintError(err) {
			return common.NewStorageError("create category", fmt.Errorf("%w: category %s", common.ErrDuplicateEntry, category.ID))
		}
		return common.NewStorageError("create category", err)
	}

	slog.Info("Created category", "id", category.ID, "name", category.Name, "type", category.Type)
	return nil
}
