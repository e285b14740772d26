package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/fintrack/internal/common"
	"github.com/Veraticus/fintrack/internal/model"
)

func TestCreateCategory(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	salary := &model.Category{ID: "income-salary", Name: "Salary", Type: model.TypeIncome}
	require.NoError(t, store.CreateCategory(ctx, salary))

	categories, err := store.GetCategories(ctx)
	require.NoError(t, err)

	var found *model.Category
	for i := range categories {
		if categories[i].ID == salary.ID {
			found = &categories[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, model.TypeIncome, found.Type)

	for i := 1; i < len(categories); i++ {
		assert.LessOrEqual(t, categories[i-1].Name, categories[i].Name)
	}

	err = store.CreateCategory(ctx, salary)
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)

	err = store.CreateCategory(ctx, &model.Category{ID: "x", Name: "X", Type: "gift"})
	assert.ErrorIs(t, err, ErrInvalidCategory)
}
