package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/fintrack/internal/common"
	"github.com/Veraticus/fintrack/internal/model"
	"github.com/Veraticus/fintrack/internal/service"
)

func TestInsertAndGetTransaction(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	lat, lon := 6.9271, 79.8612
	txn := createTestTransactions("user-1", 1)[0]
	txn.Latitude = &lat
	txn.Longitude = &lon
	txn.Address = "Colombo"
	txn.PhotoURI = "/data/receipts/1.jpg"
	require.NoError(t, store.InsertTransaction(ctx, &txn))

	got, err := store.GetTransactionByID(ctx, txn.ID)
	require.NoError(t, err)

	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, model.TypeExpense, got.Type)
	assert.True(t, txn.Amount.Equal(got.Amount), "amount %s != %s", got.Amount, txn.Amount)
	assert.Equal(t, "Colombo", got.Address)
	assert.Equal(t, "/data/receipts/1.jpg", got.PhotoURI)
	assert.InDelta(t, lat, *got.Latitude, 1e-9)
	assert.InDelta(t, lon, *got.Longitude, 1e-9)
	assert.True(t, got.CreatedAt.Equal(testBaseTime))
	assert.Nil(t, got.UpdatedAt)
	assert.False(t, got.Synced)

	var raw string
	require.NoError(t, store.db.QueryRow(`SELECT created_at FROM transactions WHERE id = ?`, txn.ID).Scan(&raw))
	assert.Equal(t, "2024-03-01T09:30:00.000Z", raw)
}

func TestInsertTransaction_Duplicate(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	txn := createTestTransactions("user-1", 1)[0]
	require.NoError(t, store.InsertTransaction(ctx, &txn))

	err := store.InsertTransaction(ctx, &txn)
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)
}

func TestInsertTransaction_Invalid(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	txn := createTestTransactions("user-1", 1)[0]
	txn.Type = "transfer"

	err := store.InsertTransaction(context.Background(), &txn)
	assert.ErrorIs(t, err, ErrInvalidTransaction)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestGetTransactionByID_NotFound(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	_, err := store.GetTransactionByID(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestUpdateTransaction(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	txn := createTestTransactions("user-1", 1)[0]
	txn.Synced = true
	require.NoError(t, store.InsertTransaction(ctx, &txn))

	updated := testBaseTime.Add(time.Hour)
	txn.Note = "dinner"
	txn.Amount = decimal.RequireFromString("42.75")
	txn.UpdatedAt = &updated
	require.NoError(t, store.UpdateTransaction(ctx, &txn))
	assert.False(t, txn.Synced)

	got, err := store.GetTransactionByID(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, "dinner", got.Note)
	assert.Equal(t, "42.75", got.Amount.StringFixed(2))
	require.NotNil(t, got.UpdatedAt)
	assert.True(t, got.UpdatedAt.Equal(updated))
	assert.False(t, got.Synced)

	t.Run("unknown id", func(t *testing.T) {
		missing := txn
		missing.ID = "missing"
		assert.ErrorIs(t, store.UpdateTransaction(ctx, &missing), common.ErrNotFound)
	})

	t.Run("other user", func(t *testing.T) {
		foreign := txn
		foreign.UserID = "user-2"
		assert.ErrorIs(t, store.UpdateTransaction(ctx, &foreign), common.ErrNotFound)
	})
}

func TestListTransactions(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	txns := createTestTransactions("user-1", 3)
	txns[1].Deleted = true
	insertAll(t, store, txns)

	other := createTestTransactions("user-2", 1)
	other[0].ID = "other-1"
	insertAll(t, store, other)

	got, err := store.ListTransactions(ctx, "user-1")
	require.NoError(t, err)

	ids := make([]string, len(got))
	for i, txn := range got {
		ids[i] = txn.ID
	}
	assert.Equal(t, []string{"txn-03", "txn-01"}, ids)

	empty, err := store.ListTransactions(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestUnsyncedRows(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	txns := createTestTransactions("user-1", 4)
	txns[0].Synced = true
	txns[2].Synced = true
	insertAll(t, store, txns)

	pending, err := store.ListUnsynced(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "txn-02", pending[0].ID)
	assert.Equal(t, "txn-04", pending[1].ID)

	count, err := store.CountUnsynced(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = store.CountUnsynced(ctx, "user-2")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMarkSynced(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	txns := createTestTransactions("user-1", 2)
	insertAll(t, store, txns)

	t.Run("unchanged row", func(t *testing.T) {
		marked, err := store.MarkSynced(ctx, txns[0].ID, txns[0].Touched())
		require.NoError(t, err)
		assert.True(t, marked)

		got, err := store.GetTransactionByID(ctx, txns[0].ID)
		require.NoError(t, err)
		assert.True(t, got.Synced)
	})

	t.Run("edited after observation", func(t *testing.T) {
		observed := txns[1].Touched()
		edited := observed.Add(time.Minute)
		txns[1].UpdatedAt = &edited
		require.NoError(t, store.UpdateTransaction(ctx, &txns[1]))

		marked, err := store.MarkSynced(ctx, txns[1].ID, observed)
		require.NoError(t, err)
		assert.False(t, marked)

		got, err := store.GetTransactionByID(ctx, txns[1].ID)
		require.NoError(t, err)
		assert.False(t, got.Synced)
	})

	t.Run("sub-millisecond timestamp from an older writer", func(t *testing.T) {
		_, err := store.db.Exec(`INSERT INTO transactions (id, user_id, type, amount, created_at)
			VALUES ('micro', 'user-1', 'expense', 4.5, '2024-03-01T09:30:00.123456Z')`)
		require.NoError(t, err)

		got, err := store.GetTransactionByID(ctx, "micro")
		require.NoError(t, err)

		marked, err := store.MarkSynced(ctx, got.ID, got.Touched())
		require.NoError(t, err)
		assert.True(t, marked)
	})

	t.Run("deleted row", func(t *testing.T) {
		marked, err := store.MarkSynced(ctx, "gone", testBaseTime)
		require.NoError(t, err)
		assert.False(t, marked)
	})
}

func TestApplyRemote(t *testing.T) {
	ctx := context.Background()
	remoteEdit := testBaseTime.Add(2 * time.Hour)

	remoteCopy := func(txn model.Transaction) *model.Transaction {
		txn.Note = "from server"
		txn.Address = "Kandy"
		txn.Currency = "USD"
		txn.UpdatedAt = &remoteEdit
		return &txn
	}

	tests := []struct {
		name        string
		policy      service.PullPolicy
		wantNote    string
		localSynced bool
		wantOutcome service.ApplyOutcome
		wantSynced  bool
	}{
		{
			name:        "synced row is overwritten",
			policy:      service.PullPreservePending,
			localSynced: true,
			wantOutcome: service.OutcomeUpdated,
			wantNote:    "from server",
			wantSynced:  true,
		},
		{
			name:        "pending row is kept",
			policy:      service.PullPreservePending,
			localSynced: false,
			wantOutcome: service.OutcomeKept,
			wantNote:    "Transaction #1",
			wantSynced:  false,
		},
		{
			name:        "overwrite policy replaces pending row",
			policy:      service.PullOverwriteAlways,
			localSynced: false,
			wantOutcome: service.OutcomeUpdated,
			wantNote:    "from server",
			wantSynced:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, cleanup := createTestStorage(t)
			defer cleanup()

			local := createTestTransactions("user-1", 1)[0]
			local.Synced = tt.localSynced
			insertAll(t, store, []model.Transaction{local})

			outcome, err := store.ApplyRemote(ctx, remoteCopy(local), tt.policy)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutcome, outcome)

			got, err := store.GetTransactionByID(ctx, local.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNote, got.Note)
			assert.Equal(t, tt.wantSynced, got.Synced)
			assert.True(t, got.CreatedAt.Equal(local.CreatedAt))
			if tt.wantOutcome == service.OutcomeUpdated {
				assert.Equal(t, "USD", got.Currency)
				assert.Equal(t, "Kandy", got.Address)
				require.NotNil(t, got.UpdatedAt)
				assert.True(t, got.UpdatedAt.Equal(remoteEdit))
			}
		})
	}

	t.Run("missing row is inserted as synced", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		pulled := createTestTransactions("user-1", 1)[0]
		outcome, err := store.ApplyRemote(ctx, &pulled, service.PullPreservePending)
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeInserted, outcome)
		assert.False(t, pulled.Synced, "caller's value must not be modified")

		got, err := store.GetTransactionByID(ctx, pulled.ID)
		require.NoError(t, err)
		assert.True(t, got.Synced)
	})

	t.Run("invalid document", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		pulled := createTestTransactions("user-1", 1)[0]
		pulled.CreatedAt = time.Time{}
		_, err := store.ApplyRemote(ctx, &pulled, service.PullPreservePending)
		assert.True(t, errors.Is(err, common.ErrInvalidInput), "got %v", err)
	})
}

func TestDeleteTransaction(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	txns := createTestTransactions("user-1", 2)
	insertAll(t, store, txns)

	deleted, err := store.DeleteTransaction(ctx, "user-2", txns[0].ID)
	require.NoError(t, err)
	assert.False(t, deleted, "other users cannot delete the row")

	deleted, err = store.DeleteTransaction(ctx, "user-1", txns[0].ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = store.GetTransactionByID(ctx, txns[0].ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	deleted, err = store.DeleteTransaction(ctx, "user-1", txns[0].ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	pending, err := store.ListPendingRemoteDeletes(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{txns[0].ID}, pending)

	require.NoError(t, store.ClearPendingRemoteDelete(ctx, "user-1", txns[0].ID))
	pending, err = store.ListPendingRemoteDeletes(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = store.DeleteTransaction(ctx, "user-1", "")
	assert.ErrorIs(t, err, ErrEmptyString)
}
