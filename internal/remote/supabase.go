package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/supabase-community/supabase-go"

	"github.com/Veraticus/fintrack/internal/common"
	"github.com/Veraticus/fintrack/internal/model"
)

// DefaultTable is the remote table holding transaction documents.
const DefaultTable = "transactions"

// SupabaseStore keeps each user's transactions as rows of a Supabase table,
// keyed by id and filtered by user_id.
type SupabaseStore struct {
	client *supabase.Client
	table  string
}

// NewSupabaseStore creates a store backed by the Supabase project at url.
func NewSupabaseStore(url, key, table string) (*SupabaseStore, error) {
	if url == "" || key == "" {
		return nil, fmt.Errorf("%w: remote url and key are required", common.ErrMissingConfig)
	}
	if table == "" {
		table = DefaultTable
	}

	client, err := supabase.NewClient(url, key, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &SupabaseStore{
		client: client,
		table:  table,
	}, nil
}

// PutTransaction upserts the full document; every column is written so the
// remote row is replaced rather than merged.
func (s *SupabaseStore) PutTransaction(ctx context.Context, txn model.Transaction) error {
	doc := FromModel(txn)

	_, err := execute(ctx, func() ([]byte, error) {
		data, _, err := s.client.From(s.table).
			Insert(doc, true, "id", "minimal", "").
			Execute()
		return data, err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert transaction %s: %w", txn.ID, err)
	}
	return nil
}

// ListTransactions fetches the user's complete remote collection.
// Documents that cannot be mapped are logged and skipped.
func (s *SupabaseStore) ListTransactions(ctx context.Context, userID string) ([]model.Transaction, error) {
	data, err := execute(ctx, func() ([]byte, error) {
		data, _, err := s.client.From(s.table).
			Select("*", "", false).
			Eq("user_id", userID).
			Execute()
		return data, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("failed to parse transactions: %w", err)
	}

	return decodeDocuments(userID, docs), nil
}

// DeleteTransaction removes the user's document with the given id.
// Deleting a missing document is not an error.
func (s *SupabaseStore) DeleteTransaction(ctx context.Context, userID, id string) error {
	_, err := execute(ctx, func() ([]byte, error) {
		data, _, err := s.client.From(s.table).
			Delete("minimal", "").
			Eq("id", id).
			Eq("user_id", userID).
			Execute()
		return data, err
	})
	if err != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", id, err)
	}
	return nil
}

// execute runs a blocking client call, returning early when ctx is done.
// The client has no context support, so an abandoned call finishes in the
// background and its result is dropped. Errors are classified for retry.
func execute(ctx context.Context, call func() ([]byte, error)) ([]byte, error) {
	type result struct {
		err  error
		data []byte
	}

	done := make(chan result, 1)
	go func() {
		data, err := call()
		done <- result{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.data, classify(r.err)
	}
}

func decodeDocuments(userID string, docs []Document) []model.Transaction {
	txns := make([]model.Transaction, 0, len(docs))
	for _, doc := range docs {
		txn, err := doc.ToModel()
		if err != nil {
			common.LogWarn(&common.SyncItemError{Phase: "pull", ID: doc.ID, Err: err},
				"Skipping malformed remote document", common.Fields{"user_id": userID})
			continue
		}
		if txn.UserID == "" {
			txn.UserID = userID
		}
		txns = append(txns, txn)
	}

	slog.Debug("Fetched remote transactions", "user_id", userID, "count", len(txns), "skipped", len(docs)-len(txns))
	return txns
}
