package remote

import (
	"context"
	"sort"
	"sync"

	"github.com/Veraticus/fintrack/internal/model"
)

// MockStore is an in-process remote store for tests and offline demos.
// Documents are held in their wire form so mapping is exercised both ways.
type MockStore struct {
	// Functions that can be set by tests to inject failures. A nil return
	// falls through to the default behavior.
	PutFn    func(ctx context.Context, txn model.Transaction) error
	ListFn   func(ctx context.Context, userID string) error
	DeleteFn func(ctx context.Context, userID, id string) error

	docs map[string]map[string]Document

	// Call tracking
	PutCalls    []string
	ListCalls   int
	DeleteCalls []string

	mu sync.Mutex
}

// NewMockStore creates an empty mock store.
func NewMockStore() *MockStore {
	return &MockStore{
		docs: make(map[string]map[string]Document),
	}
}

// PutTransaction implements service.RemoteStore.PutTransaction.
func (m *MockStore) PutTransaction(ctx context.Context, txn model.Transaction) error {
	m.mu.Lock()
	m.PutCalls = append(m.PutCalls, txn.ID)
	fn := m.PutFn
	m.mu.Unlock()

	if fn != nil {
		if err := fn(ctx, txn); err != nil {
			return err
		}
	}

	m.Seed(FromModel(txn))
	return nil
}

// ListTransactions implements service.RemoteStore.ListTransactions.
func (m *MockStore) ListTransactions(ctx context.Context, userID string) ([]model.Transaction, error) {
	m.mu.Lock()
	m.ListCalls++
	fn := m.ListFn
	m.mu.Unlock()

	if fn != nil {
		if err := fn(ctx, userID); err != nil {
			return nil, err
		}
	}

	return decodeDocuments(userID, m.Documents(userID)), nil
}

// DeleteTransaction implements service.RemoteStore.DeleteTransaction.
func (m *MockStore) DeleteTransaction(ctx context.Context, userID, id string) error {
	m.mu.Lock()
	m.DeleteCalls = append(m.DeleteCalls, id)
	fn := m.DeleteFn
	m.mu.Unlock()

	if fn != nil {
		if err := fn(ctx, userID, id); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs[userID], id)
	return nil
}

// Seed stores a document as if another device had written it.
func (m *MockStore) Seed(doc Document) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.docs[doc.UserID] == nil {
		m.docs[doc.UserID] = make(map[string]Document)
	}
	m.docs[doc.UserID][doc.ID] = doc
}

// Document returns the stored document for (userID, id).
func (m *MockStore) Document(userID, id string) (Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[userID][id]
	return doc, ok
}

// Documents returns the user's documents ordered by id.
func (m *MockStore) Documents(userID string) []Document {
	m.mu.Lock()
	defer m.mu.Unlock()

	docs := make([]Document, 0, len(m.docs[userID]))
	for _, doc := range m.docs[userID] {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs
}
