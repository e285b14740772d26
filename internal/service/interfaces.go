// Package service defines the interfaces between the application's components.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/fintrack/internal/model"
)

// TransactionStore is the local, durable record store.
type TransactionStore interface {
	InsertTransaction(ctx context.Context, txn *model.Transaction) error
	UpdateTransaction(ctx context.Context, txn *model.Transaction) error
	GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error)
	ListTransactions(ctx context.Context, userID string) ([]model.Transaction, error)
	ListUnsynced(ctx context.Context, userID string) ([]model.Transaction, error)
	CountUnsynced(ctx context.Context, userID string) (int, error)
	DeleteTransaction(ctx context.Context, userID, id string) (bool, error)

	// Reconciliation bookkeeping
	MarkSynced(ctx context.Context, id string, observed time.Time) (bool, error)
	ApplyRemote(ctx context.Context, txn *model.Transaction, policy PullPolicy) (ApplyOutcome, error)
	ListPendingRemoteDeletes(ctx context.Context, userID string) ([]string, error)
	ClearPendingRemoteDelete(ctx context.Context, userID, id string) error

	// Category operations
	GetCategories(ctx context.Context) ([]model.Category, error)
	CreateCategory(ctx context.Context, category *model.Category) error

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// RemoteStore is the per-user remote document collection.
// PutTransaction fully replaces the document keyed by (UserID, ID).
type RemoteStore interface {
	PutTransaction(ctx context.Context, txn model.Transaction) error
	ListTransactions(ctx context.Context, userID string) ([]model.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, id string) error
}

// Identity exposes the currently authenticated user, if any.
type Identity interface {
	CurrentUser(ctx context.Context) (string, bool)
}

// Reachability reports whether the remote store is believed reachable.
type Reachability interface {
	Online() bool
}

// RemoteDeleter removes a single remote document on a best-effort basis.
type RemoteDeleter interface {
	DeleteRemote(ctx context.Context, userID, id string) error
}

// PullPolicy decides what a pulled document does to a local row that still
// has unpushed changes.
type PullPolicy string

const (
	// PullPreservePending leaves rows with synced=0 untouched.
	PullPreservePending PullPolicy = "preserve-pending"
	// PullOverwriteAlways lets the remote copy win unconditionally.
	PullOverwriteAlways PullPolicy = "overwrite"
)

// ApplyOutcome describes what ApplyRemote did to the local store.
type ApplyOutcome int

const (
	// OutcomeInserted means the row did not exist and was created with synced=1.
	OutcomeInserted ApplyOutcome = iota + 1
	// OutcomeUpdated means the mutable fields were overwritten and synced set to 1.
	OutcomeUpdated
	// OutcomeKept means a pending local row was left as is.
	OutcomeKept
)

func (o ApplyOutcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeUpdated:
		return "updated"
	case OutcomeKept:
		return "kept"
	default:
		return "unknown"
	}
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
