// Package repository is the only sanctioned path for mutating transactions.
// It owns id generation and synced-flag bookkeeping.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/fintrack/internal/common"
	"github.com/Veraticus/fintrack/internal/model"
	"github.com/Veraticus/fintrack/internal/service"
)

// DefaultCategory is used when a draft names no category.
const DefaultCategory = "General"

// DefaultDeleteTimeout bounds a background remote delete.
const DefaultDeleteTimeout = 15 * time.Second

// Draft holds the user-supplied fields of a new transaction.
type Draft struct {
	Amount    *decimal.Decimal      `json:"amount" validate:"required,gte=0"`
	Latitude  *float64              `json:"latitude" validate:"omitempty,latitude"`
	Longitude *float64              `json:"longitude" validate:"omitempty,longitude"`
	UserID    string                `json:"user_id" validate:"required"`
	Type      model.TransactionType `json:"type" validate:"required,oneof=expense income"`
	Currency  string                `json:"currency" validate:"omitempty,alpha,len=3"`
	Category  string                `json:"category"`
	Note      string                `json:"note"`
	PhotoURI  string                `json:"photo_uri"`
	Address   string                `json:"address"`
}

// Patch holds the fields of an edit. Nil fields are left unchanged.
type Patch struct {
	Amount    *decimal.Decimal       `json:"amount" validate:"omitempty,gte=0"`
	Type      *model.TransactionType `json:"type" validate:"omitempty,oneof=expense income"`
	Currency  *string                `json:"currency" validate:"omitempty,alpha,len=3"`
	Category  *string                `json:"category"`
	Note      *string                `json:"note"`
	PhotoURI  *string                `json:"photo_uri"`
	Address   *string                `json:"address"`
	Latitude  *float64               `json:"latitude" validate:"omitempty,latitude"`
	Longitude *float64               `json:"longitude" validate:"omitempty,longitude"`
}

// Options configures a Repository.
type Options struct {
	// Deleter receives best-effort remote deletions. Nil disables them.
	Deleter         service.RemoteDeleter
	Now             func() time.Time
	NewID           func() string
	DefaultCurrency string
	DeleteTimeout   time.Duration
}

// Repository implements the user-facing transaction operations.
type Repository struct {
	store           service.TransactionStore
	deleter         service.RemoteDeleter
	validate        *validator.Validate
	now             func() time.Time
	newID           func() string
	defaultCurrency string
	deleteTimeout   time.Duration
	pending         sync.WaitGroup
}

// New creates a repository over store.
func New(store service.TransactionStore, opts Options) *Repository {
	if opts.Now == nil {
		opts.Now = model.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = model.DefaultCurrency
	}
	if opts.DeleteTimeout <= 0 {
		opts.DeleteTimeout = DefaultDeleteTimeout
	}

	return &Repository{
		store:           store,
		deleter:         opts.Deleter,
		validate:        newValidator(),
		now:             opts.Now,
		newID:           opts.NewID,
		defaultCurrency: strings.ToUpper(opts.DefaultCurrency),
		deleteTimeout:   opts.DeleteTimeout,
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Amounts are validated as numbers.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if amount, ok := field.Interface().(decimal.Decimal); ok {
			return amount.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// Create validates draft, assigns an id and created_at, and stores the new
// record with synced=false.
func (r *Repository) Create(ctx context.Context, draft Draft) (*model.Transaction, error) {
	if err := r.check(draft); err != nil {
		return nil, err
	}

	txn := &model.Transaction{
		ID:        r.newID(),
		UserID:    strings.TrimSpace(draft.UserID),
		Type:      draft.Type,
		Amount:    *draft.Amount,
		Currency:  strings.ToUpper(draft.Currency),
		Category:  strings.TrimSpace(draft.Category),
		Note:      draft.Note,
		CreatedAt: r.now().UTC().Truncate(time.Millisecond),
		PhotoURI:  draft.PhotoURI,
		Latitude:  draft.Latitude,
		Longitude: draft.Longitude,
		Address:   draft.Address,
		Synced:    false,
	}
	if txn.Currency == "" {
		txn.Currency = r.defaultCurrency
	}
	if txn.Category == "" {
		txn.Category = DefaultCategory
	}

	if err := r.store.InsertTransaction(ctx, txn); err != nil {
		return nil, err
	}

	slog.Info("Created transaction",
		"id", txn.ID,
		"user_id", txn.UserID,
		"type", txn.Type,
		"amount", txn.Amount.String())
	return txn, nil
}

// Update applies patch to the user's transaction, stamps updated_at and
// marks it unsynced.
func (r *Repository) Update(ctx context.Context, userID, id string, patch Patch) (*model.Transaction, error) {
	if err := r.check(patch); err != nil {
		return nil, err
	}

	txn, err := r.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if patch.Type != nil {
		txn.Type = *patch.Type
	}
	if patch.Amount != nil {
		txn.Amount = *patch.Amount
	}
	if patch.Currency != nil {
		txn.Currency = strings.ToUpper(*patch.Currency)
	}
	if patch.Category != nil {
		txn.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Note != nil {
		txn.Note = *patch.Note
	}
	if patch.PhotoURI != nil {
		txn.PhotoURI = *patch.PhotoURI
	}
	if patch.Address != nil {
		txn.Address = *patch.Address
	}
	if patch.Latitude != nil {
		txn.Latitude = patch.Latitude
	}
	if patch.Longitude != nil {
		txn.Longitude = patch.Longitude
	}

	updatedAt := r.now().UTC().Truncate(time.Millisecond)
	// Two edits inside one millisecond must still look like a change.
	if !updatedAt.After(txn.Touched()) {
		updatedAt = txn.Touched().Add(time.Millisecond)
	}
	txn.UpdatedAt = &updatedAt

	if err := r.store.UpdateTransaction(ctx, txn); err != nil {
		return nil, err
	}

	slog.Info("Updated transaction", "id", txn.ID, "user_id", txn.UserID)
	return txn, nil
}

// Get returns the user's transaction with the given id.
func (r *Repository) Get(ctx context.Context, userID, id string) (*model.Transaction, error) {
	txn, err := r.store.GetTransactionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if txn.UserID != userID {
		return nil, fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
	}
	return txn, nil
}

// List returns the user's non-deleted transactions, newest first.
func (r *Repository) List(ctx context.Context, userID string) ([]model.Transaction, error) {
	return r.store.ListTransactions(ctx, userID)
}

// CountPending returns how many of the user's rows await a push.
func (r *Repository) CountPending(ctx context.Context, userID string) (int, error) {
	return r.store.CountUnsynced(ctx, userID)
}

// Delete removes the row locally, then asks for the remote copy to be removed
// in the background. A remote failure is logged, never returned: the local
// delete is already committed.
func (r *Repository) Delete(ctx context.Context, userID, id string) error {
	found, err := r.store.DeleteTransaction(ctx, userID, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
	}

	slog.Info("Deleted transaction", "id", id, "user_id", userID)

	if r.deleter == nil {
		return nil
	}

	r.pending.Add(1)
	go func() {
		defer r.pending.Done()

		deleteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.deleteTimeout)
		defer cancel()

		if err := r.deleter.DeleteRemote(deleteCtx, userID, id); err != nil {
			common.LogWarn(&common.RemoteDeleteError{ID: id, Err: err},
				"Remote delete failed, will retry on next sync",
				common.Fields{"user_id": userID})
		}
	}()

	return nil
}

// Close waits for background remote deletions to finish.
func (r *Repository) Close() {
	r.pending.Wait()
}

// check runs struct validation and converts failures to ValidationError.
func (r *Repository) check(v any) error {
	err := r.validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return common.NewValidationError(fe.Field(),
			fmt.Errorf("%w: failed %q check", common.ErrInvalidInput, fe.Tag()))
	}
	return common.NewValidationError("", fmt.Errorf("%w: %w", common.ErrInvalidInput, err))
}
