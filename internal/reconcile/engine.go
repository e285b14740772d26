// Package reconcile implements the two-phase synchronization cycle between
// the local store and the remote collection.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Veraticus/fintrack/internal/common"
	"github.com/Veraticus/fintrack/internal/model"
	"github.com/Veraticus/fintrack/internal/service"
)

// DefaultRemoteTimeout bounds every single remote call.
const DefaultRemoteTimeout = 15 * time.Second

// State is the engine's position in a cycle.
type State string

const (
	// StateIdle means no cycle is running.
	StateIdle State = "idle"
	// StatePushing means local changes are being written to the remote store.
	StatePushing State = "pushing"
	// StatePulling means remote documents are being applied locally.
	StatePulling State = "pulling"
)

// Phase names used in progress events and item errors.
const (
	PhasePush   = "push"
	PhasePull   = "pull"
	PhaseDelete = "delete"
)

// Progress reports advancement within a phase.
type Progress struct {
	Phase string
	Done  int
	Total int
}

// Options configures an Engine.
type Options struct {
	// Network is consulted before each phase. Nil means always reachable.
	Network service.Reachability
	// OnProgress is called after every item. It must not block.
	OnProgress    func(Progress)
	PullPolicy    service.PullPolicy
	Retry         service.RetryOptions
	RemoteTimeout time.Duration
}

// Report summarizes one cycle.
type Report struct {
	StartedAt      time.Time
	UserID         string
	Skipped        string
	Duration       time.Duration
	Pushed         int
	PushFailed     int
	DeletesFlushed int
	DeletesFailed  int
	Inserted       int
	Updated        int
	Kept           int
	PullFailed     int
	PushSkipped    bool
	PullSkipped    bool
}

// Engine runs reconciliation cycles. At most one cycle runs at a time;
// concurrent callers of Sync share the result of the cycle in flight.
// Single remote deletes and cycles exclude each other through busy.
type Engine struct {
	store    service.TransactionStore
	remote   service.RemoteStore
	identity service.Identity
	busy     chan struct{}
	last     *Report
	state    State
	opts     Options
	flight   singleflight.Group
	mu       sync.RWMutex
}

// New creates an engine.
func New(store service.TransactionStore, remote service.RemoteStore, identity service.Identity, opts Options) *Engine {
	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = DefaultRemoteTimeout
	}
	if opts.PullPolicy == "" {
		opts.PullPolicy = service.PullPreservePending
	}

	return &Engine{
		store:    store,
		remote:   remote,
		identity: identity,
		busy:     make(chan struct{}, 1),
		opts:     opts,
		state:    StateIdle,
	}
}

// State returns the current cycle state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// LastReport returns the report of the most recent finished cycle, if any.
func (e *Engine) LastReport() *Report {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last
}

// acquire takes the engine for a cycle or a single remote delete.
func (e *Engine) acquire(ctx context.Context) (func(), error) {
	select {
	case e.busy <- struct{}{}:
		return func() { <-e.busy }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = s
}

// Sync runs one full cycle: push, then pull. If a cycle is already running
// the caller waits for it and receives its report instead of starting a
// second one. Only local storage failures are returned as errors.
func (e *Engine) Sync(ctx context.Context) (*Report, error) {
	v, err, shared := e.flight.Do("cycle", func() (any, error) {
		return e.cycle(ctx)
	})
	if shared {
		slog.Debug("Joined in-flight sync cycle")
	}

	report, _ := v.(*Report)
	return report, err
}

func (e *Engine) cycle(ctx context.Context) (*Report, error) {
	report := &Report{StartedAt: time.Now()}
	defer func() {
		report.Duration = time.Since(report.StartedAt)
		e.mu.Lock()
		e.state = StateIdle
		e.last = report
		e.mu.Unlock()
	}()

	userID, ok := e.identity.CurrentUser(ctx)
	if !ok {
		report.Skipped = common.ErrNotAuthenticated.Error()
		slog.Debug("Sync skipped", "reason", report.Skipped)
		return report, nil
	}
	report.UserID = userID

	release, err := e.acquire(ctx)
	if err != nil {
		report.Skipped = err.Error()
		return report, nil
	}
	defer release()

	e.setState(StatePushing)
	if err := e.push(ctx, userID, report); err != nil {
		return report, err
	}

	e.setState(StatePulling)
	if err := e.pull(ctx, userID, report); err != nil {
		return report, err
	}

	slog.Info("Sync cycle finished",
		"user_id", userID,
		"pushed", report.Pushed,
		"push_failed", report.PushFailed,
		"deletes_flushed", report.DeletesFlushed,
		"inserted", report.Inserted,
		"updated", report.Updated,
		"kept", report.Kept,
		"pull_failed", report.PullFailed,
		"duration", time.Since(report.StartedAt))
	return report, nil
}

func (e *Engine) online() bool {
	return e.opts.Network == nil || e.opts.Network.Online()
}

// push flushes pending remote deletes, then writes every unsynced row.
func (e *Engine) push(ctx context.Context, userID string, report *Report) error {
	if !e.online() {
		report.PushSkipped = true
		slog.Debug("Push skipped", "reason", common.ErrOffline.Error())
		return nil
	}

	if err := e.flushDeletes(ctx, userID, report); err != nil {
		return err
	}

	pending, err := e.store.ListUnsynced(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list unsynced transactions: %w", err)
	}

	for i := range pending {
		if err := ctx.Err(); err != nil {
			return nil
		}

		txn := pending[i]
		if err := e.remoteCall(ctx, PhasePush, func(callCtx context.Context) error {
			return e.remote.PutTransaction(callCtx, txn)
		}); err != nil {
			report.PushFailed++
			common.LogWarn(&common.SyncItemError{Phase: PhasePush, ID: txn.ID, Err: err},
				"Push failed, will retry next cycle", common.Fields{"user_id": userID})
			e.progress(PhasePush, i+1, len(pending))
			continue
		}

		marked, err := e.store.MarkSynced(ctx, txn.ID, txn.Touched())
		if err != nil {
			return fmt.Errorf("failed to mark %s synced: %w", txn.ID, err)
		}
		if marked {
			report.Pushed++
		}
		e.progress(PhasePush, i+1, len(pending))
	}

	return nil
}

// flushDeletes retries remote deletes recorded by earlier local deletes.
func (e *Engine) flushDeletes(ctx context.Context, userID string, report *Report) error {
	ids, err := e.store.ListPendingRemoteDeletes(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list pending deletes: %w", err)
	}

	for i, id := range ids {
		if err := e.deleteRemote(ctx, userID, id); err != nil {
			var storageErr *common.StorageError
			if errors.As(err, &storageErr) {
				return err
			}
			report.DeletesFailed++
			common.LogWarn(&common.SyncItemError{Phase: PhaseDelete, ID: id, Err: err},
				"Remote delete failed, will retry next cycle", common.Fields{"user_id": userID})
		} else {
			report.DeletesFlushed++
		}
		e.progress(PhaseDelete, i+1, len(ids))
	}
	return nil
}

// pull applies the user's remote collection to the local store.
func (e *Engine) pull(ctx context.Context, userID string, report *Report) error {
	if !e.online() {
		report.PullSkipped = true
		slog.Debug("Pull skipped", "reason", common.ErrOffline.Error())
		return nil
	}

	var remote []model.Transaction
	if err := e.remoteCall(ctx, PhasePull, func(callCtx context.Context) error {
		var listErr error
		remote, listErr = e.remote.ListTransactions(callCtx, userID)
		return listErr
	}); err != nil {
		report.PullSkipped = true
		common.LogWarn(err, "Pull failed, keeping local state", common.Fields{"user_id": userID})
		return nil
	}

	pendingDeletes, err := e.store.ListPendingRemoteDeletes(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list pending deletes: %w", err)
	}
	deleted := make(map[string]bool, len(pendingDeletes))
	for _, id := range pendingDeletes {
		deleted[id] = true
	}

	for i := range remote {
		txn := remote[i]
		e.progress(PhasePull, i+1, len(remote))

		if deleted[txn.ID] {
			slog.Debug("Skipping remote copy of locally deleted transaction", "id", txn.ID)
			continue
		}
		if txn.UserID != userID {
			report.PullFailed++
			common.LogWarn(&common.SyncItemError{Phase: PhasePull, ID: txn.ID,
				Err: fmt.Errorf("%w: document owned by %q", common.ErrInvalidInput, txn.UserID)},
				"Skipping foreign remote document", common.Fields{"user_id": userID})
			continue
		}

		outcome, err := e.store.ApplyRemote(ctx, &txn, e.opts.PullPolicy)
		if err != nil {
			if errors.Is(err, common.ErrInvalidInput) {
				report.PullFailed++
				common.LogWarn(&common.SyncItemError{Phase: PhasePull, ID: txn.ID, Err: err},
					"Skipping invalid remote document", common.Fields{"user_id": userID})
				continue
			}
			return fmt.Errorf("failed to apply remote transaction %s: %w", txn.ID, err)
		}

		switch outcome {
		case service.OutcomeInserted:
			report.Inserted++
		case service.OutcomeUpdated:
			report.Updated++
		case service.OutcomeKept:
			report.Kept++
		}
	}

	return nil
}

// DeleteRemote removes one remote document and, on success, forgets the
// pending delete recorded for it. It waits for a running cycle to finish;
// that cycle's pull skips the row while the pending delete exists.
func (e *Engine) DeleteRemote(ctx context.Context, userID, id string) error {
	if !e.online() {
		return common.ErrOffline
	}

	release, err := e.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	return e.deleteRemote(ctx, userID, id)
}

func (e *Engine) deleteRemote(ctx context.Context, userID, id string) error {
	if err := e.remoteCall(ctx, PhaseDelete, func(callCtx context.Context) error {
		return e.remote.DeleteTransaction(callCtx, userID, id)
	}); err != nil {
		return err
	}
	return e.store.ClearPendingRemoteDelete(ctx, userID, id)
}

// remoteCall bounds fn with the per-call timeout and retries it.
func (e *Engine) remoteCall(ctx context.Context, name string, fn func(context.Context) error) error {
	return common.WithRetry(ctx, name, func(attemptCtx context.Context) error {
		callCtx, cancel := context.WithTimeout(attemptCtx, e.opts.RemoteTimeout)
		defer cancel()
		return fn(callCtx)
	}, e.opts.Retry)
}

func (e *Engine) progress(phase string, done, total int) {
	if e.opts.OnProgress != nil {
		e.opts.OnProgress(Progress{Phase: phase, Done: done, Total: total})
	}
}
