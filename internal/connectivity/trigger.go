package connectivity

import (
	"context"
	"log/slog"

	"github.com/Veraticus/fintrack/internal/common"
)

// Syncer runs one synchronization cycle.
type Syncer interface {
	SyncOnce(ctx context.Context) error
}

// SyncerFunc adapts a function to Syncer.
type SyncerFunc func(ctx context.Context) error

// SyncOnce implements Syncer.
func (f SyncerFunc) SyncOnce(ctx context.Context) error {
	return f(ctx)
}

// Trigger starts a sync when the monitor reports a transition to online and
// when the application returns to the foreground while online. Requests that
// arrive while a cycle runs collapse into at most one follow-up cycle.
type Trigger struct {
	monitor *Monitor
	syncer  Syncer
	queue   chan struct{}
}

// NewTrigger creates a trigger. Nothing happens until Run is called.
func NewTrigger(monitor *Monitor, syncer Syncer) *Trigger {
	return &Trigger{
		monitor: monitor,
		syncer:  syncer,
		queue:   make(chan struct{}, 1),
	}
}

// Request asks for a sync cycle without blocking.
func (t *Trigger) Request() {
	select {
	case t.queue <- struct{}{}:
	default:
	}
}

// Focus reports that the application came to the foreground.
func (t *Trigger) Focus() {
	if !t.monitor.Online() {
		slog.Debug("Foreground while offline, not syncing")
		return
	}
	t.Request()
}

// Run subscribes to the monitor and serves requests until ctx is done.
// If the monitor already reports online, one cycle is requested right away.
// The subscription is released on return.
func (t *Trigger) Run(ctx context.Context) error {
	sub := t.monitor.Subscribe(func(online bool) {
		if online {
			t.Request()
		}
	})
	defer sub.Close()

	if t.monitor.Online() {
		t.Request()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.queue:
			if err := t.syncer.SyncOnce(ctx); err != nil && ctx.Err() == nil {
				common.LogError(err, "Triggered sync failed", nil)
			}
		}
	}
}
