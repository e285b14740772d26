package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/fintrack/internal/common"
)

// DefaultInterval is how often the monitor polls its probe.
const DefaultInterval = 30 * time.Second

// Monitor holds the last known reachability and notifies subscribers of every
// change. Until the first observation the state is unknown, which counts as
// offline.
type Monitor struct {
	probe    Probe
	subs     map[int]func(bool)
	known    bool
	online   bool
	nextID   int
	interval time.Duration
	mu       sync.Mutex
}

// NewMonitor creates a monitor. A nil probe makes Run a no-op and leaves
// state changes to Set.
func NewMonitor(probe Probe, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		probe:    probe,
		interval: interval,
		subs:     make(map[int]func(bool)),
	}
}

// Online reports the last observed state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.known && m.online
}

// Set records an observation. Subscribers are called, outside the lock, only
// when the state actually changes. The first observation is always a change.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	if m.known && m.online == online {
		m.mu.Unlock()
		return
	}
	m.known = true
	m.online = online

	subs := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	slog.Info("Connectivity changed", "online", online)
	for _, fn := range subs {
		fn(online)
	}
}

// Subscribe registers fn for state changes.
func (m *Monitor) Subscribe(fn func(online bool)) *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	return &Subscription{monitor: m, id: id}
}

func (m *Monitor) unsubscribe(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, id)
}

// Run polls the probe until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	if m.probe == nil {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.check(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *Monitor) check(ctx context.Context) {
	err := m.probe.Check(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		common.LogDebug("Connectivity probe failed", common.Fields{"error": err.Error()})
	}
	m.Set(err == nil)
}

// Subscription is a registered listener. Close removes it; calling Close
// more than once is harmless.
type Subscription struct {
	monitor *Monitor
	once    sync.Once
	id      int
}

// Close stops delivery to the listener.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.monitor.unsubscribe(s.id)
	})
}
