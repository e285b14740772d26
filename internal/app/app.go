// Package app wires the store, repository, reconciliation engine and
// connectivity trigger into one process-wide object.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/fintrack/internal/auth"
	"github.com/Veraticus/fintrack/internal/common"
	"github.com/Veraticus/fintrack/internal/config"
	"github.com/Veraticus/fintrack/internal/connectivity"
	"github.com/Veraticus/fintrack/internal/reconcile"
	"github.com/Veraticus/fintrack/internal/remote"
	"github.com/Veraticus/fintrack/internal/repository"
	"github.com/Veraticus/fintrack/internal/service"
	"github.com/Veraticus/fintrack/internal/storage"
)

// App owns the local store and everything built on top of it.
type App struct {
	Store      *storage.SQLiteStorage
	Repository *repository.Repository
	Identity   *auth.StaticIdentity
	Monitor    *connectivity.Monitor
	// Engine is nil when no remote store is configured.
	Engine   *reconcile.Engine
	cfg      *config.Config
	watching atomic.Bool
}

// Options overrides parts of the wiring, mainly for tests.
type Options struct {
	// Remote replaces the Supabase store built from the configuration.
	Remote     service.RemoteStore
	Probe      connectivity.Probe
	OnProgress func(reconcile.Progress)
}

// New opens the database, brings its schema up to date and wires the
// components. The caller must Close the returned App.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	existed := databaseExists(cfg.DatabasePath)

	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	if err := prepareSchema(ctx, store, cfg, existed); err != nil {
		_ = store.Close()
		return nil, err
	}

	a := &App{
		Store:    store,
		Identity: auth.NewStaticIdentity(cfg.UserID),
		cfg:      cfg,
	}

	remoteStore := opts.Remote
	if remoteStore == nil && cfg.RemoteConfigured() {
		remoteStore, err = remote.NewSupabaseStore(cfg.RemoteURL, cfg.RemoteKey, cfg.RemoteTable)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	probe := opts.Probe
	if probe == nil && cfg.ProbeURL != "" {
		probe = connectivity.NewHTTPProbe(cfg.ProbeURL, cfg.RemoteTimeout)
	}
	a.Monitor = connectivity.NewMonitor(probe, cfg.ProbeInterval)
	if probe == nil {
		// Nothing to poll; assume the network is there.
		a.Monitor.Set(true)
	}

	repoOpts := repository.Options{
		DefaultCurrency: cfg.DefaultCurrency,
		DeleteTimeout:   cfg.RemoteTimeout,
	}

	if remoteStore != nil {
		a.Engine = reconcile.New(store, remoteStore, a.Identity, reconcile.Options{
			Network:       a,
			OnProgress:    opts.OnProgress,
			PullPolicy:    cfg.PullPolicy,
			Retry:         cfg.Retry(),
			RemoteTimeout: cfg.RemoteTimeout,
		})
		repoOpts.Deleter = a.Engine
	} else {
		slog.Debug("No remote store configured, running local-only")
	}

	a.Repository = repository.New(store, repoOpts)
	return a, nil
}

func databaseExists(path string) bool {
	if path == ":memory:" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

// prepareSchema backs up an existing database that is about to be upgraded,
// then migrates it.
func prepareSchema(ctx context.Context, store *storage.SQLiteStorage, cfg *config.Config, existed bool) error {
	version, err := store.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	if cfg.BackupBeforeMigrate && existed && version < storage.ExpectedSchemaVersion {
		dir := filepath.Join(filepath.Dir(cfg.DatabasePath), "backups")
		path, err := store.Backup(ctx, dir)
		if err != nil {
			return fmt.Errorf("failed to back up before migrating: %w", err)
		}
		slog.Info("Backed up database before schema upgrade",
			"from_version", version,
			"to_version", storage.ExpectedSchemaVersion,
			"backup", path)
	}

	return store.Migrate(ctx)
}

// Online implements service.Reachability. Outside of Watch nothing observes
// the network, so remote calls are simply attempted.
func (a *App) Online() bool {
	if !a.watching.Load() {
		return true
	}
	return a.Monitor.Online()
}

// UserID returns the signed-in user or ErrNotAuthenticated.
func (a *App) UserID(ctx context.Context) (string, error) {
	userID, ok := a.Identity.CurrentUser(ctx)
	if !ok {
		return "", fmt.Errorf("%w: set user.id or FINTRACK_USER_ID", common.ErrNotAuthenticated)
	}
	return userID, nil
}

// Sync runs one reconciliation cycle.
func (a *App) Sync(ctx context.Context) (*reconcile.Report, error) {
	if a.Engine == nil {
		return nil, fmt.Errorf("%w: remote.url and remote.key are required to sync", common.ErrMissingConfig)
	}
	return a.Engine.Sync(ctx)
}

// Watch keeps the process synchronized until ctx is done: it polls
// connectivity, syncs on every transition to online and on every value
// received from focus while online.
func (a *App) Watch(ctx context.Context, focus <-chan struct{}) error {
	if a.Engine == nil {
		return fmt.Errorf("%w: remote.url and remote.key are required to sync", common.ErrMissingConfig)
	}

	a.watching.Store(true)
	defer a.watching.Store(false)

	trigger := connectivity.NewTrigger(a.Monitor, connectivity.SyncerFunc(func(ctx context.Context) error {
		_, err := a.Engine.Sync(ctx)
		return err
	}))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return trigger.Run(gctx) })
	g.Go(func() error { return a.Monitor.Run(gctx) })
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case _, ok := <-focus:
				if !ok {
					return nil
				}
				trigger.Focus()
			}
		}
	})

	return g.Wait()
}

// Close waits for background remote deletes and closes the database.
func (a *App) Close() error {
	a.Repository.Close()
	return a.Store.Close()
}
