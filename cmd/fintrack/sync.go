package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Veraticus/fintrack/internal/app"
	"github.com/Veraticus/fintrack/internal/cli"
	"github.com/Veraticus/fintrack/internal/reconcile"
)

func syncCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push local changes and pull remote ones",
		Long: `Run one synchronization cycle: push every pending local change to the
remote store, then pull the remote collection into the local database.

Failed items stay pending and are retried on the next sync.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			handler := cli.NewInterruptHandler(out)
			ctx := handler.HandleInterrupts(cmd.Context(), true)
			defer handler.Stop()

			opts := app.Options{}
			var progress *cli.SyncProgress
			if !quiet {
				progress = cli.NewSyncProgress(cmd.ErrOrStderr())
				opts.OnProgress = progress.Update
			}

			a, _, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			report, err := a.Sync(ctx)
			if progress != nil {
				progress.Finish()
			}
			if err != nil {
				return friendly(err)
			}

			if !quiet {
				fmt.Fprintln(out, cli.RenderSyncReport(report))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print nothing on success")

	return cmd
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stay running and sync whenever the network comes back",
		Long: `Run in the foreground, polling connectivity. A sync starts every time the
network comes back, and whenever the process receives SIGUSR1 while online
(for example from a shell hook when you open a terminal).

Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, cfg, err := openApp(ctx, app.Options{
				OnProgress: func(p reconcile.Progress) {
					slog.Debug("Sync progress", "phase", p.Phase, "done", p.Done, "total", p.Total)
				},
			})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			focus := make(chan struct{}, 1)
			usr1 := make(chan os.Signal, 1)
			signal.Notify(usr1, syscall.SIGUSR1)
			defer signal.Stop(usr1)
			go forwardFocus(ctx, usr1, focus)

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo(fmt.Sprintf(
				"Watching connectivity via %s every %s (pid %d)", cfg.ProbeURL, cfg.ProbeInterval, os.Getpid())))

			return friendly(a.Watch(ctx, focus))
		},
	}
}

// forwardFocus turns signals into focus events without ever blocking.
func forwardFocus(ctx context.Context, signals <-chan os.Signal, focus chan<- struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-signals:
			select {
			case focus <- struct{}{}:
			default:
			}
		}
	}
}
