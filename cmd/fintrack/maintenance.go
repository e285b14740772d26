package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Veraticus/fintrack/internal/app"
	"github.com/Veraticus/fintrack/internal/cli"
	"github.com/Veraticus/fintrack/internal/storage"
)

func migrateCmd() *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.

Migrations also run automatically whenever another command opens the
database; this command is useful to upgrade ahead of time or to inspect
the schema version.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if status {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
				if err != nil {
					return fmt.Errorf("failed to open database: %w", err)
				}
				defer func() { _ = store.Close() }()

				version, err := store.SchemaVersion(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, cli.FormatTitle("Database Migration Status"))
				fmt.Fprintf(out, "  Database: %s\n", cfg.DatabasePath)
				fmt.Fprintf(out, "  Current version: %d\n", version)
				fmt.Fprintf(out, "  Latest version: %d\n", storage.ExpectedSchemaVersion)
				return nil
			}

			a, cfg, err := openApp(ctx, app.Options{})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			version, err := a.Store.SchemaVersion(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Database %s is at schema version %d", cfg.DatabasePath, version)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "show current migration status without applying changes")

	return cmd
}

func backupCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a verified copy of the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, cfg, err := openApp(ctx, app.Options{})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if dir == "" {
				dir = filepath.Join(filepath.Dir(cfg.DatabasePath), "backups")
			}

			path, err := a.Store.Backup(ctx, dir)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Backup written to "+path))
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "backup directory (default: backups/ next to the database)")

	return cmd
}
