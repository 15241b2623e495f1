package main

import (
	"fmt"

	"github.com/Veraticus/tachyon/internal/cli"
	"github.com/Veraticus/tachyon/internal/storage"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the local SQLite schema to the latest version.

The record and document tables live in database.path; MongoDB and Firestore
backends need no migration.`,
		Args: cobra.NoArgs,
		RunE: runMigrate,
	}

	cmd.Flags().Bool("status", false, "Show current migration status without applying changes")

	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	status, _ := cmd.Flags().GetBool("status")
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer closeQuietly(store)

	current, err := store.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	if status {
		fmt.Fprintln(out, cli.FormatTitle("Database Migration Status"))
		fmt.Fprintf(out, "Database:        %s\n", cfg.Database.Path)
		fmt.Fprintf(out, "Current version: %d\n", current)
		_, err = fmt.Fprintf(out, "Latest version:  %d\n", storage.ExpectedSchemaVersion)
		return err
	}

	logger.Info("Running database migrations", "database", cfg.Database.Path, "from", current)
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	_, err = fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Database at schema version %d", storage.ExpectedSchemaVersion)))
	return err
}
