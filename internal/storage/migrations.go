package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries ...string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Expense records",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS expense_records (
					id TEXT PRIMARY KEY,
					uid TEXT NOT NULL,
					geo_info TEXT NOT NULL DEFAULT '',
					fields TEXT,
					created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX IF NOT EXISTS idx_expense_records_uid ON expense_records(uid)`,
			)
		},
	},
	{
		Version:     2,
		Description: "Documents",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS documents (
					collection TEXT NOT NULL,
					id TEXT NOT NULL,
					data TEXT NOT NULL,
					updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (collection, id)
				)`,
			)
		},
	},
	{
		Version:     3,
		Description: "Order user history by creation time",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE INDEX IF NOT EXISTS idx_expense_records_uid_created ON expense_records(uid, created_at DESC)`,
			)
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}
	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
