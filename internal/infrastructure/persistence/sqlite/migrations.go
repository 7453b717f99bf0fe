package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vistagrid/vistagrid/internal/logging"
)

// migrations run in order; the schema_version table tracks progress.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS workstation_state (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		purpose    TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_workstation_state_purpose
		ON workstation_state (purpose)`,
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	log := logging.FromContext(ctx)

	if _, err := db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		if _, err := db.ExecContext(ctx, migrations[i]); err != nil {
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
		if _, err := db.ExecContext(ctx,
			`INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			return fmt.Errorf("record migration %d: %w", i+1, err)
		}
		log.Debug().Int("version", i+1).Msg("migration applied")
	}
	return nil
}
