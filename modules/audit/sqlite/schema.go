package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations[i] upgrades the schema from version i to i+1. Statements use
// IF NOT EXISTS so a partially applied step can be re-run.
var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS deliveries (
			id          TEXT    PRIMARY KEY,
			chat_id     INTEGER NOT NULL,
			segments    INTEGER NOT NULL,
			attempted   INTEGER NOT NULL,
			final       TEXT    NOT NULL,
			aborted     INTEGER NOT NULL DEFAULT 0,
			error       TEXT    NOT NULL DEFAULT '',
			duration_ns INTEGER NOT NULL DEFAULT 0,
			created_at  TEXT    NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_created ON deliveries(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_chat ON deliveries(chat_id, created_at)`,
	},
}

// schemaVersion is the version a fully migrated database reports.
var schemaVersion = len(migrations)

// migrate brings the database schema up to schemaVersion.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}

	for v := current; v < schemaVersion; v++ {
		for _, stmt := range migrations[v] {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("sqlite: migrate to v%d: %w\nstatement: %s", v+1, err, stmt)
			}
		}
		if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", v+1); err != nil {
			return fmt.Errorf("sqlite: record schema version: %w", err)
		}
	}
	return nil
}
