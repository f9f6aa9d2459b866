package data

import (
	"context"
	"database/sql"
	"fmt"
)

// migrationStatements are applied in order on startup. Statements must be
// idempotent; there is no down path.
var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS auth_audit_events (
		id UUID PRIMARY KEY,
		event_type TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		path TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		occurred_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_auth_audit_events_occurred_at
		ON auth_audit_events (occurred_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_auth_audit_events_user_id
		ON auth_audit_events (user_id) WHERE user_id <> ''`,
	`CREATE INDEX IF NOT EXISTS idx_auth_audit_events_event_type
		ON auth_audit_events (event_type)`,
}

// RunMigrations executes database migrations to set up the required schema.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	for i, stmt := range migrationStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
