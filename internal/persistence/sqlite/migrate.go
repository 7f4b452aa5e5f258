package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// migration pairs a monotonically increasing version with the statements that
// bring the schema to it. Statements for one version run inside a single
// transaction together with the bookkeeping insert, so a failed migration
// leaves no partial schema behind.
type migration struct {
	version    int
	statements []string
}

var migrations = []migration{
	{
		version: 1,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS recurrence_templates (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				meeting_type TEXT NOT NULL CHECK (meeting_type IN ('online', 'offline')),
				location TEXT NOT NULL DEFAULT '',
				meeting_link TEXT NOT NULL DEFAULT '',
				notes TEXT NOT NULL DEFAULT '',
				creator_id TEXT NOT NULL,
				pattern TEXT NOT NULL CHECK (pattern IN ('daily', 'weekly', 'monthly')),
				day_of_week INTEGER CHECK (day_of_week BETWEEN 0 AND 6),
				day_of_month INTEGER CHECK (day_of_month BETWEEN 1 AND 31),
				start_clock TEXT NOT NULL,
				end_clock TEXT NOT NULL,
				window_end_date TEXT,
				is_active INTEGER NOT NULL DEFAULT 1,
				is_deleted INTEGER NOT NULL DEFAULT 0,
				last_materialized_at TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS template_participants (
				template_id TEXT NOT NULL REFERENCES recurrence_templates(id) ON DELETE CASCADE,
				user_id TEXT NOT NULL,
				PRIMARY KEY (template_id, user_id)
			)`,
			`CREATE TABLE IF NOT EXISTS meeting_instances (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				meeting_type TEXT NOT NULL CHECK (meeting_type IN ('online', 'offline')),
				location TEXT NOT NULL DEFAULT '',
				meeting_link TEXT NOT NULL DEFAULT '',
				notes TEXT NOT NULL DEFAULT '',
				creator_id TEXT NOT NULL,
				start_time TEXT NOT NULL,
				end_time TEXT NOT NULL,
				start_date TEXT NOT NULL,
				status TEXT NOT NULL CHECK (status IN ('scheduled', 'completed', 'cancelled', 'rescheduled')),
				origin_template_id TEXT REFERENCES recurrence_templates(id),
				is_deleted INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				CHECK (end_time > start_time)
			)`,
			`CREATE TABLE IF NOT EXISTS instance_participants (
				instance_id TEXT NOT NULL REFERENCES meeting_instances(id) ON DELETE CASCADE,
				user_id TEXT NOT NULL,
				PRIMARY KEY (instance_id, user_id)
			)`,
			// The idempotency key: at most one non-deleted generated instance
			// per (template, calendar date). Concurrent materialization races
			// lose the insert and surface as ErrDuplicate.
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_instances_template_date
				ON meeting_instances (origin_template_id, start_date)
				WHERE origin_template_id IS NOT NULL AND is_deleted = 0`,
			`CREATE INDEX IF NOT EXISTS idx_instances_time_range
				ON meeting_instances (start_time, end_time)`,
			`CREATE TABLE IF NOT EXISTS audit_entries (
				id TEXT PRIMARY KEY,
				instance_id TEXT NOT NULL,
				action TEXT NOT NULL,
				detail TEXT NOT NULL DEFAULT '',
				actor_id TEXT NOT NULL,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_audit_instance
				ON audit_entries (instance_id, created_at)`,
		},
	},
}

// Migrate brings the schema up to the latest version. Already-applied
// versions are skipped, so it is safe to run at every process start.
func (cp *ConnectionPool) Migrate(ctx context.Context) error {
	if _, err := cp.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	applied, err := cp.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if _, ok := applied[m.version]; ok {
			continue
		}

		err := cp.WithTransaction(ctx, func(tx *sql.Tx) error {
			for _, stmt := range m.statements {
				if _, err := tx.Exec(stmt); err != nil {
					return fmt.Errorf("migration %d failed: %w", m.version, err)
				}
			}
			_, err := tx.Exec(
				"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
				m.version, time.Now().UTC().Format(time.RFC3339),
			)
			return err
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (cp *ConnectionPool) appliedVersions(ctx context.Context) (map[int]struct{}, error) {
	rows, err := cp.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]struct{})
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = struct{}{}
	}
	return applied, rows.Err()
}
