package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/example/meeting-scheduler/internal/persistence"
)

// AuditRepository implements persistence.AuditRepository using SQLite.
// Entries are append-only; there is no update or delete path.
type AuditRepository struct {
	pool *ConnectionPool
}

// NewAuditRepository creates a SQLite-backed audit repository.
func NewAuditRepository(pool *ConnectionPool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// AppendAuditEntry records one audit entry.
func (r *AuditRepository) AppendAuditEntry(ctx context.Context, entry persistence.AuditEntry) error {
	if entry.ID == "" || entry.InstanceID == "" {
		return persistence.ErrConstraintViolation
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO audit_entries (id, instance_id, action, detail, actor_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		entry.ID,
		entry.InstanceID,
		string(entry.Action),
		entry.Detail,
		entry.ActorID,
		entry.Timestamp.UTC().Format(time.RFC3339),
	)
	return MapError(err)
}

// ListAuditEntriesForInstance returns the audit trail of an instance in
// chronological order.
func (r *AuditRepository) ListAuditEntriesForInstance(ctx context.Context, instanceID string) ([]persistence.AuditEntry, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT id, instance_id, action, detail, actor_id, created_at
		FROM audit_entries
		WHERE instance_id = ?
		ORDER BY created_at ASC, id ASC
	`, instanceID)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	var entries []persistence.AuditEntry
	for rows.Next() {
		var entry persistence.AuditEntry
		var action, createdAt string

		if err := rows.Scan(&entry.ID, &entry.InstanceID, &action, &entry.Detail, &entry.ActorID, &createdAt); err != nil {
			return nil, MapError(err)
		}

		entry.Action = persistence.AuditAction(action)
		if entry.Timestamp, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
