package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/meeting-scheduler/internal/persistence"
)

// InstanceRepository implements persistence.InstanceRepository using SQLite.
//
// Generated instances carry a derived start_date column holding the calendar
// date of StartTime in the clock location the materializer ran with. The
// partial unique index on (origin_template_id, start_date) makes the
// idempotency key a hard store guarantee: a concurrent double-materialization
// loses the insert and observes ErrDuplicate.
type InstanceRepository struct {
	pool  *ConnectionPool
	retry RetryConfig
}

// NewInstanceRepository creates a SQLite-backed instance repository.
func NewInstanceRepository(pool *ConnectionPool) *InstanceRepository {
	return &InstanceRepository{pool: pool, retry: DefaultRetryConfig()}
}

const instanceColumns = `id, title, description, meeting_type, location, meeting_link, notes,
	creator_id, start_time, end_time, start_date, status, origin_template_id,
	is_deleted, created_at, updated_at`

const dateLayout = "2006-01-02"

// CreateInstance inserts an instance with its participants. Transient locked
// or busy errors are retried; idempotency collisions map to ErrDuplicate.
func (r *InstanceRepository) CreateInstance(ctx context.Context, instance persistence.MeetingInstance) error {
	if instance.ID == "" || len(instance.Participants) == 0 {
		return persistence.ErrConstraintViolation
	}
	if !instance.EndTime.After(instance.StartTime) {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	if instance.CreatedAt.IsZero() {
		instance.CreatedAt = now
	}
	instance.UpdatedAt = now

	return WithRetry(ctx, r.retry, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			query := `
				INSERT INTO meeting_instances (` + instanceColumns + `)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`
			var originTemplateID sql.NullString
			if instance.OriginTemplateID != nil {
				originTemplateID = sql.NullString{String: *instance.OriginTemplateID, Valid: true}
			}

			_, err := tx.Exec(query,
				instance.ID,
				instance.Title,
				instance.Description,
				string(instance.MeetingType),
				instance.Location,
				instance.MeetingLink,
				instance.Notes,
				instance.CreatorID,
				instance.StartTime.UTC().Format(time.RFC3339),
				instance.EndTime.UTC().Format(time.RFC3339),
				instance.StartTime.Format(dateLayout),
				string(instance.Status),
				originTemplateID,
				boolToInt(instance.IsDeleted),
				instance.CreatedAt.Format(time.RFC3339),
				instance.UpdatedAt.Format(time.RFC3339),
			)
			if err != nil {
				return MapError(err)
			}

			return insertParticipants(tx, "instance_participants", "instance_id", instance.ID, instance.Participants)
		})
	})
}

// GetInstance retrieves an instance by ID.
func (r *InstanceRepository) GetInstance(ctx context.Context, id string) (persistence.MeetingInstance, error) {
	if id == "" {
		return persistence.MeetingInstance{}, persistence.ErrNotFound
	}

	row := r.pool.db.QueryRowContext(ctx,
		"SELECT "+instanceColumns+" FROM meeting_instances WHERE id = ?", id)

	instance, err := scanInstance(row)
	if err != nil {
		return persistence.MeetingInstance{}, err
	}
	return r.withParticipants(ctx, instance)
}

// ListInstances returns instances matching the filter ordered by start time.
func (r *InstanceRepository) ListInstances(ctx context.Context, filter persistence.InstanceFilter) ([]persistence.MeetingInstance, error) {
	query, args := buildInstanceListQuery(filter)

	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	instances, err := scanInstances(rows)
	if err != nil {
		return nil, err
	}
	return r.allWithParticipants(ctx, instances)
}

// FindByTemplateAndDate returns the non-deleted instance a template produced
// for the given calendar date, regardless of status.
func (r *InstanceRepository) FindByTemplateAndDate(ctx context.Context, templateID string, date time.Time) (persistence.MeetingInstance, error) {
	row := r.pool.db.QueryRowContext(ctx, `
		SELECT `+instanceColumns+` FROM meeting_instances
		WHERE origin_template_id = ? AND start_date = ? AND is_deleted = 0
	`, templateID, date.Format(dateLayout))

	instance, err := scanInstance(row)
	if err != nil {
		return persistence.MeetingInstance{}, err
	}
	return r.withParticipants(ctx, instance)
}

// ListOverlapping returns non-deleted, non-cancelled instances that share a
// participant and overlap the half-open range [start, end).
func (r *InstanceRepository) ListOverlapping(ctx context.Context, participants []string, start, end time.Time) ([]persistence.MeetingInstance, error) {
	if len(participants) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(participants)), ",")
	query := `
		SELECT DISTINCT ` + prefixColumns("i", instanceColumns) + `
		FROM meeting_instances i
		JOIN instance_participants p ON p.instance_id = i.id
		WHERE i.is_deleted = 0
			AND i.status != 'cancelled'
			AND p.user_id IN (` + placeholders + `)
			AND i.start_time < ?
			AND i.end_time > ?
		ORDER BY i.start_time ASC, i.id ASC
	`

	args := make([]any, 0, len(participants)+2)
	for _, participant := range participants {
		args = append(args, participant)
	}
	args = append(args, end.UTC().Format(time.RFC3339), start.UTC().Format(time.RFC3339))

	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	instances, err := scanInstances(rows)
	if err != nil {
		return nil, err
	}
	return r.allWithParticipants(ctx, instances)
}

// UpdateStatus changes an instance's lifecycle status.
func (r *InstanceRepository) UpdateStatus(ctx context.Context, id string, status persistence.InstanceStatus, at time.Time) error {
	result, err := r.pool.db.ExecContext(ctx,
		"UPDATE meeting_instances SET status = ?, updated_at = ? WHERE id = ?",
		string(status), at.UTC().Format(time.RFC3339), id)
	if err != nil {
		return MapError(err)
	}
	return requireAffected(result)
}

// SoftDelete marks an instance deleted without removing the row.
func (r *InstanceRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	result, err := r.pool.db.ExecContext(ctx,
		"UPDATE meeting_instances SET is_deleted = 1, updated_at = ? WHERE id = ?",
		at.UTC().Format(time.RFC3339), id)
	if err != nil {
		return MapError(err)
	}
	return requireAffected(result)
}

func (r *InstanceRepository) withParticipants(ctx context.Context, instance persistence.MeetingInstance) (persistence.MeetingInstance, error) {
	participants, err := loadParticipants(ctx, r.pool, "instance_participants", "instance_id", instance.ID)
	if err != nil {
		return persistence.MeetingInstance{}, err
	}
	instance.Participants = participants
	return instance, nil
}

func (r *InstanceRepository) allWithParticipants(ctx context.Context, instances []persistence.MeetingInstance) ([]persistence.MeetingInstance, error) {
	for i := range instances {
		withParticipants, err := r.withParticipants(ctx, instances[i])
		if err != nil {
			return nil, err
		}
		instances[i] = withParticipants
	}
	return instances, nil
}

func scanInstance(row rowScanner) (persistence.MeetingInstance, error) {
	var instance persistence.MeetingInstance
	var meetingType, status, startTime, endTime, startDate, createdAt, updatedAt string
	var originTemplateID sql.NullString
	var isDeleted int

	err := row.Scan(
		&instance.ID,
		&instance.Title,
		&instance.Description,
		&meetingType,
		&instance.Location,
		&instance.MeetingLink,
		&instance.Notes,
		&instance.CreatorID,
		&startTime,
		&endTime,
		&startDate,
		&status,
		&originTemplateID,
		&isDeleted,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.MeetingInstance{}, MapError(err)
	}

	instance.MeetingType = persistence.MeetingType(meetingType)
	instance.Status = persistence.InstanceStatus(status)
	instance.IsDeleted = isDeleted != 0
	if originTemplateID.Valid {
		instance.OriginTemplateID = &originTemplateID.String
	}

	if instance.StartTime, err = time.Parse(time.RFC3339, startTime); err != nil {
		return persistence.MeetingInstance{}, fmt.Errorf("failed to parse start_time: %w", err)
	}
	if instance.EndTime, err = time.Parse(time.RFC3339, endTime); err != nil {
		return persistence.MeetingInstance{}, fmt.Errorf("failed to parse end_time: %w", err)
	}
	if instance.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return persistence.MeetingInstance{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if instance.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return persistence.MeetingInstance{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return instance, nil
}

func scanInstances(rows *sql.Rows) ([]persistence.MeetingInstance, error) {
	var instances []persistence.MeetingInstance
	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, instance)
	}
	return instances, rows.Err()
}

func buildInstanceListQuery(filter persistence.InstanceFilter) (string, []any) {
	base := "SELECT DISTINCT " + prefixColumns("i", instanceColumns) + " FROM meeting_instances i"

	var conditions []string
	var args []any

	if len(filter.ParticipantIDs) > 0 {
		base += " JOIN instance_participants p ON p.instance_id = i.id"
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filter.ParticipantIDs)), ",")
		conditions = append(conditions, fmt.Sprintf("p.user_id IN (%s)", placeholders))
		for _, participant := range filter.ParticipantIDs {
			args = append(args, participant)
		}
	}

	if !filter.IncludeDeleted {
		conditions = append(conditions, "i.is_deleted = 0")
	}
	if filter.StartsAfter != nil {
		conditions = append(conditions, "i.end_time > ?")
		args = append(args, filter.StartsAfter.UTC().Format(time.RFC3339))
	}
	if filter.EndsBefore != nil {
		conditions = append(conditions, "i.start_time < ?")
		args = append(args, filter.EndsBefore.UTC().Format(time.RFC3339))
	}

	if len(conditions) > 0 {
		base += " WHERE " + strings.Join(conditions, " AND ")
	}
	base += " ORDER BY i.start_time ASC, i.id ASC"

	return base, args
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = alias + "." + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
