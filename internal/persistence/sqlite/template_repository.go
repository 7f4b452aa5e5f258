package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/meeting-scheduler/internal/persistence"
)

// TemplateRepository implements persistence.TemplateRepository using SQLite.
type TemplateRepository struct {
	pool *ConnectionPool
}

// NewTemplateRepository creates a SQLite-backed template repository.
func NewTemplateRepository(pool *ConnectionPool) *TemplateRepository {
	return &TemplateRepository{pool: pool}
}

const templateColumns = `id, title, description, meeting_type, location, meeting_link, notes,
	creator_id, pattern, day_of_week, day_of_month, start_clock, end_clock,
	window_end_date, is_active, is_deleted, last_materialized_at, created_at, updated_at`

// CreateTemplate inserts a template with its participants.
func (r *TemplateRepository) CreateTemplate(ctx context.Context, template persistence.RecurrenceTemplate) error {
	if template.ID == "" || len(template.Participants) == 0 {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	if template.CreatedAt.IsZero() {
		template.CreatedAt = now
	}
	template.UpdatedAt = now

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO recurrence_templates (` + templateColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := tx.Exec(query,
			template.ID,
			template.Title,
			template.Description,
			string(template.MeetingType),
			template.Location,
			template.MeetingLink,
			template.Notes,
			template.CreatorID,
			string(template.Pattern),
			nullableInt(template.DayOfWeek),
			nullableInt(template.DayOfMonth),
			template.StartClock,
			template.EndClock,
			nullableTime(template.WindowEndDate),
			boolToInt(template.IsActive),
			boolToInt(template.IsDeleted),
			nullableTime(template.LastMaterializedAt),
			template.CreatedAt.Format(time.RFC3339),
			template.UpdatedAt.Format(time.RFC3339),
		)
		if err != nil {
			return MapError(err)
		}

		return insertParticipants(tx, "template_participants", "template_id", template.ID, template.Participants)
	})
}

// GetTemplate retrieves a template by ID, including soft-deleted ones.
func (r *TemplateRepository) GetTemplate(ctx context.Context, id string) (persistence.RecurrenceTemplate, error) {
	if id == "" {
		return persistence.RecurrenceTemplate{}, persistence.ErrNotFound
	}

	row := r.pool.db.QueryRowContext(ctx,
		"SELECT "+templateColumns+" FROM recurrence_templates WHERE id = ?", id)

	template, err := scanTemplate(row)
	if err != nil {
		return persistence.RecurrenceTemplate{}, err
	}

	participants, err := loadParticipants(ctx, r.pool, "template_participants", "template_id", id)
	if err != nil {
		return persistence.RecurrenceTemplate{}, err
	}
	template.Participants = participants

	return template, nil
}

// UpdateTemplate replaces a template's mutable fields and participant set.
// The creator and creation time are preserved.
func (r *TemplateRepository) UpdateTemplate(ctx context.Context, template persistence.RecurrenceTemplate) error {
	if template.ID == "" {
		return persistence.ErrNotFound
	}

	template.UpdatedAt = time.Now().UTC()

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		query := `
			UPDATE recurrence_templates
			SET title = ?, description = ?, meeting_type = ?, location = ?, meeting_link = ?,
				notes = ?, pattern = ?, day_of_week = ?, day_of_month = ?, start_clock = ?,
				end_clock = ?, window_end_date = ?, is_active = ?, is_deleted = ?, updated_at = ?
			WHERE id = ?
		`
		result, err := tx.Exec(query,
			template.Title,
			template.Description,
			string(template.MeetingType),
			template.Location,
			template.MeetingLink,
			template.Notes,
			string(template.Pattern),
			nullableInt(template.DayOfWeek),
			nullableInt(template.DayOfMonth),
			template.StartClock,
			template.EndClock,
			nullableTime(template.WindowEndDate),
			boolToInt(template.IsActive),
			boolToInt(template.IsDeleted),
			template.UpdatedAt.Format(time.RFC3339),
			template.ID,
		)
		if err != nil {
			return MapError(err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}

		if _, err := tx.Exec("DELETE FROM template_participants WHERE template_id = ?", template.ID); err != nil {
			return MapError(err)
		}
		return insertParticipants(tx, "template_participants", "template_id", template.ID, template.Participants)
	})
}

// DeleteTemplate soft-deletes a template so the driver never expands it again.
func (r *TemplateRepository) DeleteTemplate(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.pool.db.ExecContext(ctx,
		"UPDATE recurrence_templates SET is_deleted = 1, is_active = 0, updated_at = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// ListActiveTemplates returns active, non-deleted templates ordered by
// creation time.
func (r *TemplateRepository) ListActiveTemplates(ctx context.Context) ([]persistence.RecurrenceTemplate, error) {
	query := "SELECT " + templateColumns + ` FROM recurrence_templates
		WHERE is_active = 1 AND is_deleted = 0
		ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.db.QueryContext(ctx, query)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	var templates []persistence.RecurrenceTemplate
	for rows.Next() {
		template, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, template)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	for i := range templates {
		participants, err := loadParticipants(ctx, r.pool, "template_participants", "template_id", templates[i].ID)
		if err != nil {
			return nil, err
		}
		templates[i].Participants = participants
	}

	return templates, nil
}

// MarkMaterialized records the time of the latest processing pass.
func (r *TemplateRepository) MarkMaterialized(ctx context.Context, id string, at time.Time) error {
	result, err := r.pool.db.ExecContext(ctx,
		"UPDATE recurrence_templates SET last_materialized_at = ?, updated_at = ? WHERE id = ?",
		at.UTC().Format(time.RFC3339), at.UTC().Format(time.RFC3339), id)
	if err != nil {
		return MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (persistence.RecurrenceTemplate, error) {
	var template persistence.RecurrenceTemplate
	var meetingType, pattern, createdAt, updatedAt string
	var dayOfWeek, dayOfMonth sql.NullInt64
	var windowEnd, lastMaterialized sql.NullString
	var isActive, isDeleted int

	err := row.Scan(
		&template.ID,
		&template.Title,
		&template.Description,
		&meetingType,
		&template.Location,
		&template.MeetingLink,
		&template.Notes,
		&template.CreatorID,
		&pattern,
		&dayOfWeek,
		&dayOfMonth,
		&template.StartClock,
		&template.EndClock,
		&windowEnd,
		&isActive,
		&isDeleted,
		&lastMaterialized,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.RecurrenceTemplate{}, MapError(err)
	}

	template.MeetingType = persistence.MeetingType(meetingType)
	template.Pattern = persistence.RecurrencePattern(pattern)
	template.IsActive = isActive != 0
	template.IsDeleted = isDeleted != 0

	if dayOfWeek.Valid {
		day := int(dayOfWeek.Int64)
		template.DayOfWeek = &day
	}
	if dayOfMonth.Valid {
		day := int(dayOfMonth.Int64)
		template.DayOfMonth = &day
	}

	if template.WindowEndDate, err = parseNullableTime(windowEnd); err != nil {
		return persistence.RecurrenceTemplate{}, fmt.Errorf("failed to parse window_end_date: %w", err)
	}
	if template.LastMaterializedAt, err = parseNullableTime(lastMaterialized); err != nil {
		return persistence.RecurrenceTemplate{}, fmt.Errorf("failed to parse last_materialized_at: %w", err)
	}
	if template.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return persistence.RecurrenceTemplate{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if template.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return persistence.RecurrenceTemplate{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return template, nil
}

func insertParticipants(tx *sql.Tx, table, column, ownerID string, participants []string) error {
	seen := make(map[string]struct{}, len(participants))
	for _, participant := range participants {
		participant = strings.TrimSpace(participant)
		if participant == "" {
			continue
		}
		if _, ok := seen[participant]; ok {
			continue
		}
		seen[participant] = struct{}{}

		query := fmt.Sprintf("INSERT INTO %s (%s, user_id) VALUES (?, ?)", table, column)
		if _, err := tx.Exec(query, ownerID, participant); err != nil {
			return MapError(err)
		}
	}
	return nil
}

func loadParticipants(ctx context.Context, pool *ConnectionPool, table, column, ownerID string) ([]string, error) {
	query := fmt.Sprintf("SELECT user_id FROM %s WHERE %s = ? ORDER BY user_id ASC", table, column)
	rows, err := pool.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	var participants []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, MapError(err)
		}
		participants = append(participants, userID)
	}
	return participants, rows.Err()
}

func nullableInt(value *int) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*value), Valid: true}
}

func nullableTime(value *time.Time) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: value.UTC().Format(time.RFC3339), Valid: true}
}

func parseNullableTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, value.String)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
