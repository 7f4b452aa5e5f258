package persistence

import (
	"context"
	"time"
)

// TemplateRepository stores recurrence templates. The materializer only uses
// ListActiveTemplates and MarkMaterialized; the remaining operations serve the
// surrounding application, which owns template lifecycle.
type TemplateRepository interface {
	CreateTemplate(ctx context.Context, template RecurrenceTemplate) error
	GetTemplate(ctx context.Context, id string) (RecurrenceTemplate, error)
	UpdateTemplate(ctx context.Context, template RecurrenceTemplate) error
	// DeleteTemplate soft-deletes a template so it is never expanded again.
	DeleteTemplate(ctx context.Context, id string) error
	// ListActiveTemplates returns templates with IsActive set and not deleted.
	ListActiveTemplates(ctx context.Context) ([]RecurrenceTemplate, error)
	// MarkMaterialized records the time of the latest processing pass.
	MarkMaterialized(ctx context.Context, id string, at time.Time) error
}

// InstanceFilter narrows instance listing queries.
type InstanceFilter struct {
	ParticipantIDs []string
	StartsAfter    *time.Time
	EndsBefore     *time.Time
	IncludeDeleted bool
}

// InstanceRepository stores meeting instances and their participants.
type InstanceRepository interface {
	// CreateInstance inserts an instance. For generated instances the store
	// enforces uniqueness of (origin template, calendar date of StartTime)
	// across non-deleted rows and returns ErrDuplicate on collision.
	CreateInstance(ctx context.Context, instance MeetingInstance) error
	GetInstance(ctx context.Context, id string) (MeetingInstance, error)
	ListInstances(ctx context.Context, filter InstanceFilter) ([]MeetingInstance, error)
	// FindByTemplateAndDate returns the non-deleted instance a template
	// produced for the given calendar date, regardless of status. ErrNotFound
	// when the date was never materialized.
	FindByTemplateAndDate(ctx context.Context, templateID string, date time.Time) (MeetingInstance, error)
	// ListOverlapping returns non-deleted, non-cancelled instances sharing at
	// least one participant whose [start, end) range overlaps the given one.
	ListOverlapping(ctx context.Context, participants []string, start, end time.Time) ([]MeetingInstance, error)
	UpdateStatus(ctx context.Context, id string, status InstanceStatus, at time.Time) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
}

// AuditRepository is the append-only sink for materialization audit entries.
type AuditRepository interface {
	AppendAuditEntry(ctx context.Context, entry AuditEntry) error
	ListAuditEntriesForInstance(ctx context.Context, instanceID string) ([]AuditEntry, error)
}
