package persistence

import "time"

// MeetingType distinguishes online and offline meetings.
type MeetingType string

const (
	// MeetingTypeOnline indicates a meeting held over a conference link.
	MeetingTypeOnline MeetingType = "online"
	// MeetingTypeOffline indicates a meeting held at a physical location.
	MeetingTypeOffline MeetingType = "offline"
)

// RecurrencePattern identifies how a template repeats.
type RecurrencePattern string

const (
	// PatternDaily generates an instance for every day in the window.
	PatternDaily RecurrencePattern = "daily"
	// PatternWeekly generates an instance on the template's weekday.
	PatternWeekly RecurrencePattern = "weekly"
	// PatternMonthly generates an instance on the template's day of month.
	PatternMonthly RecurrencePattern = "monthly"
)

// InstanceStatus tracks the lifecycle of a meeting instance.
type InstanceStatus string

const (
	// StatusScheduled is the status of every freshly materialized instance.
	StatusScheduled InstanceStatus = "scheduled"
	// StatusCompleted marks an instance that took place.
	StatusCompleted InstanceStatus = "completed"
	// StatusCancelled marks an instance a user called off. Cancelled instances
	// are excluded from conflict detection but still satisfy the idempotency
	// check, so the materializer never regenerates a cancelled slot.
	StatusCancelled InstanceStatus = "cancelled"
	// StatusRescheduled marks an instance that was moved by a user.
	StatusRescheduled InstanceStatus = "rescheduled"
)

// RecurrenceTemplate is a declarative recurring-meeting definition. Templates
// are created and edited by the surrounding application; the materializer
// only reads them and updates LastMaterializedAt.
type RecurrenceTemplate struct {
	ID                 string
	Title              string
	Description        string
	MeetingType        MeetingType
	Location           string
	MeetingLink        string
	Notes              string
	Participants       []string
	CreatorID          string
	Pattern            RecurrencePattern
	DayOfWeek          *int // 0-6, required for weekly templates
	DayOfMonth         *int // 1-31, required for monthly templates
	StartClock         string
	EndClock           string
	WindowEndDate      *time.Time // inclusive cutoff for generation
	IsActive           bool
	IsDeleted          bool
	LastMaterializedAt *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// MeetingInstance is a concrete, schedulable meeting record.
type MeetingInstance struct {
	ID               string
	Title            string
	Description      string
	MeetingType      MeetingType
	Location         string
	MeetingLink      string
	Notes            string
	Participants     []string
	CreatorID        string
	StartTime        time.Time
	EndTime          time.Time
	Status           InstanceStatus
	OriginTemplateID *string // nil for ad hoc instances
	IsDeleted        bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// AuditAction labels an audit entry.
type AuditAction string

// AuditActionCreated is recorded once per successful materialization.
const AuditActionCreated AuditAction = "CREATED"

// AuditEntry is an append-only record of an automated instance mutation.
type AuditEntry struct {
	ID         string
	InstanceID string
	Action     AuditAction
	Detail     string
	ActorID    string
	Timestamp  time.Time
}
