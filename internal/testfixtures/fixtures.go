package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/meeting-scheduler/internal/persistence"
)

var (
	templateCounter uint64
	instanceCounter uint64
)

// referenceTime is a Monday, which keeps weekday arithmetic in tests legible.
var referenceTime = time.Date(2024, time.January, 1, 8, 30, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// --------------------------- Template fixtures ---------------------------

// TemplateOption configures a generated recurrence template.
type TemplateOption func(*persistence.RecurrenceTemplate)

// NewTemplate returns a deterministic active daily template with optional
// overrides. Defaults: one participant, 10:00-10:30, no window end.
func NewTemplate(opts ...TemplateOption) persistence.RecurrenceTemplate {
	idx := atomic.AddUint64(&templateCounter, 1)
	id := fmt.Sprintf("template-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)

	template := persistence.RecurrenceTemplate{
		ID:           id,
		Title:        fmt.Sprintf("Recurring Meeting %03d", idx),
		MeetingType:  persistence.MeetingTypeOnline,
		MeetingLink:  fmt.Sprintf("https://meet.example.com/%s", id),
		Participants: []string{fmt.Sprintf("user-%03d", idx)},
		CreatorID:    fmt.Sprintf("user-%03d", idx),
		Pattern:      persistence.PatternDaily,
		StartClock:   "10:00",
		EndClock:     "10:30",
		IsActive:     true,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&template)
	}
	return template
}

// WithTemplateID overrides the generated template ID.
func WithTemplateID(id string) TemplateOption {
	return func(t *persistence.RecurrenceTemplate) {
		t.ID = id
	}
}

// WithParticipants overrides the participant set.
func WithParticipants(ids ...string) TemplateOption {
	return func(t *persistence.RecurrenceTemplate) {
		t.Participants = ids
	}
}

// WithCreator overrides the template creator.
func WithCreator(id string) TemplateOption {
	return func(t *persistence.RecurrenceTemplate) {
		t.CreatorID = id
	}
}

// WithDailyPattern switches the template to a daily pattern.
func WithDailyPattern() TemplateOption {
	return func(t *persistence.RecurrenceTemplate) {
		t.Pattern = persistence.PatternDaily
		t.DayOfWeek = nil
		t.DayOfMonth = nil
	}
}

// WithWeeklyPattern switches the template to a weekly pattern on the given
// weekday (0 = Sunday).
func WithWeeklyPattern(dayOfWeek int) TemplateOption {
	return func(t *persistence.RecurrenceTemplate) {
		t.Pattern = persistence.PatternWeekly
		t.DayOfWeek = &dayOfWeek
		t.DayOfMonth = nil
	}
}

// WithMonthlyPattern switches the template to a monthly pattern on the given
// day of month.
func WithMonthlyPattern(dayOfMonth int) TemplateOption {
	return func(t *persistence.RecurrenceTemplate) {
		t.Pattern = persistence.PatternMonthly
		t.DayOfMonth = &dayOfMonth
		t.DayOfWeek = nil
	}
}

// WithClockTimes overrides the wall-clock start and end times.
func WithClockTimes(start, end string) TemplateOption {
	return func(t *persistence.RecurrenceTemplate) {
		t.StartClock = start
		t.EndClock = end
	}
}

// WithWindowEnd sets the inclusive generation cutoff.
func WithWindowEnd(end time.Time) TemplateOption {
	return func(t *persistence.RecurrenceTemplate) {
		t.WindowEndDate = &end
	}
}

// WithInactive deactivates the template.
func WithInactive() TemplateOption {
	return func(t *persistence.RecurrenceTemplate) {
		t.IsActive = false
	}
}

// --------------------------- Instance fixtures ---------------------------

// InstanceOption configures a generated meeting instance.
type InstanceOption func(*persistence.MeetingInstance)

// NewInstance returns a deterministic scheduled ad hoc instance with optional
// overrides. Defaults: one participant, one hour starting at ReferenceTime.
func NewInstance(opts ...InstanceOption) persistence.MeetingInstance {
	idx := atomic.AddUint64(&instanceCounter, 1)
	id := fmt.Sprintf("instance-%03d", idx)

	instance := persistence.MeetingInstance{
		ID:           id,
		Title:        fmt.Sprintf("Meeting %03d", idx),
		MeetingType:  persistence.MeetingTypeOnline,
		Participants: []string{fmt.Sprintf("user-%03d", idx)},
		CreatorID:    fmt.Sprintf("user-%03d", idx),
		StartTime:    referenceTime,
		EndTime:      referenceTime.Add(time.Hour),
		Status:       persistence.StatusScheduled,
		CreatedAt:    referenceTime,
		UpdatedAt:    referenceTime,
	}
	for _, opt := range opts {
		opt(&instance)
	}
	return instance
}

// WithInstanceID overrides the generated instance ID.
func WithInstanceID(id string) InstanceOption {
	return func(i *persistence.MeetingInstance) {
		i.ID = id
	}
}

// WithInstanceParticipants overrides the participant set.
func WithInstanceParticipants(ids ...string) InstanceOption {
	return func(i *persistence.MeetingInstance) {
		i.Participants = ids
	}
}

// WithTimes sets the absolute start and end timestamps.
func WithTimes(start, end time.Time) InstanceOption {
	return func(i *persistence.MeetingInstance) {
		i.StartTime = start
		i.EndTime = end
	}
}

// WithStatus overrides the instance status.
func WithStatus(status persistence.InstanceStatus) InstanceOption {
	return func(i *persistence.MeetingInstance) {
		i.Status = status
	}
}

// WithOrigin links the instance back to a generating template.
func WithOrigin(templateID string) InstanceOption {
	return func(i *persistence.MeetingInstance) {
		i.OriginTemplateID = &templateID
	}
}

// WithDeleted soft-deletes the instance.
func WithDeleted() InstanceOption {
	return func(i *persistence.MeetingInstance) {
		i.IsDeleted = true
	}
}
