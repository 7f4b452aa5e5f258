// Package materializer turns recurrence templates into concrete meeting
// instances ahead of time. The Materializer processes one template per call;
// the Driver runs a full cycle over every active template; the Runner triggers
// cycles at process start and on a cron cadence.
package materializer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/meeting-scheduler/internal/logging"
	"github.com/example/meeting-scheduler/internal/persistence"
	"github.com/example/meeting-scheduler/internal/recurrence"
	"github.com/example/meeting-scheduler/internal/scheduler"
)

// TemplateStore captures the template operations the materializer needs.
type TemplateStore interface {
	ListActiveTemplates(ctx context.Context) ([]persistence.RecurrenceTemplate, error)
	MarkMaterialized(ctx context.Context, id string, at time.Time) error
}

// InstanceStore captures the instance operations the materializer needs.
type InstanceStore interface {
	FindByTemplateAndDate(ctx context.Context, templateID string, date time.Time) (persistence.MeetingInstance, error)
	ListOverlapping(ctx context.Context, participants []string, start, end time.Time) ([]persistence.MeetingInstance, error)
	CreateInstance(ctx context.Context, instance persistence.MeetingInstance) error
}

// AuditSink receives one entry per successfully materialized instance.
type AuditSink interface {
	AppendAuditEntry(ctx context.Context, entry persistence.AuditEntry) error
}

// Result aggregates the outcome of materializing one template.
type Result struct {
	Created int
	Skipped int
}

// Materializer expands templates into instances with idempotency and
// conflict checks. All failures while processing a single candidate date are
// contained to that date; only template-level configuration errors surface to
// the caller.
type Materializer struct {
	templates    TemplateStore
	instances    InstanceStore
	audit        AuditSink
	idGenerator  func() string
	now          func() time.Time
	storeTimeout time.Duration
	logger       *slog.Logger
}

// New wires dependencies for the materializer.
func New(templates TemplateStore, instances InstanceStore, audit AuditSink, idGenerator func() string, now func() time.Time) *Materializer {
	return NewWithLogger(templates, instances, audit, idGenerator, now, nil)
}

// NewWithLogger wires dependencies including a base logger.
func NewWithLogger(templates TemplateStore, instances InstanceStore, audit AuditSink, idGenerator func() string, now func() time.Time, logger *slog.Logger) *Materializer {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &Materializer{
		templates:   templates,
		instances:   instances,
		audit:       audit,
		idGenerator: idGenerator,
		now:         now,
		logger:      logger,
	}
}

// SetStoreTimeout bounds every individual store call. Zero disables the bound.
func (m *Materializer) SetStoreTimeout(timeout time.Duration) {
	m.storeTimeout = timeout
}

// Materialize generates the missing instances for one template across the
// lookahead window starting at the reference date.
//
// For each candidate date the materializer checks the idempotency key first
// (a previously generated instance, even a cancelled one, suppresses the date
// silently), then the conflict rule (an overlapping active instance sharing a
// participant suppresses the date with a diagnostic log line), and only then
// creates the instance together with its audit entry. The template's
// last-materialized marker is updated after the pass regardless of outcomes.
//
// An error is returned only for template configuration problems: an unknown
// pattern, a missing weekday or day of month, or a malformed clock time.
func (m *Materializer) Materialize(ctx context.Context, template persistence.RecurrenceTemplate, reference time.Time, lookaheadDays int) (Result, error) {
	if m == nil {
		return Result{}, fmt.Errorf("Materializer is nil")
	}

	logger := logging.ScopedLogger(ctx, m.logger, "materializer", "materialize", "template_id", template.ID)

	pattern, err := recurrence.NewPattern(string(template.Pattern), template.DayOfWeek, template.DayOfMonth)
	if err != nil {
		return Result{}, fmt.Errorf("template %s: %w", template.ID, err)
	}
	startClock, err := recurrence.ParseClockTime(template.StartClock)
	if err != nil {
		return Result{}, fmt.Errorf("template %s start clock: %w", template.ID, err)
	}
	endClock, err := recurrence.ParseClockTime(template.EndClock)
	if err != nil {
		return Result{}, fmt.Errorf("template %s end clock: %w", template.ID, err)
	}

	rule := recurrence.Rule{Pattern: pattern, WindowEnd: template.WindowEndDate}
	dates, err := recurrence.Expand(rule, reference, lookaheadDays)
	if err != nil {
		return Result{}, fmt.Errorf("template %s: %w", template.ID, err)
	}

	var result Result
	for _, date := range dates {
		if ctx.Err() != nil {
			break
		}
		if m.processDate(ctx, logger, template, date, startClock, endClock) {
			result.Created++
		} else {
			result.Skipped++
		}
	}

	m.markMaterialized(ctx, logger, template.ID)

	return result, nil
}

// processDate handles a single candidate date and reports whether an instance
// was created. Store errors and panics are logged and skip the date; the
// next cycle retries it while it remains inside the lookahead window.
func (m *Materializer) processDate(ctx context.Context, logger *slog.Logger, template persistence.RecurrenceTemplate, date time.Time, startClock, endClock recurrence.ClockTime) (created bool) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("panic while processing candidate date", "date", date.Format(time.DateOnly), "panic", p)
			created = false
		}
	}()

	start, end := recurrence.Span(date, startClock, endClock)

	// Idempotency: a non-deleted instance for this (template, date) means the
	// slot was already materialized, possibly cancelled by a user since.
	_, err := m.findExisting(ctx, template.ID, date)
	switch {
	case err == nil:
		return false
	case errors.Is(err, persistence.ErrNotFound):
		// Date not materialized yet.
	default:
		logger.Warn("idempotency check failed, will retry next cycle",
			"date", date.Format(time.DateOnly), "error", err, "error_kind", logging.ErrorKind(err))
		return false
	}

	overlapping, err := m.findOverlapping(ctx, template.Participants, start, end)
	if err != nil {
		logger.Warn("conflict check failed, will retry next cycle",
			"date", date.Format(time.DateOnly), "error", err, "error_kind", logging.ErrorKind(err))
		return false
	}
	if len(overlapping) > 0 {
		logConflicts(logger, template, date, start, end, overlapping)
		return false
	}

	instance := m.buildInstance(template, start, end)
	if err := m.createInstance(ctx, instance); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			// Lost a race with a concurrent cycle; the slot exists, which is
			// exactly what this pass wanted.
			return false
		}
		logger.Warn("instance creation failed, will retry next cycle",
			"date", date.Format(time.DateOnly), "error", err, "error_kind", logging.ErrorKind(err))
		return false
	}

	m.appendAudit(ctx, logger, template, instance)

	logger.Info("materialized meeting instance",
		"instance_id", instance.ID,
		"date", date.Format(time.DateOnly),
		"start", start,
		"end", end,
	)
	return true
}

func (m *Materializer) buildInstance(template persistence.RecurrenceTemplate, start, end time.Time) persistence.MeetingInstance {
	templateID := template.ID
	now := m.now()
	return persistence.MeetingInstance{
		ID:               m.idGenerator(),
		Title:            template.Title,
		Description:      template.Description,
		MeetingType:      template.MeetingType,
		Location:         template.Location,
		MeetingLink:      template.MeetingLink,
		Notes:            template.Notes,
		Participants:     append([]string(nil), template.Participants...),
		CreatorID:        template.CreatorID,
		StartTime:        start,
		EndTime:          end,
		Status:           persistence.StatusScheduled,
		OriginTemplateID: &templateID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (m *Materializer) appendAudit(ctx context.Context, logger *slog.Logger, template persistence.RecurrenceTemplate, instance persistence.MeetingInstance) {
	if m.audit == nil {
		return
	}

	entry := persistence.AuditEntry{
		ID:         m.idGenerator(),
		InstanceID: instance.ID,
		Action:     persistence.AuditActionCreated,
		Detail:     fmt.Sprintf("auto-generated from recurring meeting template %s", template.ID),
		ActorID:    template.CreatorID,
		Timestamp:  m.now(),
	}

	storeCtx, cancel := m.storeContext(ctx)
	defer cancel()
	if err := m.audit.AppendAuditEntry(storeCtx, entry); err != nil {
		// The instance exists; losing the audit entry is an observability
		// gap, not a reason to fail the date.
		logger.Warn("failed to append audit entry", "instance_id", instance.ID, "error", err)
	}
}

func (m *Materializer) markMaterialized(ctx context.Context, logger *slog.Logger, templateID string) {
	storeCtx, cancel := m.storeContext(ctx)
	defer cancel()
	if err := m.templates.MarkMaterialized(storeCtx, templateID, m.now()); err != nil {
		logger.Warn("failed to update last-materialized marker", "error", err)
	}
}

func (m *Materializer) findExisting(ctx context.Context, templateID string, date time.Time) (persistence.MeetingInstance, error) {
	storeCtx, cancel := m.storeContext(ctx)
	defer cancel()
	return m.instances.FindByTemplateAndDate(storeCtx, templateID, date)
}

func (m *Materializer) findOverlapping(ctx context.Context, participants []string, start, end time.Time) ([]persistence.MeetingInstance, error) {
	storeCtx, cancel := m.storeContext(ctx)
	defer cancel()
	return m.instances.ListOverlapping(storeCtx, participants, start, end)
}

func (m *Materializer) createInstance(ctx context.Context, instance persistence.MeetingInstance) error {
	storeCtx, cancel := m.storeContext(ctx)
	defer cancel()
	return m.instances.CreateInstance(storeCtx, instance)
}

func (m *Materializer) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.storeTimeout)
}

func logConflicts(logger *slog.Logger, template persistence.RecurrenceTemplate, date, start, end time.Time, overlapping []persistence.MeetingInstance) {
	existing := make([]scheduler.Booking, 0, len(overlapping))
	for _, instance := range overlapping {
		existing = append(existing, scheduler.Booking{
			ID:           instance.ID,
			Participants: instance.Participants,
			Start:        instance.StartTime,
			End:          instance.EndTime,
		})
	}

	candidate := scheduler.Booking{
		Participants: template.Participants,
		Start:        start,
		End:          end,
	}

	for _, conflict := range scheduler.DetectConflicts(existing, candidate) {
		logger.Info("skipping date due to participant conflict",
			"date", date.Format(time.DateOnly),
			"conflicts_with", conflict.WithBookingID,
			"participant", conflict.Participant,
		)
	}
}
