// Package memory provides a mutex-guarded in-memory implementation of the
// persistence repositories. It backs the materializer and driver tests and
// mirrors the semantics of the SQLite store, including the idempotency
// guarantee on generated instances.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/meeting-scheduler/internal/persistence"
	"github.com/example/meeting-scheduler/internal/recurrence"
	"github.com/example/meeting-scheduler/internal/scheduler"
)

// Storage holds templates, instances, and audit entries in process memory.
type Storage struct {
	mu        sync.RWMutex
	templates map[string]persistence.RecurrenceTemplate
	instances map[string]persistence.MeetingInstance
	audit     []persistence.AuditEntry
}

// NewStorage returns an empty Storage.
func NewStorage() *Storage {
	return &Storage{
		templates: make(map[string]persistence.RecurrenceTemplate),
		instances: make(map[string]persistence.MeetingInstance),
	}
}

// --- TemplateRepository implementation ---

// CreateTemplate stores a new recurrence template.
func (s *Storage) CreateTemplate(ctx context.Context, template persistence.RecurrenceTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if template.ID == "" {
		return persistence.ErrConstraintViolation
	}
	if _, ok := s.templates[template.ID]; ok {
		return persistence.ErrDuplicate
	}

	s.templates[template.ID] = cloneTemplate(template)
	return nil
}

// GetTemplate retrieves a template by ID, including soft-deleted ones.
func (s *Storage) GetTemplate(ctx context.Context, id string) (persistence.RecurrenceTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	template, ok := s.templates[id]
	if !ok {
		return persistence.RecurrenceTemplate{}, persistence.ErrNotFound
	}
	return cloneTemplate(template), nil
}

// UpdateTemplate replaces an existing template, preserving CreatedAt.
func (s *Storage) UpdateTemplate(ctx context.Context, template persistence.RecurrenceTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.templates[template.ID]
	if !ok {
		return persistence.ErrNotFound
	}

	template.CreatedAt = existing.CreatedAt
	s.templates[template.ID] = cloneTemplate(template)
	return nil
}

// DeleteTemplate soft-deletes a template.
func (s *Storage) DeleteTemplate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	template, ok := s.templates[id]
	if !ok {
		return persistence.ErrNotFound
	}

	template.IsDeleted = true
	template.IsActive = false
	s.templates[id] = template
	return nil
}

// ListActiveTemplates returns active, non-deleted templates ordered by
// CreatedAt then ID.
func (s *Storage) ListActiveTemplates(ctx context.Context) ([]persistence.RecurrenceTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	templates := make([]persistence.RecurrenceTemplate, 0)
	for _, template := range s.templates {
		if !template.IsActive || template.IsDeleted {
			continue
		}
		templates = append(templates, cloneTemplate(template))
	}

	sort.Slice(templates, func(i, j int) bool {
		if templates[i].CreatedAt.Equal(templates[j].CreatedAt) {
			return templates[i].ID < templates[j].ID
		}
		return templates[i].CreatedAt.Before(templates[j].CreatedAt)
	})

	return templates, nil
}

// MarkMaterialized records the time of the latest processing pass.
func (s *Storage) MarkMaterialized(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	template, ok := s.templates[id]
	if !ok {
		return persistence.ErrNotFound
	}

	stamp := at
	template.LastMaterializedAt = &stamp
	template.UpdatedAt = at
	s.templates[id] = template
	return nil
}

// --- InstanceRepository implementation ---

// CreateInstance stores a meeting instance, enforcing the idempotency key
// (origin template, calendar date) across non-deleted generated instances.
func (s *Storage) CreateInstance(ctx context.Context, instance persistence.MeetingInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if instance.ID == "" || !instance.EndTime.After(instance.StartTime) {
		return persistence.ErrConstraintViolation
	}
	if _, ok := s.instances[instance.ID]; ok {
		return persistence.ErrDuplicate
	}

	if instance.OriginTemplateID != nil {
		for _, existing := range s.instances {
			if existing.IsDeleted || existing.OriginTemplateID == nil {
				continue
			}
			if *existing.OriginTemplateID == *instance.OriginTemplateID &&
				recurrence.SameDate(existing.StartTime, instance.StartTime) {
				return persistence.ErrDuplicate
			}
		}
	}

	s.instances[instance.ID] = cloneInstance(instance)
	return nil
}

// GetInstance retrieves an instance by ID.
func (s *Storage) GetInstance(ctx context.Context, id string) (persistence.MeetingInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	instance, ok := s.instances[id]
	if !ok {
		return persistence.MeetingInstance{}, persistence.ErrNotFound
	}
	return cloneInstance(instance), nil
}

// ListInstances returns instances matching the filter ordered by StartTime
// then ID.
func (s *Storage) ListInstances(ctx context.Context, filter persistence.InstanceFilter) ([]persistence.MeetingInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	instances := make([]persistence.MeetingInstance, 0)
	for _, instance := range s.instances {
		if !matchesInstanceFilter(instance, filter) {
			continue
		}
		instances = append(instances, cloneInstance(instance))
	}

	sort.Slice(instances, func(i, j int) bool {
		if instances[i].StartTime.Equal(instances[j].StartTime) {
			return instances[i].ID < instances[j].ID
		}
		return instances[i].StartTime.Before(instances[j].StartTime)
	})

	return instances, nil
}

// FindByTemplateAndDate returns the non-deleted instance generated by the
// template for the given calendar date, regardless of status.
func (s *Storage) FindByTemplateAndDate(ctx context.Context, templateID string, date time.Time) (persistence.MeetingInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, instance := range s.instances {
		if instance.IsDeleted || instance.OriginTemplateID == nil {
			continue
		}
		if *instance.OriginTemplateID == templateID && recurrence.SameDate(instance.StartTime, date) {
			return cloneInstance(instance), nil
		}
	}

	return persistence.MeetingInstance{}, persistence.ErrNotFound
}

// ListOverlapping returns non-deleted, non-cancelled instances that share a
// participant and overlap the half-open range [start, end).
func (s *Storage) ListOverlapping(ctx context.Context, participants []string, start, end time.Time) ([]persistence.MeetingInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	instances := make([]persistence.MeetingInstance, 0)
	for _, instance := range s.instances {
		if instance.IsDeleted || instance.Status == persistence.StatusCancelled {
			continue
		}
		if !scheduler.Overlaps(instance.StartTime, instance.EndTime, start, end) {
			continue
		}
		if !scheduler.Intersects(instance.Participants, participants) {
			continue
		}
		instances = append(instances, cloneInstance(instance))
	}

	sort.Slice(instances, func(i, j int) bool {
		if instances[i].StartTime.Equal(instances[j].StartTime) {
			return instances[i].ID < instances[j].ID
		}
		return instances[i].StartTime.Before(instances[j].StartTime)
	})

	return instances, nil
}

// UpdateStatus changes an instance's lifecycle status.
func (s *Storage) UpdateStatus(ctx context.Context, id string, status persistence.InstanceStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	instance, ok := s.instances[id]
	if !ok {
		return persistence.ErrNotFound
	}

	instance.Status = status
	instance.UpdatedAt = at
	s.instances[id] = instance
	return nil
}

// SoftDelete marks an instance deleted without removing the row.
func (s *Storage) SoftDelete(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	instance, ok := s.instances[id]
	if !ok {
		return persistence.ErrNotFound
	}

	instance.IsDeleted = true
	instance.UpdatedAt = at
	s.instances[id] = instance
	return nil
}

// --- AuditRepository implementation ---

// AppendAuditEntry appends an entry to the audit log.
func (s *Storage) AppendAuditEntry(ctx context.Context, entry persistence.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audit = append(s.audit, entry)
	return nil
}

// ListAuditEntriesForInstance returns audit entries for an instance in
// append order.
func (s *Storage) ListAuditEntriesForInstance(ctx context.Context, instanceID string) ([]persistence.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]persistence.AuditEntry, 0)
	for _, entry := range s.audit {
		if entry.InstanceID == instanceID {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// --- Helpers ---

func cloneTemplate(template persistence.RecurrenceTemplate) persistence.RecurrenceTemplate {
	clone := template
	clone.Participants = append([]string(nil), template.Participants...)
	clone.DayOfWeek = cloneInt(template.DayOfWeek)
	clone.DayOfMonth = cloneInt(template.DayOfMonth)
	clone.WindowEndDate = cloneTime(template.WindowEndDate)
	clone.LastMaterializedAt = cloneTime(template.LastMaterializedAt)
	return clone
}

func cloneInstance(instance persistence.MeetingInstance) persistence.MeetingInstance {
	clone := instance
	clone.Participants = append([]string(nil), instance.Participants...)
	clone.OriginTemplateID = cloneString(instance.OriginTemplateID)
	return clone
}

func cloneInt(value *int) *int {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func matchesInstanceFilter(instance persistence.MeetingInstance, filter persistence.InstanceFilter) bool {
	if instance.IsDeleted && !filter.IncludeDeleted {
		return false
	}
	if filter.StartsAfter != nil && !instance.EndTime.After(*filter.StartsAfter) {
		return false
	}
	if filter.EndsBefore != nil && !instance.StartTime.Before(*filter.EndsBefore) {
		return false
	}
	if len(filter.ParticipantIDs) > 0 && !scheduler.Intersects(instance.Participants, filter.ParticipantIDs) {
		return false
	}
	return true
}
