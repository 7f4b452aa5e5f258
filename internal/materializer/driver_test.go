package materializer

import (
	"context"
	"testing"
	"time"

	"github.com/example/meeting-scheduler/internal/persistence"
	"github.com/example/meeting-scheduler/internal/persistence/memory"
	"github.com/example/meeting-scheduler/internal/testfixtures"
)

func newDriverHarness(t *testing.T, lookaheadDays int) (*Driver, *harness) {
	t.Helper()

	h := newHarness(t)
	driver := NewDriver(h.store, h.mat, lookaheadDays, h.clock.NowFunc(), nil)
	return driver, h
}

func TestRunCycleMaterializesAllActiveTemplates(t *testing.T) {
	t.Parallel()

	driver, h := newDriverHarness(t, 2)
	h.createTemplate(t, testfixtures.NewTemplate(testfixtures.WithParticipants("alice")))
	h.createTemplate(t, testfixtures.NewTemplate(testfixtures.WithParticipants("bob")))
	h.createTemplate(t, testfixtures.NewTemplate(testfixtures.WithInactive()))

	stats := driver.RunCycle(context.Background(), time.Time{})
	if stats.Templates != 2 {
		t.Fatalf("expected 2 active templates, got %d", stats.Templates)
	}
	if stats.Created != 6 || stats.Failed != 0 {
		t.Fatalf("expected 6 created across both templates, got %+v", stats)
	}
}

func TestRunCycleSecondPassCreatesNothing(t *testing.T) {
	t.Parallel()

	driver, h := newDriverHarness(t, 6)
	h.createTemplate(t, testfixtures.NewTemplate())

	first := driver.RunCycle(context.Background(), time.Time{})
	if first.Created != 7 {
		t.Fatalf("expected 7 created on first cycle, got %+v", first)
	}

	second := driver.RunCycle(context.Background(), time.Time{})
	if second.Created != 0 || second.Skipped != 7 {
		t.Fatalf("expected second cycle to create nothing, got %+v", second)
	}
}

func TestRunCycleIsolatesTemplateFailures(t *testing.T) {
	t.Parallel()

	driver, h := newDriverHarness(t, 0)

	malformed := testfixtures.NewTemplate()
	malformed.Pattern = persistence.PatternWeekly
	malformed.DayOfWeek = nil
	h.createTemplate(t, malformed)

	healthy := testfixtures.NewTemplate(testfixtures.WithParticipants("bob"))
	h.createTemplate(t, healthy)

	stats := driver.RunCycle(context.Background(), time.Time{})
	if stats.Failed != 1 {
		t.Fatalf("expected 1 failed template, got %+v", stats)
	}
	if stats.Created != 1 {
		t.Fatalf("expected the healthy template to still materialize, got %+v", stats)
	}

	instances := h.listInstances(t)
	if len(instances) != 1 || *instances[0].OriginTemplateID != healthy.ID {
		t.Fatalf("expected one instance from the healthy template, got %+v", instances)
	}
}

func TestRunCycleAdvancesWindowWithReference(t *testing.T) {
	t.Parallel()

	driver, h := newDriverHarness(t, 1)
	h.createTemplate(t, testfixtures.NewTemplate())

	first := driver.RunCycle(context.Background(), testfixtures.ReferenceTime())
	if first.Created != 2 {
		t.Fatalf("expected 2 created, got %+v", first)
	}

	// The next day's cycle covers one already-materialized date plus one new.
	next := driver.RunCycle(context.Background(), testfixtures.ReferenceTime().AddDate(0, 0, 1))
	if next.Created != 1 || next.Skipped != 1 {
		t.Fatalf("expected the window to slide by one day, got %+v", next)
	}
}

func TestRunCycleStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	driver, h := newDriverHarness(t, 3)
	h.createTemplate(t, testfixtures.NewTemplate())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats := driver.RunCycle(ctx, time.Time{})
	if stats.Created != 0 {
		t.Fatalf("expected no instances after cancellation, got %+v", stats)
	}
	if got := len(h.listInstances(t)); got != 0 {
		t.Fatalf("expected empty store, got %d instances", got)
	}
}

func TestRunCycleSurvivesListFailure(t *testing.T) {
	t.Parallel()

	store := memory.NewStorage()
	clock := testfixtures.NewClock(time.Time{})
	ids := testfixtures.NewIDGenerator("generated")
	mat := New(store, store, store, ids.NextFunc(), clock.NowFunc())
	driver := NewDriver(failingTemplateStore{}, mat, 3, clock.NowFunc(), nil)

	stats := driver.RunCycle(context.Background(), time.Time{})
	if stats != (CycleStats{}) {
		t.Fatalf("expected empty stats when listing fails, got %+v", stats)
	}
}

type failingTemplateStore struct{}

func (failingTemplateStore) ListActiveTemplates(ctx context.Context) ([]persistence.RecurrenceTemplate, error) {
	return nil, context.DeadlineExceeded
}

func (failingTemplateStore) MarkMaterialized(ctx context.Context, id string, at time.Time) error {
	return nil
}
