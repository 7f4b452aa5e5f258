package materializer

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/example/meeting-scheduler/internal/testfixtures"
)

// yearlyCron never fires during a short test run.
const yearlyCron = "0 0 1 1 *"

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestRunnerRejectsInvalidCronSpec(t *testing.T) {
	t.Parallel()

	driver, _ := newDriverHarness(t, 0)
	runner := NewRunner(driver, "not a cron spec", false, nil)

	if err := runner.Run(context.Background()); err == nil {
		t.Fatal("expected an error for an invalid cron spec")
	}
}

func TestRunnerRunsStartupCycle(t *testing.T) {
	t.Parallel()

	driver, h := newDriverHarness(t, 0)
	h.createTemplate(t, testfixtures.NewTemplate())

	runner := NewRunner(driver, yearlyCron, true, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := runner.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(h.listInstances(t)); got != 1 {
		t.Fatalf("expected the startup cycle to materialize 1 instance, got %d", got)
	}
}

func TestRunnerSkipsStartupCycleWhenDisabled(t *testing.T) {
	t.Parallel()

	driver, h := newDriverHarness(t, 0)
	h.createTemplate(t, testfixtures.NewTemplate())

	runner := NewRunner(driver, yearlyCron, false, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := runner.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(h.listInstances(t)); got != 0 {
		t.Fatalf("expected no instances without a startup cycle, got %d", got)
	}
}

func TestRunnerSkipsOverlappingTrigger(t *testing.T) {
	t.Parallel()

	driver, h := newDriverHarness(t, 0)
	h.createTemplate(t, testfixtures.NewTemplate())

	runner := NewRunner(driver, yearlyCron, false, nil)
	logger := testLogger()

	// Hold the cycle lock to simulate an in-flight cycle.
	runner.mu.Lock()
	runner.triggerCycle(context.Background(), logger)
	runner.mu.Unlock()

	if got := len(h.listInstances(t)); got != 0 {
		t.Fatalf("expected the overlapping trigger to be skipped, got %d instances", got)
	}

	runner.triggerCycle(context.Background(), logger)
	if got := len(h.listInstances(t)); got != 1 {
		t.Fatalf("expected the follow-up trigger to materialize 1 instance, got %d", got)
	}
}

func TestTriggerCycleHonoursCancellation(t *testing.T) {
	t.Parallel()

	driver, h := newDriverHarness(t, 0)
	h.createTemplate(t, testfixtures.NewTemplate())

	runner := NewRunner(driver, yearlyCron, false, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner.triggerCycle(ctx, testLogger())
	if got := len(h.listInstances(t)); got != 0 {
		t.Fatalf("expected no instances after cancellation, got %d", got)
	}
}
