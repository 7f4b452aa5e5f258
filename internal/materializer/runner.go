package materializer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/example/meeting-scheduler/internal/logging"
)

// Runner triggers materialization cycles: once at startup to self-heal after
// downtime, then on a cron cadence. At most one cycle runs at a time; a
// trigger that fires while a cycle is still running is skipped, since the
// next tick will pick up whatever that cycle missed.
type Runner struct {
	driver       *Driver
	cronSpec     string
	runAtStartup bool
	logger       *slog.Logger

	mu sync.Mutex
}

// NewRunner wires a runner around the driver. cronSpec uses the standard
// five-field cron format.
func NewRunner(driver *Driver, cronSpec string, runAtStartup bool, logger *slog.Logger) *Runner {
	return &Runner{
		driver:       driver,
		cronSpec:     cronSpec,
		runAtStartup: runAtStartup,
		logger:       logger,
	}
}

// Run blocks until the context is cancelled, executing cycles per the
// configured cadence. Cancellation is cooperative: an in-flight cycle stops
// before its next template, and the cron scheduler drains before Run returns.
func (r *Runner) Run(ctx context.Context) error {
	logger := logging.ScopedLogger(ctx, r.logger, "materializer", "runner", "cron_spec", r.cronSpec)

	if r.runAtStartup {
		logger.Info("running startup materialization cycle")
		r.triggerCycle(ctx, logger)
	}

	schedule := cron.New()
	if _, err := schedule.AddFunc(r.cronSpec, func() {
		r.triggerCycle(ctx, logger)
	}); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", r.cronSpec, err)
	}

	schedule.Start()
	<-ctx.Done()

	// Stop accepting new triggers and wait for a running job to finish.
	<-schedule.Stop().Done()
	logger.Info("runner stopped")
	return nil
}

// triggerCycle runs one cycle unless another is already in flight.
func (r *Runner) triggerCycle(ctx context.Context, logger *slog.Logger) {
	if !r.mu.TryLock() {
		logger.Warn("previous cycle still running, skipping trigger")
		return
	}
	defer r.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	r.driver.RunCycle(ctx, time.Time{})
}
