package materializer

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/meeting-scheduler/internal/logging"
)

// CycleStats aggregates the outcome of one materialization cycle.
type CycleStats struct {
	Templates int
	Created   int
	Skipped   int
	Failed    int
}

// Driver runs one materialization cycle over every active template. It is a
// stateless function holder: any trigger mechanism can invoke RunCycle.
type Driver struct {
	templates     TemplateStore
	materializer  *Materializer
	lookaheadDays int
	now           func() time.Time
	logger        *slog.Logger
}

// NewDriver wires dependencies for cycle execution.
func NewDriver(templates TemplateStore, m *Materializer, lookaheadDays int, now func() time.Time, logger *slog.Logger) *Driver {
	if now == nil {
		now = time.Now
	}
	return &Driver{
		templates:     templates,
		materializer:  m,
		lookaheadDays: lookaheadDays,
		now:           now,
		logger:        logger,
	}
}

// RunCycle materializes every active template once. A zero reference means
// "now". Failures are isolated per template: a malformed template is counted
// and logged, and the remaining templates still run. Running a cycle twice in
// a row creates nothing the second time, because every date that the first
// pass materialized is suppressed by the idempotency check.
func (d *Driver) RunCycle(ctx context.Context, reference time.Time) CycleStats {
	logger := logging.ScopedLogger(ctx, d.logger, "materializer", "run_cycle")

	if reference.IsZero() {
		reference = d.now()
	}

	var stats CycleStats

	templates, err := d.templates.ListActiveTemplates(ctx)
	if err != nil {
		logger.Error("failed to list active templates", "error", err, "error_kind", logging.ErrorKind(err))
		return stats
	}
	stats.Templates = len(templates)

	for _, template := range templates {
		if ctx.Err() != nil {
			logger.Info("cycle stopped by cancellation", "template_id", template.ID)
			break
		}

		result, err := d.materializer.Materialize(ctx, template, reference, d.lookaheadDays)
		if err != nil {
			stats.Failed++
			logger.Error("template skipped for this cycle",
				"template_id", template.ID, "error", err, "error_kind", logging.ErrorKind(err))
			continue
		}

		stats.Created += result.Created
		stats.Skipped += result.Skipped
	}

	logger.Info("materialization cycle finished",
		"templates", stats.Templates,
		"created", stats.Created,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
	)
	return stats
}
