package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/meeting-scheduler/internal/config"
	"github.com/example/meeting-scheduler/internal/materializer"
	"github.com/example/meeting-scheduler/internal/persistence/sqlite"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	pool, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := pool.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	idGenerator := uuid.NewString
	now := time.Now

	templates := sqlite.NewTemplateRepository(pool)
	instances := sqlite.NewInstanceRepository(pool)
	audit := sqlite.NewAuditRepository(pool)

	service := materializer.NewWithLogger(templates, instances, audit, idGenerator, now, logger)
	service.SetStoreTimeout(cfg.StoreTimeout)

	driver := materializer.NewDriver(templates, service, cfg.LookaheadDays, now, logger)
	runner := materializer.NewRunner(driver, cfg.CronSpec, cfg.RunAtStartup, logger)

	logger.Info("materializer starting",
		"lookahead_days", cfg.LookaheadDays,
		"cron_spec", cfg.CronSpec,
		"run_at_startup", cfg.RunAtStartup,
	)

	if err := runner.Run(ctx); err != nil {
		logger.Error("runner encountered error", "error", err)
		os.Exit(1)
	}
}
