package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.SQLiteDSN != "file:meetings.db" {
		t.Fatalf("unexpected DSN: %q", cfg.SQLiteDSN)
	}
	if cfg.LookaheadDays != 14 {
		t.Fatalf("unexpected lookahead: %d", cfg.LookaheadDays)
	}
	if cfg.CronSpec != "5 0 * * *" {
		t.Fatalf("unexpected cron spec: %q", cfg.CronSpec)
	}
	if cfg.StoreTimeout != 5*time.Second {
		t.Fatalf("unexpected store timeout: %v", cfg.StoreTimeout)
	}
	if !cfg.RunAtStartup {
		t.Fatal("expected run-at-startup to default to true")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MATERIALIZER_SQLITE_DSN", "file:/var/lib/meetings.db")
	t.Setenv("MATERIALIZER_LOOKAHEAD_DAYS", "30")
	t.Setenv("MATERIALIZER_CRON_SPEC", "*/15 * * * *")
	t.Setenv("MATERIALIZER_STORE_TIMEOUT", "2s")
	t.Setenv("MATERIALIZER_RUN_AT_STARTUP", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.SQLiteDSN != "file:/var/lib/meetings.db" {
		t.Fatalf("unexpected DSN: %q", cfg.SQLiteDSN)
	}
	if cfg.LookaheadDays != 30 {
		t.Fatalf("unexpected lookahead: %d", cfg.LookaheadDays)
	}
	if cfg.CronSpec != "*/15 * * * *" {
		t.Fatalf("unexpected cron spec: %q", cfg.CronSpec)
	}
	if cfg.StoreTimeout != 2*time.Second {
		t.Fatalf("unexpected store timeout: %v", cfg.StoreTimeout)
	}
	if cfg.RunAtStartup {
		t.Fatal("expected run-at-startup to be disabled")
	}
}

func TestValidateReportsEveryInvalidField(t *testing.T) {
	t.Parallel()

	cfg := Config{
		SQLiteDSN:     "  ",
		LookaheadDays: 0,
		CronSpec:      "not a cron spec",
		StoreTimeout:  -time.Second,
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected a validation error")
	}

	for _, name := range []string{
		"MATERIALIZER_SQLITE_DSN",
		"MATERIALIZER_LOOKAHEAD_DAYS",
		"MATERIALIZER_CRON_SPEC",
		"MATERIALIZER_STORE_TIMEOUT",
	} {
		if !strings.Contains(err.Error(), name) {
			t.Fatalf("expected %s in error, got %v", name, err)
		}
	}
}

func TestLoadRejectsInvalidEnvironment(t *testing.T) {
	t.Setenv("MATERIALIZER_LOOKAHEAD_DAYS", "-3")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for a negative lookahead")
	}
}
