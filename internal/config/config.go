package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
)

// Config captures environment driven configuration for the materializer
// service. The lookahead window and trigger cadence are deployment choices,
// not code: a larger window trades storage for resilience to downtime.
type Config struct {
	SQLiteDSN     string        `env:"MATERIALIZER_SQLITE_DSN" envDefault:"file:meetings.db"`
	LookaheadDays int           `env:"MATERIALIZER_LOOKAHEAD_DAYS" envDefault:"14"`
	CronSpec      string        `env:"MATERIALIZER_CRON_SPEC" envDefault:"5 0 * * *"`
	StoreTimeout  time.Duration `env:"MATERIALIZER_STORE_TIMEOUT" envDefault:"5s"`
	RunAtStartup  bool          `env:"MATERIALIZER_RUN_AT_STARTUP" envDefault:"true"`
}

// Load parses configuration from the current process environment, applying
// defaults for unset values and validating the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid field in one error.
func (c Config) Validate() error {
	invalid := make([]string, 0, 2)

	if strings.TrimSpace(c.SQLiteDSN) == "" {
		invalid = append(invalid, "MATERIALIZER_SQLITE_DSN")
	}
	if c.LookaheadDays <= 0 {
		invalid = append(invalid, "MATERIALIZER_LOOKAHEAD_DAYS")
	}
	if c.StoreTimeout <= 0 {
		invalid = append(invalid, "MATERIALIZER_STORE_TIMEOUT")
	}
	if _, err := cron.ParseStandard(c.CronSpec); err != nil {
		invalid = append(invalid, "MATERIALIZER_CRON_SPEC")
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid environment values: %s", strings.Join(invalid, ", "))
	}
	return nil
}
