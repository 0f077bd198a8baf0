package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// Config holds the service settings. Every field is bound to a flag and,
// through go-core cfg.FillFromEnv, to a CIVITAS_-prefixed env var.
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	ArchiveDelayDays      int
	SweepIntervalSeconds  int
	DatabaseURL           string
	RedisURL              string
	KeyPrefix             string
	AdminToken            string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.IntVar(&c.ArchiveDelayDays, "archive-delay-days", 30, "days a completed report stays active before it is archived")
	fs.IntVar(&c.SweepIntervalSeconds, "sweep-interval-seconds", 3600, "seconds between background archival sweeps (0 = only on refresh)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.RedisURL, "redis-url", "", "Redis connection URL, alternative to database-url")
	fs.StringVar(&c.KeyPrefix, "key-prefix", "@FalaPovoApp:", "prefix for collection keys in the backing store")
	fs.StringVar(&c.AdminToken, "admin-token", "", "bearer token required on administrative routes")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// Archive delay may be zero or negative; that archives on the next sweep.
	if c.SweepIntervalSeconds < 0 {
		errs = append(errs, fmt.Errorf("invalid SWEEP_INTERVAL_SECONDS %d (must be >= 0)", c.SweepIntervalSeconds))
	}

	// One backend at most
	if c.DatabaseURL != "" && c.RedisURL != "" {
		errs = append(errs, errors.New("DATABASE_URL and REDIS_URL are mutually exclusive"))
	}

	if c.KeyPrefix == "" {
		errs = append(errs, errors.New("KEY_PREFIX is required"))
	}

	// Admin routes are closed without a token
	if c.AdminToken == "" {
		errs = append(errs, errors.New("ADMIN_TOKEN is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
