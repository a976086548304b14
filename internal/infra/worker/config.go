// Package worker runs scheduled fusion sweeps over a configured asset list
// and exposes health endpoints for the worker process.
package worker

import (
	"fmt"
	"log/slog"
	"time"

	"assetpulse/pkg/config"
)

// Config holds the configuration for the worker component. It controls the
// cron schedule, sweep concurrency, per-run timeouts, and the ports of the
// health and metrics servers.
//
// All fields have defaults and validation rules; loading is fail-open so the
// worker can operate even with partially invalid configuration.
type Config struct {
	// CronSchedule is the cron expression for sweep scheduling.
	// Default: "*/30 * * * *" (every 30 minutes)
	CronSchedule string

	// Timezone is the IANA timezone name for cron scheduling.
	// Default: "UTC"
	Timezone string

	// FanOut bounds concurrent sub-analyzer calls within one fusion run.
	// Range: 1-50. Default: 4
	FanOut int

	// MaxConcurrentAssets bounds how many assets are fused at once.
	// Range: 1-50. Default: 8
	MaxConcurrentAssets int

	// FuseTimeout is the deadline for one asset's fusion run.
	// Default: 2 minutes
	FuseTimeout time.Duration

	// RunsPerSecond paces fusion runs across assets.
	// Default: 2.0
	RunsPerSecond float64

	// Assets is the list of asset ids swept on each schedule tick.
	Assets []string

	// AnalyzersFile is the path to the YAML analyzer declarations.
	// Default: "analyzers.yaml"
	AnalyzersFile string

	// HealthPort is the port for the health check server. Default: 9091
	HealthPort int

	// MetricsPort is the port for the Prometheus metrics server. Default: 9090
	MetricsPort int
}

// DefaultConfig returns a Config with production-ready defaults.
func DefaultConfig() Config {
	return Config{
		CronSchedule:        "*/30 * * * *",
		Timezone:            "UTC",
		FanOut:              4,
		MaxConcurrentAssets: 8,
		FuseTimeout:         2 * time.Minute,
		RunsPerSecond:       2.0,
		AnalyzersFile:       "analyzers.yaml",
		HealthPort:          9091,
		MetricsPort:         9090,
	}
}

// LoadConfigFromEnv builds the worker configuration from environment
// variables, falling back to defaults field by field. A field that fails
// validation is replaced with its default and logged, so loading never
// hard-fails on bad operator input (fail-open).
func LoadConfigFromEnv(logger *slog.Logger) Config {
	def := DefaultConfig()
	cfg := Config{
		CronSchedule:        config.GetEnvString("SWEEP_CRON_SCHEDULE", def.CronSchedule),
		Timezone:            config.GetEnvString("SWEEP_TIMEZONE", def.Timezone),
		FanOut:              config.GetEnvInt("FUSION_FAN_OUT", def.FanOut),
		MaxConcurrentAssets: config.GetEnvInt("SWEEP_MAX_CONCURRENT_ASSETS", def.MaxConcurrentAssets),
		FuseTimeout:         config.GetEnvDuration("FUSION_TIMEOUT", def.FuseTimeout),
		RunsPerSecond:       config.GetEnvFloat("SWEEP_RUNS_PER_SECOND", def.RunsPerSecond),
		Assets:              config.GetEnvStringSlice("SWEEP_ASSETS", nil),
		AnalyzersFile:       config.GetEnvString("ANALYZERS_FILE", def.AnalyzersFile),
		HealthPort:          config.GetEnvInt("HEALTH_PORT", def.HealthPort),
		MetricsPort:         config.GetEnvInt("METRICS_PORT", def.MetricsPort),
	}

	for field, err := range cfg.fieldErrors() {
		logger.Warn("invalid worker config value, using default",
			slog.String("field", field),
			slog.String("error", err.Error()))
		cfg.resetField(field, def)
	}
	return cfg
}

// Validate checks all configuration values, aggregating every violation.
func (c *Config) Validate() error {
	errs := c.fieldErrors()
	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

func (c *Config) fieldErrors() map[string]error {
	errs := make(map[string]error)
	if err := config.ValidateCronSchedule(c.CronSchedule); err != nil {
		errs["CronSchedule"] = err
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errs["Timezone"] = err
	}
	if err := config.ValidateIntRange(c.FanOut, 1, 50); err != nil {
		errs["FanOut"] = err
	}
	if err := config.ValidateIntRange(c.MaxConcurrentAssets, 1, 50); err != nil {
		errs["MaxConcurrentAssets"] = err
	}
	if err := config.ValidatePositiveDuration(c.FuseTimeout); err != nil {
		errs["FuseTimeout"] = err
	}
	if err := config.ValidateFloatRange(c.RunsPerSecond, 0.01, 1000); err != nil {
		errs["RunsPerSecond"] = err
	}
	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errs["HealthPort"] = err
	}
	if err := config.ValidateIntRange(c.MetricsPort, 1024, 65535); err != nil {
		errs["MetricsPort"] = err
	}
	return errs
}

func (c *Config) resetField(field string, def Config) {
	switch field {
	case "CronSchedule":
		c.CronSchedule = def.CronSchedule
	case "Timezone":
		c.Timezone = def.Timezone
	case "FanOut":
		c.FanOut = def.FanOut
	case "MaxConcurrentAssets":
		c.MaxConcurrentAssets = def.MaxConcurrentAssets
	case "FuseTimeout":
		c.FuseTimeout = def.FuseTimeout
	case "RunsPerSecond":
		c.RunsPerSecond = def.RunsPerSecond
	case "HealthPort":
		c.HealthPort = def.HealthPort
	case "MetricsPort":
		c.MetricsPort = def.MetricsPort
	}
}
