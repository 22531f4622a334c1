package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TICKSIM_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TICKSIM_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators point a deployed simulator at another recording or database
// without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Ingest.Source, "TICKSIM_INGEST_SOURCE")
	setStr(&cfg.Ingest.Path, "TICKSIM_INGEST_PATH")
	setStr(&cfg.Ingest.Instrument, "TICKSIM_INGEST_INSTRUMENT")

	setFloat64(&cfg.Session.CommissionRate, "TICKSIM_SESSION_COMMISSION_RATE")
	setInt(&cfg.Session.MaxEvents, "TICKSIM_SESSION_MAX_EVENTS")
	setBool(&cfg.Session.StrongPriority, "TICKSIM_SESSION_STRONG_PRIORITY")
	setDuration(&cfg.Session.DefaultDelay, "TICKSIM_SESSION_DEFAULT_DELAY")
	setDuration(&cfg.Session.SessionLength, "TICKSIM_SESSION_LENGTH")
	setInt(&cfg.Session.VerifyRuns, "TICKSIM_SESSION_VERIFY_RUNS")

	setStringSlice(&cfg.Strategy.Active, "TICKSIM_STRATEGY_ACTIVE")
	setInt64(&cfg.Strategy.Volume, "TICKSIM_STRATEGY_VOLUME")
	setDuration(&cfg.Strategy.Delay, "TICKSIM_STRATEGY_DELAY")

	setBool(&cfg.Postgres.Enabled, "TICKSIM_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "TICKSIM_POSTGRES_DSN")
	setInt(&cfg.Postgres.BatchSize, "TICKSIM_POSTGRES_BATCH_SIZE")
	setDuration(&cfg.Postgres.FlushTimeout, "TICKSIM_POSTGRES_FLUSH_TIMEOUT")
	setBool(&cfg.Postgres.RunMigrations, "TICKSIM_POSTGRES_RUN_MIGRATIONS")
	setStr(&cfg.Postgres.MigrationsDir, "TICKSIM_POSTGRES_MIGRATIONS_DIR")

	setStr(&cfg.NATS.URL, "TICKSIM_NATS_URL")
	setBool(&cfg.NATS.PublishResults, "TICKSIM_NATS_PUBLISH_RESULTS")

	setBool(&cfg.Metrics.Enabled, "TICKSIM_METRICS_ENABLED")
	setStr(&cfg.Metrics.Addr, "TICKSIM_METRICS_ADDR")

	setStr(&cfg.LogLevel, "TICKSIM_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
