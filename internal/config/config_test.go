package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"TickSim/internal/config"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := config.Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
log_level = "debug"

[ingest]
source = "file"
path = "/data/orders.txt"

[session]
commission_rate = 0.001
strong_priority = true
default_delay = "250ms"

[strategy]
active = ["spread"]
volume = 5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("log_level: got %q, want debug", cfg.LogLevel)
	}
	if cfg.Ingest.Path != "/data/orders.txt" {
		t.Errorf("path: got %q", cfg.Ingest.Path)
	}
	if cfg.Session.CommissionRate != 0.001 {
		t.Errorf("commission_rate: got %v", cfg.Session.CommissionRate)
	}
	if !cfg.Session.StrongPriority {
		t.Error("strong_priority: want true")
	}
	if cfg.Session.DefaultDelay.Duration != 250*time.Millisecond {
		t.Errorf("default_delay: got %v", cfg.Session.DefaultDelay.Duration)
	}
	if len(cfg.Strategy.Active) != 1 || cfg.Strategy.Active[0] != "spread" {
		t.Errorf("active: got %v", cfg.Strategy.Active)
	}
	if cfg.Strategy.Volume != 5 {
		t.Errorf("volume: got %d", cfg.Strategy.Volume)
	}

	// Unset sections keep their defaults.
	if cfg.Session.SessionLength.Duration != 8*time.Hour+45*time.Minute {
		t.Errorf("session_length default: got %v", cfg.Session.SessionLength.Duration)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("loaded config must validate: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TICKSIM_INGEST_SOURCE", "nats")
	t.Setenv("TICKSIM_INGEST_INSTRUMENT", "SI-6.24")
	t.Setenv("TICKSIM_SESSION_MAX_EVENTS", "5000")
	t.Setenv("TICKSIM_STRATEGY_ACTIVE", "hold, spread")
	t.Setenv("TICKSIM_POSTGRES_ENABLED", "true")
	t.Setenv("TICKSIM_SESSION_DEFAULT_DELAY", "50ms")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Ingest.Source != "nats" {
		t.Errorf("source: got %q, want nats", cfg.Ingest.Source)
	}
	if cfg.Session.MaxEvents != 5000 {
		t.Errorf("max_events: got %d, want 5000", cfg.Session.MaxEvents)
	}
	if len(cfg.Strategy.Active) != 2 || cfg.Strategy.Active[1] != "spread" {
		t.Errorf("active: got %v", cfg.Strategy.Active)
	}
	if !cfg.Postgres.Enabled {
		t.Error("postgres.enabled: want true")
	}
	if cfg.Session.DefaultDelay.Duration != 50*time.Millisecond {
		t.Errorf("default_delay: got %v", cfg.Session.DefaultDelay.Duration)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := config.Defaults()
	cfg.Ingest.Source = "carrier-pigeon"
	cfg.Session.CommissionRate = -1
	cfg.Strategy.Active = nil
	cfg.LogLevel = "loud"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"carrier-pigeon", "commission_rate", "active", "log_level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %q, got: %v", want, err)
		}
	}
}
