package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	t.Setenv("TEST_REDIS_PASSWORD", "secret")

	content := `
database:
  path: ` + filepath.Join(dir, "data", "test.db") + `
redis:
  address: "localhost:6379"
  password: "${TEST_REDIS_PASSWORD}"
booking:
  hold_minutes: 15
  sweep_interval_seconds: 10
calendar:
  cache_ttl_seconds: 60
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Redis.Password != "secret" {
		t.Errorf("env placeholder not expanded, got %q", cfg.Redis.Password)
	}
	if got := cfg.HoldDuration(); got != 15*time.Minute {
		t.Errorf("HoldDuration() = %v, want 15m", got)
	}
	if got := cfg.SweepInterval(); got != 10*time.Second {
		t.Errorf("SweepInterval() = %v, want 10s", got)
	}
	if got := cfg.CalendarCacheTTL(); got != time.Minute {
		t.Errorf("CalendarCacheTTL() = %v, want 1m", got)
	}

	// Database directory is created on load.
	if _, err := os.Stat(filepath.Dir(cfg.Database.Path)); err != nil {
		t.Errorf("database dir not created: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("database:\n  path: "+filepath.Join(dir, "x.db")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if got := cfg.HoldDuration(); got != 10*time.Minute {
		t.Errorf("default HoldDuration() = %v, want 10m", got)
	}
	if got := cfg.SweepInterval(); got != 30*time.Second {
		t.Errorf("default SweepInterval() = %v, want 30s", got)
	}
	if got := cfg.CalendarCacheTTL(); got != 30*time.Second {
		t.Errorf("default CalendarCacheTTL() = %v, want 30s", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
