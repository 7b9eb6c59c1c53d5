package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var envVars = []string{
	"CONTROLTOWER_PORT", "CONTROLTOWER_METRICS_PORT", "CONTROLTOWER_CORS_ORIGINS",
	"CONTROLTOWER_RATE_LIMIT", "CONTROLTOWER_DATABASE_URL", "CONTROLTOWER_AUTO_MIGRATE",
	"CONTROLTOWER_NATS_URL", "CONTROLTOWER_OVERVIEW_INTERVAL_MS",
	"CONTROLTOWER_LOG_LEVEL", "CONTROLTOWER_LOG_FORMAT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envVars {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 4000 {
		t.Errorf("expected port 4000, got %d", cfg.Server.Port)
	}
	if cfg.Server.MetricsPort != 4001 {
		t.Errorf("expected metrics port 4001, got %d", cfg.Server.MetricsPort)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "http://localhost:5173" {
		t.Errorf("expected default CORS origin, got %v", cfg.Server.CORSOrigins)
	}
	if cfg.Server.RateLimitPerMinute != 120 {
		t.Errorf("expected rate limit 120, got %d", cfg.Server.RateLimitPerMinute)
	}
	if cfg.Database.URL != "" {
		t.Errorf("expected empty database URL, got %s", cfg.Database.URL)
	}
	if !cfg.Database.AutoMigrate {
		t.Error("expected auto_migrate enabled by default")
	}
	if cfg.NATS.URL != "" {
		t.Errorf("expected NATS disabled by default, got %s", cfg.NATS.URL)
	}
	if cfg.OverviewInterval() != time.Minute {
		t.Errorf("expected overview interval 1m, got %v", cfg.OverviewInterval())
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got '%s'", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("expected log format 'json', got '%s'", cfg.Logging.Format)
	}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Errorf("expected info level, got %v", cfg.SlogLevel())
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CONTROLTOWER_PORT", "9000")
	t.Setenv("CONTROLTOWER_METRICS_PORT", "9001")
	t.Setenv("CONTROLTOWER_CORS_ORIGINS", " https://a.example.com, ,https://b.example.com ")
	t.Setenv("CONTROLTOWER_RATE_LIMIT", "30")
	t.Setenv("CONTROLTOWER_DATABASE_URL", "postgres://localhost/controltower_test")
	t.Setenv("CONTROLTOWER_AUTO_MIGRATE", "false")
	t.Setenv("CONTROLTOWER_NATS_URL", "nats://nats:4222")
	t.Setenv("CONTROLTOWER_OVERVIEW_INTERVAL_MS", "5000")
	t.Setenv("CONTROLTOWER_LOG_LEVEL", "debug")
	t.Setenv("CONTROLTOWER_LOG_FORMAT", "text")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Server.MetricsPort != 9001 {
		t.Errorf("expected metrics port 9001, got %d", cfg.Server.MetricsPort)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example.com" {
		t.Errorf("expected two trimmed origins, got %v", cfg.Server.CORSOrigins)
	}
	if cfg.Server.RateLimitPerMinute != 30 {
		t.Errorf("expected rate limit 30, got %d", cfg.Server.RateLimitPerMinute)
	}
	if cfg.Database.URL != "postgres://localhost/controltower_test" {
		t.Errorf("expected database URL, got '%s'", cfg.Database.URL)
	}
	if cfg.Database.AutoMigrate {
		t.Error("expected auto_migrate disabled")
	}
	if cfg.NATS.URL != "nats://nats:4222" {
		t.Errorf("expected NATS URL, got '%s'", cfg.NATS.URL)
	}
	if cfg.OverviewInterval() != 5*time.Second {
		t.Errorf("expected overview interval 5s, got %v", cfg.OverviewInterval())
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("expected debug level, got %v", cfg.SlogLevel())
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("expected log format 'text', got '%s'", cfg.Logging.Format)
	}
}

func TestLoadIgnoresInvalidNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONTROLTOWER_PORT", "not-a-port")
	t.Setenv("CONTROLTOWER_AUTO_MIGRATE", "maybe")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 4000 {
		t.Errorf("expected default port, got %d", cfg.Server.Port)
	}
	if !cfg.Database.AutoMigrate {
		t.Error("expected default auto_migrate")
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONTROLTOWER_PORT", "7000")

	path := filepath.Join(t.TempDir(), "controltower.yaml")
	body := `
server:
  port: 5000
  cors_origins:
    - https://tower.example.com
database:
  url: postgres://db/tower
overview:
  refresh_interval_ms: 1500
logging:
  level: warn
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("env must override file, got port %d", cfg.Server.Port)
	}
	if cfg.Server.MetricsPort != 4001 {
		t.Errorf("expected default metrics port to survive, got %d", cfg.Server.MetricsPort)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "https://tower.example.com" {
		t.Errorf("unexpected CORS origins %v", cfg.Server.CORSOrigins)
	}
	if cfg.Database.URL != "postgres://db/tower" {
		t.Errorf("unexpected database URL %s", cfg.Database.URL)
	}
	if cfg.OverviewInterval() != 1500*time.Millisecond {
		t.Errorf("unexpected overview interval %v", cfg.OverviewInterval())
	}
	if cfg.SlogLevel() != slog.LevelWarn {
		t.Errorf("expected warn level, got %v", cfg.SlogLevel())
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
