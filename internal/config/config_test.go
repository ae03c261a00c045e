package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TELEGRAM_TOKEN", "DATABASE_URL", "REDIS_URL", "HTTP_ADDR", "JWT_SECRET",
		"SWEEP_AT", "SWEEP_INTERVAL", "REPORT_INTERVAL_HOURS", "NUTRITION_URL",
		"NUTRITION_TIMEOUT", "LOG_DIR", "DEBUG", "TIMEZONE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseURL != "plan_tracker.db" {
		t.Fatalf("expected default database, got %q", cfg.DatabaseURL)
	}
	if cfg.SweepAt != "00:00" {
		t.Fatalf("expected midnight sweep, got %q", cfg.SweepAt)
	}
	if cfg.ReportInterval != 5*time.Hour {
		t.Fatalf("expected 5h report interval, got %s", cfg.ReportInterval)
	}
	if cfg.NutritionTimeout != 3*time.Second {
		t.Fatalf("expected 3s nutrition timeout, got %s", cfg.NutritionTimeout)
	}
}

func TestLoadWithoutFrontend(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("sweep and import must load without a frontend: %v", err)
	}
	if err := cfg.RequireFrontend(); err == nil {
		t.Fatal("expected error without JWT_SECRET and TELEGRAM_TOKEN")
	}

	cfg.TelegramToken = "token"
	if err := cfg.RequireFrontend(); err != nil {
		t.Fatalf("telegram alone is enough: %v", err)
	}
}

func TestLoadIntervalSweepDisablesDailyDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("SWEEP_INTERVAL", "30m")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SweepAt != "" || cfg.SweepInterval != 30*time.Minute {
		t.Fatalf("unexpected sweep schedule: at=%q every=%s", cfg.SweepAt, cfg.SweepInterval)
	}
	if cfg.Location != time.UTC {
		t.Fatalf("expected UTC location, got %v", cfg.Location)
	}
	if !cfg.Debug {
		t.Fatal("expected debug enabled")
	}
}

func TestLoadRejectsUnknownTimezone(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TIMEZONE", "Mars/Olympus")

	if _, err := Load(); err == nil {
		t.Fatal("expected timezone error")
	}
}
