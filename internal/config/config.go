package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config keeps runtime settings for the service.
type Config struct {
	TelegramToken    string
	DatabaseURL      string
	RedisURL         string
	HTTPAddr         string
	JWTSecret        string
	SweepAt          string
	SweepInterval    time.Duration
	ReportInterval   time.Duration
	Location         *time.Location
	NutritionURL     string
	NutritionTimeout time.Duration
	LogDir           string
	Debug            bool
}

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory is applied first when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		TelegramToken:    env("TELEGRAM_TOKEN"),
		DatabaseURL:      env("DATABASE_URL"),
		RedisURL:         env("REDIS_URL"),
		HTTPAddr:         env("HTTP_ADDR"),
		JWTSecret:        env("JWT_SECRET"),
		SweepAt:          env("SWEEP_AT"),
		SweepInterval:    parseDuration(env("SWEEP_INTERVAL")),
		ReportInterval:   parseInterval(env("REPORT_INTERVAL_HOURS")),
		NutritionURL:     env("NUTRITION_URL"),
		NutritionTimeout: parseDuration(env("NUTRITION_TIMEOUT")),
		LogDir:           env("LOG_DIR"),
		Debug:            parseBool(env("DEBUG")),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "plan_tracker.db"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.SweepAt == "" && cfg.SweepInterval == 0 {
		cfg.SweepAt = "00:00"
	}
	if cfg.ReportInterval == 0 {
		cfg.ReportInterval = 5 * time.Hour
	}
	if cfg.NutritionTimeout == 0 {
		cfg.NutritionTimeout = 3 * time.Second
	}

	cfg.Location = time.Local
	if tz := env("TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return cfg, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
		}
		cfg.Location = loc
	}

	return cfg, nil
}

// RequireFrontend fails when neither the HTTP API nor the Telegram bot is
// configured. Only the long-running server needs one of them.
func (c Config) RequireFrontend() error {
	if c.JWTSecret == "" && c.TelegramToken == "" {
		return fmt.Errorf("either JWT_SECRET or TELEGRAM_TOKEN is required")
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func parseInterval(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}

func parseDuration(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}

func parseBool(raw string) bool {
	v, err := strconv.ParseBool(raw)
	return err == nil && v
}
