package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Backend selects the relational store the service writes to.
type Backend string

const (
	// BackendSQLite stores everything in a local database file.
	BackendSQLite Backend = "sqlite"
	// BackendPostgres talks to a managed PostgreSQL service via APP_DATABASE_URL.
	BackendPostgres Backend = "postgres"
)

// Config holds the core runtime configuration for the service.
// Values come from an optional YAML file (APP_CONFIG_FILE) and are then
// overridden by environment variables. See .env.example.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`

	Backend     Backend `yaml:"backend"`
	DatabaseURL string  `yaml:"database_url"`
	SQLitePath  string  `yaml:"sqlite_path"`

	// SourceURL is the base URL of the proxy statistics API.
	SourceURL     string        `yaml:"source_url"`
	SourceAPIKey  string        `yaml:"source_api_key"`
	SourceTimeout time.Duration `yaml:"source_timeout"`
	MaxRetries    int           `yaml:"max_retries"`
	RetryDelay    time.Duration `yaml:"retry_delay"`

	// UserPageLimit bounds the user-stats request. It must be large enough
	// to cover every user the source reports.
	UserPageLimit int `yaml:"user_page_limit"`

	DailySchedule   string        `yaml:"daily_schedule"`
	VehicleSchedule string        `yaml:"vehicle_schedule"`
	Timezone        string        `yaml:"timezone"`
	JobTimeout      time.Duration `yaml:"job_timeout"`
	DailyParallel   bool          `yaml:"daily_parallel"`

	// RetentionDays prunes vehicle detail rows and collection logs older
	// than this many days. Zero keeps everything.
	RetentionDays int `yaml:"retention_days"`

	// TriggerSecret protects the manual trigger endpoint. Empty disables the check.
	TriggerSecret string `yaml:"trigger_secret"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		ListenAddr:      ":8080",
		LogLevel:        "info",
		Backend:         BackendSQLite,
		SQLitePath:      "./data/proxystats.db",
		SourceTimeout:   15 * time.Second,
		MaxRetries:      3,
		RetryDelay:      time.Second,
		UserPageLimit:   10000,
		DailySchedule:   "5 0 * * *",
		VehicleSchedule: "*/30 * * * *",
		Timezone:        "UTC",
		JobTimeout:      10 * time.Minute,
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by APP_CONFIG_FILE, and APP_* environment variables, in that order.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("APP_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.ListenAddr = getenv("APP_LISTEN_ADDR", cfg.ListenAddr)
	cfg.LogLevel = getenv("APP_LOG_LEVEL", cfg.LogLevel)
	cfg.Backend = Backend(strings.ToLower(getenv("APP_DB_BACKEND", string(cfg.Backend))))
	cfg.DatabaseURL = getenv("APP_DATABASE_URL", cfg.DatabaseURL)
	cfg.SQLitePath = getenv("APP_SQLITE_PATH", cfg.SQLitePath)
	cfg.SourceURL = strings.TrimRight(getenv("APP_SOURCE_URL", cfg.SourceURL), "/")
	cfg.SourceAPIKey = getenv("APP_SOURCE_API_KEY", cfg.SourceAPIKey)
	cfg.DailySchedule = getenv("APP_DAILY_SCHEDULE", cfg.DailySchedule)
	cfg.VehicleSchedule = getenv("APP_VEHICLE_SCHEDULE", cfg.VehicleSchedule)
	cfg.Timezone = getenv("APP_TIMEZONE", cfg.Timezone)
	cfg.TriggerSecret = getenv("APP_TRIGGER_SECRET", cfg.TriggerSecret)

	var err error
	if cfg.SourceTimeout, err = durationEnv("APP_SOURCE_TIMEOUT", cfg.SourceTimeout); err != nil {
		return nil, err
	}
	if cfg.RetryDelay, err = durationEnv("APP_RETRY_DELAY", cfg.RetryDelay); err != nil {
		return nil, err
	}
	if cfg.JobTimeout, err = durationEnv("APP_JOB_TIMEOUT", cfg.JobTimeout); err != nil {
		return nil, err
	}
	if cfg.MaxRetries, err = intEnv("APP_MAX_RETRIES", cfg.MaxRetries); err != nil {
		return nil, err
	}
	if cfg.UserPageLimit, err = intEnv("APP_USER_PAGE_LIMIT", cfg.UserPageLimit); err != nil {
		return nil, err
	}
	if cfg.RetentionDays, err = intEnv("APP_RETENTION_DAYS", cfg.RetentionDays); err != nil {
		return nil, err
	}
	if v := os.Getenv("APP_DAILY_PARALLEL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("APP_DAILY_PARALLEL: %w", err)
		}
		cfg.DailyParallel = b
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the service cannot start with.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return errors.New("APP_SQLITE_PATH is required for the sqlite backend")
		}
	case BackendPostgres:
		dsn := strings.TrimSpace(c.DatabaseURL)
		if dsn == "" {
			return errors.New("APP_DATABASE_URL is required (PostgreSQL URL)")
		}
		if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
			return errors.New("APP_DATABASE_URL must be a postgres:// or postgresql:// URL")
		}
	default:
		return fmt.Errorf("unknown APP_DB_BACKEND %q (want sqlite or postgres)", c.Backend)
	}

	if c.SourceURL == "" {
		return errors.New("APP_SOURCE_URL is required")
	}
	if c.MaxRetries < 0 {
		return errors.New("APP_MAX_RETRIES must not be negative")
	}
	if c.UserPageLimit <= 0 {
		return errors.New("APP_USER_PAGE_LIMIT must be positive")
	}
	if c.RetentionDays < 0 {
		return errors.New("APP_RETENTION_DAYS must not be negative")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("APP_TIMEZONE: %w", err)
	}
	for name, spec := range map[string]string{
		"APP_DAILY_SCHEDULE":   c.DailySchedule,
		"APP_VEHICLE_SCHEDULE": c.VehicleSchedule,
	} {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Location returns the timezone used to derive data dates.
// Validate has already checked that it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
