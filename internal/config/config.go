package config

import (
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const namespace = "TASKBOARD"

// Config keeps runtime settings for the dashboard server and bot.
type Config struct {
	DatabaseURL     string        `envconfig:"DATABASE_URL" default:"taskboard.db"`
	HTTPHost        string        `envconfig:"HTTP_HOST" default:""`
	HTTPPort        string        `envconfig:"HTTP_PORT" default:"8080"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"text"`
	AdminPassword   string        `envconfig:"ADMIN_PASSWORD"`
	AdminEmployeeID string        `envconfig:"ADMIN_EMPLOYEE_ID"`
	TelegramToken   string        `envconfig:"TELEGRAM_TOKEN"`
	DigestTime      string        `envconfig:"DIGEST_TIME" default:"08:00"`
	LookAheadDays   int           `envconfig:"LOOKAHEAD_DAYS" default:"7"`
	SweepInterval   time.Duration `envconfig:"SWEEP_INTERVAL" default:"1h"`
	SweepWindow     time.Duration `envconfig:"SWEEP_WINDOW" default:"168h"`
	SessionTTL      time.Duration `envconfig:"SESSION_TTL" default:"12h"`
	Timezone        string        `envconfig:"TIMEZONE" default:"Local"`
}

// Load reads configuration from TASKBOARD_* environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process(namespace, &cfg); err != nil {
		return cfg, fmt.Errorf("load env: %w", err)
	}
	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)
	if cfg.LookAheadDays < 0 {
		return cfg, fmt.Errorf("%s_LOOKAHEAD_DAYS must not be negative", namespace)
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return cfg, fmt.Errorf("%s_LOG_FORMAT must be text or json", namespace)
	}
	if cfg.SessionTTL <= 0 {
		return cfg, fmt.Errorf("%s_SESSION_TTL must be positive", namespace)
	}
	if _, err := cfg.Location(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// RequireServer checks the settings only the long-running server needs.
func (c Config) RequireServer() error {
	if strings.TrimSpace(c.AdminPassword) == "" {
		return fmt.Errorf("%s_ADMIN_PASSWORD is required", namespace)
	}
	return nil
}

// Addr is the listen address of the HTTP server.
func (c Config) Addr() string {
	return net.JoinHostPort(c.HTTPHost, c.HTTPPort)
}

// Location resolves the zone used to decide what "today" is.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%s_TIMEZONE: %w", namespace, err)
	}
	return loc, nil
}

func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
