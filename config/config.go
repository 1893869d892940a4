/*
config.go - Process configuration

PURPOSE:
  Collects the server's settings from the environment. A .env file in the
  working directory is loaded first (godotenv) and never overrides variables
  already set by the process environment. cmd/server flags override the
  result.

KEYS:
  PORT                   HTTP port (default 8080)
  DB_DRIVER              sqlite3 | pgx (default sqlite3)
  DATABASE_URL           DSN; file path for sqlite3 (default leave.db)
  LOG_LEVEL              debug | info | warn | error (default info)
  APP_ENV                development | production (default development)
  SCHEDULER_INTERVAL     allocation tick, Go duration (default 1h, 0 disables)
  CORS_ALLOWED_ORIGINS   comma separated
  DEFAULT_CRON_SCHEDULE  seeded into a fresh allocation settings record

SEE ALSO:
  - cmd/server/main.go: Flag overrides and startup
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Port                int
	DBDriver            string
	DatabaseURL         string
	LogLevel            string
	Env                 string
	SchedulerInterval   time.Duration
	CORSAllowedOrigins  []string
	DefaultCronSchedule string
}

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Load reads .env (when present) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from a lookup function so tests need not touch
// the process environment.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, fallback string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return fallback
	}

	cfg := Config{
		DBDriver:            get("DB_DRIVER", "sqlite3"),
		DatabaseURL:         get("DATABASE_URL", "leave.db"),
		LogLevel:            strings.ToLower(get("LOG_LEVEL", "info")),
		Env:                 strings.ToLower(get("APP_ENV", EnvDevelopment)),
		DefaultCronSchedule: get("DEFAULT_CRON_SCHEDULE", "0 0 1 * *"),
	}

	port, err := strconv.Atoi(get("PORT", "8080"))
	if err != nil || port <= 0 || port > 65535 {
		return Config{}, fmt.Errorf("PORT: invalid port %q", get("PORT", ""))
	}
	cfg.Port = port

	interval, err := time.ParseDuration(get("SCHEDULER_INTERVAL", "1h"))
	if err != nil || interval < 0 {
		return Config{}, fmt.Errorf("SCHEDULER_INTERVAL: invalid duration %q", get("SCHEDULER_INTERVAL", ""))
	}
	cfg.SchedulerInterval = interval

	if raw := get("CORS_ALLOWED_ORIGINS", ""); raw != "" {
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
			}
		}
	}

	if _, err := cfg.ZapLevel(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) IsProduction() bool { return c.Env == EnvProduction }

func (c Config) ZapLevel() (zapcore.Level, error) {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return lvl, nil
}

// NewLogger builds the process logger: JSON in production, console otherwise.
func (c Config) NewLogger() (*zap.Logger, error) {
	lvl, err := c.ZapLevel()
	if err != nil {
		return nil, err
	}
	var zc zap.Config
	if c.IsProduction() {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}
