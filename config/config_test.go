package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/config"
	"go.uber.org/zap/zapcore"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := config.FromEnv(lookupFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, "leave.db", cfg.DatabaseURL)
	assert.Equal(t, time.Hour, cfg.SchedulerInterval)
	assert.Equal(t, "0 0 1 * *", cfg.DefaultCronSchedule)
	assert.Empty(t, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := config.FromEnv(lookupFrom(map[string]string{
		"PORT":                 "9090",
		"DB_DRIVER":            "pgx",
		"DATABASE_URL":         "postgres://leave@localhost/leave",
		"LOG_LEVEL":            "DEBUG",
		"APP_ENV":              "production",
		"SCHEDULER_INTERVAL":   "15m",
		"CORS_ALLOWED_ORIGINS": "https://a.example.com, ,https://b.example.com",
	}))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "pgx", cfg.DBDriver)
	assert.Equal(t, 15*time.Minute, cfg.SchedulerInterval)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.IsProduction())

	lvl, err := cfg.ZapLevel()
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, lvl)
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"port":      {"PORT": "http"},
		"interval":  {"SCHEDULER_INTERVAL": "hourly"},
		"log level": {"LOG_LEVEL": "loud"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.FromEnv(lookupFrom(env))
			assert.Error(t, err)
		})
	}
}
