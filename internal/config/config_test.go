package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9000"
week_start: Monday
ics:
  - id: clubs
    url: https://example.edu/clubs.ics
    category: social
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "monday", cfg.WeekStart)
	assert.Equal(t, time.Monday, cfg.WeekStartDay())
	assert.Equal(t, defaultTimezone, cfg.Timezone)
	assert.Equal(t, []string{"24h", "1h"}, cfg.Reminders.Offsets)
	require.NoError(t, cfg.Validate())

	srcs := cfg.Sources()
	require.Len(t, srcs, 1)
	assert.Equal(t, "social", srcs[0].Category)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad cron", func(c *Config) { c.RefreshCron = "every minute" }},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }},
		{"negative offset", func(c *Config) { c.Reminders.Offsets = []string{"-1h"} }},
		{"bad lookahead", func(c *Config) { c.Reminders.Lookahead = "a week" }},
		{"zero session ttl", func(c *Config) { c.SessionTTL = "0s" }},
		{"missing url", func(c *Config) { c.ICS = []ICSConfig{{ID: "x"}} }},
		{"duplicate id", func(c *Config) {
			c.ICS = []ICSConfig{{ID: "x", URL: "https://a"}, {ID: "x", URL: "https://b"}}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, DefaultConfig().Validate())
}

func TestApplyEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"EVENTCAL_LISTEN=:7000\nEVENTCAL_LOG_LEVEL=debug\n"), 0o600))
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvTimezone, "UTC")

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(envFile, filepath.Join(t.TempDir(), "missing.env")))

	assert.Equal(t, ":7000", cfg.Listen)
	assert.Equal(t, "warn", cfg.LogLevel, "process environment wins over the file")
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, "./data/events.json", cfg.EventsFile)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestReminderSettings(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, []time.Duration{24 * time.Hour, time.Hour}, cfg.ReminderOffsets())
	assert.Equal(t, 7*24*time.Hour, cfg.ReminderLookahead())
	assert.Equal(t, 12*time.Hour, cfg.SessionTimeout())

	cfg.SessionTTL = "30m"
	assert.Equal(t, 30*time.Minute, cfg.SessionTimeout())
}
