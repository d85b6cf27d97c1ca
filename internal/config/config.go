package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // timezone names must resolve on hosts without zoneinfo

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"eventcal/internal/ics"
	"eventcal/internal/reminder"
)

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	// Category forces every event of the feed into one category.
	Category string `yaml:"category,omitempty" json:"category,omitempty"`
}

// ReminderConfig controls reminders for interested events.
type ReminderConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Offsets are Go durations before the event start, e.g. "24h", "1h".
	Offsets []string `yaml:"offsets" json:"offsets"`
	// Lookahead bounds how far ahead reminders are scheduled.
	Lookahead string `yaml:"lookahead" json:"lookahead"`
}

// ExportConfig names the calendar written by the .ics export.
type ExportConfig struct {
	CalendarName string `yaml:"calendar_name" json:"calendar_name"`
	UIDDomain    string `yaml:"uid_domain" json:"uid_domain"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone event wall clocks are read in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "sunday" (default) or "monday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron is a standard 5-field cron spec for feed refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays and BackfillDays bound feed expansion around now.
	HorizonDays  int `yaml:"horizon_days" json:"horizon_days"`
	BackfillDays int `yaml:"backfill_days" json:"backfill_days"`

	// EventsFile is the seed event list (JSON). Missing files are ignored.
	EventsFile string `yaml:"events_file" json:"events_file"`
	CacheDir   string `yaml:"cache_dir" json:"cache_dir"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// IncludeAllDay keeps all-day feed events.
	IncludeAllDay bool `yaml:"include_all_day" json:"include_all_day"`

	// SessionTTL drops personal schedules left unused this long.
	SessionTTL string `yaml:"session_ttl" json:"session_ttl"`

	ICS       []ICSConfig    `yaml:"ics" json:"ics"`
	Reminders ReminderConfig `yaml:"reminders" json:"reminders"`
	Export    ExportConfig   `yaml:"export" json:"export"`
}

const (
	defaultListen      = "127.0.0.1:8080"
	defaultTimezone    = "America/New_York"
	defaultRefreshCron = "*/15 * * * *"
	defaultLookahead   = "168h"
	defaultSessionTTL  = "12h"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:        defaultListen,
		Timezone:      defaultTimezone,
		WeekStart:     "sunday",
		RefreshCron:   defaultRefreshCron,
		HorizonDays:   60,
		BackfillDays:  7,
		EventsFile:    "./data/events.json",
		CacheDir:      "./var/ics-cache",
		LogLevel:      "info",
		IncludeAllDay: true,
		SessionTTL:    defaultSessionTTL,
		ICS:           []ICSConfig{},
		Reminders: ReminderConfig{
			Enabled:   true,
			Offsets:   []string{"24h", "1h"},
			Lookahead: defaultLookahead,
		},
		Export: ExportConfig{
			CalendarName: "Campus Events",
			UIDDomain:    "eventcal.local",
		},
	}
}

// Normalize fills in missing/zero values with defaults so partially-filled
// configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	switch strings.ToLower(c.WeekStart) {
	case "monday":
		c.WeekStart = "monday"
	default:
		c.WeekStart = "sunday"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 60
	}
	if c.BackfillDays < 0 {
		c.BackfillDays = 0
	}
	if c.CacheDir == "" {
		c.CacheDir = "./var/ics-cache"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.SessionTTL == "" {
		c.SessionTTL = defaultSessionTTL
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	if c.Reminders.Offsets == nil {
		c.Reminders.Offsets = []string{"24h", "1h"}
	}
	if c.Reminders.Lookahead == "" {
		c.Reminders.Lookahead = defaultLookahead
	}
	if c.Export.CalendarName == "" {
		c.Export.CalendarName = "Campus Events"
	}
	if c.Export.UIDDomain == "" {
		c.Export.UIDDomain = "eventcal.local"
	}
}

// Validate checks values Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		return fmt.Errorf("config: refresh %q: %w", c.RefreshCron, err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	if _, err := reminder.ParseOffsets(c.Reminders.Offsets); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if d, err := time.ParseDuration(c.Reminders.Lookahead); err != nil || d < 0 {
		return fmt.Errorf("config: reminders.lookahead %q is not a non-negative duration", c.Reminders.Lookahead)
	}
	if d, err := time.ParseDuration(c.SessionTTL); err != nil || d <= 0 {
		return fmt.Errorf("config: session_ttl %q is not a positive duration", c.SessionTTL)
	}

	seen := make(map[string]bool, len(c.ICS))
	for i, src := range c.ICS {
		if strings.TrimSpace(src.URL) == "" {
			return fmt.Errorf("config: ics[%d].url is required", i)
		}
		if src.ID == "" {
			return fmt.Errorf("config: ics[%d].id is required", i)
		}
		if seen[src.ID] {
			return fmt.Errorf("config: duplicate ics id %q", src.ID)
		}
		seen[src.ID] = true
	}
	return nil
}

// Environment overrides, applied on top of the YAML file.
const (
	EnvListen     = "EVENTCAL_LISTEN"
	EnvTimezone   = "EVENTCAL_TIMEZONE"
	EnvLogLevel   = "EVENTCAL_LOG_LEVEL"
	EnvEventsFile = "EVENTCAL_EVENTS_FILE"
)

// ApplyEnv overrides fields from the process environment and then from the
// given .env files (".env" when none are named). Process variables win over
// file values; missing files are ignored.
func (c *Config) ApplyEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	fileVals := map[string]string{}
	for _, f := range files {
		vals, err := godotenv.Read(f)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: read %s: %w", f, err)
		}
		for k, v := range vals {
			if _, ok := fileVals[k]; !ok {
				fileVals[k] = v
			}
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v, true
		}
		v, ok := fileVals[key]
		return v, ok && v != ""
	}

	if v, ok := lookup(EnvListen); ok {
		c.Listen = v
	}
	if v, ok := lookup(EnvTimezone); ok {
		c.Timezone = v
	}
	if v, ok := lookup(EnvLogLevel); ok {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvEventsFile); ok {
		c.EventsFile = v
	}
	return nil
}

// Location loads the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// WeekStartDay maps WeekStart to a time.Weekday.
func (c *Config) WeekStartDay() time.Weekday {
	if c.WeekStart == "monday" {
		return time.Monday
	}
	return time.Sunday
}

// ReminderOffsets returns the parsed offsets; call Validate first.
func (c *Config) ReminderOffsets() []time.Duration {
	out, err := reminder.ParseOffsets(c.Reminders.Offsets)
	if err != nil {
		return reminder.DefaultOffsets
	}
	return out
}

func (c *Config) ReminderLookahead() time.Duration {
	d, err := time.ParseDuration(c.Reminders.Lookahead)
	if err != nil {
		return 0
	}
	return d
}

// SessionTimeout returns the parsed SessionTTL, 12h when unparseable.
func (c *Config) SessionTimeout() time.Duration {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil || d <= 0 {
		return 12 * time.Hour
	}
	return d
}

// Sources converts the ICS entries for the feed loader.
func (c *Config) Sources() []ics.Source {
	out := make([]ics.Source, 0, len(c.ICS))
	for _, s := range c.ICS {
		out = append(out, ics.Source{ID: s.ID, URL: s.URL, Name: s.Name, Category: s.Category})
	}
	return out
}

// Load loads configuration from the given YAML path. On first run the file
// does not exist; a default config is written with 0600 perms and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".eventcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
