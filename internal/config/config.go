// Package config loads and saves the ordo YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/colthorp/ordo-cli-go/internal/core"
)

// CacheConfig selects and tunes the persisted cache tier.
type CacheConfig struct {
	// Backend is one of "sqlite" (default), "file" or "memory".
	Backend string `yaml:"backend" json:"backend"`
	// Dir holds the sqlite database or JSON files. Empty means ~/.ordo/cache.
	Dir string `yaml:"dir" json:"dir"`
	// TTL is the freshness window as a Go duration string (default "168h").
	TTL string `yaml:"ttl" json:"ttl"`
}

// DisplayConfig toggles optional parts of the text views.
type DisplayConfig struct {
	ShowFeastRanks       bool `yaml:"show_feast_ranks" json:"show_feast_ranks"`
	ShowLiturgicalColors bool `yaml:"show_liturgical_colors" json:"show_liturgical_colors"`
	ShowCommemorations   bool `yaml:"show_commemorations" json:"show_commemorations"`
}

// Config is the top-level application configuration.
type Config struct {
	// APIBaseURL overrides the URL derived from Environment.
	APIBaseURL string `yaml:"api_base_url" json:"api_base_url"`

	// Environment is "production" (default) or "development".
	Environment string `yaml:"environment" json:"environment"`

	Cache CacheConfig `yaml:"cache" json:"cache"`

	// MonthTimeout bounds each month request (default "10s").
	MonthTimeout string `yaml:"month_timeout" json:"month_timeout"`

	// RefreshCron is the cron schedule used by `ordo serve` to re-warm the cache.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// Listen is the HTTP listen address for `ordo serve`.
	Listen string `yaml:"listen" json:"listen"`

	// WeekStart is "sunday" (default) or "monday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	Display DisplayConfig `yaml:"display" json:"display"`
}

const (
	defaultRefreshCron = "0 3 * * *"
	defaultListen      = "127.0.0.1:8787"
	defaultWeekStart   = "sunday"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Environment: core.EnvProduction,
		Cache: CacheConfig{
			Backend: core.BackendSQLite,
			TTL:     core.CacheTTL.String(),
		},
		MonthTimeout: core.MonthFetchTimeout.String(),
		RefreshCron:  defaultRefreshCron,
		Listen:       defaultListen,
		WeekStart:    defaultWeekStart,
		Display: DisplayConfig{
			ShowFeastRanks:       true,
			ShowLiturgicalColors: true,
			ShowCommemorations:   true,
		},
	}
}

// Normalize fills in missing or invalid values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	switch c.Environment {
	case core.EnvProduction, core.EnvDevelopment:
	default:
		c.Environment = core.EnvProduction
	}
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")

	switch c.Cache.Backend {
	case core.BackendSQLite, core.BackendFile, core.BackendMemory:
	default:
		c.Cache.Backend = core.BackendSQLite
	}
	if d, err := time.ParseDuration(c.Cache.TTL); err != nil || d <= 0 {
		c.Cache.TTL = core.CacheTTL.String()
	}
	if d, err := time.ParseDuration(c.MonthTimeout); err != nil || d <= 0 {
		c.MonthTimeout = core.MonthFetchTimeout.String()
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	switch c.WeekStart {
	case "sunday", "monday":
	default:
		c.WeekStart = defaultWeekStart
	}
}

// ApplyEnv overrides fields from ORDO_* environment variables.
func (c *Config) ApplyEnv() {
	if env := os.Getenv(core.EnvironmentEnvVar); env != "" {
		c.Environment = env
	}
	if url := os.Getenv(core.APIBaseEnvVar); url != "" {
		c.APIBaseURL = url
	}
	if backend := os.Getenv(core.CacheBackendEnvVar); backend != "" {
		c.Cache.Backend = backend
	}
	c.Normalize()
}

// BaseURL returns the API base URL: the explicit override, or the default
// for the configured environment.
func (c *Config) BaseURL() string {
	if c.APIBaseURL != "" {
		return c.APIBaseURL
	}
	if c.Environment == core.EnvDevelopment {
		return core.DevelopmentAPIBaseURL
	}
	return core.ProductionAPIBaseURL
}

// CacheTTL returns the parsed cache TTL.
func (c *Config) CacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil || d <= 0 {
		return core.CacheTTL
	}
	return d
}

// MonthTimeoutDuration returns the parsed per-month timeout.
func (c *Config) MonthTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.MonthTimeout)
	if err != nil || d <= 0 {
		return core.MonthFetchTimeout
	}
	return d
}

// CacheDir returns the configured cache directory or the default.
func (c *Config) CacheDir() string {
	if c.Cache.Dir != "" {
		return c.Cache.Dir
	}
	return core.CacheRoot()
}

// MondayFirst reports whether weeks start on Monday.
func (c *Config) MondayFirst() bool {
	return c.WeekStart == "monday"
}

// setters maps dotted keys to field updates for `ordo config set`.
var setters = map[string]func(c *Config, v string) error{
	"api_base_url": func(c *Config, v string) error { c.APIBaseURL = v; return nil },
	"environment": func(c *Config, v string) error {
		if v != core.EnvProduction && v != core.EnvDevelopment {
			return fmt.Errorf("environment must be %s or %s", core.EnvProduction, core.EnvDevelopment)
		}
		c.Environment = v
		return nil
	},
	"cache.backend": func(c *Config, v string) error {
		switch v {
		case core.BackendSQLite, core.BackendFile, core.BackendMemory:
			c.Cache.Backend = v
			return nil
		}
		return fmt.Errorf("cache.backend must be %s, %s or %s", core.BackendSQLite, core.BackendFile, core.BackendMemory)
	},
	"cache.dir":     func(c *Config, v string) error { c.Cache.Dir = v; return nil },
	"cache.ttl":     func(c *Config, v string) error { return setDuration(&c.Cache.TTL, v) },
	"month_timeout": func(c *Config, v string) error { return setDuration(&c.MonthTimeout, v) },
	"refresh":       func(c *Config, v string) error { c.RefreshCron = v; return nil },
	"listen":        func(c *Config, v string) error { c.Listen = v; return nil },
	"week_start": func(c *Config, v string) error {
		if v != "sunday" && v != "monday" {
			return errors.New("week_start must be sunday or monday")
		}
		c.WeekStart = v
		return nil
	},
	"display.show_feast_ranks":       func(c *Config, v string) error { return setBool(&c.Display.ShowFeastRanks, v) },
	"display.show_liturgical_colors": func(c *Config, v string) error { return setBool(&c.Display.ShowLiturgicalColors, v) },
	"display.show_commemorations":    func(c *Config, v string) error { return setBool(&c.Display.ShowCommemorations, v) },
}

// Keys lists the keys accepted by Set.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set updates the field named by a dotted key, validating the value.
func (c *Config) Set(key, value string) error {
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(Keys(), ", "))
	}
	return set(c, value)
}

func setDuration(dst *string, v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", v, err)
	}
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %s", v)
	}
	*dst = d.String()
	return nil
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid boolean %q", v)
	}
	*dst = b
	return nil
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist, a default config is written there (0600)
// and returned. Otherwise the file is parsed and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg to path atomically via a temp file + rename, with 0600 perms.
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

	tmp, err := os.CreateTemp(dir, ".ordo-config-*.tmp")
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

// Save writes the config to path.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// YAML renders the config as YAML (for `ordo config show`).
func (c *Config) YAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
