package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"agenda/internal/kv"
)

// SubscriptionConfig describes a read-only ICS feed imported into the agenda.
type SubscriptionConfig struct {
	// ID tags imported items (ScheduleItem.Source) and names the cache entry.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label used in logs.
	Name string `yaml:"name" json:"name"`
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// Category is the category key imported items are filed under.
	Category string `yaml:"category" json:"category"`
}

// StorageConfig selects the snapshot backend.
type StorageConfig struct {
	// Driver is one of "memory", "file", "sqlite".
	Driver string `yaml:"driver" json:"driver"`
	// Path is a directory for "file" and a database file for "sqlite".
	Path string `yaml:"path" json:"path"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// CaptureConfig controls headless PNG capture of the /calendar page.
type CaptureConfig struct {
	Width          int `yaml:"width" json:"width"`
	Height         int `yaml:"height" json:"height"`
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Locale selects date labels: "en" or "zh-TW".
	Locale string `yaml:"locale" json:"locale"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Seed fills an empty first run with a few example items.
	Seed bool `yaml:"seed" json:"seed"`

	// Refresh is a cron expression (e.g. "*/30 * * * *") for re-importing
	// subscriptions while serving.
	Refresh string `yaml:"refresh" json:"refresh"`

	// HorizonDays / BackfillDays bound the window subscriptions are expanded into.
	HorizonDays  int `yaml:"horizon_days" json:"horizon_days"`
	BackfillDays int `yaml:"backfill_days" json:"backfill_days"`

	// CacheDir holds the HTTP cache of subscription bodies.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	Subscriptions []SubscriptionConfig `yaml:"subscriptions" json:"subscriptions"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	Capture CaptureConfig `yaml:"capture" json:"capture"`
}

const (
	defaultListen   = "127.0.0.1:8080"
	defaultLocale   = "zh-TW"
	defaultRefresh  = "*/30 * * * *"
	defaultHorizon  = 60
	defaultBackfill = 7
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{
		Storage:      StorageConfig{Driver: "file", Path: "./data"},
		Seed:         true,
		BackfillDays: defaultBackfill,
	}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly. Unknown enum values fall
// back to the default rather than failing.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	switch c.Locale {
	case "en", "zh-TW":
	default:
		c.Locale = defaultLocale
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = "info"
	}

	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case "memory":
	case "sqlite":
		if c.Storage.Path == "" {
			c.Storage.Path = "./data/agenda.db"
		}
	default:
		c.Storage.Driver = "file"
		if c.Storage.Path == "" {
			c.Storage.Path = "./data"
		}
	}

	if c.Refresh == "" {
		c.Refresh = defaultRefresh
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = defaultHorizon
	}
	if c.BackfillDays < 0 {
		c.BackfillDays = 0
	}
	if c.CacheDir == "" {
		c.CacheDir = "./data/ics-cache"
	}
	if c.Subscriptions == nil {
		c.Subscriptions = []SubscriptionConfig{}
	}
	for i := range c.Subscriptions {
		s := &c.Subscriptions[i]
		if s.ID == "" {
			if s.Name != "" {
				s.ID = s.Name
			} else {
				s.ID = s.URL
			}
		}
	}
	if c.Capture.Width <= 0 {
		c.Capture.Width = 984
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = 1304
	}
	if c.Capture.TimeoutSeconds <= 0 {
		c.Capture.TimeoutSeconds = 30
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (parent directory created as needed) and returned.
//   - Otherwise the YAML is unmarshalled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
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

// Save writes the configuration atomically (temp file + rename) with 0600
// permissions, creating the parent directory (0700) if needed.
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

	return kv.WriteFileAtomic(path, data)
}

// Save is a convenience method on Config that delegates to Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
