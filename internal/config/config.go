// Package config loads readersync settings from a YAML or TOML file, with
// credentials overridable from the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the server credentials.
const (
	EnvURL      = "READERSYNC_URL"
	EnvUsername = "READERSYNC_USERNAME"
	EnvPassword = "READERSYNC_PASSWORD"
)

type Config struct {
	Server struct {
		URL      string `yaml:"url" toml:"url"`
		Username string `yaml:"username" toml:"username"`
		Password string `yaml:"password" toml:"password"`
	} `yaml:"server" toml:"server"`

	Database struct {
		Path string `yaml:"path" toml:"path"`
	} `yaml:"database" toml:"database"`

	Sync struct {
		StatePath        string        `yaml:"state_path" toml:"state_path"`
		HTTPTimeout      time.Duration `yaml:"http_timeout" toml:"http_timeout"`
		PageSize         int           `yaml:"page_size" toml:"page_size"`
		SnapshotPageSize int           `yaml:"snapshot_page_size" toml:"snapshot_page_size"`
		MaxPages         int           `yaml:"max_pages" toml:"max_pages"`
		DescribeFeeds    bool          `yaml:"describe_feeds" toml:"describe_feeds"`
		Interval         time.Duration `yaml:"interval" toml:"interval"`
	} `yaml:"sync" toml:"sync"`

	Log struct {
		Level string `yaml:"level" toml:"level"`
	} `yaml:"log" toml:"log"`

	// Flat keys from older TOML config files.
	LegacyURL      string `yaml:"-" toml:"fresh_rss_api_url,omitempty"`
	LegacyUser     string `yaml:"-" toml:"fresh_rss_api_user,omitempty"`
	LegacyPassword string `yaml:"-" toml:"fresh_rss_api_password,omitempty"`
}

// Dir returns <UserConfigDir>/readersync, or "." if the user config
// directory cannot be determined.
func Dir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "readersync")
}

// DefaultPath is the config file used when none is given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	dir := Dir()
	cfg.Database.Path = filepath.Join(dir, "readersync.db")
	cfg.Sync.StatePath = filepath.Join(dir, "last_synced")
	cfg.Sync.HTTPTimeout = 60 * time.Second
	cfg.Sync.PageSize = 1000
	cfg.Sync.SnapshotPageSize = 10000
	cfg.Sync.MaxPages = 1000
	cfg.Sync.Interval = 15 * time.Minute
	cfg.Log.Level = "info"
	return cfg
}

// Load reads the config at path over the defaults. A missing file yields the
// defaults. Files ending in .toml are parsed as TOML, anything else as YAML.
// Environment overrides are applied last.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg.ApplyEnv(os.LookupEnv)
		return cfg, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if isTOML(path) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyLegacy()
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func (c *Config) applyLegacy() {
	if c.Server.URL == "" {
		c.Server.URL = c.LegacyURL
	}
	if c.Server.Username == "" {
		c.Server.Username = c.LegacyUser
	}
	if c.Server.Password == "" {
		c.Server.Password = c.LegacyPassword
	}
}

// ApplyEnv overrides the server credentials from the environment. lookup is
// normally os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvURL); ok && v != "" {
		c.Server.URL = v
	}
	if v, ok := lookup(EnvUsername); ok && v != "" {
		c.Server.Username = v
	}
	if v, ok := lookup(EnvPassword); ok && v != "" {
		c.Server.Password = v
	}
}

// SlogLevel maps log.level to a slog level. Unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WriteDefault writes the default config to path, in TOML or YAML depending
// on the extension. An existing file is never overwritten.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := DefaultConfig()
	var data []byte
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		if data, err = yaml.Marshal(cfg); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
	}

	// The file will hold a password.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
