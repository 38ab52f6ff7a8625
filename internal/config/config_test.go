package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvURL, EnvUsername, EnvPassword} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "readersync.db", filepath.Base(cfg.Database.Path))
	assert.Equal(t, "last_synced", filepath.Base(cfg.Sync.StatePath))
	assert.Equal(t, 60*time.Second, cfg.Sync.HTTPTimeout)
	assert.Equal(t, 1000, cfg.Sync.PageSize)
	assert.Equal(t, 10000, cfg.Sync.SnapshotPageSize)
	assert.Equal(t, 1000, cfg.Sync.MaxPages)
	assert.Equal(t, 15*time.Minute, cfg.Sync.Interval)
	assert.False(t, cfg.Sync.DescribeFeeds)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_YAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.yaml", `
server:
  url: https://rss.example.com/api/greader.php
  username: alice
  password: secret
database:
  path: /tmp/rs.db
sync:
  http_timeout: 5s
  page_size: 200
  describe_feeds: true
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://rss.example.com/api/greader.php", cfg.Server.URL)
	assert.Equal(t, "alice", cfg.Server.Username)
	assert.Equal(t, "secret", cfg.Server.Password)
	assert.Equal(t, "/tmp/rs.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Second, cfg.Sync.HTTPTimeout)
	assert.Equal(t, 200, cfg.Sync.PageSize)
	assert.True(t, cfg.Sync.DescribeFeeds)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())

	// Unset keys keep their defaults.
	assert.Equal(t, 10000, cfg.Sync.SnapshotPageSize)
	assert.Equal(t, 15*time.Minute, cfg.Sync.Interval)
}

func TestLoad_TOML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.toml", `
[server]
url = "https://rss.example.com/api/greader.php"
username = "alice"
password = "secret"

[sync]
interval = "1h"
max_pages = 50
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "alice", cfg.Server.Username)
	assert.Equal(t, time.Hour, cfg.Sync.Interval)
	assert.Equal(t, 50, cfg.Sync.MaxPages)
}

func TestLoad_LegacyTOMLKeys(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.toml", `
fresh_rss_api_url = "https://old.example.com/api/greader.php"
fresh_rss_api_user = "bob"
fresh_rss_api_password = "hunter2"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://old.example.com/api/greader.php", cfg.Server.URL)
	assert.Equal(t, "bob", cfg.Server.Username)
	assert.Equal(t, "hunter2", cfg.Server.Password)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPassword, "from-env")
	path := writeFile(t, "config.yaml", "server:\n  username: alice\n  password: from-file\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "alice", cfg.Server.Username)
	assert.Equal(t, "from-env", cfg.Server.Password)
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.yaml", "server: [unclosed")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_InvalidDuration(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.toml", "[sync]\ninterval = \"soon\"\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestSlogLevel(t *testing.T) {
	cfg := DefaultConfig()
	for level, want := range map[string]slog.Level{
		"":        slog.LevelInfo,
		"info":    slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	} {
		cfg.Log.Level = level
		assert.Equal(t, want, cfg.SlogLevel(), "level %q", level)
	}
}

func TestWriteDefault_RoundTrip(t *testing.T) {
	clearEnv(t)
	for _, name := range []string{"config.yaml", "config.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sub", name)
			require.NoError(t, WriteDefault(path))

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

			cfg, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, DefaultConfig(), cfg)
		})
	}
}

func TestWriteDefault_RefusesOverwrite(t *testing.T) {
	path := writeFile(t, "config.yaml", "log:\n  level: debug\n")
	require.Error(t, WriteDefault(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "log:\n  level: debug\n", string(data))
}
