package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/law-makers/shopscrape/internal/credentials"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSecrets map[string]string

func (m mapSecrets) Lookup(name string) string { return m[name] }

func newRoot() *cobra.Command {
	cmd := &cobra.Command{Use: "shopscrape"}
	RegisterFlags(cmd)
	return cmd
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadWith(nil, nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultPoolMin, cfg.PoolMin)
	assert.Equal(t, DefaultPoolMax, cfg.PoolMax)
	assert.Equal(t, DefaultAcquireTimeout, cfg.AcquireTimeout)
	assert.Equal(t, DefaultBatchDelayMin, cfg.BatchDelayMin)
	assert.Equal(t, DefaultBatchDelayMax, cfg.BatchDelayMax)
	assert.Equal(t, 5, cfg.Concurrency)
	assert.True(t, cfg.BrowserHeadless)
	assert.Empty(t, cfg.DatabaseDSN)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SHOPSCRAPE_POOL_MAX", "8")
	t.Setenv("SHOPSCRAPE_BATCH_DELAY_MIN", "1s")
	t.Setenv("SHOPSCRAPE_BATCH_DELAY_MAX", "1500ms")
	t.Setenv("SHOPSCRAPE_CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("SHOPSCRAPE_HEADLESS", "false")
	t.Setenv("SHOPSCRAPE_HEADERS", "Accept-Language: en-GB,en;q=0.9 | X-Debug: 1")

	cfg, err := LoadWith(nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.PoolMax)
	assert.Equal(t, time.Second, cfg.BatchDelayMin)
	assert.Equal(t, 1500*time.Millisecond, cfg.BatchDelayMax)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.False(t, cfg.BrowserHeadless)
	assert.Equal(t, []string{"Accept-Language: en-GB,en;q=0.9", "X-Debug: 1"}, cfg.Headers)
}

func TestLoadBadEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SHOPSCRAPE_POOL_MAX", "lots")
	t.Setenv("SHOPSCRAPE_ACQUIRE_TIMEOUT", "soon")

	_, err := LoadWith(nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHOPSCRAPE_POOL_MAX")
	assert.Contains(t, err.Error(), "SHOPSCRAPE_ACQUIRE_TIMEOUT")
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.env"),
		[]byte("SHOPSCRAPE_LIMIT=7\nSHOPSCRAPE_REDIS_STREAM=test:stream\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("SHOPSCRAPE_LIMIT")
		os.Unsetenv("SHOPSCRAPE_REDIS_STREAM")
	})

	cmd := newRoot()
	require.NoError(t, cmd.ParseFlags([]string{"--env-file", "custom.env"}))

	cfg, err := LoadWith(cmd, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Limit)
	assert.Equal(t, "test:stream", cfg.RedisStream)
}

func TestLoadSecretsFillGaps(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SHOPSCRAPE_API_KEY", "from-env")

	secrets := mapSecrets{
		credentials.DatabaseDSN: "postgres://localhost/shop",
		credentials.APIKey:      "from-keyring",
		credentials.RedisURL:    "redis://localhost:6379/0",
	}
	cfg, err := LoadWith(nil, secrets)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/shop", cfg.DatabaseDSN)
	assert.Equal(t, "from-env", cfg.APIKey)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
}

func TestLoadFlags(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SHOPSCRAPE_POOL_MAX", "3")

	cmd := newRoot()
	require.NoError(t, cmd.ParseFlags([]string{"--pool-max", "6", "--pool-min", "1", "--headful", "--verbose", "--timeout", "90s",
		"-H", "X-Debug: 1"}))

	cfg, err := LoadWith(cmd, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.PoolMax)
	assert.Equal(t, 1, cfg.PoolMin)
	assert.False(t, cfg.BrowserHeadless)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 90*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, []string{"X-Debug: 1"}, cfg.Headers)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"pool min above max", func(c *Config) { c.PoolMin = c.PoolMax + 1 }},
		{"pool max too large", func(c *Config) { c.PoolMax = DefaultMaxPoolMax + 1 }},
		{"inverted delay", func(c *Config) { c.BatchDelayMin, c.BatchDelayMax = 5*time.Second, time.Second }},
		{"concurrency zero", func(c *Config) { c.Concurrency = 0 }},
		{"limit over max", func(c *Config) { c.Limit = c.MaxLimit + 1 }},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }},
		{"relative base url", func(c *Config) { c.BaseURL = "/women" }},
		{"no persist attempts", func(c *Config) { c.PersistAttempts = 0 }},
	}

	require.NoError(t, validate(Default()))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, validate(cfg))
		})
	}
}
