package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "development", c.App.Env)
	assert.Equal(t, ":8080", c.HTTP.Addr)
	assert.True(t, c.Metrics.Enabled)
	assert.Equal(t, 2, c.Notifier.Workers)
	assert.Equal(t, 500, c.Notifier.PollMillis)
	assert.Empty(t, c.Postgres.DSN)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ECONEXUS_HTTP_ADDR", ":9999")
	t.Setenv("ECONEXUS_POSTGRES_DSN", "postgres://localhost/econexus_test")
	t.Setenv("ECONEXUS_NOTIFIER_WORKERS", "0")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9999", c.HTTP.Addr)
	assert.Equal(t, "postgres://localhost/econexus_test", c.Postgres.DSN)
	assert.Zero(t, c.Notifier.Workers)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  env: production\nmetrics:\n  enabled: false\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "production", c.App.Env)
	assert.False(t, c.Metrics.Enabled)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
