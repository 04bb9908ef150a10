package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "sigwire", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "memory", cfg.Bus.Type)
	assert.Equal(t, "sigwire:stream:", cfg.Bus.KeyPrefix)
	assert.Equal(t, "memory", cfg.Cursor.Type)
	assert.Equal(t, 9091, cfg.Metrics.Port)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoad_FromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
app:
  name: wired
  environment: production
log:
  level: debug
bus:
  type: redis
  redis:
    address: redis.internal:6379
cursor:
  type: badger
  badger:
    path: /var/lib/sigwire/cursors
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "wired", cfg.App.Name)
	assert.Equal(t, "production", cfg.App.Environment)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "redis", cfg.Bus.Type)
	assert.Equal(t, "redis.internal:6379", cfg.Bus.Redis.Address)
	assert.Equal(t, "badger", cfg.Cursor.Type)
	assert.Equal(t, "/var/lib/sigwire/cursors", cfg.Cursor.Badger.Path)

	// Untouched sections keep their defaults.
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 9091, cfg.Metrics.Port)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SIGWIRE_LOG_LEVEL", "warn")
	t.Setenv("SIGWIRE_BUS_TYPE", "redis")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "redis", cfg.Bus.Type)
}

func TestLoad_ExplicitOverridesWin(t *testing.T) {
	t.Setenv("SIGWIRE_LOG_LEVEL", "warn")

	cfg, err := Load("", map[string]interface{}{
		"log.level": "error",
	})
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Log.Level)
}

func TestLoad_ValidationFailure(t *testing.T) {
	_, err := Load("", map[string]interface{}{
		"log.level": "loud",
	})
	require.Error(t, err)

	var details ValidationErrors
	require.ErrorAs(t, err, &details)
	assert.NotEmpty(t, details)
}

func TestLoad_UnsupportedFileFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("x = 1"), 0o644))

	_, err := Load(path, nil)
	require.Error(t, err)
}
