package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Load(t *testing.T) {
	t.Run("missing config file falls back to defaults", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		t.Setenv("XDG_DATA_HOME", t.TempDir())

		m, err := NewManager()
		require.NoError(t, err)
		require.NoError(t, m.Load())

		cfg := m.Get()
		require.NotNil(t, cfg)
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, 1920.0, cfg.Display.CanvasWidth)
		assert.Equal(t, 100, cfg.Restore.DelayMs)
		assert.Equal(t, "1x1", cfg.DefaultLayout)
		assert.True(t, cfg.Session.Enabled)
	})

	t.Run("config file values override defaults", func(t *testing.T) {
		configHome := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", configHome)
		t.Setenv("XDG_DATA_HOME", t.TempDir())

		dir := filepath.Join(configHome, "vistagrid")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		content := `
default_layout = "2x2"

[restore]
delay_ms = 250

[display]
canvas_width = 3840.0
`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o644))

		m, err := NewManager()
		require.NoError(t, err)
		require.NoError(t, m.Load())

		cfg := m.Get()
		assert.Equal(t, "2x2", cfg.DefaultLayout)
		assert.Equal(t, 250, cfg.Restore.DelayMs)
		assert.Equal(t, 3840.0, cfg.Display.CanvasWidth)
		// Untouched sections keep their defaults.
		assert.Equal(t, 50, cfg.Restore.PollIntervalMs)
	})

	t.Run("environment variables override the file", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		t.Setenv("XDG_DATA_HOME", t.TempDir())
		t.Setenv("VISTAGRID_LOG_LEVEL", "debug")
		t.Setenv("VISTAGRID_LOG_FORMAT", "json")

		m, err := NewManager()
		require.NoError(t, err)
		require.NoError(t, m.Load())

		cfg := m.Get()
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, "json", cfg.Logging.Format)
	})
}

func TestRestoreConfig_Durations(t *testing.T) {
	r := RestoreConfig{DelayMs: 100, PollIntervalMs: 50, AnnotationGraceMs: 3000}

	assert.Equal(t, 100*time.Millisecond, r.Delay())
	assert.Equal(t, 50*time.Millisecond, r.PollInterval())
	assert.Equal(t, 3*time.Second, r.AnnotationGrace())
}

func TestGenerateSchema(t *testing.T) {
	raw, err := GenerateSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(raw, &schema))

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok, "schema has no properties")
	assert.Contains(t, props, "display")
	assert.Contains(t, props, "restore")
	assert.Contains(t, props, "session")
}
