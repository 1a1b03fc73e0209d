package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
theme: dark
watch:
  enabled: false
  debounce: 2s
logging:
  level: debug
  file: /tmp/zsimview.log
labels:
  concurrency: 2
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "dark", cfg.Theme)
	assert.False(t, cfg.Watch.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Watch.Debounce)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/tmp/zsimview.log", cfg.Logging.File)
	assert.Equal(t, 2, cfg.Labels.Concurrency)
	// untouched keys keep their defaults
	assert.Equal(t, WindowConfig{Width: 1200, Height: 700}, cfg.Window)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"theme", "theme: purple", "invalid theme"},
		{"level", "logging:\n  level: trace", "invalid logging.level"},
		{"width", "window:\n  width: 0", "invalid window size"},
		{"debounce", "watch:\n  debounce: -1s", "invalid watch.debounce"},
		{"concurrency", "labels:\n  concurrency: -3", "invalid labels.concurrency"},
		{"yaml", "theme: [", "failed to parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	dir, err := Dir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/xdg", AppName), dir)

	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/xdg", AppName, "config.yaml"), path)
}
