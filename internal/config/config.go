// Package config loads the viewer's YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// AppName names the directory holding config and state files.
const AppName = "zsimview"

// Config is the viewer configuration.
type Config struct {
	Theme   string        `yaml:"theme"` // system, light or dark
	Watch   WatchConfig   `yaml:"watch"`
	Logging LoggingConfig `yaml:"logging"`
	Window  WindowConfig  `yaml:"window"`
	Labels  LabelsConfig  `yaml:"labels"`
}

// WatchConfig controls reloading when the open file changes.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`  // empty logs to stderr
}

// WindowConfig is the initial window size.
type WindowConfig struct {
	Width  float32 `yaml:"width"`
	Height float32 `yaml:"height"`
}

// LabelsConfig controls how snapshot labels are computed.
type LabelsConfig struct {
	Concurrency int `yaml:"concurrency"`
}

var (
	ValidThemes = []string{"system", "light", "dark"}
	ValidLevels = []string{"debug", "info", "warn", "error"}
)

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Theme: "system",
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: 500 * time.Millisecond,
		},
		Logging: LoggingConfig{Level: "info"},
		Window:  WindowConfig{Width: 1200, Height: 700},
		Labels:  LabelsConfig{Concurrency: 8},
	}
}

// Dir returns the directory for zsimview's config and state files, under
// $XDG_CONFIG_HOME when set and the platform config directory otherwise.
func Dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName), nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config directory: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// DefaultPath returns the default config file path.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads path over the defaults and validates the result. A missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every field against its allowed values.
func (c *Config) Validate() error {
	if !slices.Contains(ValidThemes, c.Theme) {
		return fmt.Errorf("invalid theme: %q (valid: %v)", c.Theme, ValidThemes)
	}
	if !slices.Contains(ValidLevels, c.Logging.Level) {
		return fmt.Errorf("invalid logging.level: %q (valid: %v)", c.Logging.Level, ValidLevels)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("invalid watch.debounce: %s", c.Watch.Debounce)
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("invalid window size: %gx%g", c.Window.Width, c.Window.Height)
	}
	if c.Labels.Concurrency <= 0 {
		return fmt.Errorf("invalid labels.concurrency: %d", c.Labels.Concurrency)
	}
	return nil
}
