// Package state persists what the viewer was showing when it closed, so
// the next start can pick up where the user left off.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/zsimview/internal/config"
)

// MaxRecent caps the recent files list.
const MaxRecent = 10

// State is the persisted viewer state.
type State struct {
	LastFile     string   `yaml:"last_file,omitempty"`
	LastSnapshot int      `yaml:"last_snapshot"`
	LastField    string   `yaml:"last_field,omitempty"`
	DarkMode     bool     `yaml:"dark_mode"`
	Watch        bool     `yaml:"watch"`
	Window       Window   `yaml:"window"`
	Recent       []string `yaml:"recent,omitempty"`
}

// Window is the last window size. A zero size defers to the config.
type Window struct {
	Width  float32 `yaml:"width"`
	Height float32 `yaml:"height"`
}

// New returns the state of a first run.
func New() *State {
	return &State{
		LastSnapshot: -1,
		Watch:        true,
	}
}

// DefaultPath returns the state file path in the zsimview config directory.
func DefaultPath() (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "state.yaml"), nil
}

// Load reads the state at path. A missing file yields New().
func Load(path string) (*State, error) {
	st := New()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return nil, fmt.Errorf("failed to read state: %w", err)
	}
	if err := yaml.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("failed to parse state %s: %w", path, err)
	}
	if len(st.Recent) > MaxRecent {
		st.Recent = st.Recent[:MaxRecent]
	}
	return st, nil
}

// Save writes the state to path, creating its directory. The file is
// written to a temporary name and renamed into place.
func (s *State) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to save state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// AddRecent moves path to the front of the recent files list.
func (s *State) AddRecent(path string) {
	if path == "" {
		return
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	s.Recent = slices.DeleteFunc(s.Recent, func(p string) bool { return p == path })
	s.Recent = slices.Insert(s.Recent, 0, path)
	if len(s.Recent) > MaxRecent {
		s.Recent = s.Recent[:MaxRecent]
	}
}
