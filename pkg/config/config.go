// Package config handles loading and saving opsglass configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/opsglass/config.yaml
//   - Data:    ~/.local/share/opsglass/ (snapshots, exports)
//   - State:   ~/.local/state/opsglass/ (view state cache)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SourceConfig names where the dashboard data comes from. Exactly one of
// Endpoint / Fixture / SnapshotDB is used, preferred in that order.
type SourceConfig struct {
	// Endpoint is the base URL of the metrics API, e.g.
	// "http://127.0.0.1:8000". The aggregate and drill-down paths are
	// resolved relative to it.
	Endpoint string `yaml:"endpoint,omitempty"`
	// Fixture is a local JSON file holding an aggregate payload plus
	// drill-down records, for offline viewing and demos.
	Fixture string `yaml:"fixture,omitempty"`
	// SnapshotDB is a local SQLite snapshot of the dashboard tables.
	SnapshotDB string `yaml:"snapshot_db,omitempty"`
	// WatchFixture enables live reload when the fixture file changes.
	WatchFixture bool `yaml:"watch_fixture,omitempty"`
}

// PanelConfig tunes one panel's carousel.
type PanelConfig struct {
	StepDistance int     `yaml:"step_distance,omitempty"` // rows per offset unit
	IntervalS    float64 `yaml:"interval_s,omitempty"`    // seconds between ticks
	TransitionS  float64 `yaml:"transition_s,omitempty"`  // eased scroll duration
}

// Interval returns the tick cadence as a duration (0 when unset).
func (p PanelConfig) Interval() time.Duration {
	return time.Duration(p.IntervalS * float64(time.Second))
}

// Transition returns the eased scroll duration (0 when unset).
func (p PanelConfig) Transition() time.Duration {
	return time.Duration(p.TransitionS * float64(time.Second))
}

// DesignConfig fixes the resolution the dashboard layout is authored
// against. The scale adapter fits this canvas to the live viewport.
type DesignConfig struct {
	Width  int `yaml:"width,omitempty"`
	Height int `yaml:"height,omitempty"`
}

// UIConfig holds presentation preferences.
type UIConfig struct {
	// ResizeDebounceMs is the quiescence window for coalescing resize
	// events before the scale is reapplied.
	ResizeDebounceMs int `yaml:"resize_debounce_ms,omitempty"`
	// MouseEnabled turns on chart click-to-drill-down via the mouse.
	MouseEnabled *bool `yaml:"mouse_enabled,omitempty"`
}

// ResizeDebounce returns the configured quiescence window.
func (u UIConfig) ResizeDebounce() time.Duration {
	if u.ResizeDebounceMs <= 0 {
		return 200 * time.Millisecond
	}
	return time.Duration(u.ResizeDebounceMs) * time.Millisecond
}

// Config is the top-level configuration for opsglass.
type Config struct {
	Source SourceConfig           `yaml:"source,omitempty"`
	Design DesignConfig           `yaml:"design,omitempty"`
	Panels map[string]PanelConfig `yaml:"panels,omitempty"` // keyed by panel identifier
	UI     UIConfig               `yaml:"ui,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Design: DesignConfig{Width: 1920, Height: 1080},
		Panels: make(map[string]PanelConfig),
		UI:     UIConfig{ResizeDebounceMs: 200},
	}
}

// Panel returns the carousel tuning for a panel identifier, falling back
// to zero values (the carousel engine substitutes its own defaults).
func (c Config) Panel(id string) PanelConfig {
	if c.Panels == nil {
		return PanelConfig{}
	}
	return c.Panels[id]
}

// ConfigDir returns the XDG config directory for opsglass.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "opsglass")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "opsglass")
}

// DataDir returns the XDG data directory for opsglass.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "opsglass")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "opsglass")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Panels == nil {
		cfg.Panels = make(map[string]PanelConfig)
	}
	if cfg.Design.Width <= 0 {
		cfg.Design.Width = 1920
	}
	if cfg.Design.Height <= 0 {
		cfg.Design.Height = 1080
	}
	cfg.Source.Fixture = expandHome(cfg.Source.Fixture)
	cfg.Source.SnapshotDB = expandHome(cfg.Source.SnapshotDB)

	return cfg, nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
