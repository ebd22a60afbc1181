package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Design.Width != 1920 || cfg.Design.Height != 1080 {
		t.Errorf("expected 1920x1080 design, got %dx%d", cfg.Design.Width, cfg.Design.Height)
	}
	if cfg.UI.ResizeDebounceMs != 200 {
		t.Errorf("expected 200ms resize debounce, got %d", cfg.UI.ResizeDebounceMs)
	}
	if cfg.Panels == nil {
		t.Error("expected panels map to be initialized")
	}
}

func TestLoadFrom_NonExistent(t *testing.T) {
	cfg, err := LoadFrom("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg.Design.Width != 1920 {
		t.Errorf("expected default config, got design width %d", cfg.Design.Width)
	}
}

func TestLoadFrom_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
source:
  endpoint: http://127.0.0.1:8000
  fixture: ~/snapshots/bi_data.json
  watch_fixture: true

design:
  width: 1600
  height: 900

panels:
  leftTop:
    step_distance: 1
    interval_s: 2.5
    transition_s: 0.5
  bottom:
    step_distance: 2

ui:
  resize_debounce_ms: 150
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Source.Endpoint != "http://127.0.0.1:8000" {
		t.Errorf("endpoint = %q", cfg.Source.Endpoint)
	}
	if !cfg.Source.WatchFixture {
		t.Error("watch_fixture not parsed")
	}
	// Fixture path should have ~ expanded.
	home, _ := os.UserHomeDir()
	wantFixture := filepath.Join(home, "snapshots/bi_data.json")
	if cfg.Source.Fixture != wantFixture {
		t.Errorf("fixture = %q, want %q", cfg.Source.Fixture, wantFixture)
	}
	if cfg.Design.Width != 1600 || cfg.Design.Height != 900 {
		t.Errorf("design = %dx%d", cfg.Design.Width, cfg.Design.Height)
	}

	lt := cfg.Panel("leftTop")
	if lt.StepDistance != 1 {
		t.Errorf("leftTop step distance = %d", lt.StepDistance)
	}
	if lt.Interval() != 2500*time.Millisecond {
		t.Errorf("leftTop interval = %v", lt.Interval())
	}
	if lt.Transition() != 500*time.Millisecond {
		t.Errorf("leftTop transition = %v", lt.Transition())
	}
	if cfg.Panel("unknownPanel") != (PanelConfig{}) {
		t.Error("unknown panel should return zero config")
	}

	if cfg.UI.ResizeDebounce() != 150*time.Millisecond {
		t.Errorf("resize debounce = %v", cfg.UI.ResizeDebounce())
	}
}

func TestLoadFrom_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("source: [not a map"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Error("expected parse error for invalid YAML")
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Source.Endpoint = "http://metrics.internal:9000"
	cfg.Panels["rightTop"] = PanelConfig{StepDistance: 3, IntervalS: 1}

	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if loaded.Source.Endpoint != cfg.Source.Endpoint {
		t.Errorf("endpoint round-trip = %q", loaded.Source.Endpoint)
	}
	if loaded.Panel("rightTop").StepDistance != 3 {
		t.Errorf("panel round-trip = %+v", loaded.Panel("rightTop"))
	}
}

func TestResizeDebounceFallback(t *testing.T) {
	u := UIConfig{}
	if u.ResizeDebounce() != 200*time.Millisecond {
		t.Errorf("zero config debounce = %v, want 200ms", u.ResizeDebounce())
	}
}
