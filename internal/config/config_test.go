package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "base_dir: /srv/project\noutput_dir: dist\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.SweepRoot() != "/srv/project/dist" {
		t.Errorf("SweepRoot: got %s", cfg.SweepRoot())
	}
	if cfg.BuildTimeout() != 10*time.Minute {
		t.Errorf("BuildTimeout: got %v", cfg.BuildTimeout())
	}
	if cfg.Debounce() != 300*time.Millisecond {
		t.Errorf("Debounce: got %v", cfg.Debounce())
	}
	if cfg.Logging.Dir != DefaultLogDir || cfg.Logging.RotationDays != 30 {
		t.Errorf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if !cfg.ColorEnabled() {
		t.Error("colour should default to enabled")
	}
	if cfg.Prometheus.Port != 0 {
		t.Errorf("metrics server should be disabled by default, got port %d", cfg.Prometheus.Port)
	}
	if cfg.DatabasePath != "" {
		t.Errorf("history should be disabled by default, got %s", cfg.DatabasePath)
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
base_dir: /srv/project
output_dir: /srv/out
build:
  command: ["make", "all"]
  timeout_seconds: 30
watch:
  enabled: true
  paths: ["src", "/etc/templates"]
  debounce_millis: 50
logging:
  dir: /tmp/logs
  rotation_days: 7
  color: false
prometheus:
  port: 9191
database_path: state/sweeps.db
protected_paths: ["/srv/project/src"]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.SweepRoot() != "/srv/out" {
		t.Errorf("absolute output_dir should win, got %s", cfg.SweepRoot())
	}
	if strings.Join(cfg.Build.Command, " ") != "make all" {
		t.Errorf("Build.Command: got %v", cfg.Build.Command)
	}
	watch := cfg.WatchPaths()
	if len(watch) != 2 || watch[0] != "/srv/project/src" || watch[1] != "/etc/templates" {
		t.Errorf("WatchPaths: got %v", watch)
	}
	if cfg.ColorEnabled() {
		t.Error("colour should be disabled")
	}
	if cfg.PrometheusAddress() != ":9191" {
		t.Errorf("PrometheusAddress: got %s", cfg.PrometheusAddress())
	}
	if cfg.DatabasePath != "/srv/project/state/sweeps.db" {
		t.Errorf("DatabasePath: got %s", cfg.DatabasePath)
	}
	if len(cfg.ProtectedPaths) != 1 {
		t.Errorf("ProtectedPaths: got %v", cfg.ProtectedPaths)
	}
}

func TestLoadRelativeBaseDir(t *testing.T) {
	path := writeConfig(t, "base_dir: project\noutput_dir: out\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	expected := filepath.Join(filepath.Dir(path), "project")
	if cfg.BaseDir != expected {
		t.Errorf("BaseDir: expected %s, got %s", expected, cfg.BaseDir)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"missing base", "output_dir: out\n", errNoBaseDir},
		{"missing output", "base_dir: /p\n", errNoOutputDir},
		{"negative timeout", "base_dir: /p\noutput_dir: o\nbuild:\n  timeout_seconds: -1\n", errNegativeValue},
		{"negative debounce", "base_dir: /p\noutput_dir: o\nwatch:\n  debounce_millis: -5\n", errNegativeValue},
		{"bad port", "base_dir: /p\noutput_dir: o\nprometheus:\n  port: 70000\n", errInvalidPort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load(writeConfig(t, "base_dir: /p\noutput_dir: o\nscan_paths: [/tmp]\n"))
	if err == nil || !strings.Contains(err.Error(), "decode yaml") {
		t.Errorf("expected decode error for unknown field, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "open config") {
		t.Errorf("expected open error, got %v", err)
	}
}

func TestDefault(t *testing.T) {
	cfg, err := Default("/p", "out")
	if err != nil {
		t.Fatalf("Default failed: %v", err)
	}
	if cfg.SweepRoot() != "/p/out" {
		t.Errorf("SweepRoot: got %s", cfg.SweepRoot())
	}
	if cfg.Watch.Enabled {
		t.Error("watch should be off by default")
	}

	if _, err := Default("", "out"); !errors.Is(err, errNoBaseDir) {
		t.Errorf("expected errNoBaseDir, got %v", err)
	}
}

func TestValidateAfterOverrides(t *testing.T) {
	cfg, err := Default("/p", "out")
	if err != nil {
		t.Fatalf("Default failed: %v", err)
	}

	cfg.Watch.Enabled = true
	cfg.DatabasePath = "history.db"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if got := cfg.WatchPaths(); len(got) != 1 || got[0] != "/p" {
		t.Errorf("WatchPaths: got %v", got)
	}
	if cfg.DatabasePath != "/p/history.db" {
		t.Errorf("DatabasePath: got %s", cfg.DatabasePath)
	}

	cfg.Prometheus.Port = 70000
	if err := cfg.Validate(); !errors.Is(err, errInvalidPort) {
		t.Errorf("expected errInvalidPort, got %v", err)
	}
}
