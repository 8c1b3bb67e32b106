package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type BuildCfg struct {
	Command        []string `yaml:"command" json:"command"`                 // Build command run before each sweep; empty means sweep only
	TimeoutSeconds int      `yaml:"timeout_seconds" json:"timeout_seconds"` // Upper bound for one build command run
}

type WatchCfg struct {
	Enabled        bool     `yaml:"enabled" json:"enabled"`
	Paths          []string `yaml:"paths" json:"paths"`                     // Source paths, relative to base_dir
	DebounceMillis int      `yaml:"debounce_millis" json:"debounce_millis"` // Quiet period before a rebuild
}

type PrometheusCfg struct {
	Port int `yaml:"port" json:"port"`
}

type LoggingCfg struct {
	Dir          string `yaml:"dir" json:"dir"`
	RotationDays int    `yaml:"rotation_days" json:"rotation_days"` // Days to keep logs before rotation
	Color        *bool  `yaml:"color" json:"color"`                 // Colour console output on terminals (default: true)
}

type Config struct {
	BaseDir        string        `yaml:"base_dir" json:"base_dir"`
	OutputDir      string        `yaml:"output_dir" json:"output_dir"` // Absolute or relative to base_dir
	Build          BuildCfg      `yaml:"build" json:"build"`
	Watch          WatchCfg      `yaml:"watch" json:"watch"`
	Logging        LoggingCfg    `yaml:"logging" json:"logging"`
	Prometheus     PrometheusCfg `yaml:"prometheus" json:"prometheus"`         // Port 0 disables the metrics server
	DatabasePath   string        `yaml:"database_path" json:"database_path"`   // Path to SQLite database for sweep history; empty disables it
	ProtectedPaths []string      `yaml:"protected_paths" json:"protected_paths"` // Extra paths a sweep root may never touch
}

const DefaultLogDir = "/var/log/empty-sweep"

var (
	errNoBaseDir     = errors.New("configuration must specify base_dir")
	errNoOutputDir   = errors.New("configuration must specify output_dir")
	errNegativeValue = errors.New("value cannot be negative")
	errInvalidPort   = errors.New("prometheus port out of range")
)

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := decode(f)
	if err != nil {
		return nil, err
	}
	// A relative base_dir in a config file is taken from the file's directory
	if cfg.BaseDir != "" && !filepath.IsAbs(cfg.BaseDir) {
		cfg.BaseDir = filepath.Join(filepath.Dir(path), cfg.BaseDir)
	}
	if err := cfg.validateAndDefault(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default builds a configuration from the two sweep directories alone
func Default(baseDir, outputDir string) (*Config, error) {
	cfg := &Config{BaseDir: baseDir, OutputDir: outputDir}
	if err := cfg.validateAndDefault(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

// Validate re-applies defaults and checks the configuration, for callers
// that override fields after Load or Default
func (c *Config) Validate() error {
	return c.validateAndDefault()
}

func (c *Config) validateAndDefault() error {
	if c.BaseDir == "" {
		return errNoBaseDir
	}
	if c.OutputDir == "" {
		return errNoOutputDir
	}

	abs, err := filepath.Abs(c.BaseDir)
	if err != nil {
		return fmt.Errorf("resolve base_dir: %w", err)
	}
	c.BaseDir = filepath.Clean(abs)

	if c.Build.TimeoutSeconds < 0 {
		return fmt.Errorf("build.timeout_seconds: %w", errNegativeValue)
	}
	if c.Build.TimeoutSeconds == 0 {
		c.Build.TimeoutSeconds = 600 // Default: 10 minutes per build
	}

	if c.Watch.DebounceMillis < 0 {
		return fmt.Errorf("watch.debounce_millis: %w", errNegativeValue)
	}
	if c.Watch.DebounceMillis == 0 {
		c.Watch.DebounceMillis = 300
	}
	if c.Watch.Enabled && len(c.Watch.Paths) == 0 {
		c.Watch.Paths = []string{"."} // Default: watch the whole base directory
	}

	if c.Logging.Dir == "" {
		c.Logging.Dir = DefaultLogDir
	}
	if c.Logging.RotationDays <= 0 {
		c.Logging.RotationDays = 30 // Default: keep logs for 30 days
	}
	if c.Logging.Color == nil {
		enabled := true
		c.Logging.Color = &enabled
	}

	if c.Prometheus.Port < 0 || c.Prometheus.Port > 65535 {
		return fmt.Errorf("%w: %d", errInvalidPort, c.Prometheus.Port)
	}

	if c.DatabasePath != "" && !filepath.IsAbs(c.DatabasePath) {
		c.DatabasePath = filepath.Join(c.BaseDir, c.DatabasePath)
	}

	return nil
}

// SweepRoot is the output directory resolved against the base directory
func (c *Config) SweepRoot() string {
	if filepath.IsAbs(c.OutputDir) {
		return filepath.Clean(c.OutputDir)
	}
	return filepath.Join(c.BaseDir, c.OutputDir)
}

// WatchPaths returns the watch paths resolved against the base directory
func (c *Config) WatchPaths() []string {
	out := make([]string, 0, len(c.Watch.Paths))
	for _, p := range c.Watch.Paths {
		if filepath.IsAbs(p) {
			out = append(out, filepath.Clean(p))
			continue
		}
		out = append(out, filepath.Join(c.BaseDir, p))
	}
	return out
}

func (c *Config) BuildTimeout() time.Duration {
	return time.Duration(c.Build.TimeoutSeconds) * time.Second
}

func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMillis) * time.Millisecond
}

func (c *Config) ColorEnabled() bool {
	return c.Logging.Color == nil || *c.Logging.Color
}

func (c *Config) PrometheusAddress() string {
	return fmt.Sprintf(":%d", c.Prometheus.Port)
}
