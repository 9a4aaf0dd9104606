package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chaz8081/blelink/internal/ble"
)

// Config holds all application configuration.
type Config struct {
	LogLevel  string        `yaml:"log_level"`
	LogFormat string        `yaml:"log_format"` // "console" or "json"
	Backend   string        `yaml:"backend"`    // "auto", "gatt" or "tinygo"
	Scan      ScanConfig    `yaml:"scan"`
	Connect   ConnectConfig `yaml:"connect"`
	Signal    SignalConfig  `yaml:"signal"`
	Metrics   MetricsConfig `yaml:"metrics"`
}

// ScanConfig holds discovery settings.
type ScanConfig struct {
	DedupKey              string `yaml:"dedup_key"` // "name" or "id"
	ResumeAfterDisconnect bool   `yaml:"resume_after_disconnect"`
}

// ConnectConfig selects the peripheral to connect to automatically.
// TargetID takes precedence over TargetName.
type ConnectConfig struct {
	TargetName string `yaml:"target_name"`
	TargetID   string `yaml:"target_id"`
}

// SignalConfig holds signal strength polling settings.
type SignalConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

// MetricsConfig holds the Prometheus exporter settings.
type MetricsConfig struct {
	Listen string `yaml:"listen"` // empty disables the exporter
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "blelink")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "console",
		Backend:   "auto",
		Scan: ScanConfig{
			DedupKey:              "name",
			ResumeAfterDisconnect: true,
		},
		Signal: SignalConfig{
			PollInterval: ble.DefaultPollInterval,
		},
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(expandTilde(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log_format must be \"console\" or \"json\", got %q", c.LogFormat)
	}

	switch c.Backend {
	case "auto", "gatt", "tinygo":
	default:
		return fmt.Errorf("backend must be auto, gatt, or tinygo, got %q", c.Backend)
	}

	if _, err := ble.ParseDedupKey(c.Scan.DedupKey); err != nil {
		return fmt.Errorf("scan.dedup_key: %w", err)
	}

	if c.Signal.PollInterval <= 0 {
		return fmt.Errorf("signal.poll_interval must be > 0, got %s", c.Signal.PollInterval)
	}

	if c.Metrics.Listen != "" && !strings.Contains(c.Metrics.Listen, ":") {
		return fmt.Errorf("metrics.listen must be host:port, got %q", c.Metrics.Listen)
	}

	return nil
}

// ManagerOptions converts the config into ble.Manager options. The logger is
// left unset so the manager uses slog.Default().
func (c *Config) ManagerOptions() ble.Options {
	key, err := ble.ParseDedupKey(c.Scan.DedupKey)
	if err != nil {
		key = ble.DedupByName
	}
	return ble.Options{
		PollInterval: c.Signal.PollInterval,
		DedupKey:     key,
		ResumeScan:   c.Scan.ResumeAfterDisconnect,
	}
}

// HasTarget reports whether a peripheral is configured for auto-connect.
func (c *Config) HasTarget() bool {
	return c.Connect.TargetID != "" || c.Connect.TargetName != ""
}

const defaultHeader = `# blelink configuration
#
# log_level: debug, info, warn or error
# log_format: console or json
# backend: auto, gatt or tinygo
# scan.dedup_key: name (one entry per advertised name) or id
# connect.target_id takes precedence over connect.target_name
# metrics.listen: e.g. ":9110", empty disables the exporter

`

// WriteDefault writes the default config to DefaultConfigPath. It returns the
// written path, or "" without error if a config file already exists.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("checking %s: %w", path, err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(defaultHeader), data...), 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// ParseLogLevel maps a config log level to a slog.Level. Unknown values
// map to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
