// Package config loads the dialtone daemon configuration from YAML.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default configuration values exported for documentation and validation.
const (
	DefaultBindAddress    = "127.0.0.1:4490"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"
	DefaultQueueWarnDepth = 1024
)

// Config is the complete daemon configuration.
type Config struct {
	IPC      IPCConfig      `yaml:"ipc"`
	Logging  LoggingConfig  `yaml:"logging"`
	Dispatch DispatchConfig `yaml:"dispatch"`
}

// IPCConfig controls the transport surface the telephony process connects to.
type IPCConfig struct {
	BindAddress string `yaml:"bind_address"`
	// PublicMetrics exposes /metrics without restriction. Off by default;
	// the endpoint returns 404 when disabled.
	PublicMetrics  bool     `yaml:"public_metrics"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
}

// DispatchConfig tunes the dispatch core.
type DispatchConfig struct {
	// QueueWarnDepth logs a backlog warning once this many envelopes are
	// pending. Zero disables the warning.
	QueueWarnDepth int `yaml:"queue_warn_depth"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		IPC: IPCConfig{
			BindAddress: DefaultBindAddress,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Dispatch: DispatchConfig{
			QueueWarnDepth: DefaultQueueWarnDepth,
		},
	}
}

// Load reads the config at path, layered over defaults. A missing file is
// not an error; the defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field values without touching the network.
func (c Config) Validate() error {
	if c.IPC.BindAddress == "" {
		return fmt.Errorf("ipc.bind_address is required")
	}
	if _, _, err := net.SplitHostPort(c.IPC.BindAddress); err != nil {
		return fmt.Errorf("ipc.bind_address %q: %w", c.IPC.BindAddress, err)
	}
	if _, err := c.Logging.SlogLevel(); err != nil {
		return err
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("logging.format %q: must be json or text", c.Logging.Format)
	}
	if c.Dispatch.QueueWarnDepth < 0 {
		return fmt.Errorf("dispatch.queue_warn_depth must not be negative")
	}
	return nil
}

// SlogLevel maps the configured level name to a slog.Level.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(l.Level) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging.level %q: unknown level", l.Level)
	}
}
