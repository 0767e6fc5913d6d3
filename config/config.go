// Package config provides configuration loading for the cellmon daemon.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	// Module configuration
	Module ModuleConfig `yaml:"module"`

	// HTTP server configuration
	Server ServerConfig `yaml:"server"`

	// Snapshot history configuration
	Store StoreConfig `yaml:"store"`
}

// ModuleConfig holds the serial link and module settings.
type ModuleConfig struct {
	// Device is the serial device of the module's AT interface
	Device string `yaml:"device"`

	// Baud is the serial line rate
	Baud int `yaml:"baud"`

	// Family is the module family (generic, sara-r5, sara-r4)
	Family string `yaml:"family"`

	// PollInterval is how often to refresh the radio parameters
	PollInterval time.Duration `yaml:"poll_interval"`

	// CommandTimeout bounds each AT command response
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Port to serve the API and metrics on
	Port int `yaml:"port"`

	// MetricsPath is the Prometheus endpoint path
	MetricsPath string `yaml:"metrics_path"`
}

// StoreConfig holds snapshot history settings.
type StoreConfig struct {
	// Path of the sqlite database file; empty disables history
	Path string `yaml:"path"`

	// HistoryLimit caps the rows returned by the history endpoint
	HistoryLimit int `yaml:"history_limit"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Module: ModuleConfig{
			Device:         "/dev/ttyUSB0",
			Baud:           115200,
			Family:         "generic",
			PollInterval:   30 * time.Second,
			CommandTimeout: 8 * time.Second,
		},
		Server: ServerConfig{
			Port:        9101,
			MetricsPath: "/metrics",
		},
		Store: StoreConfig{
			Path:         "data/cellmon.db",
			HistoryLimit: 100,
		},
	}
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// LoadConfigFromEnv loads configuration from environment variables.
// Environment variables override values from the config file.
func LoadConfigFromEnv(cfg *Config) {
	if device := os.Getenv("CELLMON_DEVICE"); device != "" {
		cfg.Module.Device = device
	}

	if baud := os.Getenv("CELLMON_BAUD"); baud != "" {
		var b int
		if _, err := fmt.Sscanf(baud, "%d", &b); err == nil {
			cfg.Module.Baud = b
		}
	}

	if family := os.Getenv("CELLMON_FAMILY"); family != "" {
		cfg.Module.Family = family
	}

	if interval := os.Getenv("CELLMON_POLL_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			cfg.Module.PollInterval = d
		}
	}

	if timeout := os.Getenv("CELLMON_COMMAND_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.Module.CommandTimeout = d
		}
	}

	if port := os.Getenv("CELLMON_PORT"); port != "" {
		var p int
		if _, err := fmt.Sscanf(port, "%d", &p); err == nil {
			cfg.Server.Port = p
		}
	}

	if path := os.Getenv("CELLMON_STORE_PATH"); path != "" {
		cfg.Store.Path = path
	}
}
