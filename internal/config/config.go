package config

import (
	"fmt"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/kelseyhightower/envconfig"

	"github.com/gajzzs/xstorage/internal/logging"
	"github.com/gajzzs/xstorage/internal/platform"
)

// Config holds all xstorage configuration.
type Config struct {
	Probe   ProbeConfig
	Bridge  BridgeConfig
	Logging LogConfig
}

// ProbeConfig selects and tunes the volume prober.
type ProbeConfig struct {
	Prober        string        `envconfig:"XSTORAGE_PROBER" default:"auto"`
	SysfsRoot     string        `envconfig:"XSTORAGE_SYSFS_ROOT" default:"/sys"`
	ProcRoot      string        `envconfig:"XSTORAGE_PROC_ROOT" default:"/proc"`
	Timeout       time.Duration `envconfig:"XSTORAGE_PROBE_TIMEOUT" default:"5s"`
	ExcludeMounts []string      `envconfig:"XSTORAGE_EXCLUDE_MOUNTS"`
}

// BridgeConfig holds the service bridge settings.
type BridgeConfig struct {
	Socket string `envconfig:"XSTORAGE_SOCKET" default:"/run/xstorage.sock"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Probe: ProbeConfig{
			Prober:    platform.ProberAuto,
			SysfsRoot: "/sys",
			ProcRoot:  "/proc",
			Timeout:   5 * time.Second,
		},
		Bridge: BridgeConfig{
			Socket: "/run/xstorage.sock",
		},
		Logging: LogConfig{
			Level: "info",
		},
	}
}

// Validate rejects prober names and exclusion patterns that cannot work.
func (c *Config) Validate() error {
	switch c.Probe.Prober {
	case platform.ProberAuto, platform.ProberSysfs, platform.ProberDiskutil, platform.ProberNone:
	default:
		return fmt.Errorf("invalid XSTORAGE_PROBER %q", c.Probe.Prober)
	}
	for _, pattern := range c.Probe.ExcludeMounts {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid XSTORAGE_EXCLUDE_MOUNTS pattern %q", pattern)
		}
	}
	return nil
}

// PlatformOptions converts the probe settings for platform.New.
func (c *Config) PlatformOptions() platform.Options {
	return platform.Options{
		Prober:    c.Probe.Prober,
		SysfsRoot: c.Probe.SysfsRoot,
		ProcRoot:  c.Probe.ProcRoot,
		Timeout:   c.Probe.Timeout,
	}
}

// LoggerConfig converts the logging settings for logging.New.
func (c *Config) LoggerConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Logging.Level
	cfg.Development = c.Logging.Development
	return cfg
}
