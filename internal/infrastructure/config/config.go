// Package config loads daemon configuration from the environment.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all multicamd configuration.
type Config struct {
	Aggregator AggregatorConfig
	Source     SourceConfig
	Journal    JournalConfig
	Server     ServerConfig
	Logging    LogConfig
}

// AggregatorConfig holds frame aggregation configuration.
type AggregatorConfig struct {
	Workers     int    `envconfig:"WORKERS" default:"4"`
	Cameras     int    `envconfig:"CAMERAS" default:"2"`
	ToleranceNs int64  `envconfig:"TOLERANCE_NS" default:"1000000"`
	RigPath     string `envconfig:"RIG_PATH" default:""`
}

// SourceConfig holds synthetic source configuration.
type SourceConfig struct {
	FPS      float64 `envconfig:"SOURCE_FPS" default:"30"`
	JitterNs int64   `envconfig:"SOURCE_JITTER_NS" default:"200000"`
	Seed     int64   `envconfig:"SOURCE_SEED" default:"1"`
}

// JournalConfig holds bundle-event journal configuration.
type JournalConfig struct {
	Enabled bool   `envconfig:"JOURNAL_ENABLED" default:"false"`
	Path    string `envconfig:"JOURNAL_PATH" default:"multicam-journal.db"`
}

// ServerConfig holds the ops HTTP server configuration.
type ServerConfig struct {
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	Port int    `envconfig:"PORT" default:"8090"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("MULTICAM", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns defaults.
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
		Aggregator: AggregatorConfig{
			Workers:     4,
			Cameras:     2,
			ToleranceNs: 1_000_000,
		},
		Source: SourceConfig{
			FPS:      30,
			JitterNs: 200_000,
			Seed:     1,
		},
		Journal: JournalConfig{
			Enabled: false,
			Path:    "multicam-journal.db",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8090,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}
