// Package config loads server settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every setting the server reads at startup. Command-line
// flags in cmd/server override these values.
type Config struct {
	Port           int           `env:"SNAPLEDGER_PORT"              envDefault:"8080"`
	DBPath         string        `env:"SNAPLEDGER_DB"                envDefault:"snapledger.db"`
	AllowedOrigins []string      `env:"SNAPLEDGER_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"http://localhost:5173,http://localhost:8080"`
	ShutdownGrace  time.Duration `env:"SNAPLEDGER_SHUTDOWN_GRACE"    envDefault:"30s"`

	// SnapshotInterval enables the snapshot scheduler when > 0.
	SnapshotInterval time.Duration `env:"SNAPLEDGER_SNAPSHOT_INTERVAL" envDefault:"0s"`

	Log LogConfig
}

// LogConfig selects where logs go. An empty File logs to stderr.
type LogConfig struct {
	File       string `env:"SNAPLEDGER_LOG_FILE"`
	MaxSizeMB  int    `env:"SNAPLEDGER_LOG_MAX_SIZE_MB"  envDefault:"100"`
	MaxAgeDays int    `env:"SNAPLEDGER_LOG_MAX_AGE_DAYS" envDefault:"28"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("database path is required")
	}
	if c.SnapshotInterval < 0 {
		return fmt.Errorf("snapshot interval must not be negative, got %v", c.SnapshotInterval)
	}
	return nil
}
