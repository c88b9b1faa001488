// Package config loads the engine's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the engine's tunables. Zero values are filled with
// defaults by Load; Validate rejects anything a misconfigured deployment
// could silently degrade on.
type Config struct {
	// LogPath is the SQLite file holding the action log.
	LogPath string `yaml:"log_path"`

	// ReservationTTL is how long a table reservation holds, e.g. "2h".
	ReservationTTL string `yaml:"reservation_ttl"`

	// BatchSize caps atomic remote batches. 1 disables batching.
	BatchSize int `yaml:"batch_size"`

	// DrainOnStart fires a drain at engine start when online.
	DrainOnStart bool `yaml:"drain_on_start"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		LogPath:        "syncengine.db",
		ReservationTTL: "2h",
		BatchSize:      25,
		DrainOnStart:   true,
	}
}

// Load reads a YAML config file, filling defaults for omitted fields.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if c.LogPath == "" {
		return fmt.Errorf("log_path is required")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1, got %d", c.BatchSize)
	}
	if _, err := time.ParseDuration(c.ReservationTTL); err != nil {
		return fmt.Errorf("reservation_ttl: %w", err)
	}
	return nil
}

// TTL returns the parsed reservation duration. Call Validate first;
// TTL panics on an unparseable value.
func (c Config) TTL() time.Duration {
	d, err := time.ParseDuration(c.ReservationTTL)
	if err != nil {
		panic(fmt.Sprintf("config: reservation_ttl %q not validated: %v", c.ReservationTTL, err))
	}
	return d
}
