// Package config loads vstore configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// EnvDSN overrides database.dsn when set.
const EnvDSN = "VSTORE_DSN"

// Config is the root configuration document.
type Config struct {
	Database Database `yaml:"database"`
	Cache    Cache    `yaml:"cache"`
	Log      Log      `yaml:"log"`
	Metrics  Metrics  `yaml:"metrics"`
}

// Database selects the storage driver and connection string.
type Database struct {
	// Driver is a database/sql driver name: "sqlite3" or "pgx".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// Cache sizes the lookaside object cache.
type Cache struct {
	Size int `yaml:"size"`
}

// Log configures structured logging.
type Log struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Metrics configures the Prometheus namespace.
type Metrics struct {
	Namespace string `yaml:"namespace"`
}

// Default returns a configuration for a local sqlite database.
func Default() Config {
	return Config{
		Database: Database{Driver: "sqlite3", DSN: "vstore.db"},
		Cache:    Cache{Size: 1024},
		Log:      Log{Level: "info"},
		Metrics:  Metrics{Namespace: "vstore"},
	}
}

// Load reads path over the defaults, applies the environment override and
// validates the result. Unknown fields are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document over the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv applies environment overrides.
func (c *Config) ApplyEnv() {
	if dsn := os.Getenv(EnvDSN); dsn != "" {
		c.Database.DSN = dsn
	}
}

// Validate checks that required fields are present and valid.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "pgx":
	default:
		return fmt.Errorf("database.driver must be sqlite3 or pgx, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Cache.Size < 0 {
		return fmt.Errorf("cache.size must not be negative")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return nil
}
