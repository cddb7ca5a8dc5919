// Package config loads daemon configuration from a YAML file with
// environment overrides. A .env file in the working directory is honoured
// for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full daemon configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Session  SessionConfig  `yaml:"session"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig describes the TCP listener.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	DrainTimeout time.Duration `yaml:"drain_timeout"`
	// MaxConns caps concurrent client connections. Zero means unlimited.
	MaxConns int `yaml:"max_conns"`
}

// Addr returns the host:port the listener binds.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig selects the persistence backend.
type DatabaseConfig struct {
	// Driver is "postgres" or "memory".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// SessionConfig tunes session expiry.
type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// LoggingConfig mirrors pkg/logger's construction options.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MetricsConfig describes the operational HTTP listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Default returns the configuration used when no file or overrides exist.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         5555,
			DrainTimeout: 5 * time.Second,
		},
		Database: DatabaseConfig{Driver: "postgres"},
		Session: SessionConfig{
			TTL:           8 * time.Hour,
			SweepInterval: 5 * time.Minute,
		},
		Logging: LoggingConfig{Level: "info", Format: "text", Output: "stdout"},
		Metrics: MetricsConfig{Enabled: true, Addr: ":9090"},
	}
}

// Load reads path (optional; "" skips the file), applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("POSD_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("POSD_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("POSD_MAX_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MaxConns = n
		}
	}
	if v := os.Getenv("POSD_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("POSD_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("POSD_SESSION_TTL"); v != "" {
		if ttl, err := time.ParseDuration(v); err == nil {
			cfg.Session.TTL = ttl
		}
	}
	if v := os.Getenv("POSD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("POSD_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("POSD_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
}

func (c Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	switch c.Database.Driver {
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("config: postgres driver requires a dsn")
		}
	case "memory":
	default:
		return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("config: session ttl must be positive")
	}
	if c.Session.SweepInterval <= 0 {
		return fmt.Errorf("config: session sweep interval must be positive")
	}
	return nil
}
