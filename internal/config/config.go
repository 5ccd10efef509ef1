package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Store backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Server ServerConfig
	Store  StoreConfig
	App    AppConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"SERVER_PORT" default:"3366"`
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	BaseURL         string        `envconfig:"SERVER_BASE_URL" default:"http://localhost:3366"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"10s"`
	IdleTimeout     time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"5s"`
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	return nil
}

// StoreConfig selects and configures the link store backend.
type StoreConfig struct {
	Backend string `envconfig:"STORE_BACKEND" default:"sqlite"`

	// SQLite backend.
	SQLitePath string `envconfig:"STORE_SQLITE_PATH" default:"db.sqlite"`

	// Postgres backend.
	Host     string `envconfig:"DB_HOST"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER"`
	Password string `envconfig:"DB_PASSWORD"`
	Name     string `envconfig:"DB_NAME"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns int32  `envconfig:"DB_MIN_CONNS" default:"2"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	switch c.Backend {
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite path cannot be empty")
		}
		return nil

	case BackendPostgres:
		if c.Host == "" {
			return fmt.Errorf("db host cannot be empty")
		}
		if c.User == "" {
			return fmt.Errorf("db user cannot be empty")
		}
		if c.Name == "" {
			return fmt.Errorf("db name cannot be empty")
		}
		if c.MaxConns <= 0 {
			return fmt.Errorf("max connections must be positive")
		}
		if c.MinConns <= 0 {
			return fmt.Errorf("min connections must be positive")
		}
		if c.MinConns > c.MaxConns {
			return fmt.Errorf("min connections (%d) cannot be greater than max connections (%d)",
				c.MinConns, c.MaxConns)
		}

		validSSLModes := map[string]bool{
			"disable":     true,
			"require":     true,
			"verify-ca":   true,
			"verify-full": true,
		}
		if !validSSLModes[c.SSLMode] {
			return fmt.Errorf("invalid SSL mode: %s (must be one of: disable, require, verify-ca, verify-full)", c.SSLMode)
		}
		return nil

	default:
		return fmt.Errorf("invalid store backend: %s (must be %s or %s)",
			c.Backend, BackendSQLite, BackendPostgres)
	}
}

// ConnectionString returns the PostgreSQL connection string.
func (c *StoreConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// AppConfig holds application-specific configuration.
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" default:"development"` // development, staging, production, test
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`      // debug, info, warn, error
}

// Validate validates the app configuration.
func (c *AppConfig) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
		"test":        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s (must be one of: development, staging, production, test)", c.Environment)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}
	return nil
}

// Load loads configuration from environment variables only.
// (Do .env loading in the composition root for dev, not here.)
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process("", &cfg.Server); err != nil {
		return nil, fmt.Errorf("failed to load Server config: %w", err)
	}
	if err := cfg.Server.Validate(); err != nil {
		return nil, fmt.Errorf("invalid Server config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Store); err != nil {
		return nil, fmt.Errorf("failed to load Store config: %w", err)
	}
	if err := cfg.Store.Validate(); err != nil {
		return nil, fmt.Errorf("invalid Store config: %w", err)
	}

	if err := envconfig.Process("", &cfg.App); err != nil {
		return nil, fmt.Errorf("failed to load App config: %w", err)
	}
	if err := cfg.App.Validate(); err != nil {
		return nil, fmt.Errorf("invalid App config: %w", err)
	}

	return cfg, nil
}
