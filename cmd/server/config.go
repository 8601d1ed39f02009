// Package main provides the Pontual server CLI.
package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Verbose  bool           `yaml:"-"` // set via CLI flag
}

// ServerConfig contains listener settings.
type ServerConfig struct {
	HTTPAddress    string `yaml:"http_address"`    // REST API listen address (default: :8080)
	MetricsAddress string `yaml:"metrics_address"` // Prometheus listen address (default: :9090)
}

// DatabaseConfig contains storage settings.
type DatabaseConfig struct {
	Path string `yaml:"path"` // SQLite database file (default: data/pontual.db)
}

// AuthConfig contains authentication settings. The JWT secret is never read
// from the file; it comes from the PONTUAL_JWT_SECRET environment variable.
type AuthConfig struct {
	AccessTokenTTL   time.Duration `yaml:"access_token_ttl"`   // default: 15m
	RefreshTokenTTL  time.Duration `yaml:"refresh_token_ttl"`  // default: 168h
	LockoutThreshold int           `yaml:"lockout_threshold"`  // failed logins before lockout (default: 5)
	LockoutDuration  time.Duration `yaml:"lockout_duration"`   // default: 30m
	RateLimitPerIP   int           `yaml:"rate_limit_per_ip"`  // login attempts per minute per IP (default: 10)
	RateLimitPerUser int           `yaml:"rate_limit_per_user"` // requests per minute per user (default: 120)
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.Server.HTTPAddress == "" {
		c.Server.HTTPAddress = ":8080"
	}
	if c.Server.MetricsAddress == "" {
		c.Server.MetricsAddress = ":9090"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/pontual.db"
	}
	if c.Auth.AccessTokenTTL == 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL == 0 {
		c.Auth.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if c.Auth.LockoutThreshold == 0 {
		c.Auth.LockoutThreshold = 5
	}
	if c.Auth.LockoutDuration == 0 {
		c.Auth.LockoutDuration = 30 * time.Minute
	}
	if c.Auth.RateLimitPerIP == 0 {
		c.Auth.RateLimitPerIP = 10
	}
	if c.Auth.RateLimitPerUser == 0 {
		c.Auth.RateLimitPerUser = 120
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.HTTPAddress == "" {
		return fmt.Errorf("server.http_address is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Auth.AccessTokenTTL < time.Minute {
		return fmt.Errorf("auth.access_token_ttl must be at least 1m")
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		return fmt.Errorf("auth.refresh_token_ttl must exceed auth.access_token_ttl")
	}
	return nil
}
