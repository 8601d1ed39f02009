package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.HTTPAddress != ":8080" {
		t.Errorf("http address = %q, want :8080", cfg.Server.HTTPAddress)
	}
	if cfg.Server.MetricsAddress != ":9090" {
		t.Errorf("metrics address = %q, want :9090", cfg.Server.MetricsAddress)
	}
	if cfg.Database.Path != "data/pontual.db" {
		t.Errorf("database path = %q, want data/pontual.db", cfg.Database.Path)
	}
	if cfg.Auth.AccessTokenTTL != 15*time.Minute {
		t.Errorf("access token TTL = %v, want 15m", cfg.Auth.AccessTokenTTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  http_address: ":9000"
database:
  path: /var/lib/pontual/pontual.db
auth:
  access_token_ttl: 5m
  lockout_threshold: 3
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.HTTPAddress != ":9000" {
		t.Errorf("http address = %q, want :9000", cfg.Server.HTTPAddress)
	}
	if cfg.Database.Path != "/var/lib/pontual/pontual.db" {
		t.Errorf("database path = %q", cfg.Database.Path)
	}
	if cfg.Auth.AccessTokenTTL != 5*time.Minute {
		t.Errorf("access token TTL = %v, want 5m", cfg.Auth.AccessTokenTTL)
	}
	if cfg.Auth.LockoutThreshold != 3 {
		t.Errorf("lockout threshold = %d, want 3", cfg.Auth.LockoutThreshold)
	}
	// Unset fields fall back to defaults.
	if cfg.Auth.RateLimitPerUser != 120 {
		t.Errorf("rate limit per user = %d, want default 120", cfg.Auth.RateLimitPerUser)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestConfigValidate_RejectsShortAccessTTL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth.AccessTokenTTL = 10 * time.Second

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for sub-minute access token TTL")
	}
}

func TestConfigValidate_RejectsRefreshShorterThanAccess(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth.AccessTokenTTL = time.Hour
	cfg.Auth.RefreshTokenTTL = 30 * time.Minute

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error when refresh TTL does not exceed access TTL")
	}
}
