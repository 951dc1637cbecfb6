package config

import (
	"testing"
	"time"
)

// TestLoadDefaults tests the zero-environment fallbacks.
func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"FIELDSYNC_DATA_DIR", "FIELDSYNC_API_URL", "FIELDSYNC_API_TOKEN",
		"FIELDSYNC_LISTEN_ADDR", "FIELDSYNC_HTTP_TIMEOUT_SECONDS",
		"FIELDSYNC_PROBE_INTERVAL_SECONDS", "FIELDSYNC_CATALOG_REFRESH_SECONDS",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.APIBaseURL != "http://localhost:3000" {
		t.Errorf("Unexpected default API URL: %s", cfg.APIBaseURL)
	}
	if cfg.ListenAddr != "127.0.0.1:8787" {
		t.Errorf("Unexpected default listen addr: %s", cfg.ListenAddr)
	}
	if cfg.HTTPTimeout != 30*time.Second {
		t.Errorf("Unexpected default HTTP timeout: %v", cfg.HTTPTimeout)
	}
	if cfg.DataDir == "" {
		t.Error("Expected a default data dir")
	}
}

// TestLoadFromEnvironment tests env var overrides.
func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("FIELDSYNC_DATA_DIR", "/tmp/fieldsync-test")
	t.Setenv("FIELDSYNC_API_URL", "https://inventory.example.com")
	t.Setenv("FIELDSYNC_API_TOKEN", "tok-123")
	t.Setenv("FIELDSYNC_LISTEN_ADDR", "127.0.0.1:9999")
	t.Setenv("FIELDSYNC_HTTP_TIMEOUT_SECONDS", "10")
	t.Setenv("FIELDSYNC_PROBE_INTERVAL_SECONDS", "5")
	t.Setenv("FIELDSYNC_CATALOG_REFRESH_SECONDS", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DataDir != "/tmp/fieldsync-test" {
		t.Errorf("Unexpected data dir: %s", cfg.DataDir)
	}
	if cfg.APIBaseURL != "https://inventory.example.com" {
		t.Errorf("Unexpected API URL: %s", cfg.APIBaseURL)
	}
	if cfg.APIToken != "tok-123" {
		t.Errorf("Unexpected token: %s", cfg.APIToken)
	}
	if cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("Unexpected HTTP timeout: %v", cfg.HTTPTimeout)
	}
	if cfg.ProbeInterval != 5*time.Second {
		t.Errorf("Unexpected probe interval: %v", cfg.ProbeInterval)
	}
	if cfg.CatalogRefreshInterval != 0 {
		t.Errorf("Expected periodic refresh disabled, got %v", cfg.CatalogRefreshInterval)
	}
}

// TestLoadRejectsInvalidDuration tests the integer-seconds parse guard.
func TestLoadRejectsInvalidDuration(t *testing.T) {
	t.Setenv("FIELDSYNC_HTTP_TIMEOUT_SECONDS", "not-a-number")

	if _, err := Load(); err == nil {
		t.Error("Expected error for invalid timeout value")
	}
}

// TestValidate tests misconfiguration rejection.
func TestValidate(t *testing.T) {
	valid := Default()
	if err := valid.Validate(); err != nil {
		t.Errorf("Unexpected error for default config: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"empty api url", func(c *Config) { c.APIBaseURL = "" }},
		{"zero http timeout", func(c *Config) { c.HTTPTimeout = 0 }},
		{"zero probe interval", func(c *Config) { c.ProbeInterval = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}
