// Package config loads agent configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the sync agent.
type Config struct {
	// DataDir is where the on-device sqlite database lives.
	DataDir string

	// APIBaseURL is the base URL of the inventory server, e.g. https://maradi.example.com.
	APIBaseURL string

	// APIToken is the bearer token used for all remote calls.
	APIToken string

	// ListenAddr is the local address the agent HTTP surface binds to.
	ListenAddr string

	// HTTPTimeout bounds each remote call.
	HTTPTimeout time.Duration

	// ProbeInterval is how often connectivity is probed.
	ProbeInterval time.Duration

	// CatalogRefreshInterval is how often item/serial caches are refreshed
	// while online. Zero disables periodic refresh.
	CatalogRefreshInterval time.Duration
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		DataDir:                defaultDataDir(),
		APIBaseURL:             "http://localhost:3000",
		ListenAddr:             "127.0.0.1:8787",
		HTTPTimeout:            30 * time.Second,
		ProbeInterval:          15 * time.Second,
		CatalogRefreshInterval: 15 * time.Minute,
	}
}

// Load reads configuration from the environment, first loading a .env file
// if one is present. Missing keys fall back to defaults.
func Load() (*Config, error) {
	// Ignore the error: a missing .env file is normal on devices.
	_ = godotenv.Load()

	cfg := Default()

	if v := os.Getenv("FIELDSYNC_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("FIELDSYNC_API_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("FIELDSYNC_API_TOKEN"); v != "" {
		cfg.APIToken = v
	}
	if v := os.Getenv("FIELDSYNC_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}

	var err error
	if cfg.HTTPTimeout, err = durationEnv("FIELDSYNC_HTTP_TIMEOUT_SECONDS", cfg.HTTPTimeout); err != nil {
		return nil, err
	}
	if cfg.ProbeInterval, err = durationEnv("FIELDSYNC_PROBE_INTERVAL_SECONDS", cfg.ProbeInterval); err != nil {
		return nil, err
	}
	if cfg.CatalogRefreshInterval, err = durationEnv("FIELDSYNC_CATALOG_REFRESH_SECONDS", cfg.CatalogRefreshInterval); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for obvious misconfiguration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data dir must not be empty")
	}
	if c.APIBaseURL == "" {
		return fmt.Errorf("API base URL must not be empty")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP timeout must be positive, got %v", c.HTTPTimeout)
	}
	if c.ProbeInterval <= 0 {
		return fmt.Errorf("probe interval must be positive, got %v", c.ProbeInterval)
	}
	return nil
}

// durationEnv parses an integer-seconds env var, keeping fallback when unset.
func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: expected integer seconds, got %q", key, v)
	}
	return time.Duration(secs) * time.Second, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return home + "/.fieldsync"
}
