// Package config loads and persists wavecast's on-disk configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration loaded from config.toml.
type Config struct {
	Server ServerConfig `toml:"server"`
	Relay  RelayConfig  `toml:"relay"`
	Auth   AuthConfig   `toml:"auth"`
}

// ServerConfig holds the Front Door's bind/listen settings.
type ServerConfig struct {
	Port            int    `toml:"port"`
	BindAddress     string `toml:"bind_address"`
	RateLimitPerMin int    `toml:"rate_limit_per_min"`
	DataDir         string `toml:"-"` // set at load time, never persisted
}

// RelayConfig holds the outbound relay connection settings.
type RelayConfig struct {
	URL string `toml:"url"`
}

// AuthConfig holds session lifecycle tunables.
type AuthConfig struct {
	SessionTTLSeconds    int `toml:"session_ttl_seconds"`
	SweepIntervalSeconds int `toml:"sweep_interval_seconds"`
}

// SessionTTL returns the configured session TTL as a duration, default 30 minutes.
func (a AuthConfig) SessionTTL() time.Duration {
	if a.SessionTTLSeconds <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(a.SessionTTLSeconds) * time.Second
}

// SweepInterval returns the configured sweep period as a duration, default 60 seconds.
func (a AuthConfig) SweepInterval() time.Duration {
	if a.SweepIntervalSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(a.SweepIntervalSeconds) * time.Second
}

func defaults(dataDir string) *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8787,
			BindAddress:     "0.0.0.0",
			RateLimitPerMin: 120,
			DataDir:         dataDir,
		},
		Relay: RelayConfig{
			URL: "wss://relay.wavecast.sh",
		},
		Auth: AuthConfig{
			SessionTTLSeconds:    30 * 60,
			SweepIntervalSeconds: 60,
		},
	}
}

// LoadConfig reads config.toml from dataDir, applies environment variable
// overrides, and returns the merged configuration. Missing files are not an
// error: defaults are used and written out on first Save.
func LoadConfig(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, "config.toml")

	cfg := defaults(dataDir)

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		cfg.Server.DataDir = dataDir
	}

	// Environment-variable override for relay URL, per spec §6.
	if relayURL := os.Getenv("WAVECAST_RELAY_URL"); relayURL != "" {
		cfg.Relay.URL = relayURL
	}
	if port := os.Getenv("WAVECAST_PORT"); port != "" {
		var p int
		if _, err := fmt.Sscanf(port, "%d", &p); err == nil && p > 0 {
			cfg.Server.Port = p
		}
	}
	if bind := os.Getenv("WAVECAST_BIND_ADDRESS"); bind != "" {
		cfg.Server.BindAddress = bind
	}

	return cfg, nil
}

// Save writes the configuration to config.toml inside dataDir, creating the
// directory if necessary.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.Server.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	path := filepath.Join(c.Server.DataDir, "config.toml")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding config.toml: %w", err)
	}
	return nil
}
