package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Port != 8787 {
		t.Fatalf("expected default port 8787, got %d", cfg.Server.Port)
	}
	if cfg.Auth.SessionTTL().Minutes() != 30 {
		t.Fatalf("expected default TTL 30m, got %v", cfg.Auth.SessionTTL())
	}
}

func TestLoadConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	cfg.Server.Port = 9999
	cfg.Relay.URL = "wss://relay.example.com"
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "config.toml")); err != nil {
		t.Fatalf("expected config.toml to exist: %v", err)
	}

	reloaded, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Server.Port != 9999 {
		t.Fatalf("expected port 9999 after reload, got %d", reloaded.Server.Port)
	}
	if reloaded.Relay.URL != "wss://relay.example.com" {
		t.Fatalf("expected relay URL to round-trip, got %q", reloaded.Relay.URL)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	dir := t.TempDir()
	os.Setenv("WAVECAST_RELAY_URL", "wss://override.example.com")
	defer os.Unsetenv("WAVECAST_RELAY_URL")

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Relay.URL != "wss://override.example.com" {
		t.Fatalf("expected env override, got %q", cfg.Relay.URL)
	}
}
