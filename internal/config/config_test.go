package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Schema != "public" {
		t.Errorf("Schema = %q, want public", cfg.Schema)
	}
	if cfg.MaxConns != 4 {
		t.Errorf("MaxConns = %d, want 4", cfg.MaxConns)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.FetchRetries != 3 {
		t.Errorf("FetchRetries = %d, want 3", cfg.FetchRetries)
	}
}

func TestLoadYAMLOverlay(t *testing.T) {
	path := writeConfig(t, "schema: market\nlogLevel: debug\nmaxConns: 8\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Schema != "market" {
		t.Errorf("Schema = %q, want market", cfg.Schema)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.MaxConns != 8 {
		t.Errorf("MaxConns = %d, want 8", cfg.MaxConns)
	}
	// Untouched keys keep their defaults.
	if cfg.HostInterval != 1200*time.Millisecond {
		t.Errorf("HostInterval = %v, want default", cfg.HostInterval)
	}
}

func TestLoadEnvironmentWins(t *testing.T) {
	path := writeConfig(t, "schema: market\n")
	t.Setenv("AUCTION_SCHEMA", "from_env")
	t.Setenv("AUCTION_FETCH_RETRIES", "5")
	t.Setenv("AUCTION_DATABASE_URL", "postgres://localhost/auctions")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Schema != "from_env" {
		t.Errorf("Schema = %q, env did not win over yaml", cfg.Schema)
	}
	if cfg.FetchRetries != 5 {
		t.Errorf("FetchRetries = %d, want 5", cfg.FetchRetries)
	}
	if cfg.DatabaseURL != "postgres://localhost/auctions" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	if _, err := Load(writeConfig(t, "logLevel: chatty\n")); err == nil {
		t.Error("unknown log level accepted")
	}
	if _, err := Load(writeConfig(t, "maxConns: 0\n")); err == nil {
		t.Error("zero maxConns accepted")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing explicit config file accepted")
	}
}
