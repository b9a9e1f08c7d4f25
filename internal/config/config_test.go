package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8081" {
		t.Errorf("Port = %q, want 8081", cfg.Port)
	}
	if cfg.NATS.Stream != "MATCH_EVENTS" {
		t.Errorf("NATS.Stream = %q, want MATCH_EVENTS", cfg.NATS.Stream)
	}
	if cfg.NATS.URL != "" {
		t.Errorf("NATS.URL = %q, want disabled by default", cfg.NATS.URL)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	body := []byte("port: \"9000\"\njwt_secret: from-file\nnats:\n  url: nats://file:4222\n  stream: MATCH_EVENTS\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("GATEWAY_PORT", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9000" {
		t.Errorf("Port = %q, want 9000 from file", cfg.Port)
	}
	if cfg.JWTSecret != "from-env" {
		t.Errorf("JWTSecret = %q, env must win over file", cfg.JWTSecret)
	}
	if cfg.NATS.URL != "nats://file:4222" {
		t.Errorf("NATS.URL = %q, want value from file", cfg.NATS.URL)
	}
}

func TestLoadMissingFileIsFine(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err != nil {
		t.Fatalf("Load with missing file: %v", err)
	}
}
