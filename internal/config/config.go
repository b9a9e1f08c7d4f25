// Package config loads gateway settings from an optional YAML file
// with environment-variable overrides on top.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the gateway process configuration.
type Config struct {
	Port           string   `yaml:"port"`
	JWTSecret      string   `yaml:"jwt_secret"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	NATS           NATS     `yaml:"nats"`
}

// NATS configures the upstream event consumer. An empty URL disables
// it; the gateway then only emits its own roster updates.
type NATS struct {
	URL           string `yaml:"url"`
	Stream        string `yaml:"stream"`
	Consumer      string `yaml:"consumer"`
	SubjectFilter string `yaml:"subject_filter"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Port:           "8081",
		AllowedOrigins: []string{"*"},
		NATS: NATS{
			Stream:        "MATCH_EVENTS",
			Consumer:      "match-gateway",
			SubjectFilter: "match.events.>",
		},
	}
}

// Load reads the YAML file at path (skipped when path is empty or the
// file does not exist) and then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	cfg.Port = getEnv("GATEWAY_PORT", cfg.Port)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.NATS.URL = getEnv("NATS_URL", cfg.NATS.URL)
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
