package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all server settings. Values come from an optional YAML file
// with environment variables taking precedence.
type Config struct {
	Server struct {
		Port       string `yaml:"port"`
		CORSOrigin string `yaml:"cors_origin"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret   string `yaml:"jwt_secret"`
		ExpiryHours int    `yaml:"expiry_hours"`
	} `yaml:"auth"`
	Snapshot struct {
		Path            string `yaml:"path"`
		IntervalSeconds int    `yaml:"interval_seconds"`
	} `yaml:"snapshot"`
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.Port = "3000"
	cfg.Server.CORSOrigin = "*"
	cfg.Auth.JWTSecret = "default-secret"
	cfg.Auth.ExpiryHours = 24
	cfg.Snapshot.Path = "data/data.json"
	cfg.Snapshot.IntervalSeconds = 60
	return cfg
}

// loadConfig reads the YAML config file if present, then applies env
// overrides. A missing file is fine; env and defaults cover everything.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Server.CORSOrigin = getEnv("CORS_ORIGIN", cfg.Server.CORSOrigin)
	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.ExpiryHours = getEnvAsInt("JWT_EXPIRY_HOURS", cfg.Auth.ExpiryHours)
	cfg.Snapshot.Path = getEnv("SNAPSHOT_PATH", cfg.Snapshot.Path)
	cfg.Snapshot.IntervalSeconds = getEnvAsInt("SNAPSHOT_INTERVAL_SECONDS", cfg.Snapshot.IntervalSeconds)

	return cfg, nil
}

// JWTExpiry returns the token lifetime as a duration.
func (c *Config) JWTExpiry() time.Duration {
	return time.Duration(c.Auth.ExpiryHours) * time.Hour
}

// SnapshotInterval returns the periodic snapshot cadence.
func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.Snapshot.IntervalSeconds) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
