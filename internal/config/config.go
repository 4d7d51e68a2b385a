// Shiori - Adaptive Reading Preference & Discovery Engine
// Copyright 2026 K. Arasawa (karasawa)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/karasawa/shiori

// Package config loads layered application configuration: built-in
// defaults, then an optional YAML file, then environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/karasawa/shiori/internal/logging"
	"github.com/karasawa/shiori/internal/recommend"
)

// envPrefix namespaces the environment overrides. Nesting uses a double
// underscore: SHIORI_SERVER__PORT -> server.port.
const envPrefix = "SHIORI_"

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig     `json:"server" koanf:"server"`
	Database  DatabaseConfig   `json:"database" koanf:"database"`
	Logging   logging.Config   `json:"logging" koanf:"logging"`
	Recommend recommend.Config `json:"recommend" koanf:"recommend"`
}

// ServerConfig contains the HTTP listener settings.
type ServerConfig struct {
	Host            string        `json:"host" koanf:"host"`
	Port            int           `json:"port" koanf:"port"`
	ReadTimeout     time.Duration `json:"read_timeout" koanf:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" koanf:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" koanf:"shutdown_timeout"`

	// RateLimit is the per-client request budget in requests/second;
	// zero disables rate limiting.
	RateLimit float64 `json:"rate_limit" koanf:"rate_limit"`

	// RateBurst is the per-client burst allowance.
	RateBurst int `json:"rate_burst" koanf:"rate_burst"`
}

// DatabaseConfig contains the SQLite settings.
type DatabaseConfig struct {
	// Path is the data directory, or ":memory:" for an in-memory
	// database.
	Path string `json:"path" koanf:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       50,
			RateBurst:       100,
		},
		Database: DatabaseConfig{
			Path: "./data",
		},
		Logging:   logging.DefaultConfig(),
		Recommend: *recommend.DefaultConfig(),
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path (or SHIORI_CONFIG, or ./shiori.yaml) and SHIORI_* environment
// variables, in ascending precedence.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if configPath := findConfigFile(path); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(key string) string {
		key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the full configuration tree.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d outside [1, 65535]", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server timeouts must be positive")
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		return fmt.Errorf("rate limit settings must not be negative")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if err := c.Recommend.Validate(); err != nil {
		return fmt.Errorf("recommend: %w", err)
	}
	return nil
}

// findConfigFile picks the explicit path, then SHIORI_CONFIG, then the
// conventional filename, skipping any that do not exist.
func findConfigFile(explicit string) string {
	candidates := []string{explicit, os.Getenv("SHIORI_CONFIG"), "shiori.yaml"}
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
