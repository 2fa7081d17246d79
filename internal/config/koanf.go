// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in priority order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/brevis/config.yaml",
	"/etc/brevis/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "BREVIS_CONFIG"

// envPrefix namespaces all Brevis environment variables.
const envPrefix = "BREVIS_"

// Load builds the configuration from layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// BREVIS_SERVER_PORT -> server.port, BREVIS_EVENTS_NATS_URL -> events.nats.url.
	// Section names are single words, so the first underscore splits the
	// section and the rest joins with underscores inside it.
	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sections are the top-level config groups used to split env var names.
var sections = []string{
	"server", "database", "events", "wal", "shortener", "cache", "security", "logging",
}

// envTransform maps an environment variable name to a koanf path.
//
// Examples:
//   - BREVIS_SERVER_PORT            -> server.port
//   - BREVIS_DATABASE_MAX_MEMORY    -> database.max_memory
//   - BREVIS_EVENTS_NATS_URL        -> events.nats.url
//   - BREVIS_SECURITY_JWT_SECRET    -> security.jwt_secret
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))

	for _, section := range sections {
		prefix := section + "_"
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := strings.TrimPrefix(key, prefix)

		// The NATS sub-section nests one level deeper under events.
		if section == "events" && strings.HasPrefix(rest, "nats_") {
			return "events.nats." + strings.TrimPrefix(rest, "nats_")
		}
		return section + "." + rest
	}

	// Unknown variables are ignored by Unmarshal; pass them through.
	return key
}
