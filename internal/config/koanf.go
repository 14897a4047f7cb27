// Gitshelf - Source Project Portal with Download Audit Logging
// Copyright 2026 Gitshelf Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gitshelf/gitshelf

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
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/gitshelf/config.yaml",
	"/etc/gitshelf/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			Timeout: 30 * time.Second,
		},
		Projects: ProjectsConfig{
			Dir:          "projects",
			CloneTimeout: 2 * time.Minute,
		},
		Audit: AuditConfig{
			LogPath:    "downloads.log",
			LegacyPath: "",
		},
		Geo: GeoConfig{
			APIURL:  "https://ipinfo.io",
			APIKey:  "",
			Timeout: 5 * time.Second,
		},
		Geocoding: GeocodingConfig{
			APIURL:   "https://api.opencagedata.com/geocode/v1/json",
			APIKey:   "",
			Timeout:  5 * time.Second,
			CacheDir: "",
			CacheTTL: 30 * 24 * time.Hour,
		},
		GitHub: GitHubConfig{
			APIURL:  "https://api.github.com",
			Token:   "",
			Timeout: 10 * time.Second,
		},
		Logs: LogsConfig{
			Password:    "",
			TokenSecret: "",
			TokenTTL:    15 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds configuration from layered sources (highest priority last):
//
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (SERVER_PORT, PROJECTS_DIR, GEO_API_KEY,
//     GEOCODING_API_KEY, GITHUB_TOKEN, LOGS_PASSWORD, AUDIT_LOG_PATH, ...)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("", ".", envTransform)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envTransform maps environment variable names to koanf paths:
//
//	SERVER_PORT       -> server.port
//	GEO_API_KEY       -> geo.api_key
//	AUDIT_LOG_PATH    -> audit.log_path
//	GEOCODING_API_KEY -> geocoding.api_key
//
// The first underscore separates the section; the remainder is the key.
// Unknown sections map to no path and are ignored by Unmarshal.
func envTransform(name string) string {
	name = strings.ToLower(name)
	section, key, found := strings.Cut(name, "_")
	if !found {
		return ""
	}
	switch section {
	case "server", "projects", "audit", "geo", "geocoding", "github", "logs", "logging":
		return section + "." + key
	default:
		return ""
	}
}

// findConfigFile returns the config file to load, or "" for none. A
// config file is optional everywhere: a CONFIG_PATH pointing at a
// missing file falls back to defaults and env vars, same as an absent
// well-known path.
func findConfigFile() string {
	paths := DefaultConfigPaths
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		paths = []string{path}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
