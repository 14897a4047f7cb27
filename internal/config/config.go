// Gitshelf - Source Project Portal with Download Audit Logging
// Copyright 2026 Gitshelf Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gitshelf/gitshelf

// Package config loads and validates the portal configuration. It is
// constructed once at startup and injected into each component; no
// package reads configuration from ambient globals.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the complete portal configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Projects  ProjectsConfig  `koanf:"projects"`
	Audit     AuditConfig     `koanf:"audit"`
	Geo       GeoConfig       `koanf:"geo"`
	Geocoding GeocodingConfig `koanf:"geocoding"`
	GitHub    GitHubConfig    `koanf:"github"`
	Logs      LogsConfig      `koanf:"logs"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ProjectsConfig configures the projects root and the clone operation.
type ProjectsConfig struct {
	Dir          string        `koanf:"dir" validate:"required"`
	CloneTimeout time.Duration `koanf:"clone_timeout"`
}

// AuditConfig configures the download audit log.
type AuditConfig struct {
	LogPath string `koanf:"log_path" validate:"required"`

	// LegacyPath, when set, points at a first-generation free-text log
	// imported once at startup.
	LegacyPath string `koanf:"legacy_path"`
}

// GeoConfig configures the IP-information lookup.
type GeoConfig struct {
	APIURL  string        `koanf:"api_url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
}

// GeocodingConfig configures the forward geocoder used by the log view.
type GeocodingConfig struct {
	APIURL   string        `koanf:"api_url"`
	APIKey   string        `koanf:"api_key"`
	Timeout  time.Duration `koanf:"timeout"`
	CacheDir string        `koanf:"cache_dir"`
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

// GitHubConfig configures the remote repository-listing proxy.
type GitHubConfig struct {
	APIURL  string        `koanf:"api_url"`
	Token   string        `koanf:"token"`
	Timeout time.Duration `koanf:"timeout"`
}

// LogsConfig configures the password gate over the log viewer. Password
// may be either a plain shared secret or a bcrypt hash of one.
type LogsConfig struct {
	Password string `koanf:"password" validate:"required"`

	// TokenSecret signs the short-lived gate token issued after a
	// successful password check. Generated at startup when empty.
	TokenSecret string        `koanf:"token_secret"`
	TokenTTL    time.Duration `koanf:"token_ttl"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration against its struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
