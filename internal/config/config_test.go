// Gitshelf - Source Project Portal with Download Audit Logging
// Copyright 2026 Gitshelf Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gitshelf/gitshelf

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("LOGS_PASSWORD", "hunter2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Projects.Dir != "projects" {
		t.Errorf("Projects.Dir = %q, want %q", cfg.Projects.Dir, "projects")
	}
	if cfg.Audit.LogPath != "downloads.log" {
		t.Errorf("Audit.LogPath = %q, want %q", cfg.Audit.LogPath, "downloads.log")
	}
	if cfg.Geo.Timeout != 5*time.Second {
		t.Errorf("Geo.Timeout = %v, want 5s", cfg.Geo.Timeout)
	}
	if cfg.Logs.Password != "hunter2" {
		t.Errorf("Logs.Password = %q, want %q", cfg.Logs.Password, "hunter2")
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
projects:
  dir: /srv/projects
logs:
  password: filepass
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Projects.Dir != "/srv/projects" {
		t.Errorf("Projects.Dir = %q, want %q", cfg.Projects.Dir, "/srv/projects")
	}
	// Unset keys keep their defaults.
	if cfg.Geo.APIURL != "https://ipinfo.io" {
		t.Errorf("Geo.APIURL = %q, want default", cfg.Geo.APIURL)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
logs:
  password: filepass
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("GEO_API_KEY", "tok-123")
	t.Setenv("AUDIT_LOG_PATH", "/var/log/downloads.log")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Geo.APIKey != "tok-123" {
		t.Errorf("Geo.APIKey = %q, want %q", cfg.Geo.APIKey, "tok-123")
	}
	if cfg.Audit.LogPath != "/var/log/downloads.log" {
		t.Errorf("Audit.LogPath = %q", cfg.Audit.LogPath)
	}
	if cfg.Logs.Password != "filepass" {
		t.Errorf("Logs.Password = %q, want %q", cfg.Logs.Password, "filepass")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("LOGS_PASSWORD", "hunter2")
	t.Setenv("SERVER_PORT", "70000")

	if _, err := Load(); err == nil {
		t.Fatal("Load() succeeded with out-of-range port")
	}
}

func TestLoadRequiresPassword(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("LOGS_PASSWORD", "")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() succeeded without a logs password")
	}
	if !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("err = %v, want a validation failure", err)
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"SERVER_PORT", "server.port"},
		{"AUDIT_LOG_PATH", "audit.log_path"},
		{"GEO_API_KEY", "geo.api_key"},
		{"GEOCODING_API_KEY", "geocoding.api_key"},
		{"GITHUB_TOKEN", "github.token"},
		{"LOGS_PASSWORD", "logs.password"},
		{"PATH", ""},
		{"HOME", ""},
		{"SOME_OTHER_VAR", ""},
	}
	for _, tt := range tests {
		if got := envTransform(tt.in); got != tt.want {
			t.Errorf("envTransform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
