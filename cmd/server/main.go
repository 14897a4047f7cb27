// Gitshelf - Source Project Portal with Download Audit Logging
// Copyright 2026 Gitshelf Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gitshelf/gitshelf

// Package main is the entry point for the Gitshelf server.
//
// Gitshelf is a small self-hosted portal that lists locally stored
// source projects, serves any project as a zip download, and keeps an
// append-only audit log of every download with best-effort geolocation
// of the visitor. Projects can be imported by cloning a repository URL,
// and a GitHub account's public repositories can be browsed through a
// paginated proxy.
//
// # Startup Order
//
//  1. Configuration: layered load from defaults, an optional YAML file
//     and environment variables (Koanf v2)
//  2. Logging: zerolog, JSON or console format
//  3. Audit store: JSONL download log, plus a one-shot import of a
//     legacy free-text log when configured
//  4. Geolocation: ipinfo-style client behind a circuit breaker, and a
//     geocoder with an embedded BadgerDB cache
//  5. HTTP server: Chi router under a suture supervision tree
//
// # Configuration
//
// Recognized environment variables include:
//
//	SERVER_HOST, SERVER_PORT  listen address (default 0.0.0.0:8080)
//	PROJECTS_DIR              projects root (default ./projects)
//	AUDIT_LOG_PATH            download log path (default ./downloads.log)
//	AUDIT_LEGACY_PATH         optional legacy log imported at startup
//	GEO_API_KEY               IP-geolocation API token
//	GEOCODING_API_KEY         forward-geocoding API key
//	GEOCODING_CACHE_DIR       optional BadgerDB cache directory
//	GITHUB_TOKEN              optional token for the repository proxy
//	LOGS_PASSWORD             shared password for the log viewer (required)
//	LOGS_TOKEN_SECRET         optional signing secret for gate tokens
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger a graceful shutdown: the server stops
// accepting connections, in-flight requests get a bounded drain window,
// and the geocode cache is closed.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gitshelf/gitshelf/internal/api"
	"github.com/gitshelf/gitshelf/internal/audit"
	"github.com/gitshelf/gitshelf/internal/config"
	"github.com/gitshelf/gitshelf/internal/geo"
	"github.com/gitshelf/gitshelf/internal/github"
	"github.com/gitshelf/gitshelf/internal/logging"
	"github.com/gitshelf/gitshelf/internal/projects"
	"github.com/gitshelf/gitshelf/internal/supervisor"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gitshelf: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Str("addr", cfg.Server.Addr()).Msg("Starting Gitshelf")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Audit store, with a one-shot import of the legacy free-text log.
	store := audit.NewFileStore(cfg.Audit.LogPath)
	if cfg.Audit.LegacyPath != "" {
		imported, err := audit.ImportLegacy(ctx, store, cfg.Audit.LegacyPath)
		if err != nil {
			return fmt.Errorf("legacy log import: %w", err)
		}
		if imported > 0 {
			logging.Info().Int("records", imported).Str("path", cfg.Audit.LegacyPath).Msg("Imported legacy download log")
		}
	}

	// Geolocation and geocoding, both best-effort enrichment.
	geoClient := geo.NewClient(cfg.Geo.APIURL, cfg.Geo.APIKey, cfg.Geo.Timeout)

	var cache *geo.GeocodeCache
	if cfg.Geocoding.CacheDir != "" {
		cache, err = geo.OpenGeocodeCache(cfg.Geocoding.CacheDir, cfg.Geocoding.CacheTTL)
		if err != nil {
			return fmt.Errorf("geocode cache: %w", err)
		}
		defer cache.Close()
	}
	geocoder := geo.NewGeocoder(cfg.Geocoding.APIURL, cfg.Geocoding.APIKey, cfg.Geocoding.Timeout, cache)

	svc := projects.NewService(cfg.Projects.Dir, &projects.GitCloner{Timeout: cfg.Projects.CloneTimeout})
	gh := github.NewClient(cfg.GitHub.APIURL, cfg.GitHub.Token, cfg.GitHub.Timeout)
	gate := api.NewGate(cfg.Logs.Password, cfg.Logs.TokenSecret, cfg.Logs.TokenTTL)

	handler := api.NewHandler(store, svc, geoClient, geocoder, gh, gate, cfg)
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), shutdownTimeout)
	tree.Add(supervisor.NewHTTPServerService(server, shutdownTimeout))
	if cache != nil {
		tree.Add(supervisor.NewCacheGCService(cache, time.Hour))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}

	logging.Info().Msg("Stopped gracefully")
	return nil
}
