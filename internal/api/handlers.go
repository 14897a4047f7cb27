// Gitshelf - Source Project Portal with Download Audit Logging
// Copyright 2026 Gitshelf Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gitshelf/gitshelf

package api

import (
	"net/http"
	"time"

	"github.com/gitshelf/gitshelf/internal/audit"
	"github.com/gitshelf/gitshelf/internal/config"
	"github.com/gitshelf/gitshelf/internal/geo"
	"github.com/gitshelf/gitshelf/internal/github"
	"github.com/gitshelf/gitshelf/internal/projects"
)

// Handler contains dependencies for the portal handlers.
//
// Handler methods are split across multiple files:
//   - handlers.go: Handler struct and constructor (this file)
//   - handlers_projects.go: project listing, detail, download, clone
//   - handlers_logs.go: password-gated audit-log surface
//   - handlers_github.go: remote repository-listing proxy
//   - handlers_health.go: health endpoint
type Handler struct {
	store    audit.Store
	projects *projects.Service
	geo      *geo.Client
	geocoder *geo.Geocoder
	github   *github.Client
	gate     *Gate
	config   *config.Config

	startTime time.Time
}

// NewHandler creates the portal handler with all required dependencies.
func NewHandler(store audit.Store, svc *projects.Service, geoClient *geo.Client, geocoder *geo.Geocoder, gh *github.Client, gate *Gate, cfg *config.Config) *Handler {
	return &Handler{
		store:     store,
		projects:  svc,
		geo:       geoClient,
		geocoder:  geocoder,
		github:    gh,
		gate:      gate,
		config:    cfg,
		startTime: time.Now(),
	}
}

// notFound writes a plain not-found response with a human-readable
// message and no internal detail.
func notFound(w http.ResponseWriter, message string) {
	http.Error(w, message, http.StatusNotFound)
}
