// Gitshelf - Source Project Portal with Download Audit Logging
// Copyright 2026 Gitshelf Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gitshelf/gitshelf

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gitshelf/gitshelf/internal/middleware"
)

// NewRouter configures every portal route with its middleware stack.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		MaxAge:         300,
	}))

	r.Get("/", h.Index)
	r.Get("/project/{name}", h.Project)
	r.Get("/download/{name}", h.Download)

	r.Get("/add_project", h.AddProjectForm)
	r.Post("/add_project", h.AddProjectSubmit)

	r.Get("/github_repos/{username}", h.GitHubRepos)

	r.Get("/logs", h.LogsPage)
	// Brute-force protection on the password check only; the other log
	// routes are gated by the token.
	r.With(httprate.LimitByIP(10, time.Minute)).Post("/logs", h.LogsSubmit)
	r.Get("/delete_log/{id}", h.DeleteLog)
	r.Get("/reset_logs", h.ResetLogs)
	r.Get("/download_logs", h.DownloadLogs)

	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
