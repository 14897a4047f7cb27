// Gitshelf - Source Project Portal with Download Audit Logging
// Copyright 2026 Gitshelf Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gitshelf/gitshelf

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gitshelf/gitshelf/internal/archive"
	"github.com/gitshelf/gitshelf/internal/audit"
	"github.com/gitshelf/gitshelf/internal/logging"
	"github.com/gitshelf/gitshelf/internal/metrics"
	"github.com/gitshelf/gitshelf/internal/middleware"
	"github.com/gitshelf/gitshelf/internal/projects"
)

var validate = validator.New()

// Index lists the project directory names.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	names, err := h.projects.List(r.Context())
	if err != nil {
		logging.Err(err).Msg("Failed to list projects")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	renderPage(w, http.StatusOK, "index.html", struct {
		Projects []string
	}{Projects: names})
}

// Project lists the relative file paths under one project.
func (h *Handler) Project(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	files, err := h.projects.Files(r.Context(), name)
	if err != nil {
		if errors.Is(err, projects.ErrProjectNotFound) {
			notFound(w, fmt.Sprintf("project %q not found", name))
			return
		}
		logging.Err(err).Str("project", name).Msg("Failed to list project files")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	renderPage(w, http.StatusOK, "project.html", struct {
		Name  string
		Files []string
	}{Name: name, Files: files})
}

// Download builds a zip archive of the project, records the download
// event and streams the archive as an attachment. The archive is a
// transient file removed on every exit path. A failed geolocation
// lookup degrades to an empty geo_data field and never blocks the
// download.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	dir, err := h.projects.Dir(name)
	if err != nil {
		metrics.DownloadErrors.WithLabelValues("not_found").Inc()
		notFound(w, fmt.Sprintf("project %q not found", name))
		return
	}

	archivePath, cleanup, err := archive.BuildTemp(r.Context(), dir, name)
	if err != nil {
		metrics.DownloadErrors.WithLabelValues("archive").Inc()
		logging.Err(err).Str("project", name).Msg("Failed to build archive")
		http.Error(w, "failed to build archive", http.StatusInternalServerError)
		return
	}
	defer cleanup()

	clientIP := middleware.ClientIP(r)
	userAgent := middleware.UserAgent(r)

	rec := &audit.Record{
		IP:        clientIP,
		Geo:       h.lookupGeo(r.Context(), clientIP),
		UserAgent: userAgent,
		Project:   name,
	}
	if err := h.store.Append(r.Context(), rec); err != nil {
		metrics.DownloadErrors.WithLabelValues("audit").Inc()
		logging.Err(err).Str("project", name).Msg("Failed to append audit record")
		http.Error(w, "failed to record download", http.StatusInternalServerError)
		return
	}
	metrics.DownloadsTotal.WithLabelValues(name).Inc()
	metrics.AuditRecordsWritten.Inc()

	logging.Info().
		Str("project", name).
		Str("ip", clientIP).
		Str("record_id", rec.ID).
		Str("request_id", middleware.GetRequestID(r.Context())).
		Msg("Project downloaded")

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".zip"))
	http.ServeFile(w, r, archivePath)
}

// lookupGeo resolves geolocation for the client address with a bounded
// timeout. Failure is counted and swallowed.
func (h *Handler) lookupGeo(ctx context.Context, ip string) audit.GeoData {
	ctx, cancel := context.WithTimeout(ctx, h.config.Geo.Timeout)
	defer cancel()

	geoData, err := h.geo.Lookup(ctx, ip)
	if err != nil {
		metrics.GeoLookupFailures.Inc()
		logging.Warn().Err(err).Str("ip", ip).Msg("Geolocation lookup failed")
		return audit.GeoData{IP: ip}
	}
	return geoData
}

// AddProjectForm renders the clone form.
func (h *Handler) AddProjectForm(w http.ResponseWriter, r *http.Request) {
	renderPage(w, http.StatusOK, "add_project.html", struct {
		Error   string
		Message string
	}{Error: takeFlash(w, r)})
}

// AddProjectSubmit clones a remote repository into the projects root.
// Clone failures are reported to the user as a flashed message, never
// as a raw error page.
func (h *Handler) AddProjectSubmit(w http.ResponseWriter, r *http.Request) {
	// Only presence is checked here: scp-style addresses (git@host:path)
	// are valid clone URLs but fail the validator's "url" tag. Shape
	// validation happens in the projects service.
	repoURL := r.PostFormValue("url")
	if err := validate.Var(repoURL, "required"); err != nil {
		setFlash(w, "Please provide a repository URL.")
		http.Redirect(w, r, "/add_project", http.StatusSeeOther)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.config.Projects.CloneTimeout)
	defer cancel()

	name, err := h.projects.Clone(ctx, repoURL)
	if err != nil {
		metrics.CloneOperations.WithLabelValues("failure").Inc()
		logging.Warn().Err(err).Str("url", repoURL).Msg("Clone failed")
		switch {
		case errors.Is(err, projects.ErrProjectExists):
			setFlash(w, "A project with that name already exists.")
		case errors.Is(err, projects.ErrInvalidRepoURL):
			setFlash(w, "Please provide a valid repository URL.")
		default:
			setFlash(w, fmt.Sprintf("Clone failed: %v", err))
		}
		http.Redirect(w, r, "/add_project", http.StatusSeeOther)
		return
	}

	metrics.CloneOperations.WithLabelValues("success").Inc()
	logging.Info().Str("project", name).Str("url", repoURL).Msg("Project cloned")
	http.Redirect(w, r, "/project/"+name, http.StatusSeeOther)
}
