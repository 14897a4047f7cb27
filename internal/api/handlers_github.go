// Gitshelf - Source Project Portal with Download Audit Logging
// Copyright 2026 Gitshelf Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gitshelf/gitshelf

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gitshelf/gitshelf/internal/github"
	"github.com/gitshelf/gitshelf/internal/logging"
)

// GitHubRepos proxies a paginated public-repository listing for one
// account. A remote rejection is surfaced as a 500 with the upstream
// message.
func (h *Handler) GitHubRepos(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	listing, err := h.github.ListRepos(r.Context(), username, page)
	if err != nil {
		var upstream *github.UpstreamError
		if errors.As(err, &upstream) {
			logging.Warn().
				Int("status", upstream.StatusCode).
				Str("username", username).
				Msg("Repository listing rejected upstream")
			http.Error(w, "repository listing failed: "+upstream.Message, http.StatusInternalServerError)
			return
		}
		logging.Err(err).Str("username", username).Msg("Repository listing failed")
		http.Error(w, "repository listing failed", http.StatusInternalServerError)
		return
	}

	renderPage(w, http.StatusOK, "github_repos.html", listing)
}
