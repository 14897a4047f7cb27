// Gitshelf - Source Project Portal with Download Audit Logging
// Copyright 2026 Gitshelf Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gitshelf/gitshelf

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/gitshelf/gitshelf/internal/logging"
)

// Healthz reports liveness and uptime.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	payload := struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}{
		Status: "ok",
		Uptime: time.Since(h.startTime).Round(time.Second).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Err(err).Msg("Failed to write health response")
	}
}
