// Gitshelf - Source Project Portal with Download Audit Logging
// Copyright 2026 Gitshelf Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gitshelf/gitshelf

package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gitshelf/gitshelf/internal/audit"
	"github.com/gitshelf/gitshelf/internal/logging"
	"github.com/gitshelf/gitshelf/internal/metrics"
)

// logRecordView is one audit record prepared for rendering, with
// best-effort coordinates attached.
type logRecordView struct {
	audit.Record
	Latitude       float64
	Longitude      float64
	HasCoordinates bool
}

// LogsPage renders the log view for holders of a valid gate token and
// the password prompt for everyone else. Mutating handlers redirect
// here so a browser refresh re-renders instead of replaying the
// mutation.
func (h *Handler) LogsPage(w http.ResponseWriter, r *http.Request) {
	if h.gate.Authorized(r) {
		h.renderLogs(w, r)
		return
	}
	renderPage(w, http.StatusOK, "logs_login.html", struct {
		Error string
	}{Error: takeFlash(w, r)})
}

// LogsSubmit checks the submitted password. A wrong password redirects
// back to the prompt with a non-specific error and reveals nothing; a
// correct one issues a short-lived gate token and renders every stored
// record with coordinate enrichment.
func (h *Handler) LogsSubmit(w http.ResponseWriter, r *http.Request) {
	if !h.gate.CheckPassword(r.PostFormValue("password")) {
		metrics.GateAuthFailures.Inc()
		setFlash(w, "Wrong password.")
		http.Redirect(w, r, "/logs", http.StatusSeeOther)
		return
	}

	if err := h.gate.Grant(w); err != nil {
		logging.Err(err).Msg("Failed to issue gate token")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	h.renderLogs(w, r)
}

// renderLogs loads every record and renders the log view.
func (h *Handler) renderLogs(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.LoadAll(r.Context())
	if err != nil {
		logging.Err(err).Msg("Failed to load audit records")
		http.Error(w, "failed to load download log", http.StatusInternalServerError)
		return
	}

	views := make([]logRecordView, 0, len(records))
	for _, rec := range records {
		view := logRecordView{Record: rec}
		view.Latitude, view.Longitude, view.HasCoordinates = h.resolveCoordinates(r, rec)
		views = append(views, view)
	}

	renderPage(w, http.StatusOK, "logs.html", struct {
		Records []logRecordView
	}{Records: views})
}

// resolveCoordinates attaches coordinates to a record: the stored
// "lat,lon" pair when the geolocation lookup captured one, otherwise a
// best-effort geocode of the record's city and country. Failure leaves
// the record without coordinates and never fails the page render.
func (h *Handler) resolveCoordinates(r *http.Request, rec audit.Record) (lat, lon float64, ok bool) {
	if loc := strings.TrimSpace(rec.Geo.Loc); loc != "" {
		if lat, lon, ok = parseLoc(loc); ok {
			return lat, lon, true
		}
	}

	if rec.Geo.City == "" && rec.Geo.Country == "" {
		return 0, 0, false
	}
	coords, err := h.geocoder.Geocode(r.Context(), rec.Geo.City, rec.Geo.Country)
	if err != nil {
		metrics.GeocodeFailures.Inc()
		logging.Warn().Err(err).
			Str("city", rec.Geo.City).
			Str("country", rec.Geo.Country).
			Msg("Geocoding failed")
		return 0, 0, false
	}
	if coords == nil {
		return 0, 0, false
	}
	return coords.Latitude, coords.Longitude, true
}

// parseLoc splits an ipinfo-style "lat,lon" string.
func parseLoc(loc string) (lat, lon float64, ok bool) {
	latStr, lonStr, found := strings.Cut(loc, ",")
	if !found {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

// requireGate rejects requests without a valid gate token by sending
// them back to the password prompt.
func (h *Handler) requireGate(w http.ResponseWriter, r *http.Request) bool {
	if h.gate.Authorized(r) {
		return true
	}
	setFlash(w, "Please enter the password first.")
	http.Redirect(w, r, "/logs", http.StatusSeeOther)
	return false
}

// DeleteLog removes one audit record by ID. Unknown IDs are a silent
// no-op.
func (h *Handler) DeleteLog(w http.ResponseWriter, r *http.Request) {
	if !h.requireGate(w, r) {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.store.Delete(r.Context(), id); err != nil {
		logging.Err(err).Str("record_id", id).Msg("Failed to delete audit record")
		http.Error(w, "failed to delete record", http.StatusInternalServerError)
		return
	}
	metrics.AuditRecordsDeleted.Inc()
	http.Redirect(w, r, "/logs", http.StatusSeeOther)
}

// ResetLogs clears every audit record.
func (h *Handler) ResetLogs(w http.ResponseWriter, r *http.Request) {
	if !h.requireGate(w, r) {
		return
	}

	if err := h.store.Reset(r.Context()); err != nil {
		logging.Err(err).Msg("Failed to reset audit records")
		http.Error(w, "failed to reset records", http.StatusInternalServerError)
		return
	}
	logging.Info().Msg("Audit log reset")
	http.Redirect(w, r, "/logs", http.StatusSeeOther)
}

// DownloadLogs exports the raw persisted log file, unparsed.
func (h *Handler) DownloadLogs(w http.ResponseWriter, r *http.Request) {
	if !h.requireGate(w, r) {
		return
	}

	raw, err := h.store.Export(r.Context())
	if err != nil {
		logging.Err(err).Msg("Failed to export audit records")
		http.Error(w, "failed to export records", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="downloads.log"`)
	if _, err := w.Write(raw); err != nil {
		logging.Err(err).Msg("Failed to write log export")
	}
}
