// Gitshelf - Source Project Portal with Download Audit Logging
// Copyright 2026 Gitshelf Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gitshelf/gitshelf

package api

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"net/url"

	"github.com/gitshelf/gitshelf/internal/logging"
)

//go:embed templates/*.html
var templatesFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// renderPage executes a named page template. The page is rendered into
// a buffer first so a template error produces a clean 500 instead of a
// truncated body.
func renderPage(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		logging.Err(err).Str("template", name).Msg("Failed to render page")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		logging.Err(err).Str("template", name).Msg("Failed to write page")
	}
}

// flashCookieName carries a one-shot user-visible notice across a redirect.
const flashCookieName = "gitshelf_flash"

func setFlash(w http.ResponseWriter, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    encodeFlash(message),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// takeFlash reads and clears the pending flash message, if any.
func takeFlash(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	message, err := decodeFlash(cookie.Value)
	if err != nil {
		return ""
	}
	return message
}

// Cookie values cannot carry spaces or most punctuation, so flashes
// are percent-encoded on the wire.
func encodeFlash(message string) string {
	return url.QueryEscape(message)
}

func decodeFlash(value string) (string, error) {
	decoded, err := url.QueryUnescape(value)
	if err != nil {
		return "", fmt.Errorf("malformed flash cookie: %w", err)
	}
	return decoded, nil
}
