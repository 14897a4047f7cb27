// Gitshelf - Source Project Portal with Download Audit Logging
// Copyright 2026 Gitshelf Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gitshelf/gitshelf

package middleware

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the best-guess client address for a request. When
// the request passed through a reverse proxy, the first entry of
// X-Forwarded-For is the original client; otherwise the peer address
// is used, with any port stripped.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// UserAgent returns the raw User-Agent header value. A missing header
// is recorded as the empty string, not substituted.
func UserAgent(r *http.Request) string {
	return r.UserAgent()
}
