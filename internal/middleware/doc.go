// Gitshelf - Source Project Portal with Download Audit Logging
// Copyright 2026 Gitshelf Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gitshelf/gitshelf

/*
Package middleware provides HTTP middleware and request helpers for the portal.

Key Components:

  - RequestID: UUID-based request tracking for log correlation
  - PrometheusMetrics: HTTP request/response instrumentation
  - ClientIP / UserAgent: visitor identity extraction used by the
    download audit trail

ClientIP trusts the first entry of X-Forwarded-For when present, which
matches a deployment behind a single reverse proxy. Without the header
the TCP peer address is used with its port stripped.

All components are thread-safe: request IDs live in the immutable
request context and metrics use atomic Prometheus collectors.
*/
package middleware
