// Gitshelf - Source Project Portal with Download Audit Logging
// Copyright 2026 Gitshelf Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gitshelf/gitshelf

/*
Package api provides HTTP routing and handlers for the portal.

The surface splits into three areas:

  - Project browsing: listing, per-project file detail, zip download
    with audit logging, and repository import via git clone.
  - Audit log management: a shared-password gate issuing a short-lived
    token, then record view with coordinate enrichment, delete-by-id,
    reset, and raw export.
  - Pass-through: a paginated GitHub repository listing proxy.

Every download appends exactly one audit record. Geolocation and
geocoding are enrichment only; their failure never blocks a download
or a page render.

Routes are registered by NewRouter with a global middleware stack of
request-ID tracking, panic recovery, Prometheus instrumentation and
CORS, plus per-route rate limiting on the password check.
*/
package api
