// Gitshelf - Source Project Portal with Download Audit Logging
// Copyright 2026 Gitshelf Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gitshelf/gitshelf

// Package metrics provides Prometheus instrumentation for the portal:
// HTTP request latency and throughput, download outcomes, geolocation
// enrichment failures, and geocode cache efficiency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_requests",
			Help: "Current number of in-flight HTTP requests",
		},
	)

	// Download pipeline metrics
	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "downloads_total",
			Help: "Total number of successful project downloads",
		},
		[]string{"project"},
	)

	DownloadErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "download_errors_total",
			Help: "Total number of failed download requests",
		},
		[]string{"reason"}, // "not_found", "archive", "audit"
	)

	// Geolocation enrichment metrics
	GeoLookupFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geolocation_lookup_failures_total",
			Help: "Total number of failed IP geolocation lookups (downloads still succeed)",
		},
	)

	GeocodeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geocode_failures_total",
			Help: "Total number of failed city/country geocoding lookups",
		},
	)

	GeocodeCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geocode_cache_hits_total",
			Help: "Total number of geocode lookups served from the cache",
		},
	)

	GeocodeCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geocode_cache_misses_total",
			Help: "Total number of geocode lookups that went upstream",
		},
	)

	// Audit store metrics
	AuditRecordsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_records_written_total",
			Help: "Total number of audit records appended",
		},
	)

	AuditRecordsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_records_deleted_total",
			Help: "Total number of audit records deleted by the operator",
		},
	)

	// Gate metrics
	GateAuthFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "log_gate_auth_failures_total",
			Help: "Total number of rejected log-viewer password attempts",
		},
	)

	// Clone metrics
	CloneOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clone_operations_total",
			Help: "Total number of repository clone attempts",
		},
		[]string{"outcome"}, // "success", "failure"
	)
)

// RecordHTTPRequest records one completed HTTP request.
func RecordHTTPRequest(method, path, statusCode string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		HTTPActiveRequests.Inc()
	} else {
		HTTPActiveRequests.Dec()
	}
}
