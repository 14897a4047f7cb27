// Gitshelf - Source Project Portal with Download Audit Logging
// Copyright 2026 Gitshelf Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gitshelf/gitshelf

// Package audit provides the download audit log: an append-only store of
// one structured record per project download, with id-based delete, full
// reset, and raw export for the operator surface.
package audit

import (
	"context"
	"errors"
)

// GeoData is the best-effort geolocation attached to a download record.
// The field set mirrors the upstream IP-information service response; any
// or all fields may be empty when the lookup failed or was skipped.
type GeoData struct {
	IP       string `json:"ip,omitempty"`
	Hostname string `json:"hostname,omitempty"`
	City     string `json:"city,omitempty"`
	Region   string `json:"region,omitempty"`
	Country  string `json:"country,omitempty"`

	// Loc is "latitude,longitude" as reported by the upstream service.
	Loc string `json:"loc,omitempty"`

	Org      string `json:"org,omitempty"`
	Postal   string `json:"postal,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// Empty reports whether no geolocation field is set.
func (g GeoData) Empty() bool {
	return g == GeoData{}
}

// Record is one persisted download event.
type Record struct {
	// ID is assigned by the store at append time and is the sole handle
	// for deletion. It is derived from a monotonically distinct timestamp.
	ID string `json:"id"`

	// IP is the resolved client address.
	IP string `json:"ip"`

	// Geo is the geolocation result; may be partially or fully empty.
	Geo GeoData `json:"geo_data"`

	// UserAgent is the raw request header value, possibly empty.
	UserAgent string `json:"user_agent"`

	// Project is the name of the downloaded project.
	Project string `json:"project"`
}

// Sentinel errors returned by stores.
var (
	// ErrMalformedRecord indicates a persisted entry that cannot be
	// decoded. Loading stops at the first malformed entry.
	ErrMalformedRecord = errors.New("malformed audit record")
)

// Store defines the interface for download-record persistence.
// Implementations serialize all operations internally; callers may use a
// Store from concurrent request handlers.
type Store interface {
	// Append assigns a unique ID to the record and persists it without
	// touching existing entries.
	Append(ctx context.Context, rec *Record) error

	// LoadAll returns every persisted record in write order.
	LoadAll(ctx context.Context) ([]Record, error)

	// Delete removes the record with the given ID, preserving the
	// relative order of the remaining records. Deleting an unknown ID
	// is a no-op.
	Delete(ctx context.Context, id string) error

	// Reset replaces the store with an empty collection.
	Reset(ctx context.Context) error

	// Export returns the raw persisted bytes, unparsed.
	Export(ctx context.Context) ([]byte, error)
}
