// Gitshelf - Source Project Portal with Download Audit Logging
// Copyright 2026 Gitshelf Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gitshelf/gitshelf

package geo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/gitshelf/gitshelf/internal/logging"
)

const geocodeKeyPrefix = "geocode:"

// cachedCoordinates is the stored shape for one geocode result. Found is
// persisted so that "no result" answers are cached too and do not hit the
// upstream again for every log view.
type cachedCoordinates struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Found     bool    `json:"found"`
}

// GeocodeCache is a BadgerDB-backed cache of geocoding results keyed by
// the normalized "city,country" query. Cache failures are logged and
// treated as misses; the cache never fails a lookup.
type GeocodeCache struct {
	db  *badger.DB
	ttl time.Duration
}

// OpenGeocodeCache opens (or creates) the cache at path.
func OpenGeocodeCache(path string, ttl time.Duration) (*GeocodeCache, error) {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}

	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open geocode cache: %w", err)
	}
	return &GeocodeCache{db: db, ttl: ttl}, nil
}

// Close releases the underlying store.
func (c *GeocodeCache) Close() error {
	return c.db.Close()
}

func cacheKey(query string) []byte {
	return []byte(geocodeKeyPrefix + strings.ToLower(strings.TrimSpace(query)))
}

// Get returns the cached coordinates for query. The second return is the
// cached "found" flag; the third reports a cache hit.
func (c *GeocodeCache) Get(query string) (*Coordinates, bool, bool) {
	var cached cachedCoordinates

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cacheKey(query))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &cached)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, false
	}
	if err != nil {
		logging.Warn().Err(err).Str("query", query).Msg("geocode cache read failed")
		return nil, false, false
	}

	if !cached.Found {
		return nil, false, true
	}
	return &Coordinates{Latitude: cached.Latitude, Longitude: cached.Longitude}, true, true
}

// Set stores a geocode result (or a negative answer when coords is nil).
func (c *GeocodeCache) Set(query string, coords *Coordinates) {
	cached := cachedCoordinates{}
	if coords != nil {
		cached = cachedCoordinates{
			Latitude:  coords.Latitude,
			Longitude: coords.Longitude,
			Found:     true,
		}
	}

	data, err := json.Marshal(cached)
	if err != nil {
		logging.Warn().Err(err).Str("query", query).Msg("geocode cache encode failed")
		return
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(cacheKey(query), data).WithTTL(c.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		logging.Warn().Err(err).Str("query", query).Msg("geocode cache write failed")
	}
}

// RunGC runs Badger's value-log garbage collection until ctx is done.
// Intended to run as a supervised background service.
func (c *GeocodeCache) RunGC(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// ErrNoRewrite just means there was nothing to collect.
			if err := c.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				logging.Warn().Err(err).Msg("geocode cache GC failed")
			}
		}
	}
}
