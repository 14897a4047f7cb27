// Gitshelf - Source Project Portal with Download Audit Logging
// Copyright 2026 Gitshelf Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gitshelf/gitshelf

package supervisor

import (
	"context"
	"time"

	"github.com/gitshelf/gitshelf/internal/geo"
)

// CacheGCService runs the geocode cache's value-log garbage collection
// on an interval until the tree shuts down.
type CacheGCService struct {
	cache    *geo.GeocodeCache
	interval time.Duration
}

// NewCacheGCService wraps the geocode cache janitor as a supervised
// service.
func NewCacheGCService(cache *geo.GeocodeCache, interval time.Duration) *CacheGCService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &CacheGCService{cache: cache, interval: interval}
}

// Serve implements suture.Service.
func (s *CacheGCService) Serve(ctx context.Context) error {
	return s.cache.RunGC(ctx, s.interval)
}

// String identifies the service in supervisor log messages.
func (s *CacheGCService) String() string {
	return "geocode-cache-gc"
}
