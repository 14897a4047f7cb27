// Gitshelf - Source Project Portal with Download Audit Logging
// Copyright 2026 Gitshelf Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gitshelf/gitshelf

package geo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/gitshelf/gitshelf/internal/metrics"
)

// Coordinates is a geocoded latitude/longitude pair.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Geocoder resolves a free-text "city, country" query to coordinates via
// an external forward-geocoding API. Lookups are rate limited (free-tier
// etiquette) and cached persistently; a query with no results returns
// nil coordinates rather than an error so a log view never fails on
// unknown place names.
type Geocoder struct {
	http    *http.Client
	baseURL string
	apiKey  string
	limiter *rate.Limiter
	cache   *GeocodeCache
}

// geocodeResponse is the subset of the geocoding API response we read.
type geocodeResponse struct {
	Results []struct {
		Geometry struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"geometry"`
	} `json:"results"`
}

// NewGeocoder creates a geocoder. cache may be nil to disable caching.
func NewGeocoder(baseURL, apiKey string, timeout time.Duration, cache *GeocodeCache) *Geocoder {
	if baseURL == "" {
		baseURL = "https://api.opencagedata.com/geocode/v1/json"
	}
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}

	return &Geocoder{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
		apiKey:  apiKey,
		// One request per second, burst of one: free-tier limit.
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		cache:   cache,
	}
}

// Geocode resolves city/country to coordinates. Returns (nil, nil) when
// either input is empty or the API has no results. Upstream failures
// return an error; callers degrade to nil coordinates.
func (g *Geocoder) Geocode(ctx context.Context, city, country string) (*Coordinates, error) {
	city = strings.TrimSpace(city)
	country = strings.TrimSpace(country)
	if city == "" && country == "" {
		return nil, nil
	}

	query := city
	if country != "" {
		if query != "" {
			query += ", "
		}
		query += country
	}

	if g.cache != nil {
		if coords, found, hit := g.cache.Get(query); hit {
			metrics.GeocodeCacheHits.Inc()
			if !found {
				return nil, nil
			}
			return coords, nil
		}
		metrics.GeocodeCacheMisses.Inc()
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("geocode rate limiter: %w", err)
	}

	coords, err := g.query(ctx, query)
	if err != nil {
		return nil, err
	}

	if g.cache != nil {
		g.cache.Set(query, coords)
	}
	return coords, nil
}

func (g *Geocoder) query(ctx context.Context, query string) (*Coordinates, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", "1")
	if g.apiKey != "" {
		params.Set("key", g.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query geocoding service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoding service returned status %d", resp.StatusCode)
	}

	var result geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode geocoding response: %w", err)
	}

	if len(result.Results) == 0 {
		return nil, nil
	}
	return &Coordinates{
		Latitude:  result.Results[0].Geometry.Lat,
		Longitude: result.Results[0].Geometry.Lng,
	}, nil
}
