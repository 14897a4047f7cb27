// Gitshelf - Source Project Portal with Download Audit Logging
// Copyright 2026 Gitshelf Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gitshelf/gitshelf

// Package geo provides best-effort geographic enrichment: IP-to-location
// lookups against an external IP-information service, and free-text
// city/country geocoding with a persistent cache. Both lookups are
// enrichment only; every failure mode degrades to empty data and must
// never block the caller's primary operation.
package geo

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/gitshelf/gitshelf/internal/audit"
	"github.com/gitshelf/gitshelf/internal/logging"
)

// DefaultLookupTimeout bounds a single IP lookup. An explicit bound
// keeps a slow upstream from pinning download requests.
const DefaultLookupTimeout = 5 * time.Second

// Client queries an ipinfo-style IP-information service. A circuit
// breaker shields the service: while the circuit is open, lookups fail
// fast and callers fall back to empty geo data.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
	cb      *gobreaker.CircuitBreaker[audit.GeoData]
}

// NewClient creates an IP-lookup client. baseURL defaults to the public
// ipinfo.io endpoint; token may be empty for anonymous free-tier use.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://ipinfo.io"
	}
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}

	cb := gobreaker.NewCircuitBreaker[audit.GeoData](gobreaker.Settings{
		Name:        "geoip",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("geolocation circuit breaker state change")
		},
	})

	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		cb:      cb,
	}
}

// Lookup resolves geolocation for ip. Private and loopback addresses are
// answered locally without an upstream call. Any upstream failure,
// timeout, non-2xx status or open circuit returns an error; callers are
// expected to substitute empty geo data and continue.
func (c *Client) Lookup(ctx context.Context, ip string) (audit.GeoData, error) {
	ip = NormalizeIP(ip)

	if IsPrivateIP(ip) {
		logging.Debug().Str("ip", ip).Msg("private address, skipping geolocation lookup")
		return audit.GeoData{IP: ip}, nil
	}
	if net.ParseIP(ip) == nil {
		return audit.GeoData{}, fmt.Errorf("invalid IP address: %s", ip)
	}

	return c.cb.Execute(func() (audit.GeoData, error) {
		return c.query(ctx, ip)
	})
}

func (c *Client) query(ctx context.Context, ip string) (audit.GeoData, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, ip)
	if c.token != "" {
		url += "?token=" + c.token
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return audit.GeoData{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return audit.GeoData{}, fmt.Errorf("failed to query IP-information service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return audit.GeoData{}, fmt.Errorf("IP-information service returned status %d", resp.StatusCode)
	}

	var geo audit.GeoData
	if err := json.NewDecoder(resp.Body).Decode(&geo); err != nil {
		return audit.GeoData{}, fmt.Errorf("failed to decode IP-information response: %w", err)
	}
	if geo.IP == "" {
		geo.IP = ip
	}
	return geo, nil
}

// IsPrivateIP checks if the IP address is in a private/local range.
// Private IPs cannot be geolocated and are handled without upstream calls.
func IsPrivateIP(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}

	// RFC 1918 ranges, loopback, link-local, and the IPv6 equivalents.
	privateRanges := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"169.254.0.0/16",
		"::1/128",
		"fc00::/7",
		"fe80::/10",
	}

	for _, cidr := range privateRanges {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// NormalizeIP strips a port from an address if present.
func NormalizeIP(addr string) string {
	if strings.HasPrefix(addr, "[") {
		// IPv6 with port: [::1]:8080 -> ::1
		if idx := strings.LastIndex(addr, "]:"); idx != -1 {
			return addr[1:idx]
		}
		return strings.Trim(addr, "[]")
	}

	// IPv4 with port: 192.0.2.1:8080 -> 192.0.2.1
	// Only strip when it looks like host:port (single colon).
	if strings.Count(addr, ":") == 1 {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return addr[:idx]
		}
	}
	return addr
}
