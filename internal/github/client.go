// Gitshelf - Source Project Portal with Download Audit Logging
// Copyright 2026 Gitshelf Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gitshelf/gitshelf

// Package github proxies the public-repositories listing of a GitHub
// account, one page at a time, for the portal's browse view.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// DefaultPerPage is the page size requested from the remote API.
const DefaultPerPage = 10

// Repo is one repository in a listing page.
type Repo struct {
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	HTMLURL     string `json:"html_url"`
	CloneURL    string `json:"clone_url"`
	Language    string `json:"language"`
	Stars       int    `json:"stargazers_count"`
}

// Page is one page of a user's public repositories with pagination
// markers for the rendered view.
type Page struct {
	Username string
	Number   int
	Repos    []Repo
	HasPrev  bool
	HasNext  bool
}

// PrevNumber returns the previous page number (valid when HasPrev).
func (p *Page) PrevNumber() int { return p.Number - 1 }

// NextNumber returns the next page number (valid when HasNext).
func (p *Page) NextNumber() int { return p.Number + 1 }

// UpstreamError is a non-success response from the remote API. It is
// surfaced to the user as a server error with the remote message.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("remote repository listing failed (status %d): %s", e.StatusCode, e.Message)
}

// Client queries the GitHub REST API.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
	perPage int
}

// NewClient creates a GitHub listing client. token may be empty for
// anonymous (rate-limited) access.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		perPage: DefaultPerPage,
	}
}

// ListRepos fetches one page of a user's public repositories. page is
// 1-based; values below 1 are clamped to 1.
func (c *Client) ListRepos(ctx context.Context, username string, page int) (*Page, error) {
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(c.perPage))
	params.Set("sort", "updated")

	endpoint := fmt.Sprintf("%s/users/%s/repos?%s", c.baseURL, url.PathEscape(username), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query repository listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newUpstreamError(resp)
	}

	var repos []Repo
	if err := json.NewDecoder(resp.Body).Decode(&repos); err != nil {
		return nil, fmt.Errorf("failed to decode repository listing: %w", err)
	}

	return &Page{
		Username: username,
		Number:   page,
		Repos:    repos,
		HasPrev:  page > 1,
		// A full page suggests more; the last exact-multiple page costs
		// one extra empty fetch, which is acceptable for a browse view.
		HasNext: len(repos) == c.perPage,
	}, nil
}

func newUpstreamError(resp *http.Response) error {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Message == "" {
		body.Message = http.StatusText(resp.StatusCode)
	}
	return &UpstreamError{StatusCode: resp.StatusCode, Message: body.Message}
}
