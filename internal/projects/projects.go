// Gitshelf - Source Project Portal with Download Audit Logging
// Copyright 2026 Gitshelf Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gitshelf/gitshelf

// Package projects manages the projects root: a flat directory whose
// immediate subdirectories are the portal's projects. Projects are
// created by cloning a remote repository or by manual placement; this
// package never mutates an existing project.
package projects

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Sentinel errors for the projects surface.
var (
	ErrProjectNotFound = errors.New("project not found")
	ErrProjectExists   = errors.New("project already exists")
	ErrInvalidRepoURL  = errors.New("invalid repository URL")
)

// Service exposes the projects root.
type Service struct {
	root   string
	cloner Cloner
}

// NewService creates a Service over root. cloner may be nil when cloning
// is disabled.
func NewService(root string, cloner Cloner) *Service {
	return &Service{root: root, cloner: cloner}
}

// Root returns the projects root directory.
func (s *Service) Root() string {
	return s.root
}

// List returns the names of all project directories, sorted.
func (s *Service) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read projects root: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Dir resolves a project name to its directory. Names that are empty,
// contain path separators, or otherwise escape the projects root resolve
// to ErrProjectNotFound, as does a missing directory.
func (s *Service) Dir(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrProjectNotFound
	}

	dir := filepath.Join(s.root, name)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", ErrProjectNotFound
	}
	return dir, nil
}

// Exists reports whether a project directory of that name is present.
func (s *Service) Exists(name string) bool {
	_, err := s.Dir(name)
	return err == nil
}

// Files returns the relative paths of every file under the project,
// sorted, using slash separators.
func (s *Service) Files(_ context.Context, name string) ([]string, error) {
	dir, err := s.Dir(name)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk project %s: %w", name, err)
	}

	sort.Strings(files)
	return files, nil
}

// NameFromURL derives a project name from a repository URL: the last
// path segment with a trailing ".git" stripped. Both standard URLs and
// scp-style addresses (git@host:path) are accepted.
func NameFromURL(repoURL string) (string, error) {
	repoURL = strings.TrimSpace(repoURL)

	segment, ok := scpPath(repoURL)
	if !ok {
		u, err := url.Parse(repoURL)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidRepoURL, err)
		}
		segment = strings.Trim(u.Path, "/")
	}
	if idx := strings.LastIndex(segment, "/"); idx != -1 {
		segment = segment[idx+1:]
	}
	segment = strings.TrimSuffix(segment, ".git")

	if segment == "" || segment != filepath.Base(segment) || strings.HasPrefix(segment, ".") {
		return "", ErrInvalidRepoURL
	}
	return segment, nil
}

// scpPath extracts the path part of an scp-style git address
// (user@host:path), which url.Parse cannot handle. Addresses carrying
// an explicit scheme are not scp-style.
func scpPath(repoURL string) (string, bool) {
	if strings.Contains(repoURL, "://") {
		return "", false
	}
	at := strings.Index(repoURL, "@")
	colon := strings.Index(repoURL, ":")
	if at == -1 || colon == -1 || colon < at {
		return "", false
	}
	return strings.Trim(repoURL[colon+1:], "/"), true
}

// Clone imports a remote repository as a new project. The project name is
// derived from the URL; an existing project of that name is refused.
// On clone failure any partially created directory is removed.
func (s *Service) Clone(ctx context.Context, repoURL string) (string, error) {
	name, err := NameFromURL(repoURL)
	if err != nil {
		return "", err
	}
	if s.Exists(name) {
		return "", fmt.Errorf("%w: %s", ErrProjectExists, name)
	}
	if s.cloner == nil {
		return "", errors.New("cloning is not configured")
	}

	dest := filepath.Join(s.root, name)
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return "", fmt.Errorf("failed to create projects root: %w", err)
	}

	if err := s.cloner.Clone(ctx, repoURL, dest); err != nil {
		os.RemoveAll(dest)
		return "", fmt.Errorf("failed to clone %s: %w", repoURL, err)
	}
	return name, nil
}
