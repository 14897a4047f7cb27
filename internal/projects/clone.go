// Gitshelf - Source Project Portal with Download Audit Logging
// Copyright 2026 Gitshelf Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gitshelf/gitshelf

package projects

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Cloner performs the external clone operation for a repository URL.
type Cloner interface {
	Clone(ctx context.Context, repoURL, dest string) error
}

// GitCloner invokes the git client on the host. Clones are shallow; the
// portal serves snapshots, not working repositories.
type GitCloner struct {
	// Timeout bounds a single clone. Zero means DefaultCloneTimeout.
	Timeout time.Duration
}

// DefaultCloneTimeout bounds a clone when no timeout is configured.
const DefaultCloneTimeout = 2 * time.Minute

// Clone runs `git clone --depth 1 <url> <dest>`.
func (c *GitCloner) Clone(ctx context.Context, repoURL, dest string) error {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultCloneTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", "--", repoURL, dest)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("git clone failed: %s", lastLine(msg))
		}
		return fmt.Errorf("git clone failed: %w", err)
	}
	return nil
}

// lastLine returns the final non-empty line of git's stderr, which
// carries the actionable message.
func lastLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return s
}
