// Gitshelf - Source Project Portal with Download Audit Logging
// Copyright 2026 Gitshelf Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gitshelf/gitshelf

// Package archive builds transient zip archives of project directory
// trees. Archives are materialized whole before transmission and must be
// removed afterwards; BuildTemp hands the caller a cleanup func that is
// safe to defer on every exit path.
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// WriteZip writes a zip archive of every regular file under root to w.
// Entry names are slash-separated paths relative to root, preserving the
// directory structure but omitting the root segment itself.
func WriteZip(ctx context.Context, root string, w io.Writer) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}

	zw := zip.NewWriter(w)

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			// Sockets, devices and symlinks are not archived.
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		entry, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return fmt.Errorf("failed to create zip entry %s: %w", rel, err)
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()

		if _, err := io.Copy(entry, f); err != nil {
			return fmt.Errorf("failed to write zip entry %s: %w", rel, err)
		}
		return nil
	})
	if err != nil {
		zw.Close()
		return err
	}

	return zw.Close()
}

// BuildTemp materializes a zip of root into a temporary file and returns
// its path together with a cleanup func that removes it. On error the
// partial file is already removed and cleanup is nil.
func BuildTemp(ctx context.Context, root, name string) (string, func(), error) {
	tmp, err := os.CreateTemp("", name+"-*.zip")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp archive: %w", err)
	}
	tmpPath := tmp.Name()

	if err := WriteZip(ctx, root, tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", nil, fmt.Errorf("failed to build archive for %s: %w", root, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", nil, fmt.Errorf("failed to close temp archive: %w", err)
	}

	cleanup := func() {
		os.Remove(tmpPath)
	}
	return tmpPath, cleanup, nil
}
