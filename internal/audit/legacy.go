// Gitshelf - Source Project Portal with Download Audit Logging
// Copyright 2026 Gitshelf Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gitshelf/gitshelf

package audit

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// The portal's first iteration appended downloads as free-text lines (one
// printed dictionary per download) with no IDs and no delete support.
// ImportLegacy converts that format into structured records, best-effort:
// lines that cannot be parsed are skipped, never fatal. It is a one-shot
// migration path and is deliberately kept out of FileStore's read path.

var legacyFieldRe = regexp.MustCompile(`'(ip|city|region|country|loc|org|postal|timezone|user_agent|project)':\s*'((?:[^'\\]|\\.)*)'`)

// ParseLegacyLine extracts a record from one legacy free-text line.
// Returns false when the line carries no recognizable fields.
func ParseLegacyLine(line string) (Record, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Record{}, false
	}

	fields := map[string]string{}
	for _, m := range legacyFieldRe.FindAllStringSubmatch(line, -1) {
		key, val := m[1], m[2]
		// The top-level 'ip' appears before the nested geo copy; keep
		// the first occurrence of every key.
		if _, seen := fields[key]; !seen {
			fields[key] = val
		}
	}
	if len(fields) == 0 {
		return Record{}, false
	}

	rec := Record{
		IP:        fields["ip"],
		UserAgent: fields["user_agent"],
		Project:   fields["project"],
		Geo: GeoData{
			IP:       fields["ip"],
			City:     fields["city"],
			Region:   fields["region"],
			Country:  fields["country"],
			Loc:      fields["loc"],
			Org:      fields["org"],
			Postal:   fields["postal"],
			Timezone: fields["timezone"],
		},
	}
	return rec, rec.IP != "" || rec.Project != ""
}

// ImportLegacy reads a legacy free-text log at path and appends every
// parseable line to the store. Returns the number of imported records.
// A missing legacy file imports zero records without error.
func ImportLegacy(ctx context.Context, store Store, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to open legacy log: %w", err)
	}
	defer f.Close()

	imported := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		rec, ok := ParseLegacyLine(scanner.Text())
		if !ok {
			continue
		}
		if err := store.Append(ctx, &rec); err != nil {
			return imported, fmt.Errorf("failed to import legacy record: %w", err)
		}
		imported++
	}
	if err := scanner.Err(); err != nil {
		return imported, fmt.Errorf("failed to read legacy log: %w", err)
	}
	return imported, nil
}
