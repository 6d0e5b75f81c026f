// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package database

import (
	"database/sql"
	"strings"
	"time"
)

// buildPlaceholders returns "?, ?, ..." for count bound parameters.
func buildPlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", count), ", ")
}

// nullString maps "" to SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// zoneOffset returns the UTC offset of t in seconds.
func zoneOffset(t time.Time) int {
	_, offset := t.Zone()
	return offset
}

// restoreOffset re-attaches a stored UTC offset to a UTC timestamp.
func restoreOffset(ts time.Time, offset int) time.Time {
	ts = ts.UTC()
	if offset == 0 {
		return ts
	}
	return ts.In(time.FixedZone("", offset))
}

// orderDirection normalizes a caller-supplied sort direction (prevents SQL injection).
func orderDirection(dir string) string {
	if strings.EqualFold(dir, "asc") {
		return "ASC"
	}
	return "DESC"
}
