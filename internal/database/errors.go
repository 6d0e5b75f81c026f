// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package database

import (
	"errors"
	"io"
)

var (
	// ErrAlertNotFound is returned when an alert ID does not exist.
	ErrAlertNotFound = errors.New("alert not found")

	// ErrInvalidAlert is returned when an alert violates the model invariants.
	ErrInvalidAlert = errors.New("invalid alert")

	// ErrInvalidReputation is returned when a reputation record has no address.
	ErrInvalidReputation = errors.New("invalid reputation record")
)

// closeQuietly closes a resource and explicitly ignores any error.
// Use this for cleanup in error paths where Close() errors are not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}
