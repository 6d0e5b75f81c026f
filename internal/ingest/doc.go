// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

// Package ingest accepts batches of normalized security events, applies the
// tolerant defaults, appends each batch atomically and announces committed
// batches on the event bus.
//
// Normalization never rejects an event: a missing timestamp becomes the
// server clock, blank optional fields stay empty and a missing raw payload
// becomes the JSON encoding of the event itself. A batch fails only when the
// store fails, in which case nothing from it is stored.
package ingest
