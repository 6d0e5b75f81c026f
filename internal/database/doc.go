// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

// Package database provides the durable stores for AuthSentry.
//
// # Overview
//
// Three stores share one DuckDB connection:
//
//   - security_events: append-only event log, never updated or deleted
//   - security_alerts: detection findings, only the status column is mutable
//   - ip_reputation: one cached reputation record per address
//
// # Architecture
//
//   - database.go: connection lifecycle and options
//   - database_schema.go: sequences, tables and indexes
//   - crud_events.go: AppendEvents, QueryEvents and per-IP activity
//   - crud_alerts.go: SaveAlerts (optional dedup upsert), listing and triage
//   - crud_reputation.go: reputation cache rows, eviction and statistics
//   - memory_store.go: MemoryStore, an in-process implementation of the same
//     interfaces for tests
//
// # Security
//
// Every caller-controlled value (thresholds, windows, prefixes, tokens) is a
// bound parameter. The only dynamic SQL text is the ORDER BY column, which is
// checked against a whitelist.
//
// # Timestamps
//
// DuckDB TIMESTAMP has no zone, so events are stored in UTC next to their
// original offset in seconds (ts_offset). QueryEvents restores the offset,
// which lets the off-hours rule read the wall clock of the source system.
package database
