// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

// Package app assembles AuthSentry from configuration.
//
// Both binaries build the same component graph through New: the store, the
// reputation cache and its provider, the four detection rules and the
// engine, the ingest service and the in-process event bus. cmd/server then
// hands the graph to a supervisor tree with Supervise; cmd/authsentryctl
// calls the components directly.
package app
