// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

// Package api exposes the HTTP surface of AuthSentry.
//
// Routes are served by chi with a global stack of request IDs, real-IP
// extraction, panic recovery, CORS and Prometheus instrumentation. The
// /api/v1 routes are additionally rate limited per client IP with httprate.
//
// Every JSON response uses one envelope:
//
//	{
//	  "success": true,
//	  "data": {...},
//	  "error": {"code": "...", "message": "...", "details": ...},
//	  "meta": {"timestamp": "...", "query_time_ms": 3, "pagination": {...}}
//	}
//
// Status codes: validation failures are 400, unknown alerts 404, backwards
// alert status transitions 409, oversized ingest batches 413 and store
// failures 500 with the underlying cause in error.details.
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, constructor, dependency interfaces
//   - handlers_health.go: liveness
//   - handlers_events.go: event ingestion and listing
//   - handlers_detection.go: detection runs, summary and rule toggles
//   - handlers_alerts.go: alert listing and triage
//   - handlers_reputation.go: reputation lookups, stats and eviction
package api
