// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

// Package reputation resolves IP addresses to abuse-confidence assessments.
//
// Two named strategies implement Provider:
//
//   - RealProvider calls the AbuseIPDB v2 check endpoint through a circuit breaker.
//   - FallbackProvider synthesizes a deterministic record locally and never fails.
//
// Cache sits in front of both. A lookup never fails because of the provider:
// missing credentials, rate limiting, non-2xx responses, timeouts and an open
// breaker all route to the fallback, and the synthetic result is cached exactly
// like a real one. Only durable-store errors reach the caller.
//
// BatchLookup spaces successive network calls with a golang.org/x/time/rate
// limiter so the provider quota is respected; cache hits and fallback
// resolutions are not delayed.
package reputation
