// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

// Package detection evaluates the fixed rule set against the event store and
// persists the resulting security alerts.
//
// Detection Architecture:
//
//	EventStore -> Rule (x4, fixed order) -> AlertStore -> Notifier
//	                  |
//	                  v
//	          Reputation Cache (high_risk_ip only)
//
// Rules are stateless between runs: every run is a complete re-scan of the
// trailing windows, so re-running against unchanged data re-emits alerts
// unless the alert store deduplicates them.
//
// Supported Detection Rules:
//   - Brute Force: repeated failed authentications per source IP and per
//     username within a short window
//   - Off-Hours Access: successful authentications outside business hours or
//     on weekends, evaluated in the timestamp's own UTC offset
//   - Geo Anomaly: activity from configured suspicious address ranges
//   - High-Risk IP: addresses whose reputation score crosses a threshold
//
// Failure handling: the first three rules only depend on the store and any
// error aborts the run. The high-risk IP rule is best effort and degrades to
// an empty or partial result when reputation data is unavailable.
package detection
