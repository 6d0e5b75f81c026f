// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

/*
Package models defines the data structures shared across AuthSentry.

The package holds three record kinds:

  - SecurityEvent: a normalized authentication or access event, immutable once stored
  - SecurityAlert: a finding produced by a detection rule, whose Status is the only mutable field
  - IPReputation: the cached reputation assessment for one address

Alert status only moves forward (open, investigating, closed). Use
AlertStatus.CanTransition before persisting a change.

Query types (EventQuery, AlertFilter) carry zero-value defaults: a zero
time bound is unbounded and an empty slice applies no filter.
*/
package models
