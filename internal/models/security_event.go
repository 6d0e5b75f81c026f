// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package models

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// SecurityEvent is a normalized security event record. Events are immutable once
// stored: the store assigns ID and CreatedAt, everything else is caller supplied.
type SecurityEvent struct {
	ID            int64           `json:"id"`
	Timestamp     time.Time       `json:"timestamp"`
	EventType     string          `json:"event_type,omitempty"`
	Username      string          `json:"username,omitempty"`
	SourceIP      string          `json:"source_ip,omitempty"`
	DestinationIP string          `json:"destination_ip,omitempty"`
	Status        string          `json:"status,omitempty"`
	Message       string          `json:"message,omitempty"`
	RawPayload    json.RawMessage `json:"raw_payload,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// timestampLayouts are tried in order when decoding event timestamps.
// Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02 15:04:05.999999999",
	time.RFC1123Z,
	time.RFC1123,
	time.DateOnly,
}

// UnmarshalJSON decodes an event tolerantly. A malformed field decodes to
// its zero value instead of failing: scalars in text fields become their
// literal text and unparseable timestamps stay zero. Only input that is not
// a JSON object is an error.
func (e *SecurityEvent) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID            json.RawMessage `json:"id"`
		Timestamp     json.RawMessage `json:"timestamp"`
		EventType     json.RawMessage `json:"event_type"`
		Username      json.RawMessage `json:"username"`
		SourceIP      json.RawMessage `json:"source_ip"`
		DestinationIP json.RawMessage `json:"destination_ip"`
		Status        json.RawMessage `json:"status"`
		Message       json.RawMessage `json:"message"`
		RawPayload    json.RawMessage `json:"raw_payload"`
		CreatedAt     json.RawMessage `json:"created_at"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	*e = SecurityEvent{
		ID:            lenientInt(wire.ID),
		Timestamp:     lenientTime(wire.Timestamp),
		EventType:     lenientString(wire.EventType),
		Username:      lenientString(wire.Username),
		SourceIP:      lenientString(wire.SourceIP),
		DestinationIP: lenientString(wire.DestinationIP),
		Status:        lenientString(wire.Status),
		Message:       lenientString(wire.Message),
		CreatedAt:     lenientTime(wire.CreatedAt),
	}
	if raw := bytes.TrimSpace(wire.RawPayload); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		e.RawPayload = append(json.RawMessage(nil), raw...)
	}
	return nil
}

// lenientString returns the text of a JSON string, the literal text of a
// number or boolean, and "" for anything else.
func lenientString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case 't', 'f', '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return string(raw)
	}
	return ""
}

func lenientInt(raw json.RawMessage) int64 {
	n, err := strconv.ParseInt(lenientString(raw), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// lenientTime parses a timestamp string against timestampLayouts, or a
// number as Unix seconds (milliseconds when it is too large for seconds).
func lenientTime(raw json.RawMessage) time.Time {
	s := strings.TrimSpace(lenientString(raw))
	if s == "" {
		return time.Time{}
	}
	if raw := bytes.TrimSpace(raw); raw[0] != '"' {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f <= 0 {
			return time.Time{}
		}
		if f >= 1e12 {
			return time.UnixMilli(int64(f)).UTC()
		}
		return time.Unix(int64(f), 0).UTC()
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// EventQuery selects events for listing or rule evaluation.
// All string matching is case-insensitive substring matching for statuses
// and case-sensitive prefix matching for source addresses.
type EventQuery struct {
	// Since is the inclusive lower bound on the event timestamp. Zero means unbounded.
	Since time.Time

	// Until is the inclusive upper bound on the event timestamp. Zero means unbounded.
	Until time.Time

	// StatusContains keeps events whose status contains any of the tokens.
	StatusContains []string

	// SourceIPPrefixes keeps events whose source IP starts with any of the prefixes.
	SourceIPPrefixes []string

	// RequireSourceIP drops events without a source address.
	RequireSourceIP bool

	// RequireUsername drops events without a username.
	RequireUsername bool

	// SourceIP keeps events from exactly this address.
	SourceIP string

	// Username keeps events for exactly this user.
	Username string

	Limit  int
	Offset int
}

// FailureStatusTokens is the default failure vocabulary, matched
// case-insensitively as substrings of an event status.
var FailureStatusTokens = []string{"fail", "denied", "invalid"}

// IPActivity summarizes the events seen from one source address.
type IPActivity struct {
	SourceIP      string    `json:"source_ip"`
	Count         int       `json:"count"`
	FailureCount  int       `json:"failure_count"`
	DistinctUsers int       `json:"distinct_users"`
	FirstSeen     time.Time `json:"first_seen"`
	LastSeen      time.Time `json:"last_seen"`
}
