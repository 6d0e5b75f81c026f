// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package models

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestAlertStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to AlertStatus
		want     bool
	}{
		{AlertStatusOpen, AlertStatusInvestigating, true},
		{AlertStatusOpen, AlertStatusClosed, true},
		{AlertStatusInvestigating, AlertStatusClosed, true},
		{AlertStatusOpen, AlertStatusOpen, false},
		{AlertStatusInvestigating, AlertStatusOpen, false},
		{AlertStatusClosed, AlertStatusOpen, false},
		{AlertStatusClosed, AlertStatusInvestigating, false},
		{AlertStatusOpen, AlertStatus("resolved"), false},
		{AlertStatus("unknown"), AlertStatusClosed, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSeverity_Rank(t *testing.T) {
	ordered := []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	for i, s := range ordered {
		if got := s.Rank(); got != i+1 {
			t.Errorf("%s.Rank() = %d, want %d", s, got, i+1)
		}
		if !s.Valid() {
			t.Errorf("%s.Valid() = false", s)
		}
	}
	if got := Severity("urgent").Rank(); got != 0 {
		t.Errorf("unknown Rank() = %d, want 0", got)
	}
	if Severity("urgent").Valid() {
		t.Error("unknown severity reported valid")
	}
}

func TestAlertType_Valid(t *testing.T) {
	for _, at := range AlertTypes {
		if !at.Valid() {
			t.Errorf("%s.Valid() = false", at)
		}
	}
	if AlertType("port_scan").Valid() {
		t.Error("unknown alert type reported valid")
	}
	if len(AlertTypes) != 4 || AlertTypes[0] != AlertTypeBruteForce || AlertTypes[3] != AlertTypeHighRiskIP {
		t.Errorf("AlertTypes = %v", AlertTypes)
	}
}

func TestAlertStatus_Valid(t *testing.T) {
	for _, s := range []AlertStatus{AlertStatusOpen, AlertStatusInvestigating, AlertStatusClosed} {
		if !s.Valid() {
			t.Errorf("%s.Valid() = false", s)
		}
	}
	if AlertStatus("").Valid() {
		t.Error("empty status reported valid")
	}
}

func TestSecurityAlert_DedupKey(t *testing.T) {
	first := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)
	a := &SecurityAlert{AlertType: AlertTypeBruteForce, AffectedEntity: "10.0.0.7", SourceIP: "10.0.0.7", FirstSeen: first}

	same := *a
	same.ID = 42
	same.Status = AlertStatusClosed
	same.FirstSeen = first.In(time.FixedZone("", 3600))
	if a.DedupKey() != same.DedupKey() {
		t.Errorf("keys differ for the same pattern: %q vs %q", a.DedupKey(), same.DedupKey())
	}

	other := *a
	other.FirstSeen = first.Add(time.Second)
	if a.DedupKey() == other.DedupKey() {
		t.Error("keys match for a different first_seen")
	}

	byUser := *a
	byUser.AffectedEntity = "root"
	if a.DedupKey() == byUser.DedupKey() {
		t.Error("keys match for a different entity")
	}
}

func TestSecurityEvent_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, e *SecurityEvent)
	}{
		{
			name:  "rfc3339 keeps offset",
			input: `{"timestamp":"2026-03-11T23:00:00+05:00","username":"alice"}`,
			check: func(t *testing.T, e *SecurityEvent) {
				if _, off := e.Timestamp.Zone(); off != 5*3600 {
					t.Errorf("offset = %d", off)
				}
				if e.Username != "alice" {
					t.Errorf("Username = %q", e.Username)
				}
			},
		},
		{
			name:  "empty timestamp stays zero",
			input: `{"timestamp":"","status":"failed"}`,
			check: func(t *testing.T, e *SecurityEvent) {
				if !e.Timestamp.IsZero() {
					t.Errorf("Timestamp = %v, want zero", e.Timestamp)
				}
				if e.Status != "failed" {
					t.Errorf("Status = %q", e.Status)
				}
			},
		},
		{
			name:  "space separated timestamp read as utc",
			input: `{"timestamp":"2026-03-11 02:00:00"}`,
			check: func(t *testing.T, e *SecurityEvent) {
				want := time.Date(2026, 3, 11, 2, 0, 0, 0, time.UTC)
				if !e.Timestamp.Equal(want) {
					t.Errorf("Timestamp = %v, want %v", e.Timestamp, want)
				}
			},
		},
		{
			name:  "garbage timestamp stays zero",
			input: `{"timestamp":"yesterday-ish"}`,
			check: func(t *testing.T, e *SecurityEvent) {
				if !e.Timestamp.IsZero() {
					t.Errorf("Timestamp = %v, want zero", e.Timestamp)
				}
			},
		},
		{
			name:  "unix seconds",
			input: `{"timestamp":1773230400}`,
			check: func(t *testing.T, e *SecurityEvent) {
				if !e.Timestamp.Equal(time.Unix(1773230400, 0)) {
					t.Errorf("Timestamp = %v", e.Timestamp)
				}
			},
		},
		{
			name:  "scalars become text",
			input: `{"status":401,"username":true,"message":{"nested":1},"source_ip":null}`,
			check: func(t *testing.T, e *SecurityEvent) {
				if e.Status != "401" || e.Username != "true" {
					t.Errorf("Status = %q, Username = %q", e.Status, e.Username)
				}
				if e.Message != "" || e.SourceIP != "" {
					t.Errorf("Message = %q, SourceIP = %q", e.Message, e.SourceIP)
				}
			},
		},
		{
			name:  "raw payload kept verbatim",
			input: `{"raw_payload":{"src":"sshd","pid":1}}`,
			check: func(t *testing.T, e *SecurityEvent) {
				if string(e.RawPayload) != `{"src":"sshd","pid":1}` {
					t.Errorf("RawPayload = %s", e.RawPayload)
				}
			},
		},
		{
			name:  "null raw payload is absent",
			input: `{"raw_payload":null}`,
			check: func(t *testing.T, e *SecurityEvent) {
				if e.RawPayload != nil {
					t.Errorf("RawPayload = %s, want nil", e.RawPayload)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e SecurityEvent
			if err := json.Unmarshal([]byte(tt.input), &e); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			tt.check(t, &e)
		})
	}
}

func TestSecurityEvent_UnmarshalJSONRejectsNonObject(t *testing.T) {
	var events []*SecurityEvent
	if err := json.Unmarshal([]byte(`["not an event"]`), &events); err == nil {
		t.Error("expected error for non-object element")
	}
}
