// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestAuditLogger_AlertRaised(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	audit := NewAuditLoggerWithLogger(NewTestLogger(&buf))

	audit.AlertRaised(7, "brute_force", "high", "root\nforged line", "203.0.113.9", 12)

	output := buf.String()
	for _, want := range []string{
		`"component":"audit"`,
		`"event":"alert_raised"`,
		`"alert_id":7`,
		`"affected_entity":"rootforged line"`,
		`"ip":"203.0.113.9"`,
		`"event_count":12`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output: %s", want, output)
		}
	}
}

func TestAuditLogger_AlertRaisedWithoutIP(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	audit := NewAuditLoggerWithLogger(NewTestLogger(&buf))

	audit.AlertRaised(1, "brute_force", "medium", "alice", "", 6)

	if strings.Contains(buf.String(), `"ip"`) {
		t.Errorf("ip field should be omitted when empty: %s", buf.String())
	}
}

func TestAuditLogger_StatusAndReputation(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	audit := NewAuditLoggerWithLogger(NewTestLogger(&buf))

	audit.AlertStatusChanged(3, "open", "closed")
	audit.ReputationFallback("198.51.100.1", "GET https://x/check?ipAddress=1&key=secret returned 500")
	audit.ReputationEvicted(4)
	audit.RuleToggled("geo_anomaly", false)

	output := buf.String()
	for _, want := range []string{
		`"event":"alert_status_changed"`,
		`"from":"open"`,
		`"to":"closed"`,
		`"event":"reputation_fallback"`,
		`"event":"reputation_evicted"`,
		`"removed":4`,
		`"event":"rule_toggled"`,
		`"enabled":false`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output: %s", want, output)
		}
	}
	if strings.Contains(output, "secret") {
		t.Errorf("credential leaked into audit log: %s", output)
	}
}

func TestSanitizeToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"short", "***"},
		{"0123456789abcdef", "0123...cdef"},
	}
	for _, tt := range tests {
		if got := SanitizeToken(tt.input); got != tt.want {
			t.Errorf("SanitizeToken(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSanitizeError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain", "connection refused", "connection refused"},
		{"key at end", "url?key=abc123", "url?key=***"},
		{"key in middle", "url?key=abc123&x=1", "url?key=***&x=1"},
		{"token before space", "token=zzz failed", "token=*** failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeError(tt.input); got != tt.want {
				t.Errorf("SanitizeError(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeLogValue(t *testing.T) {
	t.Parallel()

	if got := SanitizeLogValue("a\r\nb\tc"); got != "abc" {
		t.Errorf("SanitizeLogValue() = %q, want abc", got)
	}

	long := strings.Repeat("x", 300)
	got := SanitizeLogValue(long)
	if len(got) != maxLogValueLength+3 || !strings.HasSuffix(got, "...") {
		t.Errorf("expected truncated value, got length %d", len(got))
	}
}
