// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package logging

import (
	"strings"
	"unicode"

	"github.com/rs/zerolog"
)

// AuditLogger writes the security audit trail: alerts raised, operator status
// changes and reputation fallbacks. Fields that originate from ingested events
// are untrusted and are sanitized before they reach the log stream.
type AuditLogger struct {
	logger zerolog.Logger
}

// NewAuditLogger creates an audit logger on top of the global logger.
func NewAuditLogger() *AuditLogger {
	return &AuditLogger{
		logger: With().Str("component", "audit").Logger(),
	}
}

// NewAuditLoggerWithLogger creates an audit logger with a custom zerolog logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewAuditLoggerWithLogger(logger zerolog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// AlertRaised records a newly persisted alert.
func (l *AuditLogger) AlertRaised(id int64, alertType, severity, entity, sourceIP string, eventCount int) {
	e := l.logger.Info().
		Str("event", "alert_raised").
		Int64("alert_id", id).
		Str("alert_type", alertType).
		Str("severity", severity).
		Str("affected_entity", SanitizeLogValue(entity)).
		Int("event_count", eventCount)
	if sourceIP != "" {
		e = e.Str("ip", SanitizeLogValue(sourceIP))
	}
	e.Msg("")
}

// AlertStatusChanged records an operator triage action.
func (l *AuditLogger) AlertStatusChanged(id int64, from, to string) {
	l.logger.Info().
		Str("event", "alert_status_changed").
		Int64("alert_id", id).
		Str("from", from).
		Str("to", to).
		Msg("")
}

// ReputationFallback records that a synthetic score replaced a provider result.
func (l *AuditLogger) ReputationFallback(ip, reason string) {
	l.logger.Warn().
		Str("event", "reputation_fallback").
		Str("ip", SanitizeLogValue(ip)).
		Str("reason", SanitizeError(reason)).
		Msg("")
}

// ReputationEvicted records an eviction sweep.
func (l *AuditLogger) ReputationEvicted(removed int) {
	l.logger.Info().
		Str("event", "reputation_evicted").
		Int("removed", removed).
		Msg("")
}

// RuleToggled records an operator enabling or disabling a detection rule.
func (l *AuditLogger) RuleToggled(ruleType string, enabled bool) {
	l.logger.Info().
		Str("event", "rule_toggled").
		Str("rule", SanitizeLogValue(ruleType)).
		Bool("enabled", enabled).
		Msg("")
}

// maxLogValueLength bounds untrusted values written to the log.
const maxLogValueLength = 256

// SanitizeLogValue strips control characters (newlines included) from an
// untrusted value and truncates it, so ingested data cannot forge log lines.
func SanitizeLogValue(value string) string {
	if value == "" {
		return ""
	}
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)
	return truncateString(cleaned, maxLogValueLength)
}

// SanitizeToken masks a credential, showing only the first and last 4 characters.
// Example: "0123456789abcdef" -> "0123...cdef"
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizeError truncates an error message and strips anything that looks
// like a credential query parameter.
func SanitizeError(errMsg string) string {
	if errMsg == "" {
		return ""
	}
	lower := strings.ToLower(errMsg)
	for _, marker := range []string{"key=", "token=", "apikey="} {
		if idx := strings.Index(lower, marker); idx >= 0 {
			end := strings.IndexAny(errMsg[idx:], "& ")
			if end < 0 {
				errMsg = errMsg[:idx+len(marker)] + "***"
			} else {
				errMsg = errMsg[:idx+len(marker)] + "***" + errMsg[idx+end:]
			}
			lower = strings.ToLower(errMsg)
		}
	}
	return truncateString(SanitizeLogValue(errMsg), 200)
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
