// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package models

import (
	"errors"
	"time"
)

// AlertType identifies the detection rule that produced an alert.
type AlertType string

const (
	AlertTypeBruteForce     AlertType = "brute_force"
	AlertTypeOffHoursAccess AlertType = "off_hours_access"
	AlertTypeGeoAnomaly     AlertType = "geo_anomaly"
	AlertTypeHighRiskIP     AlertType = "high_risk_ip"
)

// AlertTypes lists every alert type in rule evaluation order.
var AlertTypes = []AlertType{
	AlertTypeBruteForce,
	AlertTypeOffHoursAccess,
	AlertTypeGeoAnomaly,
	AlertTypeHighRiskIP,
}

// Valid reports whether t is a known alert type.
func (t AlertType) Valid() bool {
	for _, known := range AlertTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Severity indicates the urgency of an alert.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Rank orders severities from low (1) to critical (4). Unknown severities rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// AlertStatus is the triage state of an alert.
type AlertStatus string

const (
	AlertStatusOpen          AlertStatus = "open"
	AlertStatusInvestigating AlertStatus = "investigating"
	AlertStatusClosed        AlertStatus = "closed"
)

// Valid reports whether s is a known status.
func (s AlertStatus) Valid() bool {
	switch s {
	case AlertStatusOpen, AlertStatusInvestigating, AlertStatusClosed:
		return true
	}
	return false
}

// ErrInvalidStatusTransition is returned when an alert status change would move backwards.
var ErrInvalidStatusTransition = errors.New("invalid alert status transition")

// CanTransition reports whether an alert may move from s to next.
// Status only moves forward: open -> investigating -> closed, with open -> closed allowed.
func (s AlertStatus) CanTransition(next AlertStatus) bool {
	switch s {
	case AlertStatusOpen:
		return next == AlertStatusInvestigating || next == AlertStatusClosed
	case AlertStatusInvestigating:
		return next == AlertStatusClosed
	default:
		return false
	}
}

// SecurityAlert is a finding produced by a detection rule.
// Only Status changes after creation.
type SecurityAlert struct {
	ID             int64       `json:"id"`
	AlertType      AlertType   `json:"alert_type"`
	Severity       Severity    `json:"severity"`
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	AffectedEntity string      `json:"affected_entity"`
	SourceIP       string      `json:"source_ip,omitempty"`
	EventCount     int         `json:"event_count"`
	FirstSeen      time.Time   `json:"first_seen"`
	LastSeen       time.Time   `json:"last_seen"`
	Status         AlertStatus `json:"status"`
	AISummary      string      `json:"ai_summary,omitempty"`
	RunID          string      `json:"run_id,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// DedupKey returns the natural identity of an alert pattern.
func (a *SecurityAlert) DedupKey() string {
	return string(a.AlertType) + "|" + a.AffectedEntity + "|" + a.SourceIP + "|" + a.FirstSeen.UTC().Format(time.RFC3339Nano)
}

// AlertFilter selects alerts for listing.
type AlertFilter struct {
	Statuses   []AlertStatus
	Severities []Severity
	AlertTypes []AlertType
	Limit      int
	Offset     int

	// OrderBy is a column name checked against a whitelist; default created_at.
	OrderBy string
	// OrderDirection is "asc" or "desc"; default desc.
	OrderDirection string
}
