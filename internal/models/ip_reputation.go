// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// ReputationSource records which strategy produced a reputation record.
type ReputationSource string

const (
	ReputationSourceProvider ReputationSource = "provider"
	ReputationSourceFallback ReputationSource = "fallback"
)

// IPReputation is the cached reputation assessment for one address.
// There is at most one record per IPAddress.
type IPReputation struct {
	IPAddress            string           `json:"ip_address"`
	AbuseConfidenceScore int              `json:"abuse_confidence_score"`
	CountryCode          string           `json:"country_code,omitempty"`
	UsageType            string           `json:"usage_type,omitempty"`
	IsWhitelisted        bool             `json:"is_whitelisted"`
	TotalReports         int              `json:"total_reports"`
	LastChecked          time.Time        `json:"last_checked"`
	Source               ReputationSource `json:"source"`
	RawPayload           json.RawMessage  `json:"raw_payload,omitempty"`
}

// ReputationStats summarizes the reputation cache.
type ReputationStats struct {
	TotalCached     int `json:"total_cached"`
	SuspiciousCount int `json:"suspicious_count"`
	HighRiskCount   int `json:"high_risk_count"`
	WhitelistCount  int `json:"whitelisted_count"`
	FallbackCount   int `json:"fallback_count"`
}
