// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package detection

import (
	"github.com/tomtom215/authsentry/internal/config"
)

// NewRules builds the four rules from configuration, honoring each rule's
// enabled flag.
func NewRules(cfg *config.DetectionConfig, events EventSource, reputation ReputationResolver) []Rule {
	bruteForce := NewBruteForceRule(events, BruteForceConfig{
		Threshold:     cfg.BruteForce.Threshold,
		Window:        cfg.BruteForce.Window,
		FailureTokens: cfg.BruteForce.FailureTokens,
	})
	bruteForce.SetEnabled(cfg.BruteForce.Enabled)

	offHours := NewOffHoursRule(events, OffHoursConfig{
		Lookback:      cfg.OffHours.Lookback,
		StartHour:     cfg.OffHours.StartHour,
		EndHour:       cfg.OffHours.EndHour,
		SuccessTokens: cfg.OffHours.SuccessTokens,
	})
	offHours.SetEnabled(cfg.OffHours.Enabled)

	geoAnomaly := NewGeoAnomalyRule(events, GeoAnomalyConfig{
		Lookback: cfg.GeoAnomaly.Lookback,
		Prefixes: cfg.GeoAnomaly.Prefixes,
	})
	geoAnomaly.SetEnabled(cfg.GeoAnomaly.Enabled)

	highRisk := NewHighRiskIPRule(events, reputation, HighRiskIPConfig{
		Lookback:      cfg.HighRiskIP.Lookback,
		MinScore:      cfg.HighRiskIP.MinScore,
		CriticalScore: cfg.HighRiskIP.CriticalScore,
	})
	highRisk.SetEnabled(cfg.HighRiskIP.Enabled)

	return []Rule{bruteForce, offHours, geoAnomaly, highRisk}
}
