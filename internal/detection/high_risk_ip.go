// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package detection

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/authsentry/internal/logging"
	"github.com/tomtom215/authsentry/internal/models"
)

// HighRiskIPRule resolves every source address seen in the lookback window
// through the reputation cache and alerts on non-whitelisted addresses whose
// abuse confidence score reaches MinScore.
//
// The rule is best effort: reputation or activity failures are logged and
// produce an empty or partial result, never an error.
type HighRiskIPRule struct {
	toggle
	config     HighRiskIPConfig
	events     EventSource
	reputation ReputationResolver
}

// NewHighRiskIPRule creates an enabled high-risk IP rule.
func NewHighRiskIPRule(events EventSource, reputation ReputationResolver, config HighRiskIPConfig) *HighRiskIPRule {
	r := &HighRiskIPRule{config: config, events: events, reputation: reputation}
	r.enabled = true
	return r
}

// Type returns the alert type.
func (r *HighRiskIPRule) Type() models.AlertType {
	return models.AlertTypeHighRiskIP
}

// Config returns the rule configuration.
func (r *HighRiskIPRule) Config() HighRiskIPConfig {
	return r.config
}

// BestEffort marks the rule as non-fatal to a run.
func (r *HighRiskIPRule) BestEffort() bool {
	return true
}

// Evaluate never returns an error.
func (r *HighRiskIPRule) Evaluate(ctx context.Context, now time.Time) ([]*models.SecurityAlert, error) {
	since := now.Add(-r.config.Lookback)
	log := logging.Ctx(ctx)

	ips, err := r.events.DistinctSourceIPs(ctx, since)
	if err != nil {
		log.Warn().Err(err).Msg("high-risk IP rule: failed to list source addresses")
		return nil, nil
	}
	if len(ips) == 0 {
		return nil, nil
	}

	records, err := r.reputation.BatchLookup(ctx, ips)
	if err != nil {
		// Keep whatever was resolved before the failure.
		log.Warn().Err(err).Int("resolved", len(records)).Int("requested", len(ips)).
			Msg("high-risk IP rule: reputation lookup incomplete")
	}

	var alerts []*models.SecurityAlert
	for _, ip := range ips {
		rec := records[ip]
		if rec == nil || rec.IsWhitelisted || rec.AbuseConfidenceScore < r.config.MinScore {
			continue
		}

		activity, err := r.events.SourceIPActivity(ctx, ip, since)
		if err != nil {
			log.Warn().Err(err).Str("ip", ip).Msg("high-risk IP rule: failed to read address activity")
			continue
		}
		if activity == nil || activity.Count == 0 {
			continue
		}

		severity := models.SeverityHigh
		if rec.AbuseConfidenceScore >= r.config.CriticalScore {
			severity = models.SeverityCritical
		}

		alerts = append(alerts, &models.SecurityAlert{
			AlertType:      models.AlertTypeHighRiskIP,
			Severity:       severity,
			Title:          fmt.Sprintf("High-risk IP %s (score %d)", ip, rec.AbuseConfidenceScore),
			Description:    describeReputation(rec, activity.Count, r.config.Lookback),
			AffectedEntity: ip,
			SourceIP:       ip,
			EventCount:     activity.Count,
			FirstSeen:      activity.FirstSeen,
			LastSeen:       activity.LastSeen,
		})
	}
	return alerts, nil
}

func describeReputation(rec *models.IPReputation, activity int, lookback time.Duration) string {
	country := rec.CountryCode
	if country == "" {
		country = "unknown"
	}
	usage := rec.UsageType
	if usage == "" {
		usage = "unknown"
	}
	return fmt.Sprintf("IP %s has an abuse confidence score of %d with %d reports (country: %s, usage: %s); %d events in the last %s",
		rec.IPAddress, rec.AbuseConfidenceScore, rec.TotalReports, country, usage, activity, lookback)
}
