// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package detection

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/authsentry/internal/models"
)

// GeoAnomalyRule flags activity from configured suspicious address ranges.
// Matching events are grouped by exact source IP and each address raises one
// medium severity alert. An address matching several prefixes is attributed
// to the first one in configuration order.
type GeoAnomalyRule struct {
	toggle
	config GeoAnomalyConfig
	events EventSource
}

// NewGeoAnomalyRule creates an enabled geo anomaly rule.
func NewGeoAnomalyRule(events EventSource, config GeoAnomalyConfig) *GeoAnomalyRule {
	r := &GeoAnomalyRule{config: config, events: events}
	r.enabled = true
	return r
}

// Type returns the alert type.
func (r *GeoAnomalyRule) Type() models.AlertType {
	return models.AlertTypeGeoAnomaly
}

// Config returns the rule configuration.
func (r *GeoAnomalyRule) Config() GeoAnomalyConfig {
	return r.config
}

// Evaluate scans each configured prefix in the lookback window.
func (r *GeoAnomalyRule) Evaluate(ctx context.Context, now time.Time) ([]*models.SecurityAlert, error) {
	since := now.Add(-r.config.Lookback)
	seen := make(map[string]struct{})

	var alerts []*models.SecurityAlert
	for _, prefix := range r.config.Prefixes {
		if prefix == "" {
			continue
		}
		events, err := r.events.QueryEvents(ctx, models.EventQuery{
			Since:            since,
			SourceIPPrefixes: []string{prefix},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query events for range %s: %w", prefix, err)
		}

		for _, g := range groupEvents(events, func(e *models.SecurityEvent) string { return e.SourceIP }) {
			if _, dup := seen[g.key]; dup {
				continue
			}
			seen[g.key] = struct{}{}

			alerts = append(alerts, &models.SecurityAlert{
				AlertType:      models.AlertTypeGeoAnomaly,
				Severity:       models.SeverityMedium,
				Title:          fmt.Sprintf("Activity from suspicious range %s*", prefix),
				Description:    fmt.Sprintf("%d events from %s in suspicious address range %s* within %s", g.count, g.key, prefix, r.config.Lookback),
				AffectedEntity: g.key,
				SourceIP:       g.key,
				EventCount:     g.count,
				FirstSeen:      g.first,
				LastSeen:       g.last,
			})
		}
	}
	return alerts, nil
}
