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

// OffHoursRule flags successful authentications outside business hours or on
// weekends. Hours are read in the offset the event timestamp was recorded
// with, not the server's zone. Every qualifying event raises its own medium
// severity alert.
type OffHoursRule struct {
	toggle
	config OffHoursConfig
	events EventSource
}

// NewOffHoursRule creates an enabled off-hours rule.
func NewOffHoursRule(events EventSource, config OffHoursConfig) *OffHoursRule {
	r := &OffHoursRule{config: config, events: events}
	r.enabled = true
	return r
}

// Type returns the alert type.
func (r *OffHoursRule) Type() models.AlertType {
	return models.AlertTypeOffHoursAccess
}

// Config returns the rule configuration.
func (r *OffHoursRule) Config() OffHoursConfig {
	return r.config
}

// Evaluate scans successful authentications in the lookback window.
func (r *OffHoursRule) Evaluate(ctx context.Context, now time.Time) ([]*models.SecurityAlert, error) {
	events, err := r.events.QueryEvents(ctx, models.EventQuery{
		Since:          now.Add(-r.config.Lookback),
		StatusContains: r.config.SuccessTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query successful authentications: %w", err)
	}

	var alerts []*models.SecurityAlert
	// Oldest first so IDs follow the order of access.
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		if r.withinBusinessHours(e.Timestamp) {
			continue
		}

		entity := e.Username
		if entity == "" {
			entity = e.SourceIP
		}
		if entity == "" {
			entity = "unknown"
		}

		alerts = append(alerts, &models.SecurityAlert{
			AlertType:      models.AlertTypeOffHoursAccess,
			Severity:       models.SeverityMedium,
			Title:          fmt.Sprintf("Off-hours access by %s", entity),
			Description:    r.describe(e, entity),
			AffectedEntity: entity,
			SourceIP:       e.SourceIP,
			EventCount:     1,
			FirstSeen:      e.Timestamp,
			LastSeen:       e.Timestamp,
		})
	}
	return alerts, nil
}

// withinBusinessHours reports whether ts falls on a weekday within
// [StartHour, EndHour) of its own offset.
func (r *OffHoursRule) withinBusinessHours(ts time.Time) bool {
	switch ts.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	hour := ts.Hour()
	return hour >= r.config.StartHour && hour < r.config.EndHour
}

func (r *OffHoursRule) describe(e *models.SecurityEvent, entity string) string {
	from := ""
	if e.SourceIP != "" && e.SourceIP != entity {
		from = " from " + e.SourceIP
	}
	return fmt.Sprintf("Successful authentication by %s%s at %s, outside business hours (%02d:00-%02d:00 Mon-Fri)",
		entity, from, e.Timestamp.Format("Mon 2006-01-02 15:04 -07:00"), r.config.StartHour, r.config.EndHour)
}
