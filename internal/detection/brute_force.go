// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package detection

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tomtom215/authsentry/internal/models"
)

// BruteForceRule detects repeated failed authentications. Failures in the
// trailing window are grouped twice, once by source IP and once by username,
// and every group reaching the threshold raises one high severity alert.
// A single burst can therefore raise both an IP-keyed and a username-keyed
// alert.
type BruteForceRule struct {
	toggle
	config BruteForceConfig
	events EventSource
}

// NewBruteForceRule creates an enabled brute force rule.
func NewBruteForceRule(events EventSource, config BruteForceConfig) *BruteForceRule {
	r := &BruteForceRule{config: config, events: events}
	r.enabled = true
	return r
}

// Type returns the alert type.
func (r *BruteForceRule) Type() models.AlertType {
	return models.AlertTypeBruteForce
}

// Config returns the rule configuration.
func (r *BruteForceRule) Config() BruteForceConfig {
	return r.config
}

// Evaluate scans failures timestamped at or after now - Window. There is
// no upper bound, so future-dated events are counted.
func (r *BruteForceRule) Evaluate(ctx context.Context, now time.Time) ([]*models.SecurityAlert, error) {
	events, err := r.events.QueryEvents(ctx, models.EventQuery{
		Since:          now.Add(-r.config.Window),
		StatusContains: r.config.FailureTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query failed authentications: %w", err)
	}

	byIP := groupEvents(events, func(e *models.SecurityEvent) string { return e.SourceIP })
	byUser := groupEvents(events, func(e *models.SecurityEvent) string { return e.Username })

	var alerts []*models.SecurityAlert
	for _, g := range byIP {
		if g.count < r.config.Threshold {
			continue
		}
		alerts = append(alerts, &models.SecurityAlert{
			AlertType:      models.AlertTypeBruteForce,
			Severity:       models.SeverityHigh,
			Title:          fmt.Sprintf("Brute force attempt from %s", g.key),
			Description:    fmt.Sprintf("%d failed authentication attempts from %s within %s", g.count, g.key, r.config.Window),
			AffectedEntity: g.key,
			SourceIP:       g.key,
			EventCount:     g.count,
			FirstSeen:      g.first,
			LastSeen:       g.last,
		})
	}
	for _, g := range byUser {
		if g.count < r.config.Threshold {
			continue
		}
		alerts = append(alerts, &models.SecurityAlert{
			AlertType:      models.AlertTypeBruteForce,
			Severity:       models.SeverityHigh,
			Title:          fmt.Sprintf("Brute force attempt against user %s", g.key),
			Description:    fmt.Sprintf("%d failed authentication attempts for %s from %d source address(es) within %s", g.count, g.key, len(g.sources), r.config.Window),
			AffectedEntity: g.key,
			SourceIP:       g.singleSource(),
			EventCount:     g.count,
			FirstSeen:      g.first,
			LastSeen:       g.last,
		})
	}
	return alerts, nil
}

// eventGroup aggregates events sharing a key.
type eventGroup struct {
	key     string
	count   int
	first   time.Time
	last    time.Time
	sources map[string]struct{}
}

// singleSource returns the only source IP of the group, or "" when the
// group spans several addresses.
func (g *eventGroup) singleSource() string {
	if len(g.sources) != 1 {
		return ""
	}
	for ip := range g.sources {
		return ip
	}
	return ""
}

// groupEvents groups events by keyFn, skipping empty keys. Groups are
// returned sorted by key so alert order is stable.
func groupEvents(events []*models.SecurityEvent, keyFn func(*models.SecurityEvent) string) []*eventGroup {
	groups := make(map[string]*eventGroup)
	for _, e := range events {
		key := keyFn(e)
		if key == "" {
			continue
		}
		g, ok := groups[key]
		if !ok {
			g = &eventGroup{key: key, first: e.Timestamp, last: e.Timestamp, sources: make(map[string]struct{})}
			groups[key] = g
		}
		g.count++
		if e.Timestamp.Before(g.first) {
			g.first = e.Timestamp
		}
		if e.Timestamp.After(g.last) {
			g.last = e.Timestamp
		}
		if e.SourceIP != "" {
			g.sources[e.SourceIP] = struct{}{}
		}
	}

	out := make([]*eventGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}
