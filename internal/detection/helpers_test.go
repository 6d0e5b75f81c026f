// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package detection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/authsentry/internal/config"
	"github.com/tomtom215/authsentry/internal/database"
	"github.com/tomtom215/authsentry/internal/models"
)

// testNow is a Wednesday.
var testNow = time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)

var errTestStore = errors.New("store unavailable")

func newEvent(ts time.Time, status, username, ip string) *models.SecurityEvent {
	return &models.SecurityEvent{
		Timestamp: ts,
		EventType: "authentication",
		Username:  username,
		SourceIP:  ip,
		Status:    status,
	}
}

func seedEvents(t *testing.T, store *database.MemoryStore, events ...*models.SecurityEvent) {
	t.Helper()
	if _, err := store.AppendEvents(context.Background(), events); err != nil {
		t.Fatalf("AppendEvents() error = %v", err)
	}
}

// failures returns n failed events from ip, each for a distinct user, one second apart.
func failures(n int, ip string, end time.Time) []*models.SecurityEvent {
	events := make([]*models.SecurityEvent, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, newEvent(end.Add(-time.Duration(i)*time.Second), "FAILED", fmt.Sprintf("user%d", i), ip))
	}
	return events
}

// failingEvents fails every read.
type failingEvents struct{}

func (failingEvents) QueryEvents(context.Context, models.EventQuery) ([]*models.SecurityEvent, error) {
	return nil, errTestStore
}

func (failingEvents) SourceIPActivity(context.Context, string, time.Time) (*models.IPActivity, error) {
	return nil, errTestStore
}

func (failingEvents) DistinctSourceIPs(context.Context, time.Time) ([]string, error) {
	return nil, errTestStore
}

// mockResolver returns fixed records and an optional error.
type mockResolver struct {
	mu      sync.Mutex
	records map[string]*models.IPReputation
	err     error
	calls   [][]string
}

func (m *mockResolver) BatchLookup(_ context.Context, ips []string) (map[string]*models.IPReputation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, append([]string(nil), ips...))

	out := make(map[string]*models.IPReputation)
	for _, ip := range ips {
		if rec, ok := m.records[ip]; ok {
			out[ip] = rec
		}
	}
	return out, m.err
}

func reputation(ip string, score int, whitelisted bool) *models.IPReputation {
	return &models.IPReputation{
		IPAddress:            ip,
		AbuseConfidenceScore: score,
		CountryCode:          "RU",
		UsageType:            "Data Center/Web Hosting/Transit",
		IsWhitelisted:        whitelisted,
		TotalReports:         score * 2,
		LastChecked:          testNow,
	}
}

// mockRule is a scripted Rule that records its evaluations.
type mockRule struct {
	toggle
	alertType  models.AlertType
	alerts     []*models.SecurityAlert
	err        error
	bestEffort bool
	calls      *[]models.AlertType
	mu         *sync.Mutex
}

func newMockRule(alertType models.AlertType, calls *[]models.AlertType, mu *sync.Mutex) *mockRule {
	r := &mockRule{alertType: alertType, calls: calls, mu: mu}
	r.enabled = true
	return r
}

func (r *mockRule) Type() models.AlertType { return r.alertType }
func (r *mockRule) BestEffort() bool       { return r.bestEffort }

func (r *mockRule) Evaluate(context.Context, time.Time) ([]*models.SecurityAlert, error) {
	r.mu.Lock()
	*r.calls = append(*r.calls, r.alertType)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := make([]*models.SecurityAlert, 0, len(r.alerts))
	for _, a := range r.alerts {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func sampleAlert(alertType models.AlertType, entity string) *models.SecurityAlert {
	return &models.SecurityAlert{
		AlertType:      alertType,
		Severity:       models.SeverityMedium,
		Title:          "sample",
		AffectedEntity: entity,
		EventCount:     1,
		FirstSeen:      testNow,
		LastSeen:       testNow,
	}
}

func defaultDetectionConfig() config.DetectionConfig {
	bf := DefaultBruteForceConfig()
	oh := DefaultOffHoursConfig()
	geo := DefaultGeoAnomalyConfig()
	hr := DefaultHighRiskIPConfig()
	return config.DetectionConfig{
		BruteForce: config.BruteForceRuleConfig{Enabled: true, Threshold: bf.Threshold, Window: bf.Window, FailureTokens: bf.FailureTokens},
		OffHours: config.OffHoursRuleConfig{
			Enabled: true, Lookback: oh.Lookback, StartHour: oh.StartHour, EndHour: oh.EndHour, SuccessTokens: oh.SuccessTokens,
		},
		GeoAnomaly: config.GeoAnomalyRuleConfig{Enabled: true, Lookback: geo.Lookback, Prefixes: geo.Prefixes},
		HighRiskIP: config.HighRiskIPRuleConfig{
			Enabled: true, Lookback: hr.Lookback, MinScore: hr.MinScore, CriticalScore: hr.CriticalScore,
		},
	}
}
