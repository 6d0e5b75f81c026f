// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package detection

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/authsentry/internal/database"
	"github.com/tomtom215/authsentry/internal/models"
)

func TestBruteForceRule_Threshold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		failures   int
		wantAlerts int
	}{
		{failures: 3, wantAlerts: 0},
		{failures: 4, wantAlerts: 0},
		{failures: 5, wantAlerts: 1},
		{failures: 9, wantAlerts: 1},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d failures", tt.failures), func(t *testing.T) {
			t.Parallel()
			store := database.NewMemoryStore()
			seedEvents(t, store, failures(tt.failures, "203.0.113.50", testNow)...)

			rule := NewBruteForceRule(store, DefaultBruteForceConfig())
			alerts, err := rule.Evaluate(context.Background(), testNow)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if len(alerts) != tt.wantAlerts {
				t.Fatalf("alerts = %d, want %d", len(alerts), tt.wantAlerts)
			}
			if tt.wantAlerts == 0 {
				return
			}

			a := alerts[0]
			if a.AffectedEntity != "203.0.113.50" || a.SourceIP != "203.0.113.50" {
				t.Errorf("entity = %q, source = %q", a.AffectedEntity, a.SourceIP)
			}
			if a.EventCount != tt.failures {
				t.Errorf("EventCount = %d, want %d", a.EventCount, tt.failures)
			}
			if a.Severity != models.SeverityHigh || a.AlertType != models.AlertTypeBruteForce {
				t.Errorf("alert = %s/%s", a.AlertType, a.Severity)
			}
			wantFirst := testNow.Add(-time.Duration(tt.failures-1) * time.Second)
			if !a.FirstSeen.Equal(wantFirst) || !a.LastSeen.Equal(testNow) {
				t.Errorf("span = %v..%v, want %v..%v", a.FirstSeen, a.LastSeen, wantFirst, testNow)
			}
		})
	}
}

func TestBruteForceRule_UsernameAcrossAddresses(t *testing.T) {
	t.Parallel()

	store := database.NewMemoryStore()
	for i := 0; i < 5; i++ {
		seedEvents(t, store, newEvent(testNow.Add(-time.Duration(i)*10*time.Second), "Access Denied", "alice", fmt.Sprintf("198.51.100.%d", i+1)))
	}

	alerts, err := NewBruteForceRule(store, DefaultBruteForceConfig()).Evaluate(context.Background(), testNow)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1 username-keyed alert", len(alerts))
	}
	a := alerts[0]
	if a.AffectedEntity != "alice" || a.EventCount != 5 {
		t.Errorf("alert = %s x%d, want alice x5", a.AffectedEntity, a.EventCount)
	}
	if a.SourceIP != "" {
		t.Errorf("SourceIP = %q, want empty for a multi-address group", a.SourceIP)
	}
}

func TestBruteForceRule_BurstAlertsBothKeys(t *testing.T) {
	t.Parallel()

	store := database.NewMemoryStore()
	for i := 0; i < 6; i++ {
		seedEvents(t, store, newEvent(testNow.Add(-time.Duration(i)*time.Second), "invalid password", "root", "203.0.113.9"))
	}

	alerts, err := NewBruteForceRule(store, DefaultBruteForceConfig()).Evaluate(context.Background(), testNow)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 2 {
		t.Fatalf("alerts = %d, want IP-keyed and username-keyed", len(alerts))
	}
	if alerts[0].AffectedEntity != "203.0.113.9" || alerts[1].AffectedEntity != "root" {
		t.Errorf("entities = %q, %q", alerts[0].AffectedEntity, alerts[1].AffectedEntity)
	}
	if alerts[1].SourceIP != "203.0.113.9" {
		t.Errorf("username alert SourceIP = %q, want the single source", alerts[1].SourceIP)
	}
}

func TestBruteForceRule_WindowAndVocabulary(t *testing.T) {
	t.Parallel()

	store := database.NewMemoryStore()
	ip := "203.0.113.77"
	seedEvents(t, store,
		// Inside the window but not failures.
		newEvent(testNow.Add(-1*time.Second), "success", "", ip),
		newEvent(testNow.Add(-2*time.Second), "accepted", "", ip),
		// Failures, mixed case.
		newEvent(testNow.Add(-3*time.Second), "FAIL", "", ip),
		newEvent(testNow.Add(-4*time.Second), "Login Failed", "", ip),
		newEvent(testNow.Add(-5*time.Second), "denied", "", ip),
		newEvent(testNow.Add(-6*time.Second), "INVALID_USER", "", ip),
		// Failure just outside the window.
		newEvent(testNow.Add(-301*time.Second), "failed", "", ip),
	)

	alerts, err := NewBruteForceRule(store, DefaultBruteForceConfig()).Evaluate(context.Background(), testNow)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 0 {
		t.Fatalf("alerts = %d, want 0 (only 4 failures inside the window)", len(alerts))
	}

	seedEvents(t, store, newEvent(testNow.Add(-300*time.Second), "failure", "", ip))
	alerts, err = NewBruteForceRule(store, DefaultBruteForceConfig()).Evaluate(context.Background(), testNow)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 1 || alerts[0].EventCount != 5 {
		t.Fatalf("alerts = %+v, want one alert with 5 events", alerts)
	}
}

func TestBruteForceRule_CountsFutureDatedEvents(t *testing.T) {
	t.Parallel()

	store := database.NewMemoryStore()
	seedEvents(t, store, failures(3, "203.0.113.60", testNow)...)
	seedEvents(t, store, failures(2, "203.0.113.60", testNow.Add(10*time.Minute))...)

	alerts, err := NewBruteForceRule(store, DefaultBruteForceConfig()).Evaluate(context.Background(), testNow)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	var byIP *models.SecurityAlert
	for _, a := range alerts {
		if a.AffectedEntity == "203.0.113.60" {
			byIP = a
		}
	}
	if byIP == nil {
		t.Fatalf("no address alert in %d alerts", len(alerts))
	}
	if byIP.EventCount != 5 || !byIP.LastSeen.Equal(testNow.Add(10*time.Minute)) {
		t.Errorf("EventCount = %d, LastSeen = %v", byIP.EventCount, byIP.LastSeen)
	}
}

func TestBruteForceRule_StoreError(t *testing.T) {
	t.Parallel()

	_, err := NewBruteForceRule(failingEvents{}, DefaultBruteForceConfig()).Evaluate(context.Background(), testNow)
	if err == nil {
		t.Fatal("expected store error")
	}
}

func TestOffHoursRule(t *testing.T) {
	t.Parallel()

	plus5 := time.FixedZone("", 5*3600)
	minus5 := time.FixedZone("", -5*3600)

	tests := []struct {
		name  string
		now   time.Time
		event *models.SecurityEvent
		want  int
	}{
		{
			name:  "weekday 02:00 success",
			now:   testNow,
			event: newEvent(time.Date(2026, 3, 11, 2, 0, 0, 0, time.UTC), "success", "alice", "198.51.100.1"),
			want:  1,
		},
		{
			name:  "weekday 10:00 success",
			now:   testNow,
			event: newEvent(time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC), "success", "alice", "198.51.100.1"),
			want:  0,
		},
		{
			name:  "weekday 02:00 failure",
			now:   testNow,
			event: newEvent(time.Date(2026, 3, 11, 2, 0, 0, 0, time.UTC), "failed", "alice", "198.51.100.1"),
			want:  0,
		},
		{
			name:  "sunday midday success",
			now:   time.Date(2026, 3, 15, 15, 0, 0, 0, time.UTC),
			event: newEvent(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC), "Accepted publickey", "bob", "198.51.100.2"),
			want:  1,
		},
		{
			name:  "end hour is exclusive",
			now:   time.Date(2026, 3, 11, 20, 0, 0, 0, time.UTC),
			event: newEvent(time.Date(2026, 3, 11, 18, 0, 0, 0, time.UTC), "SUCCESS", "alice", ""),
			want:  1,
		},
		{
			name:  "start hour is inclusive",
			now:   testNow,
			event: newEvent(time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC), "success", "alice", ""),
			want:  0,
		},
		{
			name:  "business hours in the event's own offset",
			now:   testNow,
			event: newEvent(time.Date(2026, 3, 11, 10, 30, 0, 0, plus5), "success", "carol", ""), // 05:30 UTC
			want:  0,
		},
		{
			name:  "late evening in the event's own offset",
			now:   testNow,
			event: newEvent(time.Date(2026, 3, 10, 20, 0, 0, 0, minus5), "success", "carol", ""), // 01:00 UTC Wed
			want:  1,
		},
		{
			name:  "older than lookback",
			now:   testNow,
			event: newEvent(testNow.Add(-25*time.Hour), "success", "alice", ""),
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := database.NewMemoryStore()
			seedEvents(t, store, tt.event)

			alerts, err := NewOffHoursRule(store, DefaultOffHoursConfig()).Evaluate(context.Background(), tt.now)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if len(alerts) != tt.want {
				t.Fatalf("alerts = %d, want %d", len(alerts), tt.want)
			}
			if tt.want == 1 {
				a := alerts[0]
				if a.Severity != models.SeverityMedium || a.EventCount != 1 {
					t.Errorf("alert = %s x%d", a.Severity, a.EventCount)
				}
				if !a.FirstSeen.Equal(tt.event.Timestamp) || !a.LastSeen.Equal(tt.event.Timestamp) {
					t.Errorf("span = %v..%v, want %v", a.FirstSeen, a.LastSeen, tt.event.Timestamp)
				}
			}
		})
	}
}

func TestOffHoursRule_OneAlertPerEvent(t *testing.T) {
	t.Parallel()

	store := database.NewMemoryStore()
	seedEvents(t, store,
		newEvent(time.Date(2026, 3, 11, 1, 0, 0, 0, time.UTC), "success", "alice", "198.51.100.1"),
		newEvent(time.Date(2026, 3, 11, 2, 0, 0, 0, time.UTC), "success", "alice", "198.51.100.1"),
		newEvent(time.Date(2026, 3, 11, 3, 0, 0, 0, time.UTC), "success", "", "198.51.100.9"),
	)

	alerts, err := NewOffHoursRule(store, DefaultOffHoursConfig()).Evaluate(context.Background(), testNow)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 3 {
		t.Fatalf("alerts = %d, want 3 (no aggregation)", len(alerts))
	}
	if alerts[0].FirstSeen.Hour() != 1 || alerts[2].FirstSeen.Hour() != 3 {
		t.Errorf("alerts not in access order")
	}
	if alerts[2].AffectedEntity != "198.51.100.9" {
		t.Errorf("entity = %q, want source IP fallback", alerts[2].AffectedEntity)
	}
}

func TestGeoAnomalyRule(t *testing.T) {
	t.Parallel()

	store := database.NewMemoryStore()
	seedEvents(t, store,
		newEvent(testNow.Add(-1*time.Hour), "success", "a", "10.0.0.5"),
		newEvent(testNow.Add(-2*time.Hour), "failed", "a", "10.0.0.5"),
		newEvent(testNow.Add(-3*time.Hour), "success", "b", "10.0.0.5"),
		newEvent(testNow.Add(-1*time.Hour), "success", "c", "10.0.0.6"),
		newEvent(testNow.Add(-4*time.Hour), "success", "d", "192.168.1.20"),
		newEvent(testNow.Add(-5*time.Hour), "success", "d", "192.168.1.20"),
		newEvent(testNow.Add(-1*time.Hour), "success", "e", "10.1.0.1"),
		newEvent(testNow.Add(-1*time.Hour), "success", "f", "8.8.8.8"),
		newEvent(testNow.Add(-30*time.Hour), "success", "g", "0.0.0.1"),
	)

	alerts, err := NewGeoAnomalyRule(store, DefaultGeoAnomalyConfig()).Evaluate(context.Background(), testNow)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	want := map[string]int{"10.0.0.5": 3, "10.0.0.6": 1, "192.168.1.20": 2}
	if len(alerts) != len(want) {
		t.Fatalf("alerts = %d, want %d", len(alerts), len(want))
	}
	for _, a := range alerts {
		if want[a.AffectedEntity] != a.EventCount {
			t.Errorf("%s: EventCount = %d, want %d", a.AffectedEntity, a.EventCount, want[a.AffectedEntity])
		}
		if a.Severity != models.SeverityMedium {
			t.Errorf("%s: severity = %s", a.AffectedEntity, a.Severity)
		}
	}
	five := alerts[0]
	if five.AffectedEntity != "10.0.0.5" ||
		!five.FirstSeen.Equal(testNow.Add(-3*time.Hour)) || !five.LastSeen.Equal(testNow.Add(-1*time.Hour)) {
		t.Errorf("first alert = %+v", five)
	}
}

func TestGeoAnomalyRule_OverlappingPrefixes(t *testing.T) {
	t.Parallel()

	store := database.NewMemoryStore()
	seedEvents(t, store, newEvent(testNow.Add(-time.Hour), "success", "a", "10.0.0.5"))

	rule := NewGeoAnomalyRule(store, GeoAnomalyConfig{Lookback: 24 * time.Hour, Prefixes: []string{"10.", "10.0.0.", ""}})
	alerts, err := rule.Evaluate(context.Background(), testNow)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(alerts))
	}
	if alerts[0].Title != "Activity from suspicious range 10.*" {
		t.Errorf("Title = %q, want first matching prefix", alerts[0].Title)
	}
}

func TestHighRiskIPRule(t *testing.T) {
	t.Parallel()

	store := database.NewMemoryStore()
	seedEvents(t, store,
		newEvent(testNow.Add(-1*time.Hour), "success", "a", "203.0.113.1"),
		newEvent(testNow.Add(-2*time.Hour), "failed", "a", "203.0.113.1"),
		newEvent(testNow.Add(-1*time.Hour), "success", "b", "203.0.113.2"),
		newEvent(testNow.Add(-1*time.Hour), "success", "c", "203.0.113.3"),
		newEvent(testNow.Add(-1*time.Hour), "success", "d", "203.0.113.4"),
		newEvent(testNow.Add(-1*time.Hour), "success", "e", "203.0.113.5"),
	)
	resolver := &mockResolver{records: map[string]*models.IPReputation{
		"203.0.113.1": reputation("203.0.113.1", 80, false),
		"203.0.113.2": reputation("203.0.113.2", 60, false),
		"203.0.113.3": reputation("203.0.113.3", 49, false),
		"203.0.113.4": reputation("203.0.113.4", 95, true),
		"203.0.113.5": reputation("203.0.113.5", 75, false),
	}}

	alerts, err := NewHighRiskIPRule(store, resolver, DefaultHighRiskIPConfig()).Evaluate(context.Background(), testNow)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	want := map[string]models.Severity{
		"203.0.113.1": models.SeverityCritical,
		"203.0.113.2": models.SeverityHigh,
		"203.0.113.5": models.SeverityCritical,
	}
	if len(alerts) != len(want) {
		t.Fatalf("alerts = %d, want %d", len(alerts), len(want))
	}
	for _, a := range alerts {
		if want[a.AffectedEntity] != a.Severity {
			t.Errorf("%s: severity = %s, want %s", a.AffectedEntity, a.Severity, want[a.AffectedEntity])
		}
	}

	first := alerts[0]
	if first.EventCount != 2 {
		t.Errorf("EventCount = %d, want 24h activity 2", first.EventCount)
	}
	for _, fragment := range []string{"80", "160 reports", "RU", "Data Center", "2 events"} {
		if !strings.Contains(first.Description, fragment) {
			t.Errorf("description %q missing %q", first.Description, fragment)
		}
	}

	if len(resolver.calls) != 1 || len(resolver.calls[0]) != 5 {
		t.Errorf("BatchLookup calls = %v, want one call with 5 addresses", resolver.calls)
	}
}

func TestHighRiskIPRule_Degrades(t *testing.T) {
	t.Parallel()

	store := database.NewMemoryStore()
	seedEvents(t, store,
		newEvent(testNow.Add(-time.Hour), "success", "a", "203.0.113.1"),
		newEvent(testNow.Add(-time.Hour), "success", "b", "203.0.113.2"),
	)

	t.Run("resolver fails completely", func(t *testing.T) {
		resolver := &mockResolver{err: errTestStore}
		alerts, err := NewHighRiskIPRule(store, resolver, DefaultHighRiskIPConfig()).Evaluate(context.Background(), testNow)
		if err != nil || len(alerts) != 0 {
			t.Errorf("got %d alerts, err %v; want empty and nil", len(alerts), err)
		}
	})

	t.Run("resolver returns partial results", func(t *testing.T) {
		resolver := &mockResolver{
			records: map[string]*models.IPReputation{"203.0.113.1": reputation("203.0.113.1", 90, false)},
			err:     errTestStore,
		}
		alerts, err := NewHighRiskIPRule(store, resolver, DefaultHighRiskIPConfig()).Evaluate(context.Background(), testNow)
		if err != nil || len(alerts) != 1 {
			t.Errorf("got %d alerts, err %v; want 1 and nil", len(alerts), err)
		}
	})

	t.Run("event store fails", func(t *testing.T) {
		resolver := &mockResolver{}
		alerts, err := NewHighRiskIPRule(failingEvents{}, resolver, DefaultHighRiskIPConfig()).Evaluate(context.Background(), testNow)
		if err != nil || len(alerts) != 0 {
			t.Errorf("got %d alerts, err %v; want empty and nil", len(alerts), err)
		}
		if len(resolver.calls) != 0 {
			t.Error("resolver called without addresses")
		}
	})
}
