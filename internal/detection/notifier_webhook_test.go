// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package detection

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/authsentry/internal/config"
	"github.com/tomtom215/authsentry/internal/models"
)

func TestNewWebhookNotifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		cfg         config.NotifyConfig
		wantEnabled bool
		wantMin     models.Severity
		wantRate    time.Duration
	}{
		{
			name:        "configured",
			cfg:         config.NotifyConfig{WebhookURL: "https://hooks.example.com/soc", MinSeverity: "critical", RateLimit: time.Second},
			wantEnabled: true,
			wantMin:     models.SeverityCritical,
			wantRate:    time.Second,
		},
		{
			name:     "no url",
			cfg:      config.NotifyConfig{},
			wantMin:  models.SeverityHigh,
			wantRate: 500 * time.Millisecond,
		},
		{
			name:        "unknown severity falls back to high",
			cfg:         config.NotifyConfig{WebhookURL: "https://hooks.example.com/soc", MinSeverity: "urgent"},
			wantEnabled: true,
			wantMin:     models.SeverityHigh,
			wantRate:    500 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			n := NewWebhookNotifier(&tt.cfg)
			if n.Name() != "webhook" {
				t.Errorf("Name() = %q", n.Name())
			}
			if n.Enabled() != tt.wantEnabled {
				t.Errorf("Enabled() = %v, want %v", n.Enabled(), tt.wantEnabled)
			}
			if n.minSeverity != tt.wantMin {
				t.Errorf("minSeverity = %s, want %s", n.minSeverity, tt.wantMin)
			}
			if n.rateLimit != tt.wantRate {
				t.Errorf("rateLimit = %v, want %v", n.rateLimit, tt.wantRate)
			}
		})
	}
}

func TestWebhookNotifier_Send(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		received []WebhookPayload
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("Authorization") != "Bearer soc-token" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		var payload WebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		mu.Lock()
		received = append(received, payload)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := NewWebhookNotifier(&config.NotifyConfig{
		WebhookURL:  server.URL,
		Headers:     map[string]string{"Authorization": "Bearer soc-token"},
		MinSeverity: "high",
		RateLimit:   time.Millisecond,
	})

	alert := sampleAlert(models.AlertTypeHighRiskIP, "203.0.113.6")
	alert.ID = 42
	alert.Severity = models.SeverityCritical
	if err := n.Send(context.Background(), alert); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	low := sampleAlert(models.AlertTypeOffHoursAccess, "alice")
	if err := n.Send(context.Background(), low); err != nil {
		t.Fatalf("Send(medium) error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("received = %d, want 1 (medium alert below threshold)", len(received))
	}
	got := received[0]
	if got.EventType != "security_alert" || got.Source != "authsentry" {
		t.Errorf("payload envelope = %+v", got)
	}
	if got.Alert == nil || got.Alert.ID != 42 || got.Alert.Severity != models.SeverityCritical {
		t.Errorf("payload alert = %+v", got.Alert)
	}
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	n := NewWebhookNotifier(&config.NotifyConfig{WebhookURL: server.URL, MinSeverity: "low"})
	if err := n.Send(context.Background(), sampleAlert(models.AlertTypeGeoAnomaly, "10.0.0.1")); err == nil {
		t.Error("expected error for 502 response")
	}
}

func TestWebhookNotifier_RateLimit(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	n := NewWebhookNotifier(&config.NotifyConfig{WebhookURL: server.URL, MinSeverity: "low", RateLimit: 50 * time.Millisecond})
	alert := sampleAlert(models.AlertTypeGeoAnomaly, "10.0.0.1")

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := n.Send(context.Background(), alert); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("3 sends took %v, want >= ~100ms of spacing", elapsed)
	}
	if hits.Load() != 3 {
		t.Errorf("hits = %d, want 3", hits.Load())
	}
}

func TestWebhookNotifier_RateLimitHonorsContext(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer server.Close()

	n := NewWebhookNotifier(&config.NotifyConfig{WebhookURL: server.URL, MinSeverity: "low", RateLimit: time.Hour})
	alert := sampleAlert(models.AlertTypeGeoAnomaly, "10.0.0.1")
	if err := n.Send(context.Background(), alert); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := n.Send(ctx, alert); err == nil {
		t.Error("expected context error while waiting for the rate limit")
	}
}

func TestWebhookNotifier_Disabled(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { hits.Add(1) }))
	defer server.Close()

	n := NewWebhookNotifier(&config.NotifyConfig{WebhookURL: server.URL, MinSeverity: "low"})
	n.SetEnabled(false)
	if err := n.Send(context.Background(), sampleAlert(models.AlertTypeGeoAnomaly, "10.0.0.1")); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 0 {
		t.Error("disabled notifier sent a request")
	}
}
