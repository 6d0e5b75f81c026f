// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	gorillaws "github.com/gorilla/websocket"

	"github.com/tomtom215/authsentry/internal/config"
	"github.com/tomtom215/authsentry/internal/database"
	"github.com/tomtom215/authsentry/internal/eventprocessor"
	"github.com/tomtom215/authsentry/internal/models"
	"github.com/tomtom215/authsentry/internal/supervisor"
)

var testNow = time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Reputation.PacingDelay = 0
	cfg.Detection.Interval = 0
	cfg.Reputation.EvictInterval = 0
	cfg.Detection.IngestDebounce = 10 * time.Millisecond
	cfg.API.RateLimitDisabled = true
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, opts ...Option) *App {
	t.Helper()
	opts = append([]Option{
		WithStore(database.NewMemoryStore()),
		WithClock(func() time.Time { return testNow }),
		WithVersion("test"),
	}, opts...)
	a, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNew_NilConfig(t *testing.T) {
	t.Parallel()

	if _, err := New(nil); err == nil {
		t.Fatal("New(nil) should fail")
	}
}

func TestNew_Components(t *testing.T) {
	t.Parallel()

	a := newTestApp(t, testConfig())
	if a.Bus == nil {
		t.Error("event bus should be created by default")
	}
	if len(a.Engine.Rules()) != 4 {
		t.Errorf("got %d rules, want 4", len(a.Engine.Rules()))
	}
	if a.Provider.Available() {
		t.Error("provider without an API key must be unavailable")
	}
	if a.notifier != nil {
		t.Error("notifier should be off without a webhook URL")
	}

	if a.Hub == nil {
		t.Error("alert stream hub should be created by default")
	}
	if a.Bus.Transport() != eventprocessor.TransportGoChannel {
		t.Errorf("Transport() = %q, want the in-process bus", a.Bus.Transport())
	}

	cli := newTestApp(t, testConfig(), WithoutEventBus())
	if cli.Bus != nil || cli.Hub != nil {
		t.Error("WithoutEventBus should skip the bus and the alert stream")
	}

	cfg := testConfig()
	cfg.Messaging.AlertStream = false
	if noStream := newTestApp(t, cfg); noStream.Hub != nil {
		t.Error("alert stream should be off when disabled")
	}
}

func TestBusConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default().Messaging
	bus := BusConfig(&cfg)
	if bus.NATS.Enabled() {
		t.Error("default messaging config should keep the bus in-process")
	}

	cfg.NATSEmbedded = true
	cfg.NATSHost = "0.0.0.0"
	cfg.NATSPort = 14222
	cfg.NATSQueueGroup = "authsentry"
	bus = BusConfig(&cfg)
	if !bus.NATS.Embedded || bus.NATS.Host != "0.0.0.0" || bus.NATS.Port != 14222 || bus.NATS.QueueGroup != "authsentry" {
		t.Errorf("NATS = %+v", bus.NATS)
	}
}

func TestNew_DisabledRuleFromConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Detection.GeoAnomaly.Enabled = false
	a := newTestApp(t, cfg, WithoutEventBus())

	for _, rule := range a.Engine.Rules() {
		if rule.Type() == models.AlertTypeGeoAnomaly && rule.Enabled() {
			t.Error("geo_anomaly should start disabled")
		}
	}
}

func TestHandler_IngestAndRun(t *testing.T) {
	t.Parallel()

	a := newTestApp(t, testConfig(), WithoutEventBus())
	h := a.Handler()

	events := []models.SecurityEvent{
		{Timestamp: time.Date(2026, 3, 11, 3, 0, 0, 0, time.UTC), Username: "carol", SourceIP: "198.51.100.20", Status: "success"},
	}
	body, _ := json.Marshal(events)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/events", bytes.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("ingest status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/detection/run", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("run status = %d: %s", rec.Code, rec.Body.String())
	}
	if last := a.Engine.LastRun(); last == nil || last.Counts[models.AlertTypeOffHoursAccess] != 1 {
		t.Errorf("LastRun = %+v, want one off-hours alert", last)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte(`"version":"test"`)) {
		t.Errorf("health = %d %s", rec.Code, rec.Body.String())
	}
}

func TestHTTPServer_Address(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Server.Host = "::1"
	cfg.Server.Port = 9443
	srv := newTestApp(t, cfg, WithoutEventBus()).HTTPServer()

	if srv.Addr != "[::1]:9443" {
		t.Errorf("Addr = %q", srv.Addr)
	}
	if srv.ReadTimeout != cfg.Server.Timeout {
		t.Errorf("ReadTimeout = %v", srv.ReadTimeout)
	}
}

func TestSupervise_IngestTriggersDetection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		transport string
		mutate    func(*config.Config)
	}{
		{name: "gochannel", transport: eventprocessor.TransportGoChannel, mutate: func(*config.Config) {}},
		{name: "embedded nats", transport: eventprocessor.TransportNATS, mutate: func(c *config.Config) {
			c.Messaging.NATSEmbedded = true
			c.Messaging.NATSHost = "127.0.0.1"
			c.Messaging.NATSPort = -1
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := testConfig()
			tt.mutate(cfg)
			a := newTestApp(t, cfg)
			if a.Bus.Transport() != tt.transport {
				t.Fatalf("Transport() = %q, want %q", a.Bus.Transport(), tt.transport)
			}
			superviseIngest(t, a)
		})
	}
}

func superviseIngest(t *testing.T, a *App) {
	t.Helper()
	ctx := startTree(t, a)

	// Batches published before the router subscribes are lost, so keep
	// ingesting until one of them triggers a run.
	deadline := time.After(10 * time.Second)
	for a.Engine.LastRun() == nil {
		_, err := a.Ingest.Ingest(ctx, []*models.SecurityEvent{
			{Timestamp: testNow.Add(-time.Minute), Username: "dave", SourceIP: "10.0.0.9", Status: "failed"},
		}, "test")
		if err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}
		select {
		case <-deadline:
			t.Fatal("ingest never triggered a detection run")
		case <-time.After(50 * time.Millisecond):
		}
	}

	if a.Engine.LastRun().Counts[models.AlertTypeGeoAnomaly] < 1 {
		t.Errorf("counts = %v, want a geo_anomaly alert", a.Engine.LastRun().Counts)
	}
}

func startTree(t *testing.T, a *App) context.Context {
	t.Helper()

	tree, err := supervisor.NewSupervisorTree(nil, supervisor.TreeConfig{ShutdownTimeout: time.Second})
	if err != nil {
		t.Fatalf("NewSupervisorTree() error = %v", err)
	}
	if err := a.Supervise(tree); err != nil {
		t.Fatalf("Supervise() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)
	t.Cleanup(func() {
		cancel()
		<-errCh
	})
	return ctx
}

// TestSupervise_AlertsReachStream runs detection until a persisted alert
// arrives on a websocket client, crossing engine notifier, bus, router
// and hub.
func TestSupervise_AlertsReachStream(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Detection.IngestTrigger = false
	cfg.API.CORSOrigins = []string{"https://soc.example.com"}
	a := newTestApp(t, cfg)
	ctx := startTree(t, a)

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	header := http.Header{}
	header.Set("Origin", "https://soc.example.com")
	conn, _, err := gorillaws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/alerts/stream", header)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if _, err := a.Ingest.Ingest(ctx, []*models.SecurityEvent{
		{Timestamp: testNow.Add(-time.Minute), Username: "erin", SourceIP: "192.168.7.7", Status: "success"},
	}, "test"); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	received := make(chan []byte, 1)
	go func() {
		_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
		_, data, err := conn.ReadMessage()
		if err == nil {
			received <- data
		}
		close(received)
	}()

	// Alerts published before the router subscribes are lost, so keep
	// running detection until one is streamed.
	deadline := time.After(10 * time.Second)
	for {
		if _, err := a.Engine.RunAll(ctx); err != nil {
			t.Fatalf("RunAll() error = %v", err)
		}
		select {
		case data, ok := <-received:
			if !ok {
				t.Fatal("stream closed without a message")
			}
			var msg struct {
				Type string                `json:"type"`
				Data *models.SecurityAlert `json:"data"`
			}
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatalf("decode %s: %v", data, err)
			}
			if msg.Type != "alert" || msg.Data == nil || msg.Data.ID == 0 || msg.Data.AlertType != models.AlertTypeGeoAnomaly {
				t.Errorf("message = %s", data)
			}
			return
		case <-deadline:
			t.Fatal("no alert reached the stream")
		case <-time.After(100 * time.Millisecond):
		}
	}
}
