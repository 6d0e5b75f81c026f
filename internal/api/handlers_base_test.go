// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/authsentry/internal/database"
	"github.com/tomtom215/authsentry/internal/detection"
	"github.com/tomtom215/authsentry/internal/ingest"
	"github.com/tomtom215/authsentry/internal/models"
	"github.com/tomtom215/authsentry/internal/reputation"
)

// testNow is a Wednesday.
var testNow = time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)

// testResponse mirrors APIResponse with the payload left undecoded.
type testResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

type testEnv struct {
	store   *database.MemoryStore
	engine  *detection.Engine
	ingest  *ingest.Service
	cache   *reputation.Cache
	handler http.Handler
}

type envOption func(*envConfig)

type envConfig struct {
	maxBatch int
	mw       *ChiMiddlewareConfig
	stream   http.Handler
}

func withAlertStream(stream http.Handler) envOption {
	return func(c *envConfig) { c.stream = stream }
}

func withMaxBatch(n int) envOption {
	return func(c *envConfig) { c.maxBatch = n }
}

func withMiddleware(mw *ChiMiddlewareConfig) envOption {
	return func(c *envConfig) { c.mw = mw }
}

// newTestEnv wires the real store, ingest service, engine and reputation
// cache. The cache has no provider, so every lookup uses the fallback.
func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	cfg := envConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.mw == nil {
		cfg.mw = DefaultChiMiddlewareConfig()
		cfg.mw.RateLimitDisabled = true
	}

	clock := func() time.Time { return testNow }
	store := database.NewMemoryStore()
	cache := reputation.NewCache(store, nil, reputation.WithPacingDelay(0), reputation.WithClock(clock))
	rules := []detection.Rule{
		detection.NewBruteForceRule(store, detection.DefaultBruteForceConfig()),
		detection.NewOffHoursRule(store, detection.DefaultOffHoursConfig()),
		detection.NewGeoAnomalyRule(store, detection.DefaultGeoAnomalyConfig()),
		detection.NewHighRiskIPRule(store, cache, detection.DefaultHighRiskIPConfig()),
	}
	engine := detection.NewEngine(store, rules, detection.WithEngineClock(clock))
	svc := ingest.NewService(store, ingest.WithClock(clock), ingest.WithMaxBatchSize(cfg.maxBatch))

	h := NewHandler(store, svc, engine, cache,
		WithVersion("test"),
		WithClock(clock),
		WithBreakerState(func() string { return "closed" }),
		WithAlertStream(cfg.stream),
	)
	return &testEnv{
		store:   store,
		engine:  engine,
		ingest:  svc,
		cache:   cache,
		handler: NewRouter(h, cfg.mw).SetupChi(),
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, testResponse) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var resp testResponse
	if ct := rec.Header().Get("Content-Type"); len(ct) >= 16 && ct[:16] == "application/json" {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, resp
}

func decodeData(t *testing.T, resp testResponse, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(resp.Data, v); err != nil {
		t.Fatalf("decode data %s: %v", resp.Data, err)
	}
}

// seedScenario stores events that yield four alerts at testNow:
// one brute force, one off-hours and two suspicious-range alerts.
func (e *testEnv) seedScenario(t *testing.T) {
	t.Helper()

	var events []*models.SecurityEvent
	for i := 0; i < 5; i++ {
		events = append(events, &models.SecurityEvent{
			Timestamp: testNow.Add(-time.Minute - time.Duration(i)*time.Second),
			Username:  "user" + string(rune('a'+i)),
			SourceIP:  "10.0.0.7",
			Status:    "FAILED",
		})
	}
	events = append(events,
		&models.SecurityEvent{Timestamp: time.Date(2026, 3, 11, 2, 0, 0, 0, time.UTC), Username: "alice", SourceIP: "192.168.1.4", Status: "success"},
		&models.SecurityEvent{Timestamp: testNow.Add(-2 * time.Hour), Username: "bob", SourceIP: "203.0.113.1", Status: "success"},
	)
	if _, err := e.ingest.Ingest(context.Background(), events, "test"); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
}

// runDetection runs the engine and returns the persisted alerts.
func (e *testEnv) runDetection(t *testing.T) []*models.SecurityAlert {
	t.Helper()

	if _, err := e.engine.RunAll(context.Background()); err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}
	alerts, _, err := e.store.ListAlerts(context.Background(), models.AlertFilter{Limit: 100})
	if err != nil {
		t.Fatalf("ListAlerts() error = %v", err)
	}
	return alerts
}
