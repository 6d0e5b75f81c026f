// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/authsentry/internal/detection"
	"github.com/tomtom215/authsentry/internal/ingest"
	"github.com/tomtom215/authsentry/internal/logging"
	"github.com/tomtom215/authsentry/internal/models"
)

// Store is the read and triage surface of the event and alert stores.
type Store interface {
	Ping(ctx context.Context) error
	QueryEvents(ctx context.Context, query models.EventQuery) ([]*models.SecurityEvent, error)
	CountEvents(ctx context.Context) (int, error)
	ListAlerts(ctx context.Context, filter models.AlertFilter) ([]*models.SecurityAlert, int, error)
	GetAlert(ctx context.Context, id int64) (*models.SecurityAlert, error)
	UpdateAlertStatus(ctx context.Context, id int64, status models.AlertStatus) (models.AlertStatus, error)
	AlertCounts(ctx context.Context) (map[models.AlertStatus]int, error)
	SourceIPActivity(ctx context.Context, ip string, since time.Time) (*models.IPActivity, error)
}

// Ingester appends event batches.
type Ingester interface {
	Ingest(ctx context.Context, events []*models.SecurityEvent, source string) (*ingest.Result, error)
}

// DetectionEngine runs and reports on the detection rules.
type DetectionEngine interface {
	RunAll(ctx context.Context) (*detection.RunSummary, error)
	LastRun() *detection.RunSummary
	Metrics() detection.EngineMetrics
	Rules() []detection.Rule
	SetRuleEnabled(alertType models.AlertType, enabled bool) error
}

// ReputationService serves cached reputation lookups.
type ReputationService interface {
	Lookup(ctx context.Context, ip string) (*models.IPReputation, error)
	Stats(ctx context.Context) (*models.ReputationStats, error)
	EvictStale(ctx context.Context) (int, error)
}

// DefaultActivityWindow is the activity window of reputation lookups.
const DefaultActivityWindow = 24 * time.Hour

// Limits bounds request sizes and page sizes.
type Limits struct {
	DefaultPageSize int
	MaxPageSize     int
	MaxBodyBytes    int64
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		DefaultPageSize: 100,
		MaxPageSize:     1000,
		MaxBodyBytes:    10 << 20,
	}
}

// Handler contains dependencies for API handlers.
type Handler struct {
	store      Store
	ingester   Ingester
	engine     DetectionEngine
	reputation ReputationService
	audit      *logging.AuditLogger
	limits     Limits
	version    string
	startTime  time.Time
	now        func() time.Time

	// activityWindow is the trailing window of the per-address activity
	// returned with reputation lookups.
	activityWindow time.Duration

	// breakerState reports the reputation provider circuit state for /health.
	breakerState func() string

	// alertStream serves the websocket alert stream; nil disables it.
	alertStream http.Handler
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithLimits overrides the default request limits.
func WithLimits(limits Limits) HandlerOption {
	return func(h *Handler) {
		defaults := DefaultLimits()
		if limits.DefaultPageSize <= 0 {
			limits.DefaultPageSize = defaults.DefaultPageSize
		}
		if limits.MaxPageSize <= 0 {
			limits.MaxPageSize = defaults.MaxPageSize
		}
		if limits.DefaultPageSize > limits.MaxPageSize {
			limits.DefaultPageSize = limits.MaxPageSize
		}
		if limits.MaxBodyBytes <= 0 {
			limits.MaxBodyBytes = defaults.MaxBodyBytes
		}
		h.limits = limits
	}
}

// WithAuditLogger records operator actions such as alert status changes.
func WithAuditLogger(audit *logging.AuditLogger) HandlerOption {
	return func(h *Handler) {
		if audit != nil {
			h.audit = audit
		}
	}
}

// WithVersion sets the version reported by /health.
func WithVersion(version string) HandlerOption {
	return func(h *Handler) {
		h.version = version
	}
}

// WithBreakerState reports the reputation provider circuit state on /health.
func WithBreakerState(fn func() string) HandlerOption {
	return func(h *Handler) {
		h.breakerState = fn
	}
}

// WithClock overrides "now" for time-relative queries.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// WithActivityWindow sets the activity window of reputation lookups.
func WithActivityWindow(window time.Duration) HandlerOption {
	return func(h *Handler) {
		if window > 0 {
			h.activityWindow = window
		}
	}
}

// WithAlertStream serves stream on /api/v1/alerts/stream.
func WithAlertStream(stream http.Handler) HandlerOption {
	return func(h *Handler) {
		h.alertStream = stream
	}
}

// NewHandler creates a new API handler with all required dependencies.
//
// Example:
//
//	handler := api.NewHandler(db, ingestSvc, engine, cache)
//	router := api.NewRouter(handler, api.DefaultChiMiddlewareConfig())
//	http.ListenAndServe(":8080", router.SetupChi())
func NewHandler(store Store, ingester Ingester, engine DetectionEngine, reputation ReputationService, opts ...HandlerOption) *Handler {
	h := &Handler{
		store:      store,
		ingester:   ingester,
		engine:     engine,
		reputation: reputation,
		audit:      logging.NewAuditLogger(),
		limits:     DefaultLimits(),
		version:    "dev",
		startTime:  time.Now(),
		now:        time.Now,

		activityWindow: DefaultActivityWindow,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}
