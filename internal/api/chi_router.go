// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/authsentry/internal/middleware"
)

// RateLimitDetectionRun bounds manual detection runs per client, since each
// run may call the reputation provider.
const (
	RateLimitDetectionRunRequests = 6
	RateLimitDetectionRunWindow   = time.Minute
)

// Router wires handlers and middleware into a chi mux.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router for handler.
func NewRouter(handler *Handler, mwConfig *ChiMiddlewareConfig) *Router {
	return &Router{
		handler:       handler,
		chiMiddleware: NewChiMiddleware(mwConfig),
	}
}

// SetupChi configures all HTTP routes using Chi router.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Applied to ALL routes in order
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // CORS must be global to handle OPTIONS preflight
	r.Use(middleware.PrometheusMetrics)
	r.Use(RequestLogger())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusNotFound, ErrCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", router.handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())

		r.Route("/events", func(r chi.Router) {
			r.Post("/", router.handler.IngestEvents)
			r.Get("/", router.handler.ListEvents)
		})

		r.Route("/detection", func(r chi.Router) {
			r.With(router.chiMiddleware.RateLimitCustom(
				RateLimitDetectionRunRequests, RateLimitDetectionRunWindow,
			)).Post("/run", router.handler.RunDetection)
			r.Get("/summary", router.handler.DetectionSummary)
			r.Get("/rules", router.handler.ListRules)
			r.Patch("/rules/{type}", router.handler.SetRuleEnabled)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", router.handler.ListAlerts)
			r.Get("/stream", router.handler.AlertStream)
			r.Get("/{id}", router.handler.GetAlert)
			r.Patch("/{id}/status", router.handler.UpdateAlertStatus)
		})

		r.Route("/reputation", func(r chi.Router) {
			// Static routes are matched before the {ip} parameter.
			r.Get("/stats", router.handler.ReputationStats)
			r.Post("/evict", router.handler.EvictReputation)
			r.Get("/{ip}", router.handler.LookupReputation)
		})
	})

	return r
}
