// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package api

import (
	"net/http"
	"time"
)

// HealthStatus is the payload of GET /health.
type HealthStatus struct {
	Status             string  `json:"status"`
	Version            string  `json:"version"`
	DatabaseConnected  bool    `json:"database_connected"`
	ReputationProvider string  `json:"reputation_provider,omitempty"`
	LastRunAt          *string `json:"last_detection_run,omitempty"`
	UptimeSeconds      float64 `json:"uptime_seconds"`
}

// Health handles GET /health. The endpoint always answers 200 so that
// liveness probes do not restart the process on a transient store outage;
// the status field reports "degraded" instead.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	dbConnected := h.store != nil && h.store.Ping(r.Context()) == nil

	status := "healthy"
	if !dbConnected {
		status = "degraded"
	}

	health := HealthStatus{
		Status:            status,
		Version:           h.version,
		DatabaseConnected: dbConnected,
		UptimeSeconds:     time.Since(h.startTime).Seconds(),
	}
	if h.breakerState != nil {
		health.ReputationProvider = h.breakerState()
	}
	if h.engine != nil {
		if last := h.engine.LastRun(); last != nil {
			ts := last.FinishedAt.UTC().Format(time.RFC3339)
			health.LastRunAt = &ts
		}
	}

	NewResponseWriter(w, r).Success(health)
}
