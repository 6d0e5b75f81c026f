// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/authsentry/internal/detection"
	"github.com/tomtom215/authsentry/internal/models"
	"github.com/tomtom215/authsentry/internal/validation"
)

// RuleStatus reports one detection rule and whether it runs.
type RuleStatus struct {
	Type       models.AlertType `json:"type"`
	Enabled    bool             `json:"enabled"`
	BestEffort bool             `json:"best_effort"`
}

// DetectionSummary is the payload of GET /api/v1/detection/summary.
type DetectionSummary struct {
	LastRun *detection.RunSummary      `json:"last_run"`
	Metrics detection.EngineMetrics    `json:"metrics"`
	Rules   []RuleStatus               `json:"rules"`
	Alerts  map[models.AlertStatus]int `json:"alerts_by_status"`
}

// RunDetection handles POST /api/v1/detection/run.
// It runs every enabled rule once and returns the run summary. A store
// failure aborts the run and is reported as 500 with its cause.
func (h *Handler) RunDetection(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	summary, err := h.engine.RunAll(r.Context())
	if err != nil {
		respondError(rw, err)
		return
	}
	rw.Success(summary)
}

// DetectionSummary handles GET /api/v1/detection/summary.
func (h *Handler) DetectionSummary(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	counts, err := h.store.AlertCounts(r.Context())
	if err != nil {
		respondError(rw, err)
		return
	}

	rw.Success(DetectionSummary{
		LastRun: h.engine.LastRun(),
		Metrics: h.engine.Metrics(),
		Rules:   h.ruleStatuses(),
		Alerts:  counts,
	})
}

// ListRules handles GET /api/v1/detection/rules.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.ruleStatuses())
}

// SetRuleEnabled handles PATCH /api/v1/detection/rules/{type}.
func (h *Handler) SetRuleEnabled(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	ruleType := chi.URLParam(r, "type")
	if err := validation.ValidateVar("type", ruleType, "required,alert_type"); err != nil {
		respondError(rw, err)
		return
	}

	var req RuleToggleRequest
	if err := decodeJSONBody(w, r, h.limits.MaxBodyBytes, &req); err != nil {
		respondError(rw, err)
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		respondError(rw, err)
		return
	}

	if err := h.engine.SetRuleEnabled(models.AlertType(ruleType), *req.Enabled); err != nil {
		respondError(rw, err)
		return
	}

	h.audit.RuleToggled(ruleType, *req.Enabled)
	rw.Success(h.ruleStatuses())
}

func (h *Handler) ruleStatuses() []RuleStatus {
	rules := h.engine.Rules()
	out := make([]RuleStatus, 0, len(rules))
	for _, rule := range rules {
		status := RuleStatus{Type: rule.Type(), Enabled: rule.Enabled()}
		if be, ok := rule.(detection.BestEffort); ok {
			status.BestEffort = be.BestEffort()
		}
		out = append(out, status)
	}
	return out
}
