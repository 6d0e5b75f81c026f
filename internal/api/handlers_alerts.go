// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package api

import (
	"net/http"

	"github.com/tomtom215/authsentry/internal/models"
	"github.com/tomtom215/authsentry/internal/validation"
)

// StatusChange is the payload of a successful status transition.
type StatusChange struct {
	PreviousStatus models.AlertStatus    `json:"previous_status"`
	Alert          *models.SecurityAlert `json:"alert"`
}

// ListAlerts handles GET /api/v1/alerts.
//
// Query parameters: status, severity and alert_type (comma-separated),
// order_by, direction, limit and offset. Newest alerts come first by default.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	q := r.URL.Query()

	req := AlertsListRequest{
		Statuses:   getListParam(r, "status"),
		Severities: getListParam(r, "severity"),
		AlertTypes: getListParam(r, "alert_type"),
		OrderBy:    q.Get("order_by"),
		Direction:  q.Get("direction"),
		Limit:      getIntParam(r, "limit", h.limits.DefaultPageSize),
		Offset:     getIntParam(r, "offset", 0),
	}
	if err := validation.ValidateStruct(&req); err != nil {
		respondError(rw, err)
		return
	}
	limit := min(req.Limit, h.limits.MaxPageSize)

	filter := models.AlertFilter{
		Limit:          limit,
		Offset:         req.Offset,
		OrderBy:        req.OrderBy,
		OrderDirection: req.Direction,
	}
	for _, s := range req.Statuses {
		filter.Statuses = append(filter.Statuses, models.AlertStatus(s))
	}
	for _, s := range req.Severities {
		filter.Severities = append(filter.Severities, models.Severity(s))
	}
	for _, t := range req.AlertTypes {
		filter.AlertTypes = append(filter.AlertTypes, models.AlertType(t))
	}

	alerts, total, err := h.store.ListAlerts(r.Context(), filter)
	if err != nil {
		respondError(rw, err)
		return
	}
	if alerts == nil {
		alerts = []*models.SecurityAlert{}
	}

	rw.SuccessWithPagination(alerts, pagination(len(alerts), limit, req.Offset, int64(total)))
}

// GetAlert handles GET /api/v1/alerts/{id}.
func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id, err := parseAlertID(r)
	if err != nil {
		respondError(rw, err)
		return
	}

	alert, err := h.store.GetAlert(r.Context(), id)
	if err != nil {
		respondError(rw, err)
		return
	}
	rw.Success(alert)
}

// UpdateAlertStatus handles PATCH /api/v1/alerts/{id}/status.
// Status only moves forward; a backwards transition is answered with 409.
func (h *Handler) UpdateAlertStatus(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id, err := parseAlertID(r)
	if err != nil {
		respondError(rw, err)
		return
	}

	var req UpdateStatusRequest
	if err := decodeJSONBody(w, r, h.limits.MaxBodyBytes, &req); err != nil {
		respondError(rw, err)
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		respondError(rw, err)
		return
	}

	next := models.AlertStatus(req.Status)
	previous, err := h.store.UpdateAlertStatus(r.Context(), id, next)
	if err != nil {
		respondError(rw, err)
		return
	}
	h.audit.AlertStatusChanged(id, string(previous), string(next))

	alert, err := h.store.GetAlert(r.Context(), id)
	if err != nil {
		respondError(rw, err)
		return
	}
	rw.Success(StatusChange{PreviousStatus: previous, Alert: alert})
}

// AlertStream handles GET /api/v1/alerts/stream by upgrading to a websocket
// that receives every newly persisted alert.
func (h *Handler) AlertStream(w http.ResponseWriter, r *http.Request) {
	if h.alertStream == nil {
		NewResponseWriter(w, r).ServiceUnavailable("alert stream is disabled")
		return
	}
	h.alertStream.ServeHTTP(w, r)
}
