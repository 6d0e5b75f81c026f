// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package api

import (
	"bytes"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/authsentry/internal/models"
	"github.com/tomtom215/authsentry/internal/validation"
)

// IngestEvents handles POST /api/v1/events.
//
// The body is either {"events": [...]} or a bare array of normalized events.
// The whole batch is stored atomically; missing fields are defaulted rather
// than rejected.
func (h *Handler) IngestEvents(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var raw json.RawMessage
	if err := decodeJSONBody(w, r, h.limits.MaxBodyBytes, &raw); err != nil {
		respondError(rw, err)
		return
	}

	var req IngestRequest
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &req.Events); err != nil {
			respondError(rw, &requestError{msg: "invalid event array", err: err})
			return
		}
	} else if err := json.Unmarshal(trimmed, &req); err != nil {
		respondError(rw, &requestError{msg: "invalid ingest request", err: err})
		return
	}

	if err := validation.ValidateStruct(&req); err != nil {
		respondError(rw, err)
		return
	}

	result, err := h.ingester.Ingest(r.Context(), req.Events, "api")
	if err != nil {
		respondError(rw, err)
		return
	}

	rw.Created(result)
}

// ListEvents handles GET /api/v1/events, newest first.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	q := r.URL.Query()

	req := EventsListRequest{
		Since:    q.Get("since"),
		Until:    q.Get("until"),
		SourceIP: q.Get("source_ip"),
		Username: q.Get("username"),
		Status:   q.Get("status"),
		Limit:    getIntParam(r, "limit", h.limits.DefaultPageSize),
		Offset:   getIntParam(r, "offset", 0),
	}
	if err := validation.ValidateStruct(&req); err != nil {
		respondError(rw, err)
		return
	}
	limit := min(req.Limit, h.limits.MaxPageSize)

	query := models.EventQuery{
		Since:    parseTimeParam(req.Since),
		Until:    parseTimeParam(req.Until),
		SourceIP: req.SourceIP,
		Username: req.Username,
		Limit:    limit,
		Offset:   req.Offset,
	}
	if req.Status != "" {
		query.StatusContains = []string{req.Status}
	}

	events, err := h.store.QueryEvents(r.Context(), query)
	if err != nil {
		respondError(rw, err)
		return
	}
	if events == nil {
		events = []*models.SecurityEvent{}
	}

	rw.SuccessWithPagination(events, pagination(len(events), limit, req.Offset, 0))
}
