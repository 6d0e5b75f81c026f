// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/authsentry/internal/models"
	"github.com/tomtom215/authsentry/internal/validation"
)

// ReputationLookup is the payload of GET /api/v1/reputation/{ip}.
type ReputationLookup struct {
	Reputation *models.IPReputation `json:"reputation"`
	Activity   *models.IPActivity   `json:"activity"`
}

// EvictionResult is the payload of POST /api/v1/reputation/evict.
type EvictionResult struct {
	Removed int `json:"removed"`
}

// LookupReputation handles GET /api/v1/reputation/{ip}.
// The lookup always resolves: a provider failure yields a fallback record.
// The address's own activity over the trailing window is returned with it.
func (h *Handler) LookupReputation(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	ip := chi.URLParam(r, "ip")
	if err := validation.ValidateVar("ip", ip, "required,ip"); err != nil {
		respondError(rw, err)
		return
	}

	rec, err := h.reputation.Lookup(r.Context(), ip)
	if err != nil {
		respondError(rw, err)
		return
	}
	activity, err := h.store.SourceIPActivity(r.Context(), ip, h.now().Add(-h.activityWindow))
	if err != nil {
		respondError(rw, err)
		return
	}
	rw.Success(ReputationLookup{Reputation: rec, Activity: activity})
}

// ReputationStats handles GET /api/v1/reputation/stats.
func (h *Handler) ReputationStats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	stats, err := h.reputation.Stats(r.Context())
	if err != nil {
		respondError(rw, err)
		return
	}
	rw.Success(stats)
}

// EvictReputation handles POST /api/v1/reputation/evict.
func (h *Handler) EvictReputation(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	removed, err := h.reputation.EvictStale(r.Context())
	if err != nil {
		respondError(rw, err)
		return
	}
	rw.Success(EvictionResult{Removed: removed})
}
