// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package api

import "github.com/tomtom215/authsentry/internal/models"

// Validated request shapes. Query parameters are read by the handlers into
// these structs, then checked with validation.ValidateStruct; the `query` and
// `json` tags name the fields in validation messages.

// rfc3339 is the datetime layout accepted for time query parameters.
const rfc3339 = "2006-01-02T15:04:05Z07:00"

// IngestRequest is the body of POST /api/v1/events. A bare JSON array of
// events is accepted as well.
type IngestRequest struct {
	Events []*models.SecurityEvent `json:"events" validate:"required,min=1"`
}

// EventsListRequest holds the query parameters of GET /api/v1/events.
type EventsListRequest struct {
	Since    string `query:"since" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Until    string `query:"until" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	SourceIP string `query:"source_ip" validate:"omitempty,ip"`
	Username string `query:"username" validate:"omitempty,max=256"`
	Status   string `query:"status" validate:"omitempty,max=64"`
	Limit    int    `query:"limit" validate:"min=1,max=10000"`
	Offset   int    `query:"offset" validate:"min=0,max=1000000"`
}

// AlertsListRequest holds the query parameters of GET /api/v1/alerts.
// List parameters are comma-separated.
type AlertsListRequest struct {
	Statuses   []string `query:"status" validate:"omitempty,dive,alert_status"`
	Severities []string `query:"severity" validate:"omitempty,dive,severity"`
	AlertTypes []string `query:"alert_type" validate:"omitempty,dive,alert_type"`
	OrderBy    string   `query:"order_by" validate:"omitempty,oneof=id alert_type severity status event_count first_seen last_seen created_at"`
	Direction  string   `query:"direction" validate:"omitempty,oneof=asc desc"`
	Limit      int      `query:"limit" validate:"min=1,max=10000"`
	Offset     int      `query:"offset" validate:"min=0,max=1000000"`
}

// UpdateStatusRequest is the body of PATCH /api/v1/alerts/{id}/status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,alert_status"`
}

// RuleToggleRequest is the body of PATCH /api/v1/detection/rules/{type}.
type RuleToggleRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}
