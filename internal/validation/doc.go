// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

// Package validation provides struct validation using go-playground/validator v10.
//
// A single validator instance is shared process-wide; it caches struct
// metadata and is safe for concurrent use. Field names in errors come from
// the `json` tag (falling back to the `query` tag, then the Go name) so that
// messages refer to what API clients actually send.
//
// Custom tags:
//
//	alert_status  open, investigating or closed
//	severity      low, medium, high or critical
//	alert_type    brute_force, off_hours_access, geo_anomaly or high_risk_ip
//
// Example:
//
//	type StatusRequest struct {
//	    Status string `json:"status" validate:"required,alert_status"`
//	}
//
//	if err := validation.ValidateStruct(&req); err != nil {
//	    apiErr := err.ToAPIError()
//	    ...
//	}
package validation
