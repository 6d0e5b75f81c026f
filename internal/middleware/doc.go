// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

// Package middleware provides HTTP middleware shared by the API router.
//
// PrometheusMetrics records request counts, durations and in-flight requests.
// Requests are labelled by their chi route pattern (for example
// /api/v1/alerts/{id}) so path parameters never create new label values;
// requests that match no route are labelled "unmatched".
package middleware
