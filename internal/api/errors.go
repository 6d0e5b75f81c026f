// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/authsentry/internal/database"
	"github.com/tomtom215/authsentry/internal/detection"
	"github.com/tomtom215/authsentry/internal/ingest"
	"github.com/tomtom215/authsentry/internal/models"
	"github.com/tomtom215/authsentry/internal/validation"
)

// Common API errors
var (
	// ErrInvalidAlertID indicates the {id} path parameter is not a positive integer
	ErrInvalidAlertID = errors.New("alert id must be a positive integer")

	// ErrEmptyBody indicates a request body was required but missing
	ErrEmptyBody = errors.New("request body is required")

	// ErrBodyTooLarge indicates the request body exceeded the read limit
	ErrBodyTooLarge = errors.New("request body too large")
)

// respondError maps a domain or store error onto the response envelope.
func respondError(rw *ResponseWriter, err error) {
	var validationErr *validation.RequestValidationError
	var maxBytesErr *http.MaxBytesError
	var reqErr *requestError

	switch {
	case errors.As(err, &validationErr):
		apiErr := validationErr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
	case errors.Is(err, ErrInvalidAlertID), errors.Is(err, ErrEmptyBody):
		rw.BadRequest(err.Error())
	case errors.As(err, &reqErr):
		rw.BadRequest(reqErr.Error())
	case errors.Is(err, database.ErrAlertNotFound):
		rw.NotFound("alert not found")
	case errors.Is(err, detection.ErrRuleNotFound):
		rw.NotFound(err.Error())
	case errors.Is(err, models.ErrInvalidStatusTransition):
		rw.Conflict(err.Error())
	case errors.Is(err, ingest.ErrBatchTooLarge), errors.Is(err, ErrBodyTooLarge), errors.As(err, &maxBytesErr):
		rw.Error(http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, err.Error())
	default:
		rw.DatabaseError(err)
	}
}
