// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
)

// getIntParam extracts an integer query parameter with a default value.
// Unparseable values are returned as -1 so validation rejects them.
func getIntParam(r *http.Request, key string, defaultValue int) int {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return -1
	}
	return intValue
}

// getListParam splits a comma-separated query parameter, dropping blanks.
func getListParam(r *http.Request, key string) []string {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseTimeParam parses an RFC3339 timestamp. Empty input returns the zero time.
// Callers validate the raw string with the datetime tag first.
func parseTimeParam(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

// parseAlertID reads the {id} path parameter.
func parseAlertID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidAlertID
	}
	return id, nil
}

// decodeJSONBody reads at most limit bytes of JSON into v.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, limit int64, v interface{}) error {
	if r.Body == nil || r.Body == http.NoBody {
		return ErrEmptyBody
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return ErrBodyTooLarge
		}
		return &requestError{msg: "failed to read request body", err: err}
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return ErrEmptyBody
	}

	if err := json.Unmarshal(body, v); err != nil {
		return &requestError{msg: "invalid JSON body", err: err}
	}
	return nil
}

// requestError is a malformed request that should be reported as 400.
type requestError struct {
	msg string
	err error
}

func (e *requestError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *requestError) Unwrap() error {
	return e.err
}

// pagination builds page metadata for a list response.
func pagination(count, limit, offset int, total int64) *PaginationMeta {
	hasMore := count == limit
	if total > 0 {
		hasMore = int64(offset+count) < total
	}
	return &PaginationMeta{
		Total:   total,
		Count:   count,
		Offset:  offset,
		Limit:   limit,
		HasMore: hasMore,
	}
}
