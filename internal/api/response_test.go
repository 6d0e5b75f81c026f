// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestResponseWriter_Success(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	NewResponseWriter(rec, req).Success(map[string]int{"n": 1})

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}

	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Error != nil {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Meta == nil || resp.Meta.Timestamp.IsZero() {
		t.Error("meta timestamp should be set")
	}
}

func TestResponseWriter_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		write    func(rw *ResponseWriter)
		wantCode int
		wantErr  string
	}{
		{"bad request", func(rw *ResponseWriter) { rw.BadRequest("x") }, http.StatusBadRequest, ErrCodeBadRequest},
		{"not found", func(rw *ResponseWriter) { rw.NotFound("x") }, http.StatusNotFound, ErrCodeNotFound},
		{"conflict", func(rw *ResponseWriter) { rw.Conflict("x") }, http.StatusConflict, ErrCodeConflict},
		{"internal", func(rw *ResponseWriter) { rw.InternalError("x") }, http.StatusInternalServerError, ErrCodeInternalError},
		{"unavailable", func(rw *ResponseWriter) { rw.ServiceUnavailable("x") }, http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
		{"database", func(rw *ResponseWriter) { rw.DatabaseError(errors.New("disk full")) }, http.StatusInternalServerError, ErrCodeDatabaseError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			tt.write(NewResponseWriter(rec, httptest.NewRequest(http.MethodGet, "/", nil)))

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			var resp APIResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Success || resp.Error == nil || resp.Error.Code != tt.wantErr {
				t.Errorf("error = %+v, want %s", resp.Error, tt.wantErr)
			}
		})
	}
}

func TestResponseWriter_DatabaseErrorRedacts(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	rw.DatabaseError(errors.New("provider call failed: key=secret123 status=500"))

	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	details, _ := resp.Error.Details.(string)
	if details == "" {
		t.Fatal("expected details")
	}
	if strings.Contains(details, "secret123") {
		t.Errorf("details leak the key: %q", details)
	}
}

func TestPagination(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                 string
		count, limit, offset int
		total                int64
		wantHasMore          bool
	}{
		{name: "full page without total", count: 10, limit: 10, wantHasMore: true},
		{name: "short page without total", count: 3, limit: 10, wantHasMore: false},
		{name: "total beyond page", count: 10, limit: 10, offset: 10, total: 25, wantHasMore: true},
		{name: "last page with total", count: 5, limit: 10, offset: 20, total: 25, wantHasMore: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := pagination(tt.count, tt.limit, tt.offset, tt.total)
			if p.HasMore != tt.wantHasMore {
				t.Errorf("HasMore = %v, want %v", p.HasMore, tt.wantHasMore)
			}
		})
	}
}
