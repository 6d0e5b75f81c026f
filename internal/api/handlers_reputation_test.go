// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/tomtom215/authsentry/internal/models"
)

func TestLookupReputation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec, resp := env.do(t, http.MethodGet, "/api/v1/reputation/203.0.113.3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var got ReputationLookup
	decodeData(t, resp, &got)
	if got.Reputation == nil || got.Activity == nil {
		t.Fatalf("lookup = %+v", got)
	}
	if got.Reputation.IPAddress != "203.0.113.3" {
		t.Errorf("IPAddress = %s", got.Reputation.IPAddress)
	}
	if got.Reputation.Source != models.ReputationSourceFallback {
		t.Errorf("Source = %s, want fallback", got.Reputation.Source)
	}
	if got.Reputation.AbuseConfidenceScore != 47 {
		t.Errorf("AbuseConfidenceScore = %d, want 47", got.Reputation.AbuseConfidenceScore)
	}
	if !got.Reputation.LastChecked.Equal(testNow) {
		t.Errorf("LastChecked = %v, want %v", got.Reputation.LastChecked, testNow)
	}
	if got.Activity.SourceIP != "203.0.113.3" || got.Activity.Count != 0 {
		t.Errorf("Activity = %+v, want empty", got.Activity)
	}
}

func TestLookupReputation_IncludesActivity(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ip := "203.0.113.3"
	events := []*models.SecurityEvent{
		{Timestamp: testNow.Add(-3 * time.Hour), SourceIP: ip, Username: "alice", Status: "Failed password"},
		{Timestamp: testNow.Add(-2 * time.Hour), SourceIP: ip, Username: "bob", Status: "denied"},
		{Timestamp: testNow.Add(-time.Hour), SourceIP: ip, Username: "alice", Status: "success"},
		{Timestamp: testNow.Add(-30 * time.Hour), SourceIP: ip, Username: "carol", Status: "failed"},
		{Timestamp: testNow.Add(-time.Hour), SourceIP: "198.51.100.1", Username: "dave", Status: "failed"},
	}
	if _, err := env.store.AppendEvents(context.Background(), events); err != nil {
		t.Fatalf("AppendEvents() error = %v", err)
	}

	_, resp := env.do(t, http.MethodGet, "/api/v1/reputation/"+ip, nil)
	var got ReputationLookup
	decodeData(t, resp, &got)
	if got.Activity == nil {
		t.Fatal("missing activity")
	}
	a := got.Activity
	if a.Count != 3 || a.FailureCount != 2 || a.DistinctUsers != 2 {
		t.Errorf("activity = %+v, want count 3, failures 2, users 2", a)
	}
	if !a.FirstSeen.Equal(testNow.Add(-3*time.Hour)) || !a.LastSeen.Equal(testNow.Add(-time.Hour)) {
		t.Errorf("span = %v..%v", a.FirstSeen, a.LastSeen)
	}
}

func TestLookupReputation_InvalidIP(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	for _, ip := range []string{"not-an-ip", "999.1.1.1", "10.0.0"} {
		rec, resp := env.do(t, http.MethodGet, "/api/v1/reputation/"+ip, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", ip, rec.Code)
			continue
		}
		if resp.Error == nil || resp.Error.Code != ErrCodeValidationFailed {
			t.Errorf("%s: error = %+v", ip, resp.Error)
		}
	}
}

func TestReputationStats(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, resp := env.do(t, http.MethodGet, "/api/v1/reputation/stats", nil)
	var empty models.ReputationStats
	decodeData(t, resp, &empty)
	if empty.TotalCached != 0 {
		t.Errorf("TotalCached = %d, want 0", empty.TotalCached)
	}

	env.do(t, http.MethodGet, "/api/v1/reputation/203.0.113.3", nil)
	env.do(t, http.MethodGet, "/api/v1/reputation/203.0.113.9", nil)

	_, resp = env.do(t, http.MethodGet, "/api/v1/reputation/stats", nil)
	var stats models.ReputationStats
	decodeData(t, resp, &stats)
	if stats.TotalCached != 2 || stats.FallbackCount != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestEvictReputation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/v1/reputation/203.0.113.3", nil)

	rec, resp := env.do(t, http.MethodPost, "/api/v1/reputation/evict", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var result EvictionResult
	decodeData(t, resp, &result)
	if result.Removed != 0 {
		t.Errorf("Removed = %d, fresh records must survive", result.Removed)
	}
}

func TestReputation_StoreFailure(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_ = env.store.Close()

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/reputation/203.0.113.3"},
		{http.MethodGet, "/api/v1/reputation/stats"},
		{http.MethodPost, "/api/v1/reputation/evict"},
	} {
		rec, resp := env.do(t, tc.method, tc.path, nil)
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("%s %s: status = %d, want 500", tc.method, tc.path, rec.Code)
			continue
		}
		if resp.Error == nil || resp.Error.Code != ErrCodeDatabaseError {
			t.Errorf("%s %s: error = %+v", tc.method, tc.path, resp.Error)
		}
	}
}
