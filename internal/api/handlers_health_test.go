// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package api

import (
	"net/http"
	"testing"
)

func TestHealth(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec, resp := env.do(t, http.MethodGet, "/health", nil)

	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("status = %d, success = %v", rec.Code, resp.Success)
	}
	var health HealthStatus
	decodeData(t, resp, &health)
	if health.Status != "healthy" || !health.DatabaseConnected {
		t.Errorf("health = %+v", health)
	}
	if health.Version != "test" || health.ReputationProvider != "closed" {
		t.Errorf("health = %+v", health)
	}
	if health.LastRunAt != nil {
		t.Error("LastRunAt should be empty before any run")
	}
}

func TestHealth_Degraded(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_ = env.store.Close()

	rec, resp := env.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var health HealthStatus
	decodeData(t, resp, &health)
	if health.Status != "degraded" || health.DatabaseConnected {
		t.Errorf("health = %+v", health)
	}
}
