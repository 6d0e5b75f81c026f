// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/authsentry/internal/models"
)

// Alert listing page bounds.
const (
	DefaultAlertPageSize = 50
	MaxAlertPageSize     = 500
)

// EventStore is the append-only security event log.
type EventStore interface {
	AppendEvents(ctx context.Context, events []*models.SecurityEvent) (int, error)
	QueryEvents(ctx context.Context, query models.EventQuery) ([]*models.SecurityEvent, error)
	SourceIPActivity(ctx context.Context, ip string, since time.Time) (*models.IPActivity, error)
	DistinctSourceIPs(ctx context.Context, since time.Time) ([]string, error)
	CountEvents(ctx context.Context) (int, error)
}

// AlertStore persists detection findings.
type AlertStore interface {
	SaveAlerts(ctx context.Context, alerts []*models.SecurityAlert) error
	ListAlerts(ctx context.Context, filter models.AlertFilter) ([]*models.SecurityAlert, int, error)
	GetAlert(ctx context.Context, id int64) (*models.SecurityAlert, error)
	UpdateAlertStatus(ctx context.Context, id int64, status models.AlertStatus) (models.AlertStatus, error)
	AlertCounts(ctx context.Context) (map[models.AlertStatus]int, error)
}

// ReputationStore holds one reputation record per address.
type ReputationStore interface {
	GetReputation(ctx context.Context, ip string) (*models.IPReputation, error)
	UpsertReputation(ctx context.Context, rec *models.IPReputation) error
	DeleteReputationBefore(ctx context.Context, cutoff time.Time) (int, error)
	ReputationStats(ctx context.Context, highThreshold, criticalThreshold int) (*models.ReputationStats, error)
}

// Store combines every store the service needs.
type Store interface {
	EventStore
	AlertStore
	ReputationStore
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*DB)(nil)
	_ Store = (*MemoryStore)(nil)
)

// normalizeAlertFilter clamps pagination to the listing bounds.
func normalizeAlertFilter(filter models.AlertFilter) models.AlertFilter {
	if filter.Limit <= 0 {
		filter.Limit = DefaultAlertPageSize
	}
	if filter.Limit > MaxAlertPageSize {
		filter.Limit = MaxAlertPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return filter
}

// validateAlert checks the invariants every stored alert must hold.
func validateAlert(a *models.SecurityAlert) error {
	switch {
	case a == nil:
		return ErrInvalidAlert
	case !a.AlertType.Valid():
		return fmt.Errorf("%w: unknown alert type %q", ErrInvalidAlert, a.AlertType)
	case !a.Severity.Valid():
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidAlert, a.Severity)
	case a.EventCount < 1:
		return fmt.Errorf("%w: event_count must be >= 1", ErrInvalidAlert)
	case a.LastSeen.Before(a.FirstSeen):
		return fmt.Errorf("%w: last_seen before first_seen", ErrInvalidAlert)
	}
	return nil
}

// checkTransition validates an operator status change.
func checkTransition(current, next models.AlertStatus) error {
	if !next.Valid() {
		return fmt.Errorf("%w: unknown status %q", models.ErrInvalidStatusTransition, next)
	}
	if !current.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidStatusTransition, current, next)
	}
	return nil
}
