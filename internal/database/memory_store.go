// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package database

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/authsentry/internal/models"
)

// ErrStoreClosed is returned by MemoryStore after Close.
var ErrStoreClosed = errors.New("store is closed")

// MemoryStore is an in-process Store with the same semantics as DB.
// It backs unit tests; nothing survives a restart.
type MemoryStore struct {
	mu sync.RWMutex
	storeOptions

	events      []*models.SecurityEvent
	alerts      []*models.SecurityAlert
	reputation  map[string]*models.IPReputation
	nextEventID int64
	nextAlertID int64
	closed      bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		storeOptions: applyOptions(opts),
		reputation:   make(map[string]*models.IPReputation),
	}
}

// Ping reports whether the store is open.
func (m *MemoryStore) Ping(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrStoreClosed
	}
	return nil
}

// Close marks the store closed; later calls fail with ErrStoreClosed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// AppendEvents stores events atomically.
func (m *MemoryStore) AppendEvents(_ context.Context, events []*models.SecurityEvent) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrStoreClosed
	}

	createdAt := m.now().UTC()
	inserted := 0
	for _, e := range events {
		if e == nil {
			continue
		}
		m.nextEventID++
		e.ID = m.nextEventID
		e.CreatedAt = createdAt
		if e.Timestamp.IsZero() {
			e.Timestamp = createdAt
		}
		if len(e.RawPayload) == 0 {
			e.RawPayload = json.RawMessage("{}")
		}
		stored := *e
		m.events = append(m.events, &stored)
		inserted++
	}
	return inserted, nil
}

// QueryEvents returns matching events, newest first.
func (m *MemoryStore) QueryEvents(_ context.Context, q models.EventQuery) ([]*models.SecurityEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}

	var out []*models.SecurityEvent
	for _, e := range m.events {
		if matchesEventQuery(e, q) {
			cp := *e
			out = append(out, &cp)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})

	if q.Limit > 0 {
		out = paginate(out, q.Limit, q.Offset)
	}
	return out, nil
}

func matchesEventQuery(e *models.SecurityEvent, q models.EventQuery) bool {
	if !q.Since.IsZero() && e.Timestamp.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && e.Timestamp.After(q.Until) {
		return false
	}
	if q.RequireSourceIP && e.SourceIP == "" {
		return false
	}
	if q.RequireUsername && e.Username == "" {
		return false
	}
	if q.SourceIP != "" && e.SourceIP != q.SourceIP {
		return false
	}
	if q.Username != "" && e.Username != q.Username {
		return false
	}
	if len(q.StatusContains) > 0 && !containsAnyFold(e.Status, q.StatusContains) {
		return false
	}
	if len(q.SourceIPPrefixes) > 0 && !hasAnyPrefix(e.SourceIP, q.SourceIPPrefixes) {
		return false
	}
	return true
}

func containsAnyFold(value string, tokens []string) bool {
	lower := strings.ToLower(value)
	for _, token := range tokens {
		if strings.Contains(lower, strings.ToLower(token)) {
			return true
		}
	}
	return false
}

func hasAnyPrefix(value string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit < len(items) {
		items = items[:limit]
	}
	return items
}

// SourceIPActivity summarizes the events ip produced since the given time.
func (m *MemoryStore) SourceIPActivity(_ context.Context, ip string, since time.Time) (*models.IPActivity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}

	activity := &models.IPActivity{SourceIP: ip}
	users := make(map[string]struct{})
	for _, e := range m.events {
		if e.SourceIP != ip || e.Timestamp.Before(since) {
			continue
		}
		ts := e.Timestamp.UTC()
		if activity.Count == 0 || ts.Before(activity.FirstSeen) {
			activity.FirstSeen = ts
		}
		if activity.Count == 0 || ts.After(activity.LastSeen) {
			activity.LastSeen = ts
		}
		activity.Count++
		if containsAnyFold(e.Status, models.FailureStatusTokens) {
			activity.FailureCount++
		}
		if e.Username != "" {
			users[e.Username] = struct{}{}
		}
	}
	activity.DistinctUsers = len(users)
	return activity, nil
}

// DistinctSourceIPs returns every non-empty source address seen since the given time, sorted.
func (m *MemoryStore) DistinctSourceIPs(_ context.Context, since time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}

	seen := make(map[string]struct{})
	for _, e := range m.events {
		if e.SourceIP != "" && !e.Timestamp.Before(since) {
			seen[e.SourceIP] = struct{}{}
		}
	}
	ips := make([]string, 0, len(seen))
	for ip := range seen {
		ips = append(ips, ip)
	}
	sort.Strings(ips)
	return ips, nil
}

// CountEvents returns the total number of stored events.
func (m *MemoryStore) CountEvents(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrStoreClosed
	}
	return len(m.events), nil
}

// SaveAlerts stores alerts atomically, honouring the dedup option.
func (m *MemoryStore) SaveAlerts(_ context.Context, alerts []*models.SecurityAlert) error {
	for _, a := range alerts {
		if err := validateAlert(a); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}

	createdAt := m.now().UTC()
	for _, a := range alerts {
		if m.dedupAlerts {
			if existing := m.findDuplicate(a); existing != nil {
				existing.EventCount = a.EventCount
				if a.LastSeen.After(existing.LastSeen) {
					existing.LastSeen = a.LastSeen.UTC()
				}
				a.ID = existing.ID
				a.Status = existing.Status
				a.CreatedAt = existing.CreatedAt
				continue
			}
		}

		m.nextAlertID++
		a.ID = m.nextAlertID
		a.CreatedAt = createdAt
		if a.Status == "" {
			a.Status = models.AlertStatusOpen
		}
		stored := *a
		stored.FirstSeen = a.FirstSeen.UTC()
		stored.LastSeen = a.LastSeen.UTC()
		m.alerts = append(m.alerts, &stored)
	}
	return nil
}

func (m *MemoryStore) findDuplicate(a *models.SecurityAlert) *models.SecurityAlert {
	key := a.DedupKey()
	for _, existing := range m.alerts {
		if existing.DedupKey() == key {
			return existing
		}
	}
	return nil
}

// GetAlert retrieves an alert by ID. Returns nil, nil when absent.
func (m *MemoryStore) GetAlert(_ context.Context, id int64) (*models.SecurityAlert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}
	for _, a := range m.alerts {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

// ListAlerts returns one page of alerts plus the total number matching the filter.
func (m *MemoryStore) ListAlerts(_ context.Context, filter models.AlertFilter) ([]*models.SecurityAlert, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, 0, ErrStoreClosed
	}
	filter = normalizeAlertFilter(filter)

	var matched []*models.SecurityAlert
	for _, a := range m.alerts {
		if matchesAlertFilter(a, filter) {
			cp := *a
			matched = append(matched, &cp)
		}
	}

	less := alertLess(filter.OrderBy)
	desc := orderDirection(filter.OrderDirection) == "DESC"
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if desc {
			a, b = b, a
		}
		if less(a, b) {
			return true
		}
		if less(b, a) {
			return false
		}
		return a.ID < b.ID
	})

	return paginate(matched, filter.Limit, filter.Offset), len(matched), nil
}

func matchesAlertFilter(a *models.SecurityAlert, filter models.AlertFilter) bool {
	if len(filter.Statuses) > 0 && !containsValue(filter.Statuses, a.Status) {
		return false
	}
	if len(filter.Severities) > 0 && !containsValue(filter.Severities, a.Severity) {
		return false
	}
	if len(filter.AlertTypes) > 0 && !containsValue(filter.AlertTypes, a.AlertType) {
		return false
	}
	return true
}

func containsValue[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// alertLess mirrors validAlertOrderColumns for the in-memory listing.
func alertLess(column string) func(a, b *models.SecurityAlert) bool {
	switch column {
	case "id":
		return func(a, b *models.SecurityAlert) bool { return a.ID < b.ID }
	case "alert_type":
		return func(a, b *models.SecurityAlert) bool { return a.AlertType < b.AlertType }
	case "severity":
		return func(a, b *models.SecurityAlert) bool { return a.Severity < b.Severity }
	case "status":
		return func(a, b *models.SecurityAlert) bool { return a.Status < b.Status }
	case "event_count":
		return func(a, b *models.SecurityAlert) bool { return a.EventCount < b.EventCount }
	case "first_seen":
		return func(a, b *models.SecurityAlert) bool { return a.FirstSeen.Before(b.FirstSeen) }
	case "last_seen":
		return func(a, b *models.SecurityAlert) bool { return a.LastSeen.Before(b.LastSeen) }
	default:
		return func(a, b *models.SecurityAlert) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}
}

// UpdateAlertStatus moves an alert to a new triage status and returns the previous one.
func (m *MemoryStore) UpdateAlertStatus(_ context.Context, id int64, status models.AlertStatus) (models.AlertStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", ErrStoreClosed
	}
	for _, a := range m.alerts {
		if a.ID != id {
			continue
		}
		previous := a.Status
		if err := checkTransition(previous, status); err != nil {
			return previous, err
		}
		a.Status = status
		return previous, nil
	}
	return "", ErrAlertNotFound
}

// AlertCounts returns the number of alerts per status. Every status is present.
func (m *MemoryStore) AlertCounts(_ context.Context) (map[models.AlertStatus]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}
	counts := map[models.AlertStatus]int{
		models.AlertStatusOpen:          0,
		models.AlertStatusInvestigating: 0,
		models.AlertStatusClosed:        0,
	}
	for _, a := range m.alerts {
		counts[a.Status]++
	}
	return counts, nil
}

// GetReputation returns the cached record for ip regardless of age.
func (m *MemoryStore) GetReputation(_ context.Context, ip string) (*models.IPReputation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}
	rec, ok := m.reputation[ip]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// UpsertReputation inserts or refreshes the single record for rec.IPAddress.
func (m *MemoryStore) UpsertReputation(_ context.Context, rec *models.IPReputation) error {
	if rec == nil || rec.IPAddress == "" {
		return ErrInvalidReputation
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	cp := *rec
	cp.LastChecked = rec.LastChecked.UTC()
	if cp.Source == "" {
		cp.Source = models.ReputationSourceProvider
	}
	m.reputation[rec.IPAddress] = &cp
	return nil
}

// DeleteReputationBefore removes every record last checked before cutoff.
func (m *MemoryStore) DeleteReputationBefore(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrStoreClosed
	}
	removed := 0
	for ip, rec := range m.reputation {
		if rec.LastChecked.Before(cutoff) {
			delete(m.reputation, ip)
			removed++
		}
	}
	return removed, nil
}

// ReputationStats summarizes the cache.
func (m *MemoryStore) ReputationStats(_ context.Context, highThreshold, criticalThreshold int) (*models.ReputationStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}
	stats := &models.ReputationStats{TotalCached: len(m.reputation)}
	for _, rec := range m.reputation {
		if rec.AbuseConfidenceScore >= highThreshold {
			stats.SuspiciousCount++
		}
		if rec.AbuseConfidenceScore >= criticalThreshold {
			stats.HighRiskCount++
		}
		if rec.IsWhitelisted {
			stats.WhitelistCount++
		}
		if rec.Source == models.ReputationSourceFallback {
			stats.FallbackCount++
		}
	}
	return stats, nil
}
