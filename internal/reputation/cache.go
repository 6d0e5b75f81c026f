// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package reputation

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/tomtom215/authsentry/internal/logging"
	"github.com/tomtom215/authsentry/internal/metrics"
	"github.com/tomtom215/authsentry/internal/models"
)

// Defaults for the cache policy.
const (
	DefaultTTL               = 7 * 24 * time.Hour
	DefaultPacingDelay       = 250 * time.Millisecond
	DefaultHighThreshold     = 50
	DefaultCriticalThreshold = 75
)

// Lookup results reported to metrics.
const (
	resultHit      = "hit"
	resultProvider = "provider"
	resultFallback = "fallback"
	resultPrivate  = "private"
)

// Store is the durable reputation table the cache reads and writes.
type Store interface {
	GetReputation(ctx context.Context, ip string) (*models.IPReputation, error)
	UpsertReputation(ctx context.Context, rec *models.IPReputation) error
	DeleteReputationBefore(ctx context.Context, cutoff time.Time) (int, error)
	ReputationStats(ctx context.Context, highThreshold, criticalThreshold int) (*models.ReputationStats, error)
}

// Cache is the TTL-backed reputation cache.
type Cache struct {
	store    Store
	real     Provider
	fallback *FallbackProvider
	audit    *logging.AuditLogger

	ttl               time.Duration
	pacingDelay       time.Duration
	highThreshold     int
	criticalThreshold int
	now               func() time.Time

	group singleflight.Group
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithTTL sets how long a record is served without refreshing.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithPacingDelay sets the minimum spacing between network calls in BatchLookup.
// Zero disables pacing.
func WithPacingDelay(delay time.Duration) CacheOption {
	return func(c *Cache) {
		if delay >= 0 {
			c.pacingDelay = delay
		}
	}
}

// WithThresholds sets the score thresholds reported by Stats.
func WithThresholds(high, critical int) CacheOption {
	return func(c *Cache) {
		c.highThreshold = high
		c.criticalThreshold = critical
	}
}

// WithClock overrides the cache clock.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithAuditLogger overrides the audit logger.
func WithAuditLogger(audit *logging.AuditLogger) CacheOption {
	return func(c *Cache) {
		if audit != nil {
			c.audit = audit
		}
	}
}

// NewCache creates a cache over store. real may be nil, in which case every
// miss resolves through the fallback.
func NewCache(store Store, real Provider, opts ...CacheOption) *Cache {
	c := &Cache{
		store:             store,
		real:              real,
		fallback:          NewFallbackProvider(),
		audit:             logging.NewAuditLogger(),
		ttl:               DefaultTTL,
		pacingDelay:       DefaultPacingDelay,
		highThreshold:     DefaultHighThreshold,
		criticalThreshold: DefaultCriticalThreshold,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured freshness window.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Lookup returns the reputation of ip. A fresh cached record is returned
// without any network call. Otherwise the record is resolved, persisted with
// last_checked = now and returned. Provider failures fall back to a synthetic
// record; only store errors are returned.
func (c *Cache) Lookup(ctx context.Context, ip string) (*models.IPReputation, error) {
	return c.lookup(ctx, ip, nil)
}

// lookup collapses concurrent resolutions of the same ip. beforeNetwork, when
// set, is called right before the provider is contacted over the network.
func (c *Cache) lookup(ctx context.Context, ip string, beforeNetwork func(context.Context) error) (*models.IPReputation, error) {
	v, err, _ := c.group.Do(ip, func() (interface{}, error) {
		return c.resolve(ctx, ip, beforeNetwork)
	})
	if err != nil {
		return nil, err
	}
	rec := *v.(*models.IPReputation)
	return &rec, nil
}

func (c *Cache) resolve(ctx context.Context, ip string, beforeNetwork func(context.Context) error) (*models.IPReputation, error) {
	cached, err := c.store.GetReputation(ctx, ip)
	if err != nil {
		return nil, fmt.Errorf("failed to read reputation cache: %w", err)
	}
	now := c.now().UTC()
	if cached != nil && now.Sub(cached.LastChecked) < c.ttl {
		metrics.RecordReputationLookup(resultHit)
		return cached, nil
	}

	var (
		rec    *models.IPReputation
		result string
	)
	switch reason := c.skipReason(ip); {
	case reason == resultPrivate:
		rec = c.fromFallback(ip, "", now)
		result = resultPrivate
	case reason != "":
		rec = c.fromFallback(ip, reason, now)
		result = resultFallback
		c.audit.ReputationFallback(ip, reason)
	default:
		// Pacing only spaces real network calls; an open breaker answers
		// immediately.
		if beforeNetwork != nil && !rejectsLocally(c.real) {
			if err := beforeNetwork(ctx); err != nil {
				return nil, err
			}
		}
		report, err := c.real.Check(ctx, ip)
		if err != nil {
			reason := ErrorReason(err)
			logging.Warn().Str("ip", ip).Str("provider", c.real.Name()).Str("reason", reason).
				Str("error", logging.SanitizeError(err.Error())).Msg("Reputation provider failed, using fallback")
			c.audit.ReputationFallback(ip, reason)
			rec = c.fromFallback(ip, reason, now)
			result = resultFallback
		} else {
			rec = recordFromReport(report, models.ReputationSourceProvider, now)
			result = resultProvider
		}
	}

	if err := c.store.UpsertReputation(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to persist reputation: %w", err)
	}
	metrics.RecordReputationLookup(result)
	return rec, nil
}

// skipReason explains why ip must not be sent to the provider, or returns "".
func (c *Cache) skipReason(ip string) string {
	switch {
	case IsReserved(ip):
		return resultPrivate
	case !isIP(ip):
		return "invalid_ip"
	case c.real == nil || !c.real.Available():
		return "no_api_key"
	default:
		return ""
	}
}

func isIP(s string) bool {
	_, err := netip.ParseAddr(s)
	return err == nil
}

func (c *Cache) fromFallback(ip, reason string, now time.Time) *models.IPReputation {
	return recordFromReport(c.fallback.Synthesize(ip, reason), models.ReputationSourceFallback, now)
}

func recordFromReport(r *Report, source models.ReputationSource, now time.Time) *models.IPReputation {
	return &models.IPReputation{
		IPAddress:            r.IPAddress,
		AbuseConfidenceScore: r.AbuseConfidenceScore,
		CountryCode:          r.CountryCode,
		UsageType:            r.UsageType,
		IsWhitelisted:        r.IsWhitelisted,
		TotalReports:         r.TotalReports,
		LastChecked:          now,
		Source:               source,
		RawPayload:           r.Raw,
	}
}

// BatchLookup resolves every distinct ip strictly sequentially. Successive
// network calls are spaced by the pacing delay; the first network call, cache
// hits and fallback resolutions do not wait.
//
// On a store error or context cancellation the records resolved so far are
// returned together with the error.
func (c *Cache) BatchLookup(ctx context.Context, ips []string) (map[string]*models.IPReputation, error) {
	results := make(map[string]*models.IPReputation, len(ips))

	limit := rate.Inf
	if c.pacingDelay > 0 {
		limit = rate.Every(c.pacingDelay)
	}
	limiter := rate.NewLimiter(limit, 1)
	pace := func(ctx context.Context) error {
		return limiter.Wait(ctx)
	}

	for _, ip := range ips {
		if _, done := results[ip]; done || ip == "" {
			continue
		}
		rec, err := c.lookup(ctx, ip, pace)
		if err != nil {
			return results, err
		}
		results[ip] = rec
	}
	return results, nil
}

// EvictStale deletes every record last checked more than TTL ago and returns
// how many were removed.
func (c *Cache) EvictStale(ctx context.Context) (int, error) {
	cutoff := c.now().UTC().Add(-c.ttl)
	removed, err := c.store.DeleteReputationBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to evict stale reputation: %w", err)
	}
	metrics.RecordEviction(removed)
	c.audit.ReputationEvicted(removed)
	return removed, nil
}

// Stats summarizes the cache using the configured thresholds.
func (c *Cache) Stats(ctx context.Context) (*models.ReputationStats, error) {
	stats, err := c.store.ReputationStats(ctx, c.highThreshold, c.criticalThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to read reputation stats: %w", err)
	}
	return stats, nil
}
