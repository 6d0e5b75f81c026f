// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/authsentry/internal/models"
)

// GetReputation returns the cached record for ip regardless of age.
// Returns nil, nil when no record exists; staleness is the caller's decision.
func (db *DB) GetReputation(ctx context.Context, ip string) (*models.IPReputation, error) {
	query := `SELECT ip_address, abuse_confidence_score, country_code, usage_type,
		is_whitelisted, total_reports, last_checked, source, raw_payload
		FROM ip_reputation WHERE ip_address = ?`

	var (
		rec                 models.IPReputation
		country, usage, raw sql.NullString
		source              string
	)
	err := db.conn.QueryRowContext(ctx, query, ip).Scan(
		&rec.IPAddress,
		&rec.AbuseConfidenceScore,
		&country,
		&usage,
		&rec.IsWhitelisted,
		&rec.TotalReports,
		&rec.LastChecked,
		&source,
		&raw,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reputation for %s: %w", ip, err)
	}

	rec.CountryCode = country.String
	rec.UsageType = usage.String
	rec.Source = models.ReputationSource(source)
	rec.LastChecked = rec.LastChecked.UTC()
	if raw.Valid && raw.String != "" {
		rec.RawPayload = json.RawMessage(raw.String)
	}
	return &rec, nil
}

// UpsertReputation inserts or refreshes the single record for rec.IPAddress.
func (db *DB) UpsertReputation(ctx context.Context, rec *models.IPReputation) error {
	if rec == nil || rec.IPAddress == "" {
		return ErrInvalidReputation
	}
	source := rec.Source
	if source == "" {
		source = models.ReputationSourceProvider
	}

	// DuckDB-native upsert keyed on the primary key
	query := `INSERT INTO ip_reputation
		(ip_address, abuse_confidence_score, country_code, usage_type, is_whitelisted,
		 total_reports, last_checked, source, raw_payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ip_address) DO UPDATE SET
			abuse_confidence_score = EXCLUDED.abuse_confidence_score,
			country_code = EXCLUDED.country_code,
			usage_type = EXCLUDED.usage_type,
			is_whitelisted = EXCLUDED.is_whitelisted,
			total_reports = EXCLUDED.total_reports,
			last_checked = EXCLUDED.last_checked,
			source = EXCLUDED.source,
			raw_payload = EXCLUDED.raw_payload`

	if _, err := db.conn.ExecContext(ctx, query,
		rec.IPAddress,
		rec.AbuseConfidenceScore,
		nullString(rec.CountryCode),
		nullString(rec.UsageType),
		rec.IsWhitelisted,
		rec.TotalReports,
		rec.LastChecked.UTC(),
		string(source),
		nullString(string(rec.RawPayload)),
	); err != nil {
		return fmt.Errorf("failed to upsert reputation for %s: %w", rec.IPAddress, err)
	}
	return nil
}

// DeleteReputationBefore removes every record last checked before cutoff and
// returns how many were removed.
func (db *DB) DeleteReputationBefore(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := db.conn.ExecContext(ctx, "DELETE FROM ip_reputation WHERE last_checked < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale reputation records: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read deleted row count: %w", err)
	}
	return int(removed), nil
}

// ReputationStats summarizes the cache: total records, records at or above
// each threshold, whitelisted records and records produced by the fallback.
func (db *DB) ReputationStats(ctx context.Context, highThreshold, criticalThreshold int) (*models.ReputationStats, error) {
	query := `SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE abuse_confidence_score >= ?),
			COUNT(*) FILTER (WHERE abuse_confidence_score >= ?),
			COUNT(*) FILTER (WHERE is_whitelisted),
			COUNT(*) FILTER (WHERE source = 'fallback')
		FROM ip_reputation`

	var stats models.ReputationStats
	if err := db.conn.QueryRowContext(ctx, query, highThreshold, criticalThreshold).Scan(
		&stats.TotalCached,
		&stats.SuspiciousCount,
		&stats.HighRiskCount,
		&stats.WhitelistCount,
		&stats.FallbackCount,
	); err != nil {
		return nil, fmt.Errorf("failed to compute reputation stats: %w", err)
	}
	return &stats, nil
}
