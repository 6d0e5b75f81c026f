// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package database

import (
	"context"
	"fmt"

	"github.com/tomtom215/authsentry/internal/logging"
)

// schemaQueries creates every table idempotently.
//
// ip_reputation deliberately carries no secondary index: DuckDB rejects
// ON CONFLICT DO UPDATE when an updated column is covered by an ART index.
var schemaQueries = []string{
	`CREATE SEQUENCE IF NOT EXISTS security_events_id_seq START 1`,
	`CREATE SEQUENCE IF NOT EXISTS security_alerts_id_seq START 1`,

	`CREATE TABLE IF NOT EXISTS security_events (
		id BIGINT PRIMARY KEY DEFAULT nextval('security_events_id_seq'),
		event_timestamp TIMESTAMP NOT NULL,
		ts_offset INTEGER NOT NULL DEFAULT 0,
		event_type TEXT,
		username TEXT,
		source_ip TEXT,
		destination_ip TEXT,
		status TEXT,
		message TEXT,
		raw_payload TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_timestamp ON security_events(event_timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_events_source_ip ON security_events(source_ip)`,
	`CREATE INDEX IF NOT EXISTS idx_events_username ON security_events(username)`,
	`CREATE INDEX IF NOT EXISTS idx_events_event_type ON security_events(event_type)`,

	`CREATE TABLE IF NOT EXISTS security_alerts (
		id BIGINT PRIMARY KEY DEFAULT nextval('security_alerts_id_seq'),
		alert_type TEXT NOT NULL CHECK (alert_type IN ('brute_force', 'off_hours_access', 'geo_anomaly', 'high_risk_ip')),
		severity TEXT NOT NULL CHECK (severity IN ('low', 'medium', 'high', 'critical')),
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		affected_entity TEXT NOT NULL,
		source_ip TEXT NOT NULL DEFAULT '',
		event_count INTEGER NOT NULL CHECK (event_count >= 1),
		first_seen TIMESTAMP NOT NULL,
		last_seen TIMESTAMP NOT NULL,
		status TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'investigating', 'closed')),
		ai_summary TEXT,
		run_id TEXT,
		created_at TIMESTAMP NOT NULL,
		CHECK (first_seen <= last_seen)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_severity ON security_alerts(severity)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_status ON security_alerts(status)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON security_alerts(created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS ip_reputation (
		ip_address TEXT PRIMARY KEY,
		abuse_confidence_score INTEGER NOT NULL CHECK (abuse_confidence_score BETWEEN 0 AND 100),
		country_code TEXT,
		usage_type TEXT,
		is_whitelisted BOOLEAN NOT NULL DEFAULT false,
		total_reports INTEGER NOT NULL DEFAULT 0,
		last_checked TIMESTAMP NOT NULL,
		source TEXT NOT NULL DEFAULT 'provider',
		raw_payload TEXT
	)`,
}

// InitSchema creates the sequences, tables and indexes if they don't exist.
func (db *DB) InitSchema(ctx context.Context) error {
	for _, query := range schemaQueries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	// Flush the WAL so a restart never replays schema DDL.
	if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint after schema initialization")
	}

	return nil
}
