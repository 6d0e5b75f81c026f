// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/authsentry/internal/logging"
	"github.com/tomtom215/authsentry/internal/models"
)

const eventColumns = `id, event_timestamp, ts_offset, event_type, username, source_ip,
	destination_ip, status, message, raw_payload, created_at`

// AppendEvents stores a batch of events in a single transaction.
// Either every event is stored or none is. On success each event carries its
// assigned ID and CreatedAt; nil entries are skipped.
func (db *DB) AppendEvents(ctx context.Context, events []*models.SecurityEvent) (inserted int, err error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error().
					Err(rbErr).
					AnErr("original_error", err).
					Msg("Transaction rollback failed")
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO security_events
		(event_timestamp, ts_offset, event_type, username, source_ip, destination_ip,
		 status, message, raw_payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare event insert: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			logging.Warn().Err(closeErr).Msg("Failed to close prepared statement")
		}
	}()

	createdAt := db.now().UTC()
	ids := make([]int64, len(events))

	for i, e := range events {
		if e == nil {
			continue
		}
		ts := e.Timestamp
		if ts.IsZero() {
			ts = createdAt
		}
		payload := string(e.RawPayload)
		if payload == "" {
			payload = "{}"
		}

		if err = stmt.QueryRowContext(ctx,
			ts.UTC(),
			zoneOffset(ts),
			nullString(e.EventType),
			nullString(e.Username),
			nullString(e.SourceIP),
			nullString(e.DestinationIP),
			nullString(e.Status),
			nullString(e.Message),
			payload,
			createdAt,
		).Scan(&ids[i]); err != nil {
			return 0, fmt.Errorf("failed to insert event %d: %w", i, err)
		}
		inserted++
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit events: %w", err)
	}

	for i, e := range events {
		if e == nil {
			continue
		}
		e.ID = ids[i]
		e.CreatedAt = createdAt
		if e.Timestamp.IsZero() {
			e.Timestamp = createdAt
		}
		if len(e.RawPayload) == 0 {
			e.RawPayload = json.RawMessage("{}")
		}
	}

	return inserted, nil
}

// QueryEvents returns the events matching query, newest first.
// Security: every filter value is a bound parameter; see buildEventQuery.
func (db *DB) QueryEvents(ctx context.Context, query models.EventQuery) ([]*models.SecurityEvent, error) {
	sqlQuery, args := buildEventQuery(query)

	rows, err := db.conn.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*models.SecurityEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// buildEventQuery constructs the SQL and args for an event query.
func buildEventQuery(q models.EventQuery) (string, []interface{}) {
	query := "SELECT " + eventColumns + " FROM security_events WHERE 1=1"
	args := make([]interface{}, 0, 8)

	query, args = applyEventFilters(query, args, q)

	query += " ORDER BY event_timestamp DESC, id DESC"

	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
		if q.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, q.Offset)
		}
	}

	return query, args
}

// applyEventFilters adds WHERE clauses for event filtering.
func applyEventFilters(query string, args []interface{}, q models.EventQuery) (string, []interface{}) {
	if !q.Since.IsZero() {
		query += " AND event_timestamp >= ?"
		args = append(args, q.Since.UTC())
	}
	if !q.Until.IsZero() {
		query += " AND event_timestamp <= ?"
		args = append(args, q.Until.UTC())
	}
	if q.RequireSourceIP {
		query += " AND COALESCE(source_ip, '') <> ''"
	}
	if q.RequireUsername {
		query += " AND COALESCE(username, '') <> ''"
	}
	if q.SourceIP != "" {
		query += " AND source_ip = ?"
		args = append(args, q.SourceIP)
	}
	if q.Username != "" {
		query += " AND username = ?"
		args = append(args, q.Username)
	}

	if len(q.StatusContains) > 0 {
		clauses := make([]string, 0, len(q.StatusContains))
		for _, token := range q.StatusContains {
			clauses = append(clauses, "contains(lower(COALESCE(status, '')), ?)")
			args = append(args, strings.ToLower(token))
		}
		query += " AND (" + strings.Join(clauses, " OR ") + ")"
	}

	if len(q.SourceIPPrefixes) > 0 {
		clauses := make([]string, 0, len(q.SourceIPPrefixes))
		for _, prefix := range q.SourceIPPrefixes {
			clauses = append(clauses, "starts_with(COALESCE(source_ip, ''), ?)")
			args = append(args, prefix)
		}
		query += " AND (" + strings.Join(clauses, " OR ") + ")"
	}

	return query, args
}

func scanEvent(rows *sql.Rows) (*models.SecurityEvent, error) {
	var e models.SecurityEvent
	var ts, createdAt time.Time
	var offset int
	var eventType, username, sourceIP, destIP, status, message sql.NullString
	var payload string

	if err := rows.Scan(&e.ID, &ts, &offset, &eventType, &username, &sourceIP,
		&destIP, &status, &message, &payload, &createdAt); err != nil {
		return nil, err
	}

	e.Timestamp = restoreOffset(ts, offset)
	e.EventType = eventType.String
	e.Username = username.String
	e.SourceIP = sourceIP.String
	e.DestinationIP = destIP.String
	e.Status = status.String
	e.Message = message.String
	e.RawPayload = json.RawMessage(payload)
	e.CreatedAt = createdAt.UTC()

	return &e, nil
}

// SourceIPActivity summarizes the events ip produced since the given time.
// Failures are counted against models.FailureStatusTokens.
func (db *DB) SourceIPActivity(ctx context.Context, ip string, since time.Time) (*models.IPActivity, error) {
	failure := make([]string, 0, len(models.FailureStatusTokens))
	args := make([]interface{}, 0, len(models.FailureStatusTokens)+2)
	for _, token := range models.FailureStatusTokens {
		failure = append(failure, "contains(lower(COALESCE(status, '')), ?)")
		args = append(args, strings.ToLower(token))
	}
	args = append(args, ip, since.UTC())

	query := `SELECT COUNT(*),
			COUNT(*) FILTER (WHERE ` + strings.Join(failure, " OR ") + `),
			COUNT(DISTINCT NULLIF(username, '')),
			MIN(event_timestamp), MAX(event_timestamp)
		FROM security_events
		WHERE source_ip = ? AND event_timestamp >= ?`

	var (
		activity    = &models.IPActivity{SourceIP: ip}
		first, last sql.NullTime
	)
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(
		&activity.Count, &activity.FailureCount, &activity.DistinctUsers, &first, &last,
	); err != nil {
		return nil, fmt.Errorf("failed to query activity for %s: %w", ip, err)
	}

	if first.Valid {
		activity.FirstSeen = first.Time.UTC()
	}
	if last.Valid {
		activity.LastSeen = last.Time.UTC()
	}
	return activity, nil
}

// DistinctSourceIPs returns every non-empty source address seen since the given time, sorted.
func (db *DB) DistinctSourceIPs(ctx context.Context, since time.Time) ([]string, error) {
	query := `SELECT DISTINCT source_ip FROM security_events
		WHERE event_timestamp >= ? AND COALESCE(source_ip, '') <> ''
		ORDER BY source_ip`

	rows, err := db.conn.QueryContext(ctx, query, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query distinct source IPs: %w", err)
	}
	defer rows.Close()

	var ips []string
	for rows.Next() {
		var ip string
		if err := rows.Scan(&ip); err != nil {
			return nil, fmt.Errorf("failed to scan source IP: %w", err)
		}
		ips = append(ips, ip)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source IPs: %w", err)
	}
	return ips, nil
}

// CountEvents returns the total number of stored events.
func (db *DB) CountEvents(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM security_events").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}
