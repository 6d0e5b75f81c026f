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

	"github.com/tomtom215/authsentry/internal/logging"
	"github.com/tomtom215/authsentry/internal/models"
)

const alertColumns = `id, alert_type, severity, title, description, affected_entity, source_ip,
	event_count, first_seen, last_seen, status, ai_summary, run_id, created_at`

// SaveAlerts inserts a batch of alerts in one transaction and assigns their IDs.
//
// With alert dedup enabled, an alert whose (alert_type, affected_entity,
// source_ip, first_seen) matches a stored alert refreshes that row's
// event_count and last_seen instead of inserting a new one; the stored ID,
// status and created_at are copied back onto the alert.
func (db *DB) SaveAlerts(ctx context.Context, alerts []*models.SecurityAlert) (err error) {
	if len(alerts) == 0 {
		return nil
	}
	for _, a := range alerts {
		if err := validateAlert(a); err != nil {
			return err
		}
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
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

	createdAt := db.now().UTC()
	results := make([]storedAlert, len(alerts))

	for i, a := range alerts {
		if db.dedupAlerts {
			var existing *storedAlert
			existing, err = refreshDuplicate(ctx, tx, a)
			if err != nil {
				return err
			}
			if existing != nil {
				results[i] = *existing
				continue
			}
		}

		status := a.Status
		if status == "" {
			status = models.AlertStatusOpen
		}

		if err = tx.QueryRowContext(ctx, `INSERT INTO security_alerts
			(alert_type, severity, title, description, affected_entity, source_ip,
			 event_count, first_seen, last_seen, status, ai_summary, run_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING id`,
			string(a.AlertType),
			string(a.Severity),
			a.Title,
			a.Description,
			a.AffectedEntity,
			a.SourceIP,
			a.EventCount,
			a.FirstSeen.UTC(),
			a.LastSeen.UTC(),
			string(status),
			nullString(a.AISummary),
			nullString(a.RunID),
			createdAt,
		).Scan(&results[i].id); err != nil {
			return fmt.Errorf("failed to insert alert: %w", err)
		}
		results[i].status = status
		results[i].createdAt = createdAt
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit alerts: %w", err)
	}

	for i, a := range alerts {
		a.ID = results[i].id
		a.Status = results[i].status
		a.CreatedAt = results[i].createdAt
	}
	return nil
}

// storedAlert is the server-assigned part of a saved alert.
type storedAlert struct {
	id        int64
	status    models.AlertStatus
	createdAt time.Time
}

// refreshDuplicate updates an existing alert with the same natural key.
// Returns nil when no such alert exists.
func refreshDuplicate(ctx context.Context, tx *sql.Tx, a *models.SecurityAlert) (*storedAlert, error) {
	var (
		existing storedAlert
		status   string
		lastSeen time.Time
	)
	err := tx.QueryRowContext(ctx, `SELECT id, status, created_at, last_seen FROM security_alerts
		WHERE alert_type = ? AND affected_entity = ? AND source_ip = ? AND first_seen = ?
		ORDER BY id LIMIT 1`,
		string(a.AlertType), a.AffectedEntity, a.SourceIP, a.FirstSeen.UTC(),
	).Scan(&existing.id, &status, &existing.createdAt, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up duplicate alert: %w", err)
	}

	if a.LastSeen.UTC().After(lastSeen) {
		lastSeen = a.LastSeen.UTC()
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE security_alerts SET event_count = ?, last_seen = ? WHERE id = ?`,
		a.EventCount, lastSeen, existing.id); err != nil {
		return nil, fmt.Errorf("failed to refresh duplicate alert: %w", err)
	}

	existing.status = models.AlertStatus(status)
	existing.createdAt = existing.createdAt.UTC()
	return &existing, nil
}

// GetAlert retrieves an alert by ID. Returns nil, nil when absent.
func (db *DB) GetAlert(ctx context.Context, id int64) (*models.SecurityAlert, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT "+alertColumns+" FROM security_alerts WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	defer rows.Close()

	alerts, err := scanAlerts(rows)
	if err != nil {
		return nil, err
	}
	if len(alerts) == 0 {
		return nil, nil
	}
	return alerts[0], nil
}

// ListAlerts returns one page of alerts plus the total number matching the filter.
// Security: values are bound parameters and ORDER BY columns are whitelisted
// via validAlertOrderColumns. See buildAlertQuery.
func (db *DB) ListAlerts(ctx context.Context, filter models.AlertFilter) ([]*models.SecurityAlert, int, error) {
	filter = normalizeAlertFilter(filter)

	where, whereArgs := applyAlertFilters(filter)

	var total int
	if err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM security_alerts WHERE 1=1"+where, whereArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	query, args := buildAlertQuery(filter)
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts, err := scanAlerts(rows)
	if err != nil {
		return nil, 0, err
	}
	return alerts, total, nil
}

// validAlertOrderColumns is the whitelist of columns alerts may be sorted by.
var validAlertOrderColumns = map[string]bool{
	"id":          true,
	"alert_type":  true,
	"severity":    true,
	"status":      true,
	"event_count": true,
	"first_seen":  true,
	"last_seen":   true,
	"created_at":  true,
}

// buildAlertQuery constructs the SQL query and args for a page of alerts.
func buildAlertQuery(filter models.AlertFilter) (string, []interface{}) {
	where, args := applyAlertFilters(filter)
	query := "SELECT " + alertColumns + " FROM security_alerts WHERE 1=1" + where

	orderBy := "created_at"
	if filter.OrderBy != "" && validAlertOrderColumns[filter.OrderBy] {
		orderBy = filter.OrderBy
	}
	dir := orderDirection(filter.OrderDirection)
	query += fmt.Sprintf(" ORDER BY %s %s, id %s", orderBy, dir, dir)

	query += " LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	return query, args
}

// applyAlertFilters returns the WHERE fragment and args for alert filtering.
func applyAlertFilters(filter models.AlertFilter) (string, []interface{}) {
	var where string
	args := make([]interface{}, 0)

	if len(filter.Statuses) > 0 {
		where += fmt.Sprintf(" AND status IN (%s)", buildPlaceholders(len(filter.Statuses)))
		for _, s := range filter.Statuses {
			args = append(args, string(s))
		}
	}
	if len(filter.Severities) > 0 {
		where += fmt.Sprintf(" AND severity IN (%s)", buildPlaceholders(len(filter.Severities)))
		for _, s := range filter.Severities {
			args = append(args, string(s))
		}
	}
	if len(filter.AlertTypes) > 0 {
		where += fmt.Sprintf(" AND alert_type IN (%s)", buildPlaceholders(len(filter.AlertTypes)))
		for _, t := range filter.AlertTypes {
			args = append(args, string(t))
		}
	}

	return where, args
}

func scanAlerts(rows *sql.Rows) ([]*models.SecurityAlert, error) {
	var alerts []*models.SecurityAlert
	for rows.Next() {
		var a models.SecurityAlert
		var alertType, severity, status string
		var aiSummary, runID sql.NullString
		if err := rows.Scan(&a.ID, &alertType, &severity, &a.Title, &a.Description,
			&a.AffectedEntity, &a.SourceIP, &a.EventCount, &a.FirstSeen, &a.LastSeen,
			&status, &aiSummary, &runID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.AlertType = models.AlertType(alertType)
		a.Severity = models.Severity(severity)
		a.Status = models.AlertStatus(status)
		a.AISummary = aiSummary.String
		a.RunID = runID.String
		a.FirstSeen = a.FirstSeen.UTC()
		a.LastSeen = a.LastSeen.UTC()
		a.CreatedAt = a.CreatedAt.UTC()
		alerts = append(alerts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}
	return alerts, nil
}

// UpdateAlertStatus moves an alert to a new triage status and returns the previous one.
// Returns ErrAlertNotFound for unknown IDs and models.ErrInvalidStatusTransition
// for backward moves.
func (db *DB) UpdateAlertStatus(ctx context.Context, id int64, status models.AlertStatus) (previous models.AlertStatus, err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
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

	var current string
	err = tx.QueryRowContext(ctx, "SELECT status FROM security_alerts WHERE id = ?", id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrAlertNotFound
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("failed to read alert status: %w", err)
	}

	previous = models.AlertStatus(current)
	if err = checkTransition(previous, status); err != nil {
		return previous, err
	}

	if _, err = tx.ExecContext(ctx, "UPDATE security_alerts SET status = ? WHERE id = ?", string(status), id); err != nil {
		return previous, fmt.Errorf("failed to update alert status: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return previous, fmt.Errorf("failed to commit alert status: %w", err)
	}
	return previous, nil
}

// AlertCounts returns the number of alerts per status. Every status is present.
func (db *DB) AlertCounts(ctx context.Context) (map[models.AlertStatus]int, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT status, COUNT(*) FROM security_alerts GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts by status: %w", err)
	}
	defer rows.Close()

	counts := map[models.AlertStatus]int{
		models.AlertStatusOpen:          0,
		models.AlertStatusInvestigating: 0,
		models.AlertStatusClosed:        0,
	}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan alert count: %w", err)
		}
		counts[models.AlertStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alert counts: %w", err)
	}
	return counts, nil
}
