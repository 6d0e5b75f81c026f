// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/authsentry/internal/app"
	"github.com/tomtom215/authsentry/internal/models"
	"github.com/tomtom215/authsentry/internal/validation"
)

type runFunc func(fn func(cmd *cobra.Command, args []string, a *app.App) error) func(*cobra.Command, []string) error

func newIngestCmd(run runFunc) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "ingest <file.json|->",
		Short: "Append a batch of normalized events",
		Long: "Reads a JSON array of events, or an object with an \"events\" array, " +
			"and appends the whole batch in one transaction.",
		Args: cobra.ExactArgs(1),
		RunE: run(func(cmd *cobra.Command, args []string, a *app.App) error {
			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			events, err := decodeEvents(data)
			if err != nil {
				return err
			}

			result, err := a.Ingest.Ingest(cmd.Context(), events, source)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		}),
	}
	cmd.Flags().StringVar(&source, "source", "cli", "source label recorded in logs and metrics")
	return cmd
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// decodeEvents accepts a bare array or {"events": [...]}.
func decodeEvents(data []byte) ([]*models.SecurityEvent, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("input is empty")
	}

	var events []*models.SecurityEvent
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil, fmt.Errorf("invalid event array: %w", err)
		}
		return events, nil
	}

	var wrapped struct {
		Events []*models.SecurityEvent `json:"events"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("invalid ingest document: %w", err)
	}
	return wrapped.Events, nil
}

func newRunCmd(run runFunc) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every enabled detection rule once",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, _ []string, a *app.App) error {
			summary, err := a.Engine.RunAll(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), summary)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "RULE\tALERTS\n")
			for _, rule := range a.Engine.Rules() {
				state := ""
				if !rule.Enabled() {
					state = " (disabled)"
				}
				fmt.Fprintf(w, "%s%s\t%d\n", rule.Type(), state, summary.Counts[rule.Type()])
			}
			fmt.Fprintf(w, "total\t%d\n", summary.Total)
			return w.Flush()
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full run summary as JSON")
	return cmd
}

func newAlertsCmd(run runFunc) *cobra.Command {
	var (
		statuses   []string
		severities []string
		types      []string
		limit      int
		offset     int
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List alerts, newest first",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, _ []string, a *app.App) error {
			filter := models.AlertFilter{Limit: limit, Offset: offset}
			for _, s := range statuses {
				if err := validation.ValidateVar("status", s, "alert_status"); err != nil {
					return err
				}
				filter.Statuses = append(filter.Statuses, models.AlertStatus(s))
			}
			for _, s := range severities {
				if err := validation.ValidateVar("severity", s, "severity"); err != nil {
					return err
				}
				filter.Severities = append(filter.Severities, models.Severity(s))
			}
			for _, s := range types {
				if err := validation.ValidateVar("type", s, "alert_type"); err != nil {
					return err
				}
				filter.AlertTypes = append(filter.AlertTypes, models.AlertType(s))
			}

			alerts, total, err := a.Store.ListAlerts(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), alerts)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "ID\tTYPE\tSEVERITY\tSTATUS\tENTITY\tSOURCE\tEVENTS\tLAST SEEN\n")
			for _, al := range alerts {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
					al.ID, al.AlertType, al.Severity, al.Status, al.AffectedEntity,
					dash(al.SourceIP), al.EventCount, al.LastSeen.UTC().Format(time.RFC3339))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d of %d alerts\n", len(alerts), total)
			return err
		}),
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "filter by status (open, investigating, closed)")
	cmd.Flags().StringSliceVar(&severities, "severity", nil, "filter by severity (low, medium, high, critical)")
	cmd.Flags().StringSliceVar(&types, "type", nil, "filter by alert type")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum alerts to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "alerts to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print alerts as JSON")

	cmd.AddCommand(newAlertUpdateCmd(run))
	return cmd
}

func newAlertUpdateCmd(run runFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "update <id> <status>",
		Short: "Move an alert forward (open -> investigating -> closed)",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(cmd *cobra.Command, args []string, a *app.App) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid alert id %q", args[0])
			}
			if err := validation.ValidateVar("status", args[1], "required,alert_status"); err != nil {
				return err
			}

			next := models.AlertStatus(args[1])
			previous, err := a.Store.UpdateAlertStatus(cmd.Context(), id, next)
			if err != nil {
				return err
			}
			a.Audit.AlertStatusChanged(id, string(previous), string(next))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "alert %d: %s -> %s\n", id, previous, next)
			return err
		}),
	}
}

func newLookupCmd(run runFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <ip> [ip...]",
		Short: "Resolve IP reputation through the cache",
		Long: "Looks up each address through the reputation cache. Several addresses " +
			"are resolved one after another with the configured pacing delay between provider calls.",
		Args: cobra.MinimumNArgs(1),
		RunE: run(func(cmd *cobra.Command, args []string, a *app.App) error {
			for _, ip := range args {
				if err := validation.ValidateVar("ip", ip, "ip"); err != nil {
					return err
				}
			}
			records, err := a.Cache.BatchLookup(cmd.Context(), args)
			if err != nil {
				return err
			}

			out := make([]*models.IPReputation, 0, len(records))
			seen := make(map[string]bool, len(args))
			for _, ip := range args {
				if rec, ok := records[ip]; ok && !seen[ip] {
					seen[ip] = true
					rec.RawPayload = nil
					out = append(out, rec)
				}
			}
			return writeJSON(cmd.OutOrStdout(), out)
		}),
	}
}

func newEvictCmd(run runFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "evict",
		Short: "Delete reputation records older than the cache TTL",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, _ []string, a *app.App) error {
			removed, err := a.Cache.EvictStale(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "evicted %d reputation records\n", removed)
			return err
		}),
	}
}

// storeStats is the output of the stats command.
type storeStats struct {
	Events     int                        `json:"events"`
	Alerts     map[models.AlertStatus]int `json:"alerts_by_status"`
	Reputation *models.ReputationStats    `json:"reputation"`
}

func newStatsCmd(run runFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize events, alerts and the reputation cache",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, _ []string, a *app.App) error {
			ctx := cmd.Context()

			events, err := a.Store.CountEvents(ctx)
			if err != nil {
				return err
			}
			alerts, err := a.Store.AlertCounts(ctx)
			if err != nil {
				return err
			}
			reputation, err := a.Cache.Stats(ctx)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), storeStats{Events: events, Alerts: alerts, Reputation: reputation})
		}),
	}
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
