// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package detection

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/authsentry/internal/logging"
	"github.com/tomtom215/authsentry/internal/metrics"
	"github.com/tomtom215/authsentry/internal/models"
)

// notifyTimeout bounds the delivery of one alert to one notifier.
const notifyTimeout = 30 * time.Second

// Engine runs the detection rules in their fixed order and persists alerts.
// Overlapping runs are allowed; the alert store decides whether a repeated
// pattern is inserted again.
type Engine struct {
	rules     []Rule
	alerts    AlertSink
	notifiers []Notifier
	audit     *logging.AuditLogger
	now       func() time.Time

	mu           sync.RWMutex
	lastRun      *RunSummary
	metricsStore *EngineMetrics

	notifyWG sync.WaitGroup
}

// RunSummary is the outcome of one RunAll.
type RunSummary struct {
	RunID      string                                       `json:"run_id"`
	StartedAt  time.Time                                    `json:"started_at"`
	FinishedAt time.Time                                    `json:"finished_at"`
	Results    map[models.AlertType][]*models.SecurityAlert `json:"results"`
	Counts     map[models.AlertType]int                     `json:"counts"`
	Total      int                                          `json:"total"`
}

// EngineMetrics tracks detection engine performance.
type EngineMetrics struct {
	Runs            int64                             `json:"runs"`
	FailedRuns      int64                             `json:"failed_runs"`
	AlertsGenerated int64                             `json:"alerts_generated"`
	LastRunAt       time.Time                         `json:"last_run_at"`
	LastDurationMs  int64                             `json:"last_duration_ms"`
	RuleMetrics     map[models.AlertType]*RuleMetrics `json:"rules"`
	mu              sync.RWMutex
}

// RuleMetrics tracks individual rule performance.
type RuleMetrics struct {
	Evaluations     int64      `json:"evaluations"`
	AlertsGenerated int64      `json:"alerts_generated"`
	Errors          int64      `json:"errors"`
	LastDurationMs  int64      `json:"last_duration_ms"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineClock overrides the clock used as "now" for each run.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithNotifier registers a notifier for persisted alerts.
func WithNotifier(n Notifier) EngineOption {
	return func(e *Engine) {
		if n != nil {
			e.notifiers = append(e.notifiers, n)
		}
	}
}

// WithEngineAuditLogger overrides the audit logger.
func WithEngineAuditLogger(audit *logging.AuditLogger) EngineOption {
	return func(e *Engine) {
		if audit != nil {
			e.audit = audit
		}
	}
}

// NewEngine creates an engine over rules. Rules are ordered by alert type:
// brute force, off-hours, geo anomaly, high-risk IP.
func NewEngine(alerts AlertSink, rules []Rule, opts ...EngineOption) *Engine {
	ordered := make([]Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ruleOrder(ordered[i].Type()) < ruleOrder(ordered[j].Type())
	})

	e := &Engine{
		rules:  ordered,
		alerts: alerts,
		audit:  logging.NewAuditLogger(),
		now:    time.Now,
		metricsStore: &EngineMetrics{
			RuleMetrics: make(map[models.AlertType]*RuleMetrics),
		},
	}
	for _, r := range ordered {
		e.metricsStore.RuleMetrics[r.Type()] = &RuleMetrics{}
		logging.Info().Str("rule", string(r.Type())).Bool("enabled", r.Enabled()).Msg("registered detection rule")
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func ruleOrder(t models.AlertType) int {
	for i, known := range models.AlertTypes {
		if t == known {
			return i
		}
	}
	return len(models.AlertTypes)
}

// RunAll evaluates every enabled rule sequentially and persists each rule's
// alerts before moving to the next. An error from a rule that is not best
// effort, or any store failure, aborts the run; alerts already persisted by
// earlier rules are kept.
func (e *Engine) RunAll(ctx context.Context) (*RunSummary, error) {
	runID := uuid.NewString()
	ctx = logging.ContextWithRunID(ctx, runID)
	log := logging.Ctx(ctx)

	start := time.Now()
	now := e.now()
	summary := &RunSummary{
		RunID:     runID,
		StartedAt: now,
		Results:   make(map[models.AlertType][]*models.SecurityAlert, len(models.AlertTypes)),
		Counts:    make(map[models.AlertType]int, len(models.AlertTypes)),
	}
	for _, t := range models.AlertTypes {
		summary.Results[t] = []*models.SecurityAlert{}
		summary.Counts[t] = 0
	}

	for _, rule := range e.rules {
		ruleType := rule.Type()
		if !rule.Enabled() {
			log.Debug().Str("rule", string(ruleType)).Msg("detection rule disabled, skipping")
			continue
		}

		alerts, err := e.evaluate(ctx, rule, now)
		if err != nil {
			if isBestEffort(rule) {
				log.Warn().Err(err).Str("rule", string(ruleType)).Msg("best-effort detection rule failed, continuing")
				continue
			}
			return nil, e.fail(start, fmt.Errorf("detection rule %s failed: %w", ruleType, err))
		}

		for _, a := range alerts {
			a.RunID = runID
		}
		if len(alerts) > 0 {
			if err := e.alerts.SaveAlerts(ctx, alerts); err != nil {
				return nil, e.fail(start, fmt.Errorf("failed to save %s alerts: %w", ruleType, err))
			}
		}

		e.recordAlerts(ruleType, alerts)
		if alerts != nil {
			summary.Results[ruleType] = alerts
		}
		summary.Counts[ruleType] = len(alerts)
		summary.Total += len(alerts)
		e.notify(ctx, alerts)
	}

	summary.FinishedAt = summary.StartedAt.Add(time.Since(start))
	e.finishRun(start, summary)

	log.Info().
		Int("total", summary.Total).
		Int(string(models.AlertTypeBruteForce), summary.Counts[models.AlertTypeBruteForce]).
		Int(string(models.AlertTypeOffHoursAccess), summary.Counts[models.AlertTypeOffHoursAccess]).
		Int(string(models.AlertTypeGeoAnomaly), summary.Counts[models.AlertTypeGeoAnomaly]).
		Int(string(models.AlertTypeHighRiskIP), summary.Counts[models.AlertTypeHighRiskIP]).
		Dur("duration", time.Since(start)).
		Msg("detection run completed")

	return summary, nil
}

func isBestEffort(rule Rule) bool {
	be, ok := rule.(BestEffort)
	return ok && be.BestEffort()
}

// evaluate executes one rule and updates its metrics.
func (e *Engine) evaluate(ctx context.Context, rule Rule, now time.Time) ([]*models.SecurityAlert, error) {
	ruleType := rule.Type()
	start := time.Now()
	alerts, err := rule.Evaluate(ctx, now)
	elapsed := time.Since(start)

	metrics.RecordRuleEvaluation(string(ruleType), elapsed, err)

	e.metricsStore.mu.Lock()
	defer e.metricsStore.mu.Unlock()
	rm, ok := e.metricsStore.RuleMetrics[ruleType]
	if !ok {
		rm = &RuleMetrics{}
		e.metricsStore.RuleMetrics[ruleType] = rm
	}
	rm.Evaluations++
	rm.LastDurationMs = elapsed.Milliseconds()
	if err != nil {
		rm.Errors++
		return nil, err
	}
	return alerts, nil
}

// recordAlerts updates counters and writes the audit trail for persisted alerts.
func (e *Engine) recordAlerts(ruleType models.AlertType, alerts []*models.SecurityAlert) {
	if len(alerts) == 0 {
		return
	}
	for _, a := range alerts {
		metrics.RecordAlert(string(a.AlertType), string(a.Severity))
		e.audit.AlertRaised(a.ID, string(a.AlertType), string(a.Severity), a.AffectedEntity, a.SourceIP, a.EventCount)
	}

	now := time.Now()
	e.metricsStore.mu.Lock()
	defer e.metricsStore.mu.Unlock()
	e.metricsStore.AlertsGenerated += int64(len(alerts))
	if rm, ok := e.metricsStore.RuleMetrics[ruleType]; ok {
		rm.AlertsGenerated += int64(len(alerts))
		rm.LastTriggeredAt = &now
	}
}

// fail records a failed run and returns err.
func (e *Engine) fail(start time.Time, err error) error {
	elapsed := time.Since(start)
	metrics.RecordDetectionRun(elapsed, err)

	e.metricsStore.mu.Lock()
	e.metricsStore.Runs++
	e.metricsStore.FailedRuns++
	e.metricsStore.LastRunAt = time.Now()
	e.metricsStore.LastDurationMs = elapsed.Milliseconds()
	e.metricsStore.mu.Unlock()

	logging.Error().Err(err).Msg("detection run failed")
	return err
}

func (e *Engine) finishRun(start time.Time, summary *RunSummary) {
	elapsed := time.Since(start)
	metrics.RecordDetectionRun(elapsed, nil)

	e.metricsStore.mu.Lock()
	e.metricsStore.Runs++
	e.metricsStore.LastRunAt = time.Now()
	e.metricsStore.LastDurationMs = elapsed.Milliseconds()
	e.metricsStore.mu.Unlock()

	e.mu.Lock()
	e.lastRun = summary
	e.mu.Unlock()
}

// notify sends alerts to all enabled notifiers in the background. Delivery
// outlives the run's context but is bounded by notifyTimeout.
func (e *Engine) notify(ctx context.Context, alerts []*models.SecurityAlert) {
	if len(alerts) == 0 || len(e.notifiers) == 0 {
		return
	}

	notifiers := make([]Notifier, 0, len(e.notifiers))
	for _, n := range e.notifiers {
		if n.Enabled() {
			notifiers = append(notifiers, n)
		}
	}
	if len(notifiers) == 0 {
		return
	}

	base := context.WithoutCancel(ctx)
	for _, alert := range alerts {
		for _, notifier := range notifiers {
			e.notifyWG.Add(1)
			go func(n Notifier, a *models.SecurityAlert) {
				defer e.notifyWG.Done()
				sendCtx, cancel := context.WithTimeout(base, notifyTimeout)
				defer cancel()
				if err := n.Send(sendCtx, a); err != nil {
					logging.Error().Err(err).Str("notifier", n.Name()).Int64("alert_id", a.ID).Msg("failed to send alert")
				}
			}(notifier, alert)
		}
	}
}

// Rules returns the registered rules in evaluation order.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Rule returns the rule producing alertType.
func (e *Engine) Rule(alertType models.AlertType) (Rule, bool) {
	for _, r := range e.rules {
		if r.Type() == alertType {
			return r, true
		}
	}
	return nil, false
}

// SetRuleEnabled enables or disables a specific rule.
func (e *Engine) SetRuleEnabled(alertType models.AlertType, enabled bool) error {
	r, ok := e.Rule(alertType)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, alertType)
	}
	r.SetEnabled(enabled)
	return nil
}

// LastRun returns the most recent successful run, or nil.
func (e *Engine) LastRun() *RunSummary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastRun
}

// Metrics returns a copy of the engine metrics.
func (e *Engine) Metrics() EngineMetrics {
	e.metricsStore.mu.RLock()
	defer e.metricsStore.mu.RUnlock()

	ruleMetrics := make(map[models.AlertType]*RuleMetrics, len(e.metricsStore.RuleMetrics))
	for k, v := range e.metricsStore.RuleMetrics {
		rm := *v
		if v.LastTriggeredAt != nil {
			ts := *v.LastTriggeredAt
			rm.LastTriggeredAt = &ts
		}
		ruleMetrics[k] = &rm
	}

	return EngineMetrics{
		Runs:            e.metricsStore.Runs,
		FailedRuns:      e.metricsStore.FailedRuns,
		AlertsGenerated: e.metricsStore.AlertsGenerated,
		LastRunAt:       e.metricsStore.LastRunAt,
		LastDurationMs:  e.metricsStore.LastDurationMs,
		RuleMetrics:     ruleMetrics,
	}
}

// Close waits for in-flight notifications.
func (e *Engine) Close() error {
	e.notifyWG.Wait()
	return nil
}
