// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package detection

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tomtom215/authsentry/internal/models"
)

// ErrRuleNotFound is returned when a rule type is not registered with the engine.
var ErrRuleNotFound = errors.New("detection rule not found")

// Rule is a single detector. Evaluate scans current store state and returns
// the alerts it found; it never persists them itself.
type Rule interface {
	// Type returns the alert type this rule produces.
	Type() models.AlertType

	// Evaluate runs the rule as of now.
	Evaluate(ctx context.Context, now time.Time) ([]*models.SecurityAlert, error)

	// Enabled returns whether this rule is enabled.
	Enabled() bool

	// SetEnabled enables or disables the rule.
	SetEnabled(enabled bool)
}

// BestEffort is implemented by rules whose errors must not abort a run.
type BestEffort interface {
	BestEffort() bool
}

// EventSource is the read side of the event store used by the rules.
type EventSource interface {
	QueryEvents(ctx context.Context, q models.EventQuery) ([]*models.SecurityEvent, error)
	SourceIPActivity(ctx context.Context, ip string, since time.Time) (*models.IPActivity, error)
	DistinctSourceIPs(ctx context.Context, since time.Time) ([]string, error)
}

// AlertSink persists alerts. Implementations assign ID, CreatedAt and the
// initial status.
type AlertSink interface {
	SaveAlerts(ctx context.Context, alerts []*models.SecurityAlert) error
}

// ReputationResolver resolves addresses to reputation records.
type ReputationResolver interface {
	BatchLookup(ctx context.Context, ips []string) (map[string]*models.IPReputation, error)
}

// Notifier delivers persisted alerts to an external channel.
type Notifier interface {
	Name() string
	Enabled() bool
	Send(ctx context.Context, alert *models.SecurityAlert) error
}

// BruteForceConfig configures the brute force rule.
type BruteForceConfig struct {
	// Threshold is the failure count at which a group alerts.
	Threshold int `json:"threshold"`

	// Window is the trailing window scanned on each run.
	Window time.Duration `json:"window"`

	// FailureTokens are matched case-insensitively as substrings of the status.
	FailureTokens []string `json:"failure_tokens"`
}

// DefaultBruteForceConfig returns sensible defaults.
func DefaultBruteForceConfig() BruteForceConfig {
	return BruteForceConfig{
		Threshold:     5,
		Window:        300 * time.Second,
		FailureTokens: append([]string(nil), models.FailureStatusTokens...),
	}
}

// OffHoursConfig configures the off-hours access rule.
type OffHoursConfig struct {
	// Lookback is the trailing window scanned on each run.
	Lookback time.Duration `json:"lookback"`

	// StartHour and EndHour bound business hours as [StartHour, EndHour).
	StartHour int `json:"start_hour"`
	EndHour   int `json:"end_hour"`

	// SuccessTokens are matched case-insensitively as substrings of the status.
	SuccessTokens []string `json:"success_tokens"`
}

// DefaultOffHoursConfig returns sensible defaults.
func DefaultOffHoursConfig() OffHoursConfig {
	return OffHoursConfig{
		Lookback:      24 * time.Hour,
		StartHour:     9,
		EndHour:       18,
		SuccessTokens: []string{"success", "accepted"},
	}
}

// GeoAnomalyConfig configures the suspicious address range rule.
type GeoAnomalyConfig struct {
	Lookback time.Duration `json:"lookback"`

	// Prefixes are plain string prefixes, e.g. "10.0.0.".
	Prefixes []string `json:"prefixes"`
}

// DefaultGeoAnomalyConfig returns sensible defaults.
func DefaultGeoAnomalyConfig() GeoAnomalyConfig {
	return GeoAnomalyConfig{
		Lookback: 24 * time.Hour,
		Prefixes: []string{"10.0.0.", "192.168.", "0.0.0."},
	}
}

// HighRiskIPConfig configures the reputation-backed rule.
type HighRiskIPConfig struct {
	Lookback time.Duration `json:"lookback"`

	// MinScore is the lowest abuse confidence score that alerts.
	MinScore int `json:"min_score"`

	// CriticalScore and above alert as critical, below as high.
	CriticalScore int `json:"critical_score"`
}

// DefaultHighRiskIPConfig returns sensible defaults.
func DefaultHighRiskIPConfig() HighRiskIPConfig {
	return HighRiskIPConfig{
		Lookback:      24 * time.Hour,
		MinScore:      50,
		CriticalScore: 75,
	}
}

// toggle holds the enabled flag shared by every rule.
type toggle struct {
	mu      sync.RWMutex
	enabled bool
}

// Enabled returns whether the rule is enabled.
func (t *toggle) Enabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// SetEnabled enables or disables the rule.
func (t *toggle) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}
