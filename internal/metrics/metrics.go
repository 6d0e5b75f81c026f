// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Detection Metrics
	DetectionRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authsentry_detection_runs_total",
			Help: "Total number of detection runs by outcome",
		},
		[]string{"outcome"}, // "success", "failed"
	)

	DetectionRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "authsentry_detection_run_duration_seconds",
			Help:    "Duration of a full detection run in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	DetectionRuleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authsentry_detection_rule_duration_seconds",
			Help:    "Duration of a single rule evaluation in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"rule"},
	)

	DetectionRuleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authsentry_detection_rule_errors_total",
			Help: "Total number of rule evaluation errors",
		},
		[]string{"rule"},
	)

	AlertsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authsentry_alerts_emitted_total",
			Help: "Total number of alerts persisted by detection runs",
		},
		[]string{"alert_type", "severity"},
	)

	DetectionLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "authsentry_detection_last_success_timestamp",
			Help: "Unix timestamp of the last successful detection run",
		},
	)

	// Reputation Metrics
	ReputationLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authsentry_reputation_lookups_total",
			Help: "Total number of reputation lookups by result",
		},
		[]string{"result"}, // "hit", "provider", "fallback", "private"
	)

	ReputationProviderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "authsentry_reputation_provider_duration_seconds",
			Help:    "Reputation provider request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	ReputationProviderErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authsentry_reputation_provider_errors_total",
			Help: "Total number of reputation provider failures by reason",
		},
		[]string{"reason"},
	)

	ReputationEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authsentry_reputation_evictions_total",
			Help: "Total number of stale reputation records evicted",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Ingestion Metrics
	EventsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authsentry_events_ingested_total",
			Help: "Total number of security events appended to the store",
		},
	)

	IngestBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "authsentry_ingest_batch_size",
			Help:    "Number of events per ingestion batch",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000, 10000},
		},
	)

	IngestErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authsentry_ingest_errors_total",
			Help: "Total number of rejected ingestion batches",
		},
	)

	EventBusMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authsentry_eventbus_messages_total",
			Help: "Total number of event bus messages",
		},
		[]string{"topic", "direction"}, // direction: "published", "consumed"
	)

	// Alert Stream Metrics
	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "authsentry_websocket_clients",
			Help: "Current number of connected alert stream clients",
		},
	)

	WebSocketMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authsentry_websocket_messages_dropped_total",
			Help: "Alert stream messages dropped because a buffer was full",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordDetectionRun records the outcome and duration of a detection run.
func RecordDetectionRun(duration time.Duration, err error) {
	DetectionRunDuration.Observe(duration.Seconds())
	if err != nil {
		DetectionRuns.WithLabelValues("failed").Inc()
		return
	}
	DetectionRuns.WithLabelValues("success").Inc()
	DetectionLastSuccess.Set(float64(time.Now().Unix()))
}

// RecordRuleEvaluation records one rule evaluation.
func RecordRuleEvaluation(rule string, duration time.Duration, err error) {
	DetectionRuleDuration.WithLabelValues(rule).Observe(duration.Seconds())
	if err != nil {
		DetectionRuleErrors.WithLabelValues(rule).Inc()
	}
}

// RecordAlert records a persisted alert.
func RecordAlert(alertType, severity string) {
	AlertsEmitted.WithLabelValues(alertType, severity).Inc()
}

// RecordReputationLookup records how a reputation lookup was resolved.
func RecordReputationLookup(result string) {
	ReputationLookups.WithLabelValues(result).Inc()
}

// RecordProviderRequest records an upstream reputation request.
// reason is empty on success.
func RecordProviderRequest(duration time.Duration, reason string) {
	ReputationProviderDuration.Observe(duration.Seconds())
	if reason != "" {
		ReputationProviderErrors.WithLabelValues(reason).Inc()
	}
}

// RecordEviction records the number of records removed by an eviction sweep.
func RecordEviction(removed int) {
	ReputationEvictions.Add(float64(removed))
}

// RecordIngest records an ingestion batch.
func RecordIngest(batchSize int, err error) {
	if err != nil {
		IngestErrors.Inc()
		return
	}
	IngestBatchSize.Observe(float64(batchSize))
	EventsIngested.Add(float64(batchSize))
}

// RecordEventBus records an event bus message.
func RecordEventBus(topic, direction string) {
	EventBusMessages.WithLabelValues(topic, direction).Inc()
}

// SetWebSocketClients publishes the connected alert stream client count.
func SetWebSocketClients(n int) {
	WebSocketClients.Set(float64(n))
}

// RecordWebSocketDrop records a dropped alert stream message.
func RecordWebSocketDrop() {
	WebSocketMessagesDropped.Inc()
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// SetAppInfo publishes the build version.
func SetAppInfo(version, goVersion string) {
	AppInfo.WithLabelValues(version, goVersion).Set(1)
}
