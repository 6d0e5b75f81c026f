// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

/*
Package metrics provides Prometheus metrics for AuthSentry.

Every collector is registered with the default registry through promauto and
exposed at /metrics by the API router:

	curl http://localhost:8087/metrics

# Available Metrics

Detection:
  - authsentry_detection_runs_total{outcome}: completed runs (success, failed)
  - authsentry_detection_run_duration_seconds: wall time of RunAll
  - authsentry_detection_rule_duration_seconds{rule}: per-rule evaluation time
  - authsentry_detection_rule_errors_total{rule}: rule failures (fatal or absorbed)
  - authsentry_alerts_emitted_total{alert_type,severity}: persisted alerts

Reputation:
  - authsentry_reputation_lookups_total{result}: hit, provider, fallback, private
  - authsentry_reputation_provider_duration_seconds: upstream request latency
  - authsentry_reputation_provider_errors_total{reason}: rate_limited, status, transport, breaker, no_api_key
  - authsentry_reputation_evictions_total: records removed by eviction sweeps

Circuit breaker:
  - circuit_breaker_state{name}: 0=closed, 1=half-open, 2=open
  - circuit_breaker_requests_total{name,result}
  - circuit_breaker_consecutive_failures{name}
  - circuit_breaker_state_transitions_total{name,from_state,to_state}

Ingestion and API:
  - authsentry_events_ingested_total, authsentry_ingest_batch_size
  - authsentry_eventbus_messages_total{topic,direction}
  - api_requests_total, api_request_duration_seconds, api_active_requests
*/
package metrics
