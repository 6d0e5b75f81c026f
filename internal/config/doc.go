// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

/*
Package config provides layered configuration loading for AuthSentry.

Configuration is resolved in three layers, later layers overriding earlier ones:

 1. Built-in defaults (defaultConfig)
 2. Optional YAML file (CONFIG_PATH, ./config.yaml, /etc/authsentry/config.yaml)
 3. Environment variables mapped through envTransformFunc

The resulting Config is validated before it is returned.

# Environment Variables

Server:
  - HTTP_HOST, HTTP_PORT, HTTP_TIMEOUT, HTTP_SHUTDOWN_TIMEOUT

Database:
  - DUCKDB_PATH (default: /data/authsentry.duckdb)
  - DUCKDB_MAX_MEMORY, DUCKDB_THREADS

Detection:
  - DETECTION_INTERVAL: scheduled run interval, 0 disables (default: 5m)
  - DETECTION_INGEST_TRIGGER, DETECTION_INGEST_DEBOUNCE
  - DETECTION_DEDUP_ALERTS: upsert alerts by pattern key instead of always inserting
  - BRUTE_FORCE_THRESHOLD, BRUTE_FORCE_WINDOW, BRUTE_FORCE_FAILURE_TOKENS
  - OFF_HOURS_START, OFF_HOURS_END, OFF_HOURS_LOOKBACK, OFF_HOURS_SUCCESS_TOKENS
  - GEO_ANOMALY_PREFIXES, GEO_ANOMALY_LOOKBACK
  - HIGH_RISK_MIN_SCORE, HIGH_RISK_CRITICAL_SCORE, HIGH_RISK_LOOKBACK

Reputation:
  - ABUSEIPDB_API_KEY: provider credential; when empty every lookup uses the fallback generator
  - ABUSEIPDB_BASE_URL, REPUTATION_TTL, REPUTATION_PACING_DELAY, REPUTATION_TIMEOUT
  - REPUTATION_EVICT_INTERVAL

API:
  - CORS_ORIGINS, RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, DISABLE_RATE_LIMIT
  - API_DEFAULT_PAGE_SIZE, API_MAX_PAGE_SIZE, API_MAX_INGEST_BATCH

Logging:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

# Usage

	cfg, err := config.Load()
	if err != nil {
	    logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
*/
package config
