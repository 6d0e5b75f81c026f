// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/authsentry/config.yaml",
	"/etc/authsentry/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8087,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Path:      "/data/authsentry.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		Detection: DetectionConfig{
			Interval:       5 * time.Minute,
			IngestTrigger:  true,
			IngestDebounce: 5 * time.Second,
			DedupAlerts:    false, // every re-observation is alerted unless opted in
			BruteForce: BruteForceRuleConfig{
				Enabled:       true,
				Threshold:     5,
				Window:        300 * time.Second,
				FailureTokens: []string{"fail", "denied", "invalid"},
			},
			OffHours: OffHoursRuleConfig{
				Enabled:       true,
				Lookback:      24 * time.Hour,
				StartHour:     9,
				EndHour:       18,
				SuccessTokens: []string{"success", "accepted"},
			},
			GeoAnomaly: GeoAnomalyRuleConfig{
				Enabled:  true,
				Lookback: 24 * time.Hour,
				Prefixes: []string{"10.0.0.", "192.168.", "0.0.0."},
			},
			HighRiskIP: HighRiskIPRuleConfig{
				Enabled:       true,
				Lookback:      24 * time.Hour,
				MinScore:      50,
				CriticalScore: 75,
			},
		},
		Reputation: ReputationConfig{
			APIKey:              "",
			BaseURL:             "https://api.abuseipdb.com/api/v2",
			MaxAgeInDays:        90,
			Timeout:             10 * time.Second,
			TTL:                 7 * 24 * time.Hour,
			PacingDelay:         250 * time.Millisecond,
			EvictInterval:       24 * time.Hour,
			BreakerMaxRequests:  3,
			BreakerInterval:     time.Minute,
			BreakerTimeout:      2 * time.Minute,
			BreakerMinRequests:  5,
			BreakerFailureRatio: 0.6,
		},
		Notify: NotifyConfig{
			WebhookURL:  "",
			MinSeverity: "high",
			RateLimit:   500 * time.Millisecond,
			Timeout:     10 * time.Second,
		},
		Messaging: MessagingConfig{
			NATSURL:      "",
			NATSEmbedded: false,
			NATSHost:     "127.0.0.1",
			NATSPort:     4222,
			AlertStream:  true,
		},
		API: APIConfig{
			DefaultPageSize:   50,
			MaxPageSize:       500,
			MaxIngestBatch:    10000,
			CORSOrigins:       []string{},
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Default returns the built-in configuration without reading a file or the
// environment.
func Default() *Config {
	return defaultConfig()
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"detection.brute_force.failure_tokens",
	"detection.off_hours.success_tokens",
	"detection.geo_anomaly.prefixes",
	"api.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars arrive as strings while the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			// Prefixes like "10.0.0." are significant byte for byte; only surrounding spaces go.
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_timeout":          "server.timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",

	// Database
	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	// Detection
	"detection_interval":         "detection.interval",
	"detection_ingest_trigger":   "detection.ingest_trigger",
	"detection_ingest_debounce":  "detection.ingest_debounce",
	"detection_dedup_alerts":     "detection.dedup_alerts",
	"brute_force_enabled":        "detection.brute_force.enabled",
	"brute_force_threshold":      "detection.brute_force.threshold",
	"brute_force_window":         "detection.brute_force.window",
	"brute_force_failure_tokens": "detection.brute_force.failure_tokens",
	"off_hours_enabled":          "detection.off_hours.enabled",
	"off_hours_lookback":         "detection.off_hours.lookback",
	"off_hours_start":            "detection.off_hours.start_hour",
	"off_hours_end":              "detection.off_hours.end_hour",
	"off_hours_success_tokens":   "detection.off_hours.success_tokens",
	"geo_anomaly_enabled":        "detection.geo_anomaly.enabled",
	"geo_anomaly_lookback":       "detection.geo_anomaly.lookback",
	"geo_anomaly_prefixes":       "detection.geo_anomaly.prefixes",
	"high_risk_enabled":          "detection.high_risk_ip.enabled",
	"high_risk_lookback":         "detection.high_risk_ip.lookback",
	"high_risk_min_score":        "detection.high_risk_ip.min_score",
	"high_risk_critical_score":   "detection.high_risk_ip.critical_score",

	// Reputation
	"abuseipdb_api_key":          "reputation.api_key",
	"abuseipdb_base_url":         "reputation.base_url",
	"abuseipdb_max_age_days":     "reputation.max_age_days",
	"reputation_timeout":         "reputation.timeout",
	"reputation_ttl":             "reputation.ttl",
	"reputation_pacing_delay":    "reputation.pacing_delay",
	"reputation_evict_interval":  "reputation.evict_interval",
	"reputation_breaker_timeout": "reputation.breaker_timeout",

	// Notifications
	"notify_webhook_url":  "notify.webhook_url",
	"notify_min_severity": "notify.min_severity",
	"notify_rate_limit":   "notify.rate_limit",

	// Messaging
	"nats_url":         "messaging.nats_url",
	"nats_embedded":    "messaging.nats_embedded",
	"nats_host":        "messaging.nats_host",
	"nats_port":        "messaging.nats_port",
	"nats_queue_group": "messaging.nats_queue_group",
	"alert_stream":     "messaging.alert_stream",

	// API
	"cors_origins":          "api.cors_origins",
	"rate_limit_requests":   "api.rate_limit_requests",
	"rate_limit_window":     "api.rate_limit_window",
	"disable_rate_limit":    "api.rate_limit_disabled",
	"api_default_page_size": "api.default_page_size",
	"api_max_page_size":     "api.max_page_size",
	"api_max_ingest_batch":  "api.max_ingest_batch",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - DUCKDB_PATH -> database.path
//   - BRUTE_FORCE_THRESHOLD -> detection.brute_force.threshold
//   - ABUSEIPDB_API_KEY -> reputation.api_key
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}

	// Unmapped keys are skipped so unrelated environment variables
	// cannot pollute the configuration.
	return ""
}
