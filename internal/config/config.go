// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Detection  DetectionConfig  `koanf:"detection"`
	Reputation ReputationConfig `koanf:"reputation"`
	Notify     NotifyConfig     `koanf:"notify"`
	Messaging  MessagingConfig  `koanf:"messaging"`
	API        APIConfig        `koanf:"api"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig holds DuckDB settings
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = use NumCPU
}

// DetectionConfig holds rule engine and scheduling settings.
type DetectionConfig struct {
	// Interval between scheduled runs. Zero disables the scheduler.
	Interval time.Duration `koanf:"interval"`

	// IngestTrigger runs detection after events are appended.
	IngestTrigger  bool          `koanf:"ingest_trigger"`
	IngestDebounce time.Duration `koanf:"ingest_debounce"`

	// DedupAlerts keys alerts by (alert_type, affected_entity, source_ip, first_seen)
	// and refreshes an existing alert instead of inserting a duplicate.
	DedupAlerts bool `koanf:"dedup_alerts"`

	BruteForce BruteForceRuleConfig `koanf:"brute_force"`
	OffHours   OffHoursRuleConfig   `koanf:"off_hours"`
	GeoAnomaly GeoAnomalyRuleConfig `koanf:"geo_anomaly"`
	HighRiskIP HighRiskIPRuleConfig `koanf:"high_risk_ip"`
}

// BruteForceRuleConfig configures the repeated-failure rule.
type BruteForceRuleConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Threshold     int           `koanf:"threshold"`
	Window        time.Duration `koanf:"window"`
	FailureTokens []string      `koanf:"failure_tokens"`
}

// OffHoursRuleConfig configures the outside-business-hours rule.
type OffHoursRuleConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Lookback      time.Duration `koanf:"lookback"`
	StartHour     int           `koanf:"start_hour"`
	EndHour       int           `koanf:"end_hour"`
	SuccessTokens []string      `koanf:"success_tokens"`
}

// GeoAnomalyRuleConfig configures the suspicious address range rule.
type GeoAnomalyRuleConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Lookback time.Duration `koanf:"lookback"`
	Prefixes []string      `koanf:"prefixes"`
}

// HighRiskIPRuleConfig configures the reputation-backed rule.
type HighRiskIPRuleConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Lookback      time.Duration `koanf:"lookback"`
	MinScore      int           `koanf:"min_score"`
	CriticalScore int           `koanf:"critical_score"`
}

// ReputationConfig holds reputation provider and cache settings.
type ReputationConfig struct {
	APIKey        string        `koanf:"api_key"`
	BaseURL       string        `koanf:"base_url"`
	MaxAgeInDays  int           `koanf:"max_age_days"`
	Timeout       time.Duration `koanf:"timeout"`
	TTL           time.Duration `koanf:"ttl"`
	PacingDelay   time.Duration `koanf:"pacing_delay"`
	EvictInterval time.Duration `koanf:"evict_interval"` // 0 disables the eviction sweep

	// Circuit breaker around the provider
	BreakerMaxRequests  uint32        `koanf:"breaker_max_requests"`
	BreakerInterval     time.Duration `koanf:"breaker_interval"`
	BreakerTimeout      time.Duration `koanf:"breaker_timeout"`
	BreakerMinRequests  uint32        `koanf:"breaker_min_requests"`
	BreakerFailureRatio float64       `koanf:"breaker_failure_ratio"`
}

// NotifyConfig holds outbound alert notification settings.
// An empty WebhookURL disables notifications.
type NotifyConfig struct {
	WebhookURL  string            `koanf:"webhook_url"`
	Headers     map[string]string `koanf:"headers"`
	MinSeverity string            `koanf:"min_severity"`
	RateLimit   time.Duration     `koanf:"rate_limit"`
	Timeout     time.Duration     `koanf:"timeout"`
}

// MessagingConfig holds event bus and alert stream settings.
// With no NATS URL and the embedded server off, the bus stays in-process.
type MessagingConfig struct {
	NATSURL      string `koanf:"nats_url"`
	NATSEmbedded bool   `koanf:"nats_embedded"`
	NATSHost     string `koanf:"nats_host"`
	NATSPort     int    `koanf:"nats_port"`

	// NATSQueueGroup shares bus topics between instances. Empty fans out.
	NATSQueueGroup string `koanf:"nats_queue_group"`

	// AlertStream enables the websocket alert stream.
	AlertStream bool `koanf:"alert_stream"`
}

// APIConfig holds HTTP API settings
type APIConfig struct {
	DefaultPageSize   int           `koanf:"default_page_size"`
	MaxPageSize       int           `koanf:"max_page_size"`
	MaxIngestBatch    int           `koanf:"max_ingest_batch"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from defaults, an optional config file and the environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
