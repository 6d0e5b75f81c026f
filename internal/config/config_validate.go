// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateDatabase,
		c.validateDetection,
		c.validateReputation,
		c.validateNotify,
		c.validateMessaging,
		c.validateAPI,
		c.validateLogging,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("DUCKDB_PATH is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS must not be negative")
	}
	return nil
}

// validateDetection validates rule parameters. Disabled rules are still
// validated so that enabling one at runtime cannot expose a broken config.
func (c *Config) validateDetection() error {
	d := c.Detection
	if d.Interval < 0 {
		return fmt.Errorf("DETECTION_INTERVAL must not be negative")
	}
	if d.IngestDebounce < 0 {
		return fmt.Errorf("DETECTION_INGEST_DEBOUNCE must not be negative")
	}

	if d.BruteForce.Threshold < 1 {
		return fmt.Errorf("BRUTE_FORCE_THRESHOLD must be at least 1")
	}
	if d.BruteForce.Window <= 0 {
		return fmt.Errorf("BRUTE_FORCE_WINDOW must be positive")
	}
	if len(d.BruteForce.FailureTokens) == 0 {
		return fmt.Errorf("BRUTE_FORCE_FAILURE_TOKENS must not be empty")
	}

	if d.OffHours.StartHour < 0 || d.OffHours.StartHour > 23 {
		return fmt.Errorf("OFF_HOURS_START must be between 0 and 23")
	}
	if d.OffHours.EndHour < 1 || d.OffHours.EndHour > 24 {
		return fmt.Errorf("OFF_HOURS_END must be between 1 and 24")
	}
	if d.OffHours.StartHour >= d.OffHours.EndHour {
		return fmt.Errorf("OFF_HOURS_START must be before OFF_HOURS_END")
	}
	if d.OffHours.Lookback <= 0 {
		return fmt.Errorf("OFF_HOURS_LOOKBACK must be positive")
	}
	if len(d.OffHours.SuccessTokens) == 0 {
		return fmt.Errorf("OFF_HOURS_SUCCESS_TOKENS must not be empty")
	}

	if d.GeoAnomaly.Lookback <= 0 {
		return fmt.Errorf("GEO_ANOMALY_LOOKBACK must be positive")
	}

	return c.validateHighRisk()
}

func (c *Config) validateHighRisk() error {
	h := c.Detection.HighRiskIP
	if h.Lookback <= 0 {
		return fmt.Errorf("HIGH_RISK_LOOKBACK must be positive")
	}
	if h.MinScore < 0 || h.MinScore > 100 {
		return fmt.Errorf("HIGH_RISK_MIN_SCORE must be between 0 and 100")
	}
	if h.CriticalScore < h.MinScore || h.CriticalScore > 100 {
		return fmt.Errorf("HIGH_RISK_CRITICAL_SCORE must be between HIGH_RISK_MIN_SCORE and 100")
	}
	return nil
}

func (c *Config) validateReputation() error {
	r := c.Reputation
	if err := validateProviderURL(r.BaseURL, "ABUSEIPDB_BASE_URL"); err != nil {
		return err
	}
	if r.TTL <= 0 {
		return fmt.Errorf("REPUTATION_TTL must be positive")
	}
	if r.PacingDelay < 0 {
		return fmt.Errorf("REPUTATION_PACING_DELAY must not be negative")
	}
	if r.Timeout <= 0 {
		return fmt.Errorf("REPUTATION_TIMEOUT must be positive")
	}
	if r.EvictInterval < 0 {
		return fmt.Errorf("REPUTATION_EVICT_INTERVAL must not be negative")
	}
	if r.BreakerFailureRatio <= 0 || r.BreakerFailureRatio > 1 {
		return fmt.Errorf("reputation.breaker_failure_ratio must be in (0, 1]")
	}
	return nil
}

// validSeverities mirrors the alert severity vocabulary.
var validSeverities = map[string]bool{
	"low":      true,
	"medium":   true,
	"high":     true,
	"critical": true,
}

func (c *Config) validateNotify() error {
	n := c.Notify
	if n.WebhookURL == "" {
		return nil
	}
	if err := validateProviderURL(n.WebhookURL, "NOTIFY_WEBHOOK_URL"); err != nil {
		return err
	}
	if !validSeverities[n.MinSeverity] {
		return fmt.Errorf("NOTIFY_MIN_SEVERITY must be one of: low, medium, high, critical")
	}
	if n.RateLimit < 0 {
		return fmt.Errorf("NOTIFY_RATE_LIMIT must not be negative")
	}
	return nil
}

func (c *Config) validateMessaging() error {
	m := c.Messaging
	if m.NATSEmbedded {
		if m.NATSPort < 1 || m.NATSPort > 65535 {
			return fmt.Errorf("NATS_PORT must be between 1 and 65535")
		}
		if m.NATSPort == c.Server.Port && m.NATSHost == c.Server.Host {
			return fmt.Errorf("NATS_PORT must differ from HTTP_PORT")
		}
		return nil
	}
	if m.NATSURL == "" {
		return nil
	}
	u, err := url.Parse(m.NATSURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("NATS_URL must be a valid URL: %q", m.NATSURL)
	}
	switch u.Scheme {
	case "nats", "tls", "ws", "wss":
		return nil
	}
	return fmt.Errorf("NATS_URL must use nats, tls, ws or wss scheme")
}

func (c *Config) validateAPI() error {
	a := c.API
	if a.DefaultPageSize < 1 {
		return fmt.Errorf("API_DEFAULT_PAGE_SIZE must be at least 1")
	}
	if a.MaxPageSize < a.DefaultPageSize {
		return fmt.Errorf("API_MAX_PAGE_SIZE must be >= API_DEFAULT_PAGE_SIZE")
	}
	if a.MaxIngestBatch < 1 {
		return fmt.Errorf("API_MAX_INGEST_BATCH must be at least 1")
	}
	if !a.RateLimitDisabled && (a.RateLimitReqs < 1 || a.RateLimitWindow <= 0) {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	}
	for _, origin := range a.CORSOrigins {
		if origin == "*" && len(a.CORSOrigins) > 1 {
			return fmt.Errorf("CORS_ORIGINS must not mix '*' with explicit origins")
		}
	}
	return nil
}

// validLogLevels defines the allowed log levels
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats defines the allowed log formats
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// validateProviderURL validates an HTTP/HTTPS API base URL. Paths are allowed
// (the provider is versioned by path), query parameters are not.
func validateProviderURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}

	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}

	return nil
}
