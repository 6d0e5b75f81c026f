// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package reputation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/authsentry/internal/config"
	"github.com/tomtom215/authsentry/internal/metrics"
)

const (
	defaultBaseURL      = "https://api.abuseipdb.com/api/v2"
	defaultMaxAgeInDays = 90
	defaultTimeout      = 10 * time.Second

	// maxResponseBytes bounds the provider response body.
	maxResponseBytes = 1 << 20
)

// RealProvider queries the AbuseIPDB v2 check endpoint.
// Rate limit: the free tier allows 1,000 checks per day.
type RealProvider struct {
	client       *http.Client
	apiKey       string
	baseURL      string
	maxAgeInDays int
	cb           *gobreaker.CircuitBreaker[*Report]
	breakerName  string
}

// abuseIPDBResponse is the subset of the check response we use.
// isWhitelisted is null for addresses AbuseIPDB has no opinion on.
type abuseIPDBResponse struct {
	Data struct {
		IPAddress            string `json:"ipAddress"`
		IsWhitelisted        *bool  `json:"isWhitelisted"`
		AbuseConfidenceScore int    `json:"abuseConfidenceScore"`
		CountryCode          string `json:"countryCode"`
		UsageType            string `json:"usageType"`
		TotalReports         int    `json:"totalReports"`
	} `json:"data"`
}

// NewRealProvider creates an AbuseIPDB provider from configuration.
func NewRealProvider(cfg *config.ReputationConfig) *RealProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	maxAge := cfg.MaxAgeInDays
	if maxAge <= 0 {
		maxAge = defaultMaxAgeInDays
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	name := "abuseipdb"
	return &RealProvider{
		client:       &http.Client{Timeout: timeout},
		apiKey:       cfg.APIKey,
		baseURL:      baseURL,
		maxAgeInDays: maxAge,
		cb:           newCircuitBreaker(name, cfg),
		breakerName:  name,
	}
}

// Name returns the provider name.
func (p *RealProvider) Name() string {
	return p.breakerName
}

// Available returns true when an API key is configured.
func (p *RealProvider) Available() bool {
	return p.apiKey != ""
}

// Check queries AbuseIPDB for ip with circuit breaker protection.
func (p *RealProvider) Check(ctx context.Context, ip string) (*Report, error) {
	if !p.Available() {
		return nil, ErrNoAPIKey
	}
	if _, err := netip.ParseAddr(ip); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidIP, ip)
	}

	start := time.Now()
	report, err := executeWithBreaker(p.cb, p.breakerName, func() (*Report, error) {
		return p.query(ctx, ip)
	})
	metrics.RecordProviderRequest(time.Since(start), ErrorReason(err))
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (p *RealProvider) query(ctx context.Context, ip string) (*Report, error) {
	params := url.Values{}
	params.Set("ipAddress", ip)
	params.Set("maxAgeInDays", strconv.Itoa(p.maxAgeInDays))
	endpoint := p.baseURL + "/check?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Key", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reputation request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read reputation response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: %d", ErrProviderStatus, resp.StatusCode)
	}

	var parsed abuseIPDBResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode reputation response: %w", err)
	}

	report := &Report{
		IPAddress:            ip,
		AbuseConfidenceScore: clampScore(parsed.Data.AbuseConfidenceScore),
		CountryCode:          parsed.Data.CountryCode,
		UsageType:            parsed.Data.UsageType,
		TotalReports:         parsed.Data.TotalReports,
		Raw:                  json.RawMessage(body),
	}
	if parsed.Data.IsWhitelisted != nil {
		report.IsWhitelisted = *parsed.Data.IsWhitelisted
	}
	return report, nil
}

func clampScore(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}

// ErrorReason classifies a provider error for metrics and audit logs.
// Returns "" for a nil error.
func ErrorReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoAPIKey):
		return "no_api_key"
	case errors.Is(err, ErrInvalidIP):
		return "invalid_ip"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrProviderStatus):
		return "status"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "breaker"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "transport"
	}
}
