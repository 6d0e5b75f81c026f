// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package reputation

import (
	"context"
	"errors"

	"github.com/goccy/go-json"
)

var (
	// ErrNoAPIKey is returned by RealProvider when no credential is configured.
	ErrNoAPIKey = errors.New("reputation provider api key not configured")

	// ErrRateLimited is returned when the provider answers HTTP 429.
	ErrRateLimited = errors.New("reputation provider rate limited")

	// ErrProviderStatus is returned for any other non-2xx provider response.
	ErrProviderStatus = errors.New("reputation provider returned unexpected status")

	// ErrInvalidIP is returned when the input is not an IP address.
	ErrInvalidIP = errors.New("invalid ip address")
)

// Report is a provider's assessment of one address.
type Report struct {
	IPAddress            string
	AbuseConfidenceScore int
	CountryCode          string
	UsageType            string
	IsWhitelisted        bool
	TotalReports         int
	Raw                  json.RawMessage
}

// Provider resolves an IP address to a Report.
type Provider interface {
	// Name returns the provider name for logging and metrics.
	Name() string

	// Available reports whether the provider is configured and may be called.
	Available() bool

	// Check returns the assessment for ip.
	Check(ctx context.Context, ip string) (*Report, error)
}

// circuitGate is implemented by providers that can reject a call locally,
// without any network traffic.
type circuitGate interface {
	CircuitOpen() bool
}

// rejectsLocally reports whether p would refuse the next call without
// contacting the network.
func rejectsLocally(p Provider) bool {
	gate, ok := p.(circuitGate)
	return ok && gate.CircuitOpen()
}
