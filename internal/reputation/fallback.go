// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package reputation

import (
	"context"
	"hash/fnv"
	"net/netip"

	"github.com/goccy/go-json"
)

// Usage types assigned by the fallback.
const (
	UsageTypeReserved = "Reserved"
	UsageTypeUnknown  = "Unknown"
)

// reservedPrefixes are never sent to the provider and always score 0.
var reservedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// IsReserved reports whether ip is a private, loopback, link-local or
// "this network" address. Unparseable input is not reserved.
func IsReserved(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range reservedPrefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// FallbackProvider synthesizes deterministic reputation records without
// network access. The same input always yields the same record.
type FallbackProvider struct{}

// NewFallbackProvider creates the fallback strategy.
func NewFallbackProvider() *FallbackProvider {
	return &FallbackProvider{}
}

// Name returns the provider name.
func (p *FallbackProvider) Name() string {
	return "fallback"
}

// Available is always true.
func (p *FallbackProvider) Available() bool {
	return true
}

// Check never fails.
func (p *FallbackProvider) Check(_ context.Context, ip string) (*Report, error) {
	return p.Synthesize(ip, ""), nil
}

// Synthesize builds the fallback record for ip. reason, when set, is recorded
// in the raw payload to explain why the provider was not used.
//
// Reserved addresses score 0 and are whitelisted. Everything else is banded
// by bandHash: > 200 scores 75..99, 101..200 scores 25..49, <= 100 scores 0..14.
func (p *FallbackProvider) Synthesize(ip, reason string) *Report {
	report := &Report{IPAddress: ip}

	if IsReserved(ip) {
		report.UsageType = UsageTypeReserved
		report.IsWhitelisted = true
	} else {
		report.AbuseConfidenceScore = FallbackScore(ip)
		report.TotalReports = report.AbuseConfidenceScore * 3 / 2
		report.UsageType = UsageTypeUnknown
	}

	raw := map[string]interface{}{
		"source": "fallback",
		"score":  report.AbuseConfidenceScore,
	}
	if reason != "" {
		raw["reason"] = reason
	}
	if encoded, err := json.Marshal(raw); err == nil {
		report.Raw = encoded
	}
	return report
}

// FallbackScore returns the synthetic score of a non-reserved address.
func FallbackScore(ip string) int {
	h := bandHash(ip)
	switch {
	case h > 200:
		return 75 + h%25
	case h > 100:
		return 25 + h%25
	default:
		return h % 15
	}
}

// bandHash maps an address into 0..255. IPv4 uses a fixed mix of the last
// octet; anything else hashes the whole string with FNV-1a.
func bandHash(ip string) int {
	if addr, err := netip.ParseAddr(ip); err == nil {
		addr = addr.Unmap()
		if addr.Is4() {
			octet := int(addr.As4()[3])
			return (octet*37 + 11) % 256
		}
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(ip))
	return int(h.Sum32() % 256)
}
