// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "empty database path",
			mutate:  func(c *Config) { c.Database.Path = " " },
			wantErr: "DUCKDB_PATH",
		},
		{
			name:    "negative interval",
			mutate:  func(c *Config) { c.Detection.Interval = -time.Second },
			wantErr: "DETECTION_INTERVAL",
		},
		{
			name:    "zero brute force window",
			mutate:  func(c *Config) { c.Detection.BruteForce.Window = 0 },
			wantErr: "BRUTE_FORCE_WINDOW",
		},
		{
			name:    "empty failure vocabulary",
			mutate:  func(c *Config) { c.Detection.BruteForce.FailureTokens = nil },
			wantErr: "BRUTE_FORCE_FAILURE_TOKENS",
		},
		{
			name:    "end hour past midnight",
			mutate:  func(c *Config) { c.Detection.OffHours.EndHour = 25 },
			wantErr: "OFF_HOURS_END",
		},
		{
			name:    "min score out of range",
			mutate:  func(c *Config) { c.Detection.HighRiskIP.MinScore = 101 },
			wantErr: "HIGH_RISK_MIN_SCORE",
		},
		{
			name:    "zero ttl",
			mutate:  func(c *Config) { c.Reputation.TTL = 0 },
			wantErr: "REPUTATION_TTL",
		},
		{
			name:    "provider url with query",
			mutate:  func(c *Config) { c.Reputation.BaseURL = "https://api.example.com/v2?key=x" },
			wantErr: "query parameters",
		},
		{
			name: "webhook with unknown severity",
			mutate: func(c *Config) {
				c.Notify.WebhookURL = "https://hooks.example.com/soc"
				c.Notify.MinSeverity = "urgent"
			},
			wantErr: "NOTIFY_MIN_SEVERITY",
		},
		{
			name:    "webhook with bad scheme",
			mutate:  func(c *Config) { c.Notify.WebhookURL = "ftp://hooks.example.com" },
			wantErr: "NOTIFY_WEBHOOK_URL",
		},
		{
			name: "embedded nats on the http port",
			mutate: func(c *Config) {
				c.Messaging.NATSEmbedded = true
				c.Messaging.NATSHost = c.Server.Host
				c.Messaging.NATSPort = c.Server.Port
			},
			wantErr: "NATS_PORT",
		},
		{
			name:    "embedded nats with bad port",
			mutate:  func(c *Config) { c.Messaging.NATSEmbedded = true; c.Messaging.NATSPort = 0 },
			wantErr: "NATS_PORT",
		},
		{
			name:    "nats url with http scheme",
			mutate:  func(c *Config) { c.Messaging.NATSURL = "http://broker:4222" },
			wantErr: "NATS_URL",
		},
		{
			name:   "external nats url",
			mutate: func(c *Config) { c.Messaging.NATSURL = "nats://broker:4222" },
		},
		{
			name:    "wildcard mixed with origins",
			mutate:  func(c *Config) { c.API.CORSOrigins = []string{"*", "https://soc.example.com"} },
			wantErr: "CORS_ORIGINS",
		},
		{
			name:    "max page below default",
			mutate:  func(c *Config) { c.API.MaxPageSize = 10 },
			wantErr: "API_MAX_PAGE_SIZE",
		},
		{
			name: "rate limit ignored when disabled",
			mutate: func(c *Config) {
				c.API.RateLimitDisabled = true
				c.API.RateLimitReqs = 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}
