// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package detection

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/authsentry/internal/config"
	"github.com/tomtom215/authsentry/internal/models"
)

// WebhookNotifier posts alerts to a generic webhook endpoint.
type WebhookNotifier struct {
	webhookURL  string
	headers     map[string]string
	minSeverity models.Severity
	client      *http.Client
	enabled     bool
	mu          sync.RWMutex

	// Rate limiting
	lastSent  time.Time
	rateLimit time.Duration
}

// WebhookPayload is the JSON payload sent to the webhook endpoint.
type WebhookPayload struct {
	Alert     *models.SecurityAlert `json:"alert"`
	EventType string                `json:"event_type"` // security_alert
	Timestamp time.Time             `json:"timestamp"`
	Source    string                `json:"source"` // authsentry
}

// NewWebhookNotifier creates a webhook notifier. It is enabled whenever a
// URL is configured.
func NewWebhookNotifier(cfg *config.NotifyConfig) *WebhookNotifier {
	rateLimit := cfg.RateLimit
	if rateLimit == 0 {
		rateLimit = 500 * time.Millisecond
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	minSeverity := models.Severity(cfg.MinSeverity)
	if !minSeverity.Valid() {
		minSeverity = models.SeverityHigh
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	return &WebhookNotifier{
		webhookURL:  cfg.WebhookURL,
		headers:     headers,
		minSeverity: minSeverity,
		enabled:     cfg.WebhookURL != "",
		rateLimit:   rateLimit,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the notifier name.
func (n *WebhookNotifier) Name() string {
	return "webhook"
}

// Enabled returns whether this notifier is enabled.
func (n *WebhookNotifier) Enabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.enabled && n.webhookURL != ""
}

// SetEnabled enables or disables the notifier.
func (n *WebhookNotifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// Send delivers an alert to the webhook endpoint. Alerts below the minimum
// severity are dropped silently.
func (n *WebhookNotifier) Send(ctx context.Context, alert *models.SecurityAlert) error {
	n.mu.Lock()
	if !n.enabled || n.webhookURL == "" || alert.Severity.Rank() < n.minSeverity.Rank() {
		n.mu.Unlock()
		return nil
	}
	webhookURL := n.webhookURL
	headers := make(map[string]string, len(n.headers))
	for k, v := range n.headers {
		headers[k] = v
	}
	// Reserve the next send slot so concurrent senders queue up behind each other.
	wait := time.Until(n.lastSent.Add(n.rateLimit))
	if wait < 0 {
		wait = 0
	}
	n.lastSent = time.Now().Add(wait)
	n.mu.Unlock()

	if wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	payload := WebhookPayload{
		Alert:     alert,
		EventType: "security_alert",
		Timestamp: time.Now().UTC(),
		Source:    "authsentry",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
