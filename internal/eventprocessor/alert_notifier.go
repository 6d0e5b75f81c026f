// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package eventprocessor

import (
	"context"

	"github.com/tomtom215/authsentry/internal/models"
)

// AlertNotifier forwards persisted alerts onto the bus. It satisfies
// detection.Notifier.
type AlertNotifier struct {
	bus *Bus
}

// NewAlertNotifier creates a notifier publishing on bus.
func NewAlertNotifier(bus *Bus) (*AlertNotifier, error) {
	if bus == nil {
		return nil, ErrNilPublisher
	}
	return &AlertNotifier{bus: bus}, nil
}

// Name identifies the notifier in logs.
func (n *AlertNotifier) Name() string {
	return "event-bus"
}

// Enabled always reports true; a notifier only exists when the bus does.
func (n *AlertNotifier) Enabled() bool {
	return true
}

// Send publishes alert on TopicAlertsCreated.
func (n *AlertNotifier) Send(ctx context.Context, alert *models.SecurityAlert) error {
	return n.bus.PublishAlert(ctx, alert)
}
