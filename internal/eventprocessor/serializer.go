// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package eventprocessor

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/authsentry/internal/models"
)

// Marshal validates and encodes a batch notification.
func Marshal(event *EventsAppended) ([]byte, error) {
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// Unmarshal decodes and validates a batch notification.
func Unmarshal(data []byte) (*EventsAppended, error) {
	var event EventsAppended
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	return &event, nil
}

// MarshalAlert encodes a persisted alert. Alerts without an ID have not been
// stored and are rejected.
func MarshalAlert(alert *models.SecurityAlert) ([]byte, error) {
	if alert == nil || alert.ID == 0 {
		return nil, fmt.Errorf("%w: alert must be persisted before publishing", ErrInvalidMessage)
	}
	data, err := json.Marshal(alert)
	if err != nil {
		return nil, fmt.Errorf("marshal alert: %w", err)
	}
	return data, nil
}
