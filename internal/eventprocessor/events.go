// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package eventprocessor

import (
	"fmt"
	"time"
)

// Bus topics
const (
	// TopicEventsAppended is published after every committed ingest batch.
	TopicEventsAppended = "events.appended"

	// TopicAlertsCreated carries each alert after it has been persisted.
	TopicAlertsCreated = "alerts.created"
)

// EventsAppended describes one committed ingest batch.
type EventsAppended struct {
	BatchID      string    `json:"batch_id"`
	Count        int       `json:"count"`
	FirstEventID int64     `json:"first_event_id,omitempty"`
	LastEventID  int64     `json:"last_event_id,omitempty"`
	OldestEvent  time.Time `json:"oldest_event"`
	NewestEvent  time.Time `json:"newest_event"`
	AppendedAt   time.Time `json:"appended_at"`
	Source       string    `json:"source,omitempty"` // api, cli
}

// Validate checks required fields.
func (e *EventsAppended) Validate() error {
	if e.BatchID == "" {
		return fmt.Errorf("%w: batch_id is required", ErrInvalidMessage)
	}
	if e.Count < 1 {
		return fmt.Errorf("%w: count must be positive", ErrInvalidMessage)
	}
	if !e.NewestEvent.IsZero() && e.NewestEvent.Before(e.OldestEvent) {
		return fmt.Errorf("%w: newest_event before oldest_event", ErrInvalidMessage)
	}
	return nil
}
