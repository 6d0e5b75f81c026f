// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package eventprocessor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/authsentry/internal/detection"
	"github.com/tomtom215/authsentry/internal/logging"
	"github.com/tomtom215/authsentry/internal/metrics"
)

// DetectionRunner runs every enabled detection rule once.
type DetectionRunner interface {
	RunAll(ctx context.Context) (*detection.RunSummary, error)
}

// TriggerConfig configures the detection trigger.
type TriggerConfig struct {
	// Debounce is how long the trigger waits after the first pending batch
	// before running, so bursts of ingest batches collapse into one run.
	Debounce time.Duration
}

// DefaultTriggerConfig returns production defaults.
func DefaultTriggerConfig() TriggerConfig {
	return TriggerConfig{Debounce: 2 * time.Second}
}

// TriggerStats reports trigger activity.
type TriggerStats struct {
	BatchesReceived int64     `json:"batches_received"`
	EventsReceived  int64     `json:"events_received"`
	Runs            int64     `json:"runs"`
	FailedRuns      int64     `json:"failed_runs"`
	DroppedMessages int64     `json:"dropped_messages"`
	LastRunAt       time.Time `json:"last_run_at,omitempty"`
}

// DetectionTrigger runs detection after new events are appended.
// Handle records pending batches; Run coalesces them into RunAll calls.
type DetectionTrigger struct {
	runner   DetectionRunner
	debounce time.Duration
	signal   chan struct{}

	mu      sync.Mutex
	pending int
	stats   TriggerStats
}

// NewDetectionTrigger creates a trigger for runner.
func NewDetectionTrigger(runner DetectionRunner, cfg TriggerConfig) (*DetectionTrigger, error) {
	if runner == nil {
		return nil, ErrNilRunner
	}
	if cfg.Debounce < 0 {
		cfg.Debounce = 0
	}
	return &DetectionTrigger{
		runner:   runner,
		debounce: cfg.Debounce,
		signal:   make(chan struct{}, 1),
	}, nil
}

// Handle is a Watermill consumer handler for TopicEventsAppended.
// Malformed payloads are acknowledged and dropped since redelivery cannot fix them.
func (t *DetectionTrigger) Handle(msg *message.Message) error {
	event, err := Unmarshal(msg.Payload)
	if err != nil {
		logging.Warn().Err(err).Str("message_id", msg.UUID).Msg("Dropping malformed events.appended message")
		t.mu.Lock()
		t.stats.DroppedMessages++
		t.mu.Unlock()
		metrics.RecordEventBus(TopicEventsAppended, "dropped")
		return nil
	}
	metrics.RecordEventBus(TopicEventsAppended, "consumed")

	t.mu.Lock()
	t.pending += event.Count
	t.stats.BatchesReceived++
	t.stats.EventsReceived += int64(event.Count)
	t.mu.Unlock()

	select {
	case t.signal <- struct{}{}:
	default:
	}
	return nil
}

// Run waits for pending batches and runs detection until ctx is canceled.
func (t *DetectionTrigger) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.signal:
		}

		if t.debounce > 0 {
			timer := time.NewTimer(t.debounce)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		t.runPending(ctx)
	}
}

func (t *DetectionTrigger) runPending(ctx context.Context) {
	t.mu.Lock()
	pending := t.pending
	t.pending = 0
	t.mu.Unlock()
	if pending == 0 {
		return
	}

	// Batches arriving during the debounce are already counted in pending.
	select {
	case <-t.signal:
	default:
	}

	summary, err := t.runner.RunAll(ctx)

	t.mu.Lock()
	t.stats.Runs++
	t.stats.LastRunAt = time.Now()
	if err != nil {
		t.stats.FailedRuns++
	}
	t.mu.Unlock()

	switch {
	case err != nil && errors.Is(err, context.Canceled):
		logging.Debug().Msg("Triggered detection run canceled")
	case err != nil:
		logging.Error().Err(err).Int("pending_events", pending).Msg("Triggered detection run failed")
	default:
		logging.Info().
			Str("run_id", summary.RunID).
			Int("pending_events", pending).
			Int("alerts", summary.Total).
			Msg("Triggered detection run completed")
	}
}

// Stats returns a snapshot of trigger activity.
func (t *DetectionTrigger) Stats() TriggerStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// Pending returns the number of events not yet covered by a run.
func (t *DetectionTrigger) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}
