// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/authsentry/internal/eventprocessor"
	"github.com/tomtom215/authsentry/internal/logging"
	"github.com/tomtom215/authsentry/internal/metrics"
	"github.com/tomtom215/authsentry/internal/models"
)

// ErrBatchTooLarge is returned when a batch exceeds the configured maximum.
var ErrBatchTooLarge = errors.New("event batch too large")

// EventAppender persists a batch of events in one transaction.
type EventAppender interface {
	AppendEvents(ctx context.Context, events []*models.SecurityEvent) (int, error)
}

// BatchPublisher announces committed batches.
type BatchPublisher interface {
	PublishAppended(ctx context.Context, event *eventprocessor.EventsAppended) error
}

// Result describes one committed batch.
type Result struct {
	BatchID      string `json:"batch_id"`
	Inserted     int    `json:"inserted"`
	FirstEventID int64  `json:"first_event_id,omitempty"`
	LastEventID  int64  `json:"last_event_id,omitempty"`
}

// Stats holds runtime statistics for monitoring.
type Stats struct {
	Batches       int64 `json:"batches"`
	Events        int64 `json:"events"`
	Failures      int64 `json:"failures"`
	PublishErrors int64 `json:"publish_errors"`
}

// Service normalizes and stores event batches.
type Service struct {
	store     EventAppender
	publisher BatchPublisher
	now       func() time.Time
	maxBatch  int

	batches       atomic.Int64
	events        atomic.Int64
	failures      atomic.Int64
	publishErrors atomic.Int64
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher announces every committed batch through p.
func WithPublisher(p BatchPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithClock overrides the clock used for missing timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMaxBatchSize rejects batches larger than n. Zero means unlimited.
func WithMaxBatchSize(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxBatch = n
		}
	}
}

// NewService creates an ingest service writing to store.
func NewService(store EventAppender, opts ...Option) *Service {
	s := &Service{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest normalizes events and appends them as one atomic batch.
// source labels the origin of the batch (api, cli) on the bus.
func (s *Service) Ingest(ctx context.Context, events []*models.SecurityEvent, source string) (*Result, error) {
	batch := make([]*models.SecurityEvent, 0, len(events))
	for _, e := range events {
		if e != nil {
			batch = append(batch, e)
		}
	}

	result := &Result{BatchID: uuid.New().String()}
	if len(batch) == 0 {
		return result, nil
	}
	if s.maxBatch > 0 && len(batch) > s.maxBatch {
		return nil, fmt.Errorf("%w: %d events exceeds limit of %d", ErrBatchTooLarge, len(batch), s.maxBatch)
	}

	now := s.now()
	for _, e := range batch {
		Normalize(e, now)
	}

	inserted, err := s.store.AppendEvents(ctx, batch)
	metrics.RecordIngest(len(batch), err)
	if err != nil {
		s.failures.Add(1)
		return nil, fmt.Errorf("failed to append events: %w", err)
	}

	s.batches.Add(1)
	s.events.Add(int64(inserted))

	result.Inserted = inserted
	result.FirstEventID = batch[0].ID
	result.LastEventID = batch[len(batch)-1].ID

	logging.Ctx(ctx).Info().
		Str("batch_id", result.BatchID).
		Int("inserted", inserted).
		Str("source", source).
		Msg("Events ingested")

	s.announce(ctx, result, batch, source)
	return result, nil
}

// announce publishes the committed batch. The batch is already durable, so a
// publish failure is logged and counted but never returned.
func (s *Service) announce(ctx context.Context, result *Result, batch []*models.SecurityEvent, source string) {
	if s.publisher == nil || result.Inserted == 0 {
		return
	}

	oldest, newest := batch[0].Timestamp, batch[0].Timestamp
	for _, e := range batch[1:] {
		if e.Timestamp.Before(oldest) {
			oldest = e.Timestamp
		}
		if e.Timestamp.After(newest) {
			newest = e.Timestamp
		}
	}

	err := s.publisher.PublishAppended(ctx, &eventprocessor.EventsAppended{
		BatchID:      result.BatchID,
		Count:        result.Inserted,
		FirstEventID: result.FirstEventID,
		LastEventID:  result.LastEventID,
		OldestEvent:  oldest,
		NewestEvent:  newest,
		AppendedAt:   s.now(),
		Source:       source,
	})
	if err != nil {
		s.publishErrors.Add(1)
		logging.Ctx(ctx).Warn().Err(err).Str("batch_id", result.BatchID).Msg("Failed to announce ingested batch")
	}
}

// Stats returns a snapshot of ingest activity.
func (s *Service) Stats() Stats {
	return Stats{
		Batches:       s.batches.Load(),
		Events:        s.events.Load(),
		Failures:      s.failures.Load(),
		PublishErrors: s.publishErrors.Load(),
	}
}

// Normalize applies the tolerant defaults to e in place. Text is forced to
// valid UTF-8 so no single field can fail the batch at the store.
func Normalize(e *models.SecurityEvent, now time.Time) {
	e.ID = 0
	e.CreatedAt = time.Time{}
	e.EventType = cleanText(e.EventType)
	e.Username = cleanText(e.Username)
	e.SourceIP = cleanText(e.SourceIP)
	e.DestinationIP = cleanText(e.DestinationIP)
	e.Status = cleanText(e.Status)
	e.Message = strings.ToValidUTF8(e.Message, string(utf8.RuneError))
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}

	if len(e.RawPayload) > 0 && !utf8.Valid(e.RawPayload) {
		// Invalid bytes can only sit inside string literals, so replacing
		// them keeps the document well formed.
		e.RawPayload = bytes.ToValidUTF8(e.RawPayload, []byte(string(utf8.RuneError)))
	}

	switch {
	case len(e.RawPayload) == 0:
		raw, err := json.Marshal(e)
		if err != nil {
			raw = []byte("{}")
		}
		e.RawPayload = raw
	case !json.Valid(e.RawPayload):
		// Keep the original bytes as a JSON string.
		raw, err := json.Marshal(string(e.RawPayload))
		if err != nil {
			raw = []byte("{}")
		}
		e.RawPayload = raw
	}
}

func cleanText(s string) string {
	return strings.TrimSpace(strings.ToValidUTF8(s, string(utf8.RuneError)))
}
