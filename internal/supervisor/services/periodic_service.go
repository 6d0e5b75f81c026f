// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package services

import (
	"context"
	"time"

	"github.com/tomtom215/authsentry/internal/logging"
)

// PeriodicService runs a task on a fixed interval.
//
// A failing task is logged and retried on the next tick rather than
// returned, so one bad run never puts the layer into suture backoff.
//
//	svc := services.NewPeriodicService("detection-scheduler", time.Minute,
//		func(ctx context.Context) error { _, err := engine.RunAll(ctx); return err },
//		services.RunImmediately())
type PeriodicService struct {
	name        string
	interval    time.Duration
	task        func(ctx context.Context) error
	immediately bool
	timeout     time.Duration
}

// PeriodicOption configures a PeriodicService.
type PeriodicOption func(*PeriodicService)

// RunImmediately runs the task once as soon as the service starts.
func RunImmediately() PeriodicOption {
	return func(s *PeriodicService) {
		s.immediately = true
	}
}

// WithTaskTimeout bounds each task invocation.
func WithTaskTimeout(d time.Duration) PeriodicOption {
	return func(s *PeriodicService) {
		s.timeout = d
	}
}

// NewPeriodicService creates a service that calls task every interval.
// A non-positive interval defaults to one minute.
func NewPeriodicService(name string, interval time.Duration, task func(ctx context.Context) error, opts ...PeriodicOption) *PeriodicService {
	if interval <= 0 {
		interval = time.Minute
	}
	s := &PeriodicService{
		name:     name,
		interval: interval,
		task:     task,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve implements suture.Service.
func (s *PeriodicService) Serve(ctx context.Context) error {
	if s.immediately {
		s.runOnce(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *PeriodicService) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := s.task(ctx); err != nil {
		logging.Ctx(ctx).Error().Err(err).
			Str("service", s.name).
			Dur("duration", time.Since(start)).
			Msg("Periodic task failed")
		return
	}
	logging.Ctx(ctx).Debug().
		Str("service", s.name).
		Dur("duration", time.Since(start)).
		Msg("Periodic task completed")
}

// String implements fmt.Stringer.
func (s *PeriodicService) String() string {
	return s.name
}
