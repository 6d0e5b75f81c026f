// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package services

import (
	"context"
	"fmt"

	"github.com/thejerf/suture/v4"
)

// Runner is a component that blocks in Run until ctx is canceled.
//
// Satisfied by *eventprocessor.Router and *eventprocessor.DetectionTrigger.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerService supervises a Runner.
type RunnerService struct {
	runner Runner
	name   string
	once   bool
}

// NewRunnerService wraps runner. Runners are restarted by the supervisor
// when Run returns early with an error.
func NewRunnerService(name string, runner Runner) *RunnerService {
	return &RunnerService{runner: runner, name: name}
}

// NewOneShotRunnerService wraps a runner that cannot be started twice, such
// as a watermill router. An early exit removes it from the tree instead of
// restarting it.
func NewOneShotRunnerService(name string, runner Runner) *RunnerService {
	return &RunnerService{runner: runner, name: name, once: true}
}

// Serve implements suture.Service.
func (s *RunnerService) Serve(ctx context.Context) error {
	err := s.runner.Run(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if s.once {
		if err != nil {
			return fmt.Errorf("%s stopped: %w: %w", s.name, err, suture.ErrDoNotRestart)
		}
		return suture.ErrDoNotRestart
	}
	if err != nil {
		return fmt.Errorf("%s failed: %w", s.name, err)
	}
	return nil
}

// String implements fmt.Stringer.
func (s *RunnerService) String() string {
	return s.name
}
