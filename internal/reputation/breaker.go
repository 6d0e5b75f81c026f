// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package reputation

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/authsentry/internal/config"
	"github.com/tomtom215/authsentry/internal/logging"
	"github.com/tomtom215/authsentry/internal/metrics"
)

// newCircuitBreaker builds the breaker guarding the provider.
// It opens once the failure ratio reaches BreakerFailureRatio over at least
// BreakerMinRequests requests, then waits BreakerTimeout before probing with
// up to BreakerMaxRequests half-open requests.
func newCircuitBreaker(name string, cfg *config.ReputationConfig) *gobreaker.CircuitBreaker[*Report] {
	minRequests := cfg.BreakerMinRequests
	if minRequests == 0 {
		minRequests = 5
	}
	failureRatio := cfg.BreakerFailureRatio
	if failureRatio <= 0 {
		failureRatio = 0.6
	}
	maxRequests := cfg.BreakerMaxRequests
	if maxRequests == 0 {
		maxRequests = 3
	}
	interval := cfg.BreakerInterval
	if interval <= 0 {
		interval = time.Minute
	}
	timeout := cfg.BreakerTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[*Report](gobreaker.Settings{
		Name:        name,
		MaxRequests: maxRequests,
		Interval:    interval,
		Timeout:     timeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := ratio >= failureRatio
			if shouldTrip {
				logging.Warn().
					Str("breaker", name).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", ratio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})
}

// executeWithBreaker runs fn through cb and records breaker metrics.
func executeWithBreaker(cb *gobreaker.CircuitBreaker[*Report], name string, fn func() (*Report, error)) (*Report, error) {
	result, err := cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(name, "rejected").Inc()
			logging.Debug().Str("breaker", name).Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(name, "failure").Inc()
			metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(float64(cb.Counts().ConsecutiveFailures))
		}
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
	return result, nil
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to string for logging
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// BreakerState returns the provider's circuit breaker state as a string.
func (p *RealProvider) BreakerState() string {
	return stateToString(p.cb.State())
}

// CircuitOpen reports whether the breaker is rejecting calls without
// contacting the provider.
func (p *RealProvider) CircuitOpen() bool {
	return p.cb.State() == gobreaker.StateOpen
}
