// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package eventprocessor

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"

	"github.com/tomtom215/authsentry/internal/logging"
)

// ZerologAdapter implements watermill.LoggerAdapter on top of zerolog.
type ZerologAdapter struct {
	logger zerolog.Logger
	fields watermill.LogFields
}

// NewZerologAdapter wraps logger. A nil logger uses the global logger.
func NewZerologAdapter(logger *zerolog.Logger) *ZerologAdapter {
	l := logging.Logger()
	if logger != nil {
		l = *logger
	}
	return &ZerologAdapter{logger: l.With().Str("component", "watermill").Logger()}
}

// Error logs at error level.
func (a *ZerologAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.event(a.logger.Error().Err(err), fields).Msg(msg)
}

// Info logs at info level.
func (a *ZerologAdapter) Info(msg string, fields watermill.LogFields) {
	a.event(a.logger.Info(), fields).Msg(msg)
}

// Debug logs at debug level.
func (a *ZerologAdapter) Debug(msg string, fields watermill.LogFields) {
	a.event(a.logger.Debug(), fields).Msg(msg)
}

// Trace logs at trace level.
func (a *ZerologAdapter) Trace(msg string, fields watermill.LogFields) {
	a.event(a.logger.Trace(), fields).Msg(msg)
}

// With returns an adapter that adds fields to every entry.
func (a *ZerologAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &ZerologAdapter{logger: a.logger, fields: a.fields.Add(fields)}
}

func (a *ZerologAdapter) event(e *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	for k, v := range a.fields {
		e = e.Interface(k, v)
	}
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	return e
}
