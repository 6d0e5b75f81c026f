// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package eventprocessor

import "errors"

// ErrNilRunner is returned when a trigger is created without a detection runner.
var ErrNilRunner = errors.New("detection runner cannot be nil")

// ErrNilPublisher is returned when a notifier is created without a bus.
var ErrNilPublisher = errors.New("publisher cannot be nil")

// ErrInvalidMessage is returned when a bus message cannot be decoded.
var ErrInvalidMessage = errors.New("invalid event bus message")
