// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

// Package eventprocessor carries notifications between ingestion, detection
// and the alert stream over Watermill. The default transport is an
// in-process gochannel; setting a NATS URL, or enabling the embedded NATS
// server, moves the same topics onto core NATS.
//
// Architecture:
//
//	ingest.Service -> Bus.PublishAppended -> "events.appended"
//	                                              |
//	                                              v
//	                         Router (Recoverer, Retry) -> DetectionTrigger
//	                                                            |
//	                                                   debounce, Engine.RunAll
//	                                                            |
//	Engine notifiers -> AlertNotifier -> "alerts.created" -> websocket.Hub
//
// Batch notifications carry only metadata; the events themselves are read back
// from the event store by the rules. Delivery is best effort: neither
// transport persists messages, and a lost notification only delays detection
// until the next scheduled run.
package eventprocessor
