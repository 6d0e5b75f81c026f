// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

/*
Package websocket streams newly persisted alerts to connected operators.

A Hub fans messages out to every registered Client. Alerts reach the hub
through the event bus: the detection engine publishes each saved alert on
eventprocessor.TopicAlertsCreated and Hub.HandleAlertMessage consumes that
topic through the watermill router.

Message format (server to client):

	{"type": "alert", "data": {...SecurityAlert...}}

Clients may send {"type": "ping"} and receive {"type": "pong"}. A client
whose send buffer is full is disconnected rather than slowing the hub.

Usage:

	hub := websocket.NewHub()
	go hub.Run(ctx)
	mux.Handle("/api/v1/alerts/stream", hub.Handler(allowedOrigins))
*/
package websocket
