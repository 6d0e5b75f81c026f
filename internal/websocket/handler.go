// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package websocket

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/authsentry/internal/logging"
)

// Handler upgrades requests to websocket connections and registers them
// with h.
//
// Origin checking: a request without an Origin header is rejected. An origin
// is accepted when allowedOrigins contains it or "*". With no allowed origins
// configured only same-host origins are accepted.
func (h *Hub) Handler(allowedOrigins []string) http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			return checkOrigin(r, allowedOrigins)
		},
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the HTTP error.
			logging.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
			return
		}

		client := NewClient(h, conn)
		if !h.Register(r.Context(), client) {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "alert stream unavailable"))
			_ = conn.Close()
			return
		}
		client.Start()
	})
}

func checkOrigin(r *http.Request, allowedOrigins []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("websocket connection rejected: missing Origin header")
		return false
	}

	if len(allowedOrigins) == 0 {
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}

	for _, allowed := range allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", logging.SanitizeLogValue(origin)).Msg("websocket connection rejected: origin not allowed")
	return false
}
