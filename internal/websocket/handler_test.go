// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/authsentry/internal/models"
)

func dial(t *testing.T, srv *httptest.Server, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	conn, resp, err := dialer.Dial(url, header)
	if conn != nil {
		t.Cleanup(func() { _ = conn.Close() })
	}
	return conn, resp, err
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var msg map[string]json.RawMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return msg
}

func TestHandler_StreamsAlerts(t *testing.T) {
	hub, _ := startHub(t)
	srv := httptest.NewServer(hub.Handler([]string{"https://soc.example.com"}))
	defer srv.Close()

	conn, _, err := dial(t, srv, "https://soc.example.com")
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	waitForClients(t, hub, 1)

	hub.BroadcastAlert(&models.SecurityAlert{ID: 11, AlertType: models.AlertTypeHighRiskIP, Severity: models.SeverityCritical})

	msg := readMessage(t, conn)
	if string(msg["type"]) != `"alert"` {
		t.Errorf("type = %s", msg["type"])
	}
	var alert models.SecurityAlert
	if err := json.Unmarshal(msg["data"], &alert); err != nil {
		t.Fatal(err)
	}
	if alert.ID != 11 || alert.Severity != models.SeverityCritical {
		t.Errorf("alert = %+v", alert)
	}
}

func TestHandler_PingPong(t *testing.T) {
	hub, _ := startHub(t)
	srv := httptest.NewServer(hub.Handler([]string{"*"}))
	defer srv.Close()

	conn, _, err := dial(t, srv, "https://anywhere.example")
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatal(err)
	}
	if msg := readMessage(t, conn); string(msg["type"]) != `"pong"` {
		t.Errorf("type = %s, want pong", msg["type"])
	}
}

func TestHandler_DisconnectUnregisters(t *testing.T) {
	hub, _ := startHub(t)
	srv := httptest.NewServer(hub.Handler([]string{"*"}))
	defer srv.Close()

	conn, _, err := dial(t, srv, "https://a.example")
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	waitForClients(t, hub, 1)

	_ = conn.Close()
	waitForClients(t, hub, 0)
}

func TestHandler_OriginChecks(t *testing.T) {
	hub, _ := startHub(t)

	restricted := httptest.NewServer(hub.Handler([]string{"https://soc.example.com"}))
	defer restricted.Close()
	sameHost := httptest.NewServer(hub.Handler(nil))
	defer sameHost.Close()

	tests := []struct {
		name   string
		srv    *httptest.Server
		origin string
		ok     bool
	}{
		{name: "missing origin", srv: restricted, origin: "", ok: false},
		{name: "foreign origin", srv: restricted, origin: "https://evil.example", ok: false},
		{name: "listed origin", srv: restricted, origin: "https://soc.example.com", ok: true},
		{name: "same host", srv: sameHost, origin: sameHost.URL, ok: true},
		{name: "other host", srv: sameHost, origin: "http://other.example", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := dial(t, tt.srv, tt.origin)
			if tt.ok {
				if err != nil {
					t.Fatalf("Dial() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Dial() succeeded, want rejection")
			}
			if resp == nil || resp.StatusCode != http.StatusForbidden {
				t.Errorf("response = %+v, want 403", resp)
			}
		})
	}
}

func TestHandler_HubStopped(t *testing.T) {
	hub, cancel := startHub(t)
	cancel()
	<-hub.stopped

	srv := httptest.NewServer(hub.Handler([]string{"*"}))
	defer srv.Close()

	conn, _, err := dial(t, srv, "https://a.example")
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseTryAgainLater) {
		t.Errorf("ReadMessage() error = %v, want close 1013", err)
	}
}
