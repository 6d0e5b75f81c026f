// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/authsentry/internal/logging"
	"github.com/tomtom215/authsentry/internal/metrics"
	"github.com/tomtom215/authsentry/internal/models"
)

// Message types
const (
	MessageTypeAlert = "alert"
	MessageTypePing  = "ping"
	MessageTypePong  = "pong"
)

// broadcastBuffer bounds messages waiting for the hub loop.
const broadcastBuffer = 256

// Message is the envelope written to clients.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	stopped  chan struct{}
	stopOnce sync.Once
}

// NewHub creates a hub. Run must be called before clients can register.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan Message, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopped:    make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until ctx is canceled, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			n := h.ClientCount()
			h.closeAllClients()
			h.stopOnce.Do(func() { close(h.stopped) })
			logging.Info().
				Str("component", "websocket-hub").
				Int("clients_closed", n).
				Msg("websocket hub stopped")
			return ctx.Err()

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.SetWebSocketClients(n)
			logging.Info().Uint64("client_id", client.id).Int("total_clients", n).Msg("websocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.SetWebSocketClients(n)
			logging.Info().Uint64("client_id", client.id).Int("total_clients", n).Msg("websocket client disconnected")

		case msg := <-h.broadcast:
			h.broadcastToClients(msg)
		}
	}
}

// Register adds client to the hub. It returns false when the hub has stopped
// or ctx ends first.
func (h *Hub) Register(ctx context.Context, client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.stopped:
		return false
	case <-ctx.Done():
		return false
	}
}

// Unregister removes client from the hub. It is a no-op once the hub stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues msg for every client. It returns false when the broadcast
// buffer is full and the message was dropped.
func (h *Hub) Broadcast(msg Message) bool {
	select {
	case h.broadcast <- msg:
		return true
	default:
		metrics.RecordWebSocketDrop()
		logging.Warn().Str("message_type", msg.Type).Msg("broadcast channel full, dropping message")
		return false
	}
}

// BroadcastAlert queues alert for every client.
func (h *Hub) BroadcastAlert(alert *models.SecurityAlert) bool {
	return h.Broadcast(Message{Type: MessageTypeAlert, Data: alert})
}

// HandleAlertMessage is a watermill consumer handler for alert messages.
// Malformed payloads are logged and acknowledged so they are not redelivered.
func (h *Hub) HandleAlertMessage(msg *message.Message) error {
	var alert models.SecurityAlert
	if err := json.Unmarshal(msg.Payload, &alert); err != nil {
		logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping malformed alert message")
		return nil
	}
	if alert.ID == 0 {
		logging.Warn().Str("message_uuid", msg.UUID).Msg("Dropping alert message without id")
		return nil
	}
	h.BroadcastAlert(&alert)
	return nil
}

// broadcastToClients delivers msg in client-id order. Clients whose buffers
// are full are disconnected.
func (h *Hub) broadcastToClients(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.sortedClients() {
		select {
		case client.send <- msg:
		default:
			metrics.RecordWebSocketDrop()
			logging.Warn().Uint64("client_id", client.id).Msg("websocket client too slow, disconnecting")
			close(client.send)
			delete(h.clients, client)
		}
	}
	metrics.SetWebSocketClients(len(h.clients))
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.sortedClients() {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.SetWebSocketClients(0)
}

// sortedClients must be called with h.mu held.
func (h *Hub) sortedClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}
