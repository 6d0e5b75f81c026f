// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package eventprocessor

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
)

func natsBusConfig() BusConfig {
	cfg := DefaultBusConfig()
	cfg.NATS.Embedded = true
	cfg.NATS.Port = -1
	cfg.NATS.CloseTimeout = time.Second
	return cfg
}

func TestNATSConfig_Enabled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  NATSConfig
		want bool
	}{
		{name: "defaults", cfg: DefaultNATSConfig(), want: false},
		{name: "url", cfg: NATSConfig{URL: "nats://broker:4222"}, want: true},
		{name: "embedded", cfg: NATSConfig{Embedded: true}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Enabled(); got != tt.want {
				t.Errorf("Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEmbeddedServer_Lifecycle(t *testing.T) {
	t.Parallel()

	srv, err := NewEmbeddedServer("127.0.0.1", -1)
	if err != nil {
		t.Fatalf("NewEmbeddedServer() error = %v", err)
	}
	if !srv.IsRunning() {
		t.Error("IsRunning() = false after start")
	}
	if srv.ClientURL() == "" {
		t.Error("ClientURL() is empty")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if srv.IsRunning() {
		t.Error("IsRunning() = true after shutdown")
	}
}

// TestBus_NATSRoundTrip publishes over an embedded NATS server. Core NATS
// only delivers to subscriptions the server already knows about, so the
// test republishes until the first message arrives.
func TestBus_NATSRoundTrip(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t, natsBusConfig())
	if bus.Transport() != TransportNATS {
		t.Fatalf("Transport() = %q, want %q", bus.Transport(), TransportNATS)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	messages, err := bus.Subscriber().Subscribe(ctx, TopicEventsAppended)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	var msg *message.Message
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(10 * time.Second)
	for msg == nil {
		if err := bus.PublishAppended(ctx, validEvent()); err != nil {
			t.Fatalf("PublishAppended() error = %v", err)
		}
		select {
		case msg = <-messages:
		case <-ticker.C:
		case <-deadline:
			t.Fatal("timed out waiting for NATS delivery")
		}
	}
	msg.Ack()

	got, err := Unmarshal(msg.Payload)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.BatchID != "batch-1" || msg.Metadata.Get("batch_id") != "batch-1" {
		t.Errorf("message = %+v metadata=%v", got, msg.Metadata)
	}
}
