// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package eventprocessor

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"
)

// NATSConfig configures the NATS transport.
type NATSConfig struct {
	// URL of an external NATS server. Ignored when Embedded is set.
	URL string

	// Embedded starts an in-process NATS server on Host:Port.
	Embedded bool
	Host     string
	Port     int

	// QueueGroup load-balances each topic across instances sharing the
	// group. Empty delivers every message to every instance.
	QueueGroup string

	MaxReconnects int
	ReconnectWait time.Duration
	CloseTimeout  time.Duration
}

// DefaultNATSConfig returns defaults. The transport stays disabled until a
// URL is set or Embedded is enabled.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		Host:          "127.0.0.1",
		Port:          4222,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		CloseTimeout:  10 * time.Second,
	}
}

// Enabled reports whether the NATS transport should be used.
func (c NATSConfig) Enabled() bool {
	return c.URL != "" || c.Embedded
}

// EmbeddedServer wraps an in-process NATS server for single-instance
// deployments that still want a network-reachable bus.
type EmbeddedServer struct {
	server    *server.Server
	clientURL string
}

// NewEmbeddedServer starts a NATS server and waits until it accepts
// connections. Port -1 picks a random free port.
func NewEmbeddedServer(host string, port int) (*EmbeddedServer, error) {
	opts := &server.Options{
		ServerName: "authsentry-bus",
		Host:       host,
		Port:       port,
		NoLog:      true,
		NoSigs:     true,
		MaxPayload: 8 * 1024 * 1024,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready within timeout")
	}

	return &EmbeddedServer{
		server:    ns,
		clientURL: ns.ClientURL(),
	}, nil
}

// ClientURL returns the URL clients should connect to.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// IsRunning reports whether the server is running.
func (s *EmbeddedServer) IsRunning() bool {
	return s.server.Running()
}

// Shutdown stops the server and waits for it to exit unless ctx is already done.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	s.server.Shutdown()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		s.server.WaitForShutdown()
		return nil
	}
}

func natsConnOptions(cfg NATSConfig, logger watermill.LoggerAdapter) []natsgo.Option {
	return []natsgo.Option{
		natsgo.Name("authsentry"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}
}

// newNATSPublisher publishes over core NATS. Bus messages are notifications
// that the store can always reproduce, so JetStream persistence is not used.
func newNATSPublisher(cfg NATSConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsConnOptions(cfg, logger),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}
	return pub, nil
}

func newNATSSubscriber(cfg NATSConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: 1,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsConnOptions(cfg, logger),
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create NATS subscriber: %w", err)
	}
	return sub, nil
}
