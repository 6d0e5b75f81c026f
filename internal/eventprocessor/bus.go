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
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/tomtom215/authsentry/internal/logging"
	"github.com/tomtom215/authsentry/internal/metrics"
	"github.com/tomtom215/authsentry/internal/models"
)

// Transport names reported by Bus.Transport.
const (
	TransportGoChannel = "gochannel"
	TransportNATS      = "nats"
)

// BusConfig configures the event bus.
type BusConfig struct {
	// OutputChannelBuffer is the per-subscriber channel buffer of the
	// in-process transport.
	OutputChannelBuffer int64

	// NATS selects the NATS transport when a URL is set or the embedded
	// server is enabled.
	NATS NATSConfig
}

// DefaultBusConfig returns production defaults.
func DefaultBusConfig() BusConfig {
	return BusConfig{
		OutputChannelBuffer: 256,
		NATS:                DefaultNATSConfig(),
	}
}

// Bus publishes and subscribes to bus topics over gochannel or NATS.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	server     *EmbeddedServer
	logger     watermill.LoggerAdapter
	transport  string
}

// NewBus creates the bus. A nil logger uses the global zerolog logger.
func NewBus(cfg BusConfig, logger watermill.LoggerAdapter) (*Bus, error) {
	if logger == nil {
		logger = NewZerologAdapter(nil)
	}

	if !cfg.NATS.Enabled() {
		pubsub := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: cfg.OutputChannelBuffer,
		}, logger)
		return &Bus{
			publisher:  pubsub,
			subscriber: pubsub,
			logger:     logger,
			transport:  TransportGoChannel,
		}, nil
	}

	natsCfg := cfg.NATS
	bus := &Bus{logger: logger, transport: TransportNATS}
	if natsCfg.Embedded {
		server, err := NewEmbeddedServer(natsCfg.Host, natsCfg.Port)
		if err != nil {
			return nil, err
		}
		bus.server = server
		natsCfg.URL = server.ClientURL()
	}

	pub, err := newNATSPublisher(natsCfg, logger)
	if err != nil {
		bus.shutdownServer()
		return nil, err
	}
	sub, err := newNATSSubscriber(natsCfg, logger)
	if err != nil {
		_ = pub.Close()
		bus.shutdownServer()
		return nil, err
	}
	bus.publisher = pub
	bus.subscriber = sub

	logging.Info().
		Str("url", natsCfg.URL).
		Bool("embedded", natsCfg.Embedded).
		Msg("Event bus connected to NATS")
	return bus, nil
}

// Publisher returns the bus publisher.
func (b *Bus) Publisher() message.Publisher {
	return b.publisher
}

// Subscriber returns the bus subscriber.
func (b *Bus) Subscriber() message.Subscriber {
	return b.subscriber
}

// Logger returns the Watermill logger used by the bus.
func (b *Bus) Logger() watermill.LoggerAdapter {
	return b.logger
}

// Transport reports which transport carries messages.
func (b *Bus) Transport() string {
	return b.transport
}

// PublishAppended publishes a batch notification on TopicEventsAppended.
func (b *Bus) PublishAppended(ctx context.Context, event *EventsAppended) error {
	payload, err := Marshal(event)
	if err != nil {
		return err
	}

	msg := b.newMessage(ctx, payload)
	msg.Metadata.Set("batch_id", event.BatchID)
	return b.publish(TopicEventsAppended, msg)
}

// PublishAlert publishes a persisted alert on TopicAlertsCreated.
func (b *Bus) PublishAlert(ctx context.Context, alert *models.SecurityAlert) error {
	payload, err := MarshalAlert(alert)
	if err != nil {
		return err
	}

	msg := b.newMessage(ctx, payload)
	msg.Metadata.Set("alert_type", string(alert.AlertType))
	msg.Metadata.Set("severity", string(alert.Severity))
	return b.publish(TopicAlertsCreated, msg)
}

func (b *Bus) newMessage(ctx context.Context, payload []byte) *message.Message {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set("correlation_id", id)
	}
	return msg
}

func (b *Bus) publish(topic string, msg *message.Message) error {
	if err := b.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}
	metrics.RecordEventBus(topic, "published")
	return nil
}

// Close closes the publisher, the subscriber and every subscription, then
// stops the embedded NATS server if one was started.
func (b *Bus) Close() error {
	if b.transport == TransportGoChannel {
		return b.publisher.Close()
	}

	var firstErr error
	if err := b.publisher.Close(); err != nil {
		firstErr = fmt.Errorf("close publisher: %w", err)
	}
	if err := b.subscriber.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close subscriber: %w", err)
	}
	b.shutdownServer()
	return firstErr
}

func (b *Bus) shutdownServer() {
	if b.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.server.Shutdown(ctx); err != nil {
		logging.Warn().Err(err).Msg("Embedded NATS server shutdown incomplete")
	}
	b.server = nil
}
