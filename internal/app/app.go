// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/tomtom215/authsentry/internal/api"
	"github.com/tomtom215/authsentry/internal/config"
	"github.com/tomtom215/authsentry/internal/database"
	"github.com/tomtom215/authsentry/internal/detection"
	"github.com/tomtom215/authsentry/internal/eventprocessor"
	"github.com/tomtom215/authsentry/internal/ingest"
	"github.com/tomtom215/authsentry/internal/logging"
	"github.com/tomtom215/authsentry/internal/reputation"
	"github.com/tomtom215/authsentry/internal/supervisor"
	"github.com/tomtom215/authsentry/internal/supervisor/services"
	"github.com/tomtom215/authsentry/internal/websocket"
)

// App is the assembled component graph.
type App struct {
	Config   *config.Config
	Store    database.Store
	Provider *reputation.RealProvider
	Cache    *reputation.Cache
	Engine   *detection.Engine
	Ingest   *ingest.Service
	Bus      *eventprocessor.Bus
	Hub      *websocket.Hub
	Audit    *logging.AuditLogger

	notifier *detection.WebhookNotifier
	version  string
	clock    func() time.Time
}

// Option configures New.
type Option func(*options)

type options struct {
	store   database.Store
	clock   func() time.Time
	version string
	noBus   bool
}

// WithStore uses store instead of opening the configured DuckDB file.
func WithStore(store database.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithClock overrides "now" for the engine, the cache and ingest.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.clock = now
	}
}

// WithVersion sets the version reported by /health.
func WithVersion(version string) Option {
	return func(o *options) {
		o.version = version
	}
}

// WithoutEventBus skips the event bus, so ingest never triggers detection and
// no alert stream is served. The CLI uses this because it runs detection
// explicitly.
func WithoutEventBus() Option {
	return func(o *options) {
		o.noBus = true
	}
}

// New builds the component graph. On error nothing is left open.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	o := options{version: "dev"}
	for _, opt := range opts {
		opt(&o)
	}

	store := o.store
	if store == nil {
		db, err := database.New(&cfg.Database, database.WithAlertDedup(cfg.Detection.DedupAlerts))
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		store = db
	}

	var bus *eventprocessor.Bus
	if !o.noBus {
		var err error
		bus, err = eventprocessor.NewBus(BusConfig(&cfg.Messaging), nil)
		if err != nil {
			if o.store == nil {
				_ = store.Close()
			}
			return nil, fmt.Errorf("failed to create event bus: %w", err)
		}
	}

	audit := logging.NewAuditLogger()
	provider := reputation.NewRealProvider(&cfg.Reputation)

	cacheOpts := []reputation.CacheOption{
		reputation.WithTTL(cfg.Reputation.TTL),
		reputation.WithPacingDelay(cfg.Reputation.PacingDelay),
		reputation.WithThresholds(cfg.Detection.HighRiskIP.MinScore, cfg.Detection.HighRiskIP.CriticalScore),
		reputation.WithAuditLogger(audit),
	}
	if o.clock != nil {
		cacheOpts = append(cacheOpts, reputation.WithClock(o.clock))
	}
	cache := reputation.NewCache(store, provider, cacheOpts...)

	a := &App{
		Config:   cfg,
		Store:    store,
		Provider: provider,
		Cache:    cache,
		Bus:      bus,
		Audit:    audit,
		version:  o.version,
		clock:    o.clock,
	}

	engineOpts := []detection.EngineOption{detection.WithEngineAuditLogger(audit)}
	if cfg.Notify.WebhookURL != "" {
		a.notifier = detection.NewWebhookNotifier(&cfg.Notify)
		engineOpts = append(engineOpts, detection.WithNotifier(a.notifier))
	}
	if bus != nil {
		alerts, err := eventprocessor.NewAlertNotifier(bus)
		if err != nil {
			_ = bus.Close()
			if o.store == nil {
				_ = store.Close()
			}
			return nil, err
		}
		engineOpts = append(engineOpts, detection.WithNotifier(alerts))
		if cfg.Messaging.AlertStream {
			a.Hub = websocket.NewHub()
		}
	}
	if o.clock != nil {
		engineOpts = append(engineOpts, detection.WithEngineClock(o.clock))
	}
	a.Engine = detection.NewEngine(store, detection.NewRules(&cfg.Detection, store, cache), engineOpts...)

	ingestOpts := []ingest.Option{ingest.WithMaxBatchSize(cfg.API.MaxIngestBatch)}
	if o.clock != nil {
		ingestOpts = append(ingestOpts, ingest.WithClock(o.clock))
	}
	if bus != nil {
		ingestOpts = append(ingestOpts, ingest.WithPublisher(bus))
	}
	a.Ingest = ingest.NewService(store, ingestOpts...)

	logging.Info().
		Bool("provider_available", provider.Available()).
		Bool("notifier", a.notifier != nil).
		Bool("event_bus", a.Bus != nil).
		Bool("alert_stream", a.Hub != nil).
		Int("rules", len(a.Engine.Rules())).
		Msg("AuthSentry components initialized")

	return a, nil
}

// BusConfig maps the messaging section onto the event bus configuration.
func BusConfig(cfg *config.MessagingConfig) eventprocessor.BusConfig {
	bus := eventprocessor.DefaultBusConfig()
	bus.NATS.URL = cfg.NATSURL
	bus.NATS.Embedded = cfg.NATSEmbedded
	bus.NATS.QueueGroup = cfg.NATSQueueGroup
	if cfg.NATSHost != "" {
		bus.NATS.Host = cfg.NATSHost
	}
	if cfg.NATSPort != 0 {
		bus.NATS.Port = cfg.NATSPort
	}
	return bus
}

// Handler builds the HTTP API.
func (a *App) Handler() http.Handler {
	opts := []api.HandlerOption{
		api.WithVersion(a.version),
		api.WithAuditLogger(a.Audit),
		api.WithBreakerState(a.Provider.BreakerState),
		api.WithLimits(api.Limits{
			DefaultPageSize: a.Config.API.DefaultPageSize,
			MaxPageSize:     a.Config.API.MaxPageSize,
		}),
		api.WithActivityWindow(a.Config.Detection.HighRiskIP.Lookback),
	}
	if a.clock != nil {
		opts = append(opts, api.WithClock(a.clock))
	}
	if a.Hub != nil {
		opts = append(opts, api.WithAlertStream(a.Hub.Handler(a.Config.API.CORSOrigins)))
	}
	h := api.NewHandler(a.Store, a.Ingest, a.Engine, a.Cache, opts...)
	return api.NewRouter(h, api.ChiMiddlewareConfigFromAPI(&a.Config.API)).SetupChi()
}

// HTTPServer builds the API server from the server config section.
func (a *App) HTTPServer() *http.Server {
	addr := net.JoinHostPort(a.Config.Server.Host, strconv.Itoa(a.Config.Server.Port))
	return &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       a.Config.Server.Timeout,
		WriteTimeout:      a.Config.Server.Timeout,
		IdleTimeout:       2 * a.Config.Server.Timeout,
	}
}

// Supervise registers every long-running service with tree.
func (a *App) Supervise(tree *supervisor.SupervisorTree) error {
	cfg := a.Config

	if cfg.Detection.Interval > 0 {
		tree.AddDetectionService(services.NewPeriodicService("detection-scheduler", cfg.Detection.Interval,
			func(ctx context.Context) error {
				_, err := a.Engine.RunAll(ctx)
				return err
			},
			services.WithTaskTimeout(cfg.Detection.Interval),
		))
	}

	if cfg.Reputation.EvictInterval > 0 {
		tree.AddDataService(services.NewPeriodicService("reputation-evictor", cfg.Reputation.EvictInterval,
			func(ctx context.Context) error {
				_, err := a.Cache.EvictStale(ctx)
				return err
			},
			services.RunImmediately(),
		))
	}

	if a.Bus != nil && (cfg.Detection.IngestTrigger || a.Hub != nil) {
		router, err := eventprocessor.NewRouter(nil, a.Bus.Logger())
		if err != nil {
			return fmt.Errorf("failed to create event router: %w", err)
		}

		if cfg.Detection.IngestTrigger {
			trigger, err := eventprocessor.NewDetectionTrigger(a.Engine, eventprocessor.TriggerConfig{
				Debounce: cfg.Detection.IngestDebounce,
			})
			if err != nil {
				return fmt.Errorf("failed to create detection trigger: %w", err)
			}
			router.AddConsumerHandler("detection-trigger", eventprocessor.TopicEventsAppended, a.Bus.Subscriber(), trigger.Handle)
			tree.AddDetectionService(services.NewRunnerService("ingest-trigger", trigger))
		}

		if a.Hub != nil {
			router.AddConsumerHandler("alert-stream", eventprocessor.TopicAlertsCreated, a.Bus.Subscriber(), a.Hub.HandleAlertMessage)
			tree.AddAPIService(services.NewRunnerService("alert-stream-hub", a.Hub))
		}

		tree.AddMessagingService(services.NewOneShotRunnerService("event-router", router))
	}

	tree.AddAPIService(services.NewHTTPServerService(a.HTTPServer(), cfg.Server.ShutdownTimeout))
	return nil
}

// Close waits for pending notifications and releases the bus and the store.
func (a *App) Close() error {
	var errs []error
	if err := a.Engine.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.Bus != nil {
		if err := a.Bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event bus: %w", err))
		}
	}
	if err := a.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close store: %w", err))
	}
	return errors.Join(errs...)
}
