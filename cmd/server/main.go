// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

// Package main is the entry point for the AuthSentry server.
//
// AuthSentry ingests normalized authentication events, runs four detection
// rules over them (brute force, off-hours access, suspicious address ranges
// and high-risk source addresses) and keeps a TTL-bounded IP reputation
// cache in front of an external reputation provider.
//
// # Startup
//
//  1. Configuration: defaults, optional config.yaml, environment (Koanf v2)
//  2. Logging: zerolog, level and format from the logging section
//  3. Components: DuckDB store, reputation cache, detection engine, ingest
//     service and the in-process event bus (internal/app)
//  4. Supervisor tree: HTTP API, detection scheduler, ingest trigger, event
//     router and reputation eviction (suture v4)
//
// # Configuration
//
// Every setting has an environment variable, for example:
//
//	HTTP_PORT=8087
//	DUCKDB_PATH=/data/authsentry.duckdb
//	ABUSEIPDB_API_KEY=...         # empty: every lookup uses the fallback provider
//	DETECTION_INTERVAL=5m         # 0 disables scheduled runs
//	NOTIFY_WEBHOOK_URL=https://hooks.example/alerts
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the root context. The HTTP server drains
// in-flight requests, pending alert notifications are flushed and the store
// is closed.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/authsentry/internal/app"
	"github.com/tomtom215/authsentry/internal/config"
	"github.com/tomtom215/authsentry/internal/logging"
	"github.com/tomtom215/authsentry/internal/supervisor"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Str("db_path", cfg.Database.Path).
		Int("port", cfg.Server.Port).
		Dur("detection_interval", cfg.Detection.Interval).
		Bool("ingest_trigger", cfg.Detection.IngestTrigger).
		Msg("Starting AuthSentry")

	if cfg.Reputation.APIKey == "" {
		logging.Warn().Msg("No reputation API key configured; all lookups use the fallback provider")
	}
	if cfg.API.RateLimitDisabled {
		logging.Warn().Msg("API rate limiting is DISABLED")
	}

	a, err := app.New(cfg, app.WithVersion(version))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize AuthSentry")
	}
	defer func() {
		if err := a.Close(); err != nil {
			logging.Error().Err(err).Msg("Error during shutdown")
		}
	}()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}
	if err := a.Supervise(tree); err != nil {
		logging.Fatal().Err(err).Msg("Failed to register services")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	var treeErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for services to stop")
		treeErr = <-errCh
	case treeErr = <-errCh:
	}
	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		logging.Error().Err(treeErr).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("AuthSentry stopped")
}
