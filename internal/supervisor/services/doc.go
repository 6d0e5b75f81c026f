// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

/*
Package services adapts AuthSentry components to suture's Service interface.

Each adapter turns a component's own lifecycle into a blocking
Serve(ctx) error that returns when ctx is canceled:

  - HTTPServerService: an *http.Server (ListenAndServe / Shutdown)
  - PeriodicService: a task run on a fixed interval, used for scheduled
    detection runs and reputation cache eviction
  - RunnerService: anything with Run(ctx) error, used for the event bus
    router and the ingest detection trigger

Adapters implement fmt.Stringer so suture can name them in its log events.
*/
package services
