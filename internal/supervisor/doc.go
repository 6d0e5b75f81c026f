// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

/*
Package supervisor runs the long-lived AuthSentry components under a suture v4
supervisor tree.

The tree has four layers, each its own supervisor so that a crash loop in one
layer backs off without restarting the others:

	authsentry
	├── data-layer       reputation cache eviction
	├── detection-layer  scheduled detection, ingest-triggered detection
	├── messaging-layer  event bus router
	└── api-layer        HTTP server

Supervisor events (restarts, backoff, timeouts) are logged through sutureslog.
Service adapters live in the services subpackage.
*/
package supervisor
