// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

// Command authsentryctl is the AuthSentry operator CLI.
//
// It opens the configured DuckDB file directly, so it must not run while a
// server holds the same file open for writing.
//
//	authsentryctl ingest events.json
//	authsentryctl run
//	authsentryctl alerts --status open --severity high,critical
//	authsentryctl alerts update 42 investigating
//	authsentryctl lookup 203.0.113.7 198.51.100.3
//	authsentryctl evict
//	authsentryctl stats
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(defaultOpenApp).ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}
