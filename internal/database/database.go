// AuthSentry - Security Event Detection and IP Reputation Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/authsentry/internal/config"
	"github.com/tomtom215/authsentry/internal/logging"
)

// Option configures a store.
type Option func(*storeOptions)

type storeOptions struct {
	dedupAlerts bool
	now         func() time.Time
}

func defaultStoreOptions() storeOptions {
	return storeOptions{now: time.Now}
}

func applyOptions(opts []Option) storeOptions {
	o := defaultStoreOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithAlertDedup enables keyed alert upserts in SaveAlerts.
func WithAlertDedup(enabled bool) Option {
	return func(o *storeOptions) {
		o.dedupAlerts = enabled
	}
}

// WithClock overrides the clock used for server-assigned timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *storeOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// DB wraps the DuckDB connection and implements Store.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
	storeOptions
}

// New opens (or creates) the DuckDB database described by cfg and initializes the schema.
func New(cfg *config.DatabaseConfig, opts ...Option) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// 0750: owner rwx, group rx (gosec G301)
	dbDir := filepath.Dir(cfg.Path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db, err := NewWithConn(conn, opts...)
	if err != nil {
		closeQuietly(conn)
		return nil, err
	}
	db.cfg = cfg

	logging.Info().
		Str("path", cfg.Path).
		Int("threads", numThreads).
		Str("max_memory", cfg.MaxMemory).
		Bool("alert_dedup", db.dedupAlerts).
		Msg("Database initialized")

	return db, nil
}

// NewWithConn wraps an existing DuckDB connection and initializes the schema.
func NewWithConn(conn *sql.DB, opts ...Option) (*DB, error) {
	db := &DB{
		conn:         conn,
		storeOptions: applyOptions(opts),
	}

	db.configureConnectionPool()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.InitSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return db, nil
}

func (db *DB) configureConnectionPool() {
	db.conn.SetMaxOpenConns(runtime.NumCPU())
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// Conn returns the underlying SQL connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping verifies the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Close checkpoints and closes the database connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	if _, err := db.conn.Exec("CHECKPOINT"); err != nil {
		logging.Warn().Err(err).Msg("Checkpoint before close failed")
	}
	return db.conn.Close()
}
