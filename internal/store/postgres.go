// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

// Package store owns the PostgreSQL connection pool and the embedded schema
// migrations for the credential store.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Pool is the query surface repositories depend on. *pgxpool.Pool and
// pgxmock.PgxPoolIface both satisfy it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// ConnectOptions tunes Connect.
type ConnectOptions struct {
	// Attempts bounds connection retries; 0 means a single attempt.
	Attempts uint64
	// Backoff is the first retry delay, doubled on each attempt.
	Backoff time.Duration
	// Timeout bounds each individual attempt.
	Timeout time.Duration
}

// DefaultConnectOptions matches database.connect_timeout's default.
func DefaultConnectOptions() ConnectOptions {
	return ConnectOptions{Attempts: 5, Backoff: 250 * time.Millisecond, Timeout: 5 * time.Second}
}

// Connect opens a pool and pings it, retrying with exponential backoff while
// the database is unreachable. A malformed URL fails immediately.
func Connect(ctx context.Context, databaseURL string, opts ConnectOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultConnectOptions().Backoff
	}

	var pool *pgxpool.Pool
	backoff := retry.WithMaxRetries(opts.Attempts, retry.NewExponential(opts.Backoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx := ctx
		if opts.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}
		p, err := pgxpool.NewWithConfig(attemptCtx, cfg)
		if err != nil {
			return retry.RetryableError(err)
		}
		if err := p.Ping(attemptCtx); err != nil {
			p.Close()
			return retry.RetryableError(err)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("host", cfg.ConnConfig.Host).
			With("attempts", opts.Attempts+1).
			Wrap(err)
	}
	return pool, nil
}
