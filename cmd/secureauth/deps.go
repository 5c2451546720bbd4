// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package main

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/secureauth/secureauth/internal/ratelimit"
	"github.com/secureauth/secureauth/internal/store"
)

// Database is the subset of *pgxpool.Pool the commands use.
type Database interface {
	store.Pool
	Close()
}

// Endpoints are the addresses the serve command bound.
type Endpoints struct {
	HTTP    string
	GRPC    string
	Metrics string
}

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// DatabaseConnector opens the credential store.
	// Default: store.Connect
	DatabaseConnector func(ctx context.Context, url string, opts store.ConnectOptions) (Database, error)

	// RedisDialer connects to the shared limiter backend.
	// Default: ratelimit.DialRedis
	RedisDialer func(ctx context.Context, url string, attempts uint64) (redis.UniversalClient, error)

	// OnReady, if set, is called once every listener is bound.
	OnReady func(Endpoints)
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.DatabaseConnector == nil {
		out.DatabaseConnector = defaultDatabaseConnector
	}
	if out.RedisDialer == nil {
		out.RedisDialer = func(ctx context.Context, url string, attempts uint64) (redis.UniversalClient, error) {
			return ratelimit.DialRedis(ctx, url, attempts)
		}
	}
	return &out
}

func defaultDatabaseConnector(ctx context.Context, url string, opts store.ConnectOptions) (Database, error) {
	pool, err := store.Connect(ctx, url, opts)
	if err != nil {
		return nil, err
	}
	return pool, nil
}
