// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/secureauth/secureauth/internal/config"
	sagrpc "github.com/secureauth/secureauth/internal/grpc"
	"github.com/secureauth/secureauth/internal/ratelimit"
	"github.com/secureauth/secureauth/internal/store"
	"github.com/secureauth/secureauth/pkg/errutil"
)

func testServeConfig() *config.Config {
	cfg := config.Default()
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.Database.URL = "postgres://localhost/secureauth"
	cfg.Token.SigningKey = "0123456789abcdef0123456789abcdef"
	cfg.BcryptCost = 10
	return &cfg
}

func mockDatabase(t *testing.T) func(context.Context, string, store.ConnectOptions) (Database, error) {
	t.Helper()
	return func(context.Context, string, store.ConnectOptions) (Database, error) {
		mock, err := pgxmock.NewPool()
		if err != nil {
			return nil, err
		}
		return mock, nil
	}
}

// serveUntilReady runs runServe in the background and hands the bound
// endpoints to check before cancelling.
func serveUntilReady(t *testing.T, cfg *config.Config, deps *ServeDeps, check func(Endpoints)) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan Endpoints, 1)
	deps.OnReady = func(ep Endpoints) { ready <- ep }

	done := make(chan error, 1)
	go func() { done <- runServe(ctx, cfg, deps) }()

	select {
	case ep := <-ready:
		check(ep)
	case err := <-done:
		t.Fatalf("runServe returned before ready: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for listeners")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("runServe did not return after cancel")
	}
}

func httpStatus(t *testing.T, url string) int {
	t.Helper()
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode
}

func TestRunServe_MemoryBackend(t *testing.T) {
	cfg := testServeConfig()

	serveUntilReady(t, cfg, &ServeDeps{DatabaseConnector: mockDatabase(t)}, func(ep Endpoints) {
		assert.NotEmpty(t, ep.HTTP)
		assert.NotEmpty(t, ep.GRPC)
		assert.NotEmpty(t, ep.Metrics)

		assert.Equal(t, http.StatusUnauthorized, httpStatus(t, "http://"+ep.HTTP+"/api/secret-data"))
		assert.Equal(t, http.StatusOK, httpStatus(t, "http://"+ep.HTTP+"/account/login"))
		assert.Equal(t, http.StatusOK, httpStatus(t, "http://"+ep.Metrics+"/healthz/readiness"))
		assert.Equal(t, http.StatusOK, httpStatus(t, "http://"+ep.Metrics+"/metrics"))

		client, err := sagrpc.NewClient(sagrpc.ClientConfig{Address: ep.GRPC})
		require.NoError(t, err)
		defer func() { _ = client.Close() }()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err = client.WhoAmI(ctx, "")
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})
}

func TestRunServe_RedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testServeConfig()
	cfg.GRPCAddr = ""
	cfg.RateLimit.Backend = config.BackendRedis
	cfg.RateLimit.RedisURL = "redis://" + mr.Addr()

	var dialed string
	deps := &ServeDeps{
		DatabaseConnector: mockDatabase(t),
		RedisDialer: func(_ context.Context, url string, _ uint64) (redis.UniversalClient, error) {
			dialed = url
			return redis.NewClient(&redis.Options{Addr: mr.Addr()}), nil
		},
	}

	serveUntilReady(t, cfg, deps, func(ep Endpoints) {
		assert.Empty(t, ep.GRPC)
		assert.Equal(t, http.StatusOK, httpStatus(t, "http://"+ep.Metrics+"/healthz/readiness"))

		// Admission runs before the credential lookup, so the attempt
		// leaves limiter state in redis whatever the lookup returns.
		resp, err := http.Post("http://"+ep.HTTP+"/api/auth/token", "application/json",
			strings.NewReader(`{"username":"alice","password":"wonderland"}`))
		require.NoError(t, err)
		_ = resp.Body.Close()
		keys := mr.Keys()
		require.NotEmpty(t, keys)
		for _, k := range keys {
			assert.True(t, strings.HasPrefix(k, ratelimit.DefaultKeyPrefix), "key %q", k)
		}

		mr.SetError("LOADING")
		assert.Equal(t, http.StatusServiceUnavailable, httpStatus(t, "http://"+ep.Metrics+"/healthz/readiness"))
		mr.SetError("")
	})
	assert.Equal(t, cfg.RateLimit.RedisURL, dialed)
}

func TestRunServe_RequiresDatabaseURL(t *testing.T) {
	cfg := testServeConfig()
	cfg.Database.URL = ""

	err := runServe(context.Background(), cfg, &ServeDeps{DatabaseConnector: mockDatabase(t)})
	errutil.AssertErrorContext(t, err, "field", "database.url")
}

func TestRunServe_DatabaseFailure(t *testing.T) {
	cfg := testServeConfig()
	boom := errors.New("connection refused")

	err := runServe(context.Background(), cfg, &ServeDeps{
		DatabaseConnector: func(context.Context, string, store.ConnectOptions) (Database, error) {
			return nil, boom
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestRunServe_RedisDialFailure(t *testing.T) {
	cfg := testServeConfig()
	cfg.RateLimit.Backend = config.BackendRedis
	cfg.RateLimit.RedisURL = "redis://127.0.0.1:1"

	err := runServe(context.Background(), cfg, &ServeDeps{
		DatabaseConnector: mockDatabase(t),
		RedisDialer: func(context.Context, string, uint64) (redis.UniversalClient, error) {
			return nil, errors.New("dial tcp: refused")
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
}

func TestNewSessionStore_GeneratesKeyWhenUnset(t *testing.T) {
	cfg := testServeConfig()
	cfg.Session.AuthKey = ""
	st := newSessionStore(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NotNil(t, st)
}
