// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/secureauth/secureauth/internal/auth"
	authpg "github.com/secureauth/secureauth/internal/auth/postgres"
	"github.com/secureauth/secureauth/internal/config"
	sagrpc "github.com/secureauth/secureauth/internal/grpc"
	"github.com/secureauth/secureauth/internal/httpapi"
	"github.com/secureauth/secureauth/internal/logging"
	"github.com/secureauth/secureauth/internal/observability"
	"github.com/secureauth/secureauth/internal/ratelimit"
	"github.com/secureauth/secureauth/internal/store"
)

const (
	serviceName     = "secureauth"
	shutdownTimeout = 10 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the REST, browser and gRPC listeners",
		Long: `Run the token issuance service. The REST and browser routes listen on
http_addr, gRPC on grpc_addr and metrics and health probes on metrics_addr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, nil)
		},
	}
}

// server is the lifecycle shared by the HTTP, gRPC and observability
// servers.
type server interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// runServe wires every component from cfg and blocks until ctx is done or
// a server fails.
func runServe(ctx context.Context, cfg *config.Config, deps *ServeDeps) error {
	deps = deps.withDefaults()
	logger := logging.SetDefault(serviceName, version, cfg.LogFormat)

	logger.Info("starting secureauth",
		"http_addr", cfg.HTTPAddr,
		"grpc_addr", cfg.GRPCAddr,
		"metrics_addr", cfg.MetricsAddr,
		"ratelimit_backend", cfg.RateLimit.Backend)

	if cfg.Database.URL == "" {
		return oops.Code(config.CodeInvalid).With("field", "database.url").Errorf("database url is required")
	}
	connectOpts := store.DefaultConnectOptions()
	if cfg.Database.ConnectTimeout > 0 {
		connectOpts.Timeout = cfg.Database.ConnectTimeout
	}
	db, err := deps.DatabaseConnector(ctx, cfg.Database.URL, connectOpts)
	if err != nil {
		return oops.With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()
	logger.Info("connected to database")

	registry := observability.NewRegistry()
	metrics := observability.NewMetrics(registry)
	readiness := observability.NewReadiness(observability.DefaultCheckTimeout).Add("postgres", db)

	limiterStore, closeLimiter, err := newLimiterStore(ctx, cfg, deps, registry, readiness)
	if err != nil {
		return err
	}
	defer closeLimiter()

	controller, err := ratelimit.NewController(limiterStore, cfg.RateLimitSettings(),
		ratelimit.WithRecorder(metrics),
		ratelimit.WithLogger(logger))
	if err != nil {
		return err
	}

	credentials := authpg.NewCredentialRepository(db)
	hasher, err := auth.NewBcryptHasher(cfg.BcryptCost)
	if err != nil {
		return err
	}
	verifier, err := auth.NewCredentialVerifier(credentials, hasher, logger)
	if err != nil {
		return err
	}
	registrar, err := auth.NewRegistrar(credentials, hasher, logger)
	if err != nil {
		return err
	}
	issuer, err := auth.NewTokenIssuer(cfg.TokenSettings(), auth.WithTokenLogger(logger))
	if err != nil {
		return err
	}
	cookies, err := auth.NewCookieSessions(newSessionStore(cfg, logger), cfg.SessionSettings(), metrics)
	if err != nil {
		return err
	}
	orchestrator, err := auth.NewOrchestrator(auth.OrchestratorDeps{
		Admitter: controller,
		Verifier: verifier,
		Issuer:   issuer,
		Sessions: cookies,
		Recorder: metrics,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	bearer := auth.NewBearerStrategy(issuer, metrics)

	var servers []server
	var names []string
	if cfg.HTTPAddr != "" {
		router, err := httpapi.NewRouter(httpapi.Deps{
			Orchestrator:   orchestrator,
			Bearer:         bearer,
			Sessions:       cookies,
			Registrar:      registrar,
			Logger:         logger,
			TrustedProxies: cfg.TrustedProxies,
		})
		if err != nil {
			return err
		}
		servers = append(servers, httpapi.NewServer(cfg.HTTPAddr, router))
		names = append(names, "http")
	}
	if cfg.GRPCAddr != "" {
		svc, err := sagrpc.NewAuthenticatorService(orchestrator, logger)
		if err != nil {
			return err
		}
		grpcServer, err := sagrpc.NewServer(cfg.GRPCAddr, sagrpc.ServerOptions{Service: svc, Bearer: bearer, Logger: logger})
		if err != nil {
			return err
		}
		servers = append(servers, grpcServer)
		names = append(names, "grpc")
	}
	if cfg.MetricsAddr != "" {
		servers = append(servers, observability.NewServer(cfg.MetricsAddr, registry, readiness))
		names = append(names, "observability")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var started []server
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		for i := len(started) - 1; i >= 0; i-- {
			if err := started[i].Stop(shutdownCtx); err != nil {
				logger.Warn("error stopping server", "error", err)
			}
		}
	}()

	var endpoints Endpoints
	for i, srv := range servers {
		errCh, err := srv.Start()
		if err != nil {
			return oops.With("server", names[i]).Wrap(err)
		}
		started = append(started, srv)
		go monitorServerErrors(ctx, cancel, errCh, names[i])

		switch names[i] {
		case "http":
			endpoints.HTTP = srv.Addr()
		case "grpc":
			endpoints.GRPC = srv.Addr()
		case "observability":
			endpoints.Metrics = srv.Addr()
		}
	}

	logger.Info("secureauth ready",
		"http_addr", endpoints.HTTP,
		"grpc_addr", endpoints.GRPC,
		"metrics_addr", endpoints.Metrics)
	if deps.OnReady != nil {
		deps.OnReady(endpoints)
	}

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// newLimiterStore builds the configured limiter backend and registers its
// readiness check. The returned func releases it.
func newLimiterStore(
	ctx context.Context,
	cfg *config.Config,
	deps *ServeDeps,
	registry *prometheus.Registry,
	readiness *observability.Readiness,
) (ratelimit.Store, func(), error) {
	if cfg.RateLimit.Backend == config.BackendRedis {
		client, err := deps.RedisDialer(ctx, cfg.RateLimit.RedisURL, store.DefaultConnectOptions().Attempts)
		if err != nil {
			return nil, nil, oops.With("operation", "connect to redis").Wrap(err)
		}
		rs := ratelimit.NewRedisStore(client, ratelimit.DefaultKeyPrefix, cfg.RateLimit.IdleTTL)
		readiness.Add("redis", rs)
		return rs, func() {
			if err := client.Close(); err != nil {
				slog.Warn("error closing redis client", "error", err)
			}
		}, nil
	}

	ms := ratelimit.NewMemoryStore(ratelimit.MemoryConfig{
		IdleTTL:    cfg.RateLimit.IdleTTL,
		Registerer: registry,
	})
	return ms, ms.Close, nil
}

// newSessionStore creates the cookie store. Without a configured auth key
// a random one is generated, so sessions do not survive a restart.
func newSessionStore(cfg *config.Config, logger *slog.Logger) sessions.Store {
	authKey := []byte(cfg.Session.AuthKey)
	if len(authKey) == 0 {
		logger.Warn("session.auth_key not set; generating a per-process key")
		authKey = securecookie.GenerateRandomKey(32)
	}
	keys := [][]byte{authKey}
	if cfg.Session.EncryptionKey != "" {
		keys = append(keys, []byte(cfg.Session.EncryptionKey))
	}
	return sessions.NewCookieStore(keys...)
}

// monitorServerErrors cancels ctx when a server reports a failure. It exits
// when an error is received, the channel is closed, or ctx is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
