// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package grpc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/samber/oops"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/secureauth/secureauth/internal/auth"
)

// ServerOptions configures NewServer.
type ServerOptions struct {
	Service *AuthenticatorService
	Bearer  *auth.BearerStrategy
	Logger  *slog.Logger
}

// Server hosts the Authenticator and health services.
type Server struct {
	addr     string
	grpc     *grpc.Server
	health   *health.Server
	listener net.Listener
	logger   *slog.Logger
	running  atomic.Bool
}

// NewServer builds a gRPC server. Nothing listens until Start or Serve.
func NewServer(addr string, opts ServerOptions) (*Server, error) {
	if opts.Service == nil {
		return nil, oops.Errorf("authenticator service is required")
	}
	if opts.Bearer == nil {
		return nil, oops.Errorf("bearer strategy is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(
		requestLogger(logger),
		BearerInterceptor(opts.Bearer, WhoAmIMethod),
	))
	RegisterAuthenticatorServer(gs, opts.Service)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{addr: addr, grpc: gs, health: hs, logger: logger}, nil
}

// Start listens on the configured address and serves in the background.
// The returned channel receives a serve failure, if any, and is closed
// when the server stops.
func (s *Server) Start() (<-chan error, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, oops.Code("GRPC_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	errCh, err := s.Serve(listener)
	if err != nil {
		_ = listener.Close() //nolint:errcheck // already failing
		return nil, err
	}
	return errCh, nil
}

// Serve serves on an existing listener in the background.
func (s *Server) Serve(listener net.Listener) (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("grpc server already running")
	}
	s.listener = listener

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.grpc.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			s.logger.Error("grpc server error", "error", err)
			errCh <- err
		}
	}()

	s.logger.Info("grpc server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop marks the server NOT_SERVING and drains in-flight calls. If ctx
// expires first, remaining calls are cut off.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpc.Stop()
		<-done
	}
	s.logger.Info("grpc server stopped")
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func requestLogger(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.DebugContext(ctx, "grpc request",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"client", ClientKey(ctx),
			"duration", time.Since(start))
		return resp, err
	}
}
