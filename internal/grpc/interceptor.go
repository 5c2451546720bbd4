// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/secureauth/secureauth/internal/auth"
)

type identityKey struct{}

// IdentityFromContext returns the identity attached by BearerInterceptor.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(auth.Identity)
	return id, ok
}

// BearerInterceptor resolves the authorization metadata into an identity
// for the listed methods. Other methods pass through untouched.
func BearerInterceptor(bearer *auth.BearerStrategy, methods ...string) grpc.UnaryServerInterceptor {
	protected := make(map[string]bool, len(methods))
	for _, m := range methods {
		protected[m] = true
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !protected[info.FullMethod] {
			return handler(ctx, req)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		for _, header := range md.Get("authorization") {
			raw, ok := auth.BearerToken(header)
			if !ok {
				continue
			}
			if id, ok := bearer.ResolveToken(raw); ok {
				return handler(context.WithValue(ctx, identityKey{}, id), req)
			}
		}
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}
}
