// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package grpc

import (
	"context"
	"log/slog"
	"math"
	"net"
	"strconv"

	"github.com/samber/oops"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/secureauth/secureauth/internal/auth"
	"github.com/secureauth/secureauth/internal/ratelimit"
	"github.com/secureauth/secureauth/pkg/errutil"
)

// RetryAfterTrailer carries the whole seconds a rate-limited caller should
// wait.
const RetryAfterTrailer = "retry-after"

const msgBadCredentials = "Invalid credentials."

// AuthenticatorService implements AuthenticatorServer on top of the
// issuance orchestrator.
type AuthenticatorService struct {
	orchestrator *auth.Orchestrator
	logger       *slog.Logger
}

var _ AuthenticatorServer = (*AuthenticatorService)(nil)

// NewAuthenticatorService creates the service. A nil logger uses the
// default.
func NewAuthenticatorService(orchestrator *auth.Orchestrator, logger *slog.Logger) (*AuthenticatorService, error) {
	if orchestrator == nil {
		return nil, oops.Errorf("orchestrator is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthenticatorService{orchestrator: orchestrator, logger: logger}, nil
}

// GetToken runs one issuance attempt.
func (s *AuthenticatorService) GetToken(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := AuthRequestFromStruct(in)

	issued, err := s.orchestrator.Issue(ctx, auth.IssueRequest{
		Username:  req.Username,
		Password:  req.Password,
		ClientKey: ClientKey(ctx),
		Route:     GetTokenMethod,
		Transport: auth.TransportGRPC,
	})
	if err == nil {
		return AuthReply{Success: true, JWTToken: issued.Token.Raw}.Struct(), nil
	}

	switch auth.Classify(err) {
	case auth.OutcomeBadCredentials:
		return AuthReply{Success: false, ErrorMessage: msgBadCredentials}.Struct(), nil
	case auth.OutcomeRateLimited:
		secs := int(math.Ceil(auth.RetryAfter(err).Seconds()))
		if secs < 1 {
			secs = 1
		}
		//nolint:errcheck // the trailer is advisory
		grpc.SetTrailer(ctx, metadata.Pairs(RetryAfterTrailer, strconv.Itoa(secs)))
		return nil, status.Error(codes.ResourceExhausted, "too many requests")
	case auth.OutcomeStoreUnavailable:
		return nil, status.Error(codes.Unavailable, "service temporarily unavailable")
	case auth.OutcomeCancelled:
		return nil, status.Error(codes.Canceled, "request cancelled")
	case auth.OutcomeInvalidInput:
		return nil, status.Error(codes.InvalidArgument, "invalid request")
	default:
		errutil.LogErrorContext(ctx, s.logger, "unexpected issuance error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
}

// WhoAmI reports the identity resolved by BearerInterceptor.
func (s *AuthenticatorService) WhoAmI(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}
	return WhoAmIReply{Subject: id.Subject, Role: id.Role, ExpiresAt: id.ExpiresAt}.Struct(), nil
}

// ClientKey derives the admission partition key from the peer address.
func ClientKey(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ratelimit.UnknownClient
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	if addr == "" {
		return ratelimit.UnknownClient
	}
	return addr
}
