// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/secureauth/secureauth/internal/ratelimit"
	"github.com/secureauth/secureauth/pkg/errutil"
)

var tracer = otel.Tracer("secureauth/auth")

// Transport labels used in metrics and logs.
const (
	TransportREST    = "rest"
	TransportGRPC    = "grpc"
	TransportBrowser = "browser"
)

// State is a step of one issuance attempt.
type State int

// Issuance states in the order an attempt passes through them.
const (
	StateReceived State = iota
	StateAdmitted
	StateVerified
	StateIssued
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateAdmitted:
		return "admitted"
	case StateVerified:
		return "verified"
	case StateIssued:
		return "issued"
	default:
		return "unknown"
	}
}

// Admitter decides whether an attempt may proceed. Every call consumes
// capacity whatever the attempt's eventual outcome.
type Admitter interface {
	Admit(ctx context.Context, clientKey, route string) (ratelimit.Decision, error)
}

// IssueRequest is a transport-agnostic issuance request.
type IssueRequest struct {
	Username  string
	Password  string
	ClientKey string
	Route     string
	Transport string
}

// Issued is the result of a successful attempt.
type Issued struct {
	Identity Identity
	Token    *Token
}

// Orchestrator runs the issuance transaction: admit, verify, mint.
// No step is retried; every rejection is terminal for the attempt.
type Orchestrator struct {
	admitter Admitter
	verifier *CredentialVerifier
	issuer   *TokenIssuer
	sessions *CookieSessions
	recorder Recorder
	logger   *slog.Logger
}

// OrchestratorDeps holds the collaborators of an Orchestrator.
// Sessions and Recorder are optional.
type OrchestratorDeps struct {
	Admitter Admitter
	Verifier *CredentialVerifier
	Issuer   *TokenIssuer
	Sessions *CookieSessions
	Recorder Recorder
	Logger   *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(deps OrchestratorDeps) (*Orchestrator, error) {
	if deps.Admitter == nil || deps.Verifier == nil || deps.Issuer == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("admitter, verifier and issuer are required")
	}
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Orchestrator{
		admitter: deps.Admitter,
		verifier: deps.Verifier,
		issuer:   deps.Issuer,
		sessions: deps.Sessions,
		recorder: deps.Recorder,
		logger:   deps.Logger,
	}, nil
}

// Issue runs one attempt. Errors carry one of AUTH_RATE_LIMITED (with a
// retry hint), AUTH_BAD_CREDENTIALS, AUTH_STORE_UNAVAILABLE or
// AUTH_CANCELLED; use Classify and RetryAfter to inspect them.
func (o *Orchestrator) Issue(ctx context.Context, req IssueRequest) (*Issued, error) {
	ctx, span := tracer.Start(ctx, "auth.issue")
	defer span.End()
	span.SetAttributes(
		attribute.String("auth.transport", req.Transport),
		attribute.String("auth.route", req.Route),
	)

	issued, reached, err := o.issue(ctx, req)
	outcome := Classify(err)
	o.recorder.RecordIssuance(req.Transport, outcome)
	span.SetAttributes(
		attribute.String("auth.reached", reached.String()),
		attribute.String("auth.outcome", outcome.String()),
	)

	if err != nil {
		if outcome == OutcomeStoreUnavailable || outcome == OutcomeInternal {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome.String())
			errutil.LogErrorContext(ctx, o.logger.With(
				"transport", req.Transport,
				"outcome", outcome.String(),
				"reached", reached.String(),
			), "token issuance failed", err)
		} else {
			o.logger.InfoContext(ctx, "token issuance rejected",
				"transport", req.Transport,
				"client", req.ClientKey,
				"outcome", outcome.String(),
				"reached", reached.String())
		}
		return nil, err
	}

	o.logger.InfoContext(ctx, "token issued",
		"transport", req.Transport,
		"subject", issued.Identity.Subject,
		"token_id", issued.Token.ID.String(),
		"expires_at", issued.Token.ExpiresAt)
	return issued, nil
}

// issue returns the last state the attempt reached alongside its result.
func (o *Orchestrator) issue(ctx context.Context, req IssueRequest) (*Issued, State, error) {
	// A request cancelled before admission never counts as an attempt.
	if err := ctx.Err(); err != nil {
		return nil, StateReceived, oops.Code(CodeCancelled).Wrap(err)
	}

	clientKey := req.ClientKey
	if clientKey == "" {
		clientKey = ratelimit.UnknownClient
	}
	decision, err := o.admitter.Admit(ctx, clientKey, req.Route)
	if err != nil {
		if Classify(err) == OutcomeInternal {
			return nil, StateReceived, oops.Code(CodeStoreUnavailable).With("operation", "admit").Wrap(err)
		}
		return nil, StateReceived, oops.With("operation", "admit").Wrap(err)
	}
	if !decision.Allowed {
		return nil, StateReceived, rateLimitedError(decision.RetryAfter)
	}

	identity, err := o.verifier.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return nil, StateAdmitted, err
	}

	token, err := o.issuer.Mint(identity.Subject, identity.Role)
	if err != nil {
		return nil, StateVerified, err
	}
	identity.Scheme = SchemeBearer
	identity.ExpiresAt = token.ExpiresAt
	return &Issued{Identity: identity, Token: token}, StateIssued, nil
}

// IssueBrowser runs Issue and, on success, also establishes a cookie
// session for the same identity. The session and the token are independent
// after this point.
func (o *Orchestrator) IssueBrowser(w http.ResponseWriter, r *http.Request, req IssueRequest) (*Issued, error) {
	issued, err := o.Issue(r.Context(), req)
	if err != nil {
		return nil, err
	}
	if o.sessions == nil {
		return issued, nil
	}
	sessionIdentity := issued.Identity
	sessionIdentity.Scheme = SchemeCookie
	if _, err := o.sessions.Establish(w, r, sessionIdentity); err != nil {
		return nil, err
	}
	return issued, nil
}

// Issuer returns the token issuer used for minting.
func (o *Orchestrator) Issuer() *TokenIssuer {
	return o.issuer
}
