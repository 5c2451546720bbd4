// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"

	"github.com/secureauth/secureauth/pkg/errutil"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when inserting an entity whose key is taken.
var ErrAlreadyExists = errors.New("already exists")

// Error codes returned to transports.
const (
	CodeBadCredentials   = "AUTH_BAD_CREDENTIALS"
	CodeRateLimited      = "AUTH_RATE_LIMITED"
	CodeTokenInvalid     = "AUTH_TOKEN_INVALID"
	CodeStoreUnavailable = "AUTH_STORE_UNAVAILABLE"
	CodeUsernameTaken    = "AUTH_USERNAME_TAKEN"
	CodeInvalidUsername  = "AUTH_INVALID_USERNAME"
	CodeInvalidPassword  = "AUTH_INVALID_PASSWORD"
	CodePasswordMismatch = "AUTH_PASSWORD_MISMATCH"
	CodeEmptyPassword    = "AUTH_EMPTY_PASSWORD"
	CodeCancelled        = "AUTH_CANCELLED"

	// codeLimiterStoreFailed mirrors ratelimit's failure code so Classify
	// can treat a broken limiter backend as an infrastructure fault.
	codeLimiterStoreFailed = "RATELIMIT_STORE_FAILED"
)

// retryAfterKey is the oops context key carrying a rate-limit retry hint.
const retryAfterKey = "retry_after_ms"

// Outcome is the transport-agnostic result of an authentication operation.
type Outcome int

// Outcomes, in the order transports usually check them.
const (
	OutcomeIssued Outcome = iota
	OutcomeBadCredentials
	OutcomeRateLimited
	OutcomeTokenInvalid
	OutcomeStoreUnavailable
	OutcomeInvalidInput
	OutcomeCancelled
	OutcomeInternal
)

// String returns the label used in metrics and JSON error bodies.
func (o Outcome) String() string {
	switch o {
	case OutcomeIssued:
		return "issued"
	case OutcomeBadCredentials:
		return "bad_credentials"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeTokenInvalid:
		return "token_invalid"
	case OutcomeStoreUnavailable:
		return "store_unavailable"
	case OutcomeInvalidInput:
		return "invalid_input"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "internal"
	}
}

// Classify maps err onto the outcome taxonomy. A nil error is OutcomeIssued.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeIssued
	}
	switch errutil.Code(err) {
	case CodeBadCredentials:
		return OutcomeBadCredentials
	case CodeRateLimited:
		return OutcomeRateLimited
	case CodeTokenInvalid:
		return OutcomeTokenInvalid
	case CodeStoreUnavailable, codeLimiterStoreFailed:
		return OutcomeStoreUnavailable
	case CodeUsernameTaken, CodeInvalidUsername, CodeInvalidPassword,
		CodePasswordMismatch, CodeEmptyPassword:
		return OutcomeInvalidInput
	case CodeCancelled:
		return OutcomeCancelled
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return OutcomeCancelled
	}
	return OutcomeInternal
}

// RetryAfter returns the retry hint carried by a rate-limited error, or zero.
func RetryAfter(err error) time.Duration {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return 0
	}
	switch ms := oopsErr.Context()[retryAfterKey].(type) {
	case int64:
		return time.Duration(ms) * time.Millisecond
	case int:
		return time.Duration(ms) * time.Millisecond
	default:
		return 0
	}
}

func rateLimitedError(retryAfter time.Duration) error {
	return oops.Code(CodeRateLimited).
		With(retryAfterKey, retryAfter.Milliseconds()).
		Errorf("too many requests")
}

func badCredentialsError() error {
	return oops.Code(CodeBadCredentials).Errorf("invalid username or password")
}
