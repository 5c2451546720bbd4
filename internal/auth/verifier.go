// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
)

// timingGuardPassword seeds the hash compared against when a username is
// unknown, so both paths run one bcrypt comparison.
//
//nolint:gosec // G101: not a credential, never matches user input.
const timingGuardPassword = "secureauth-timing-guard"

// CredentialVerifier checks plaintext passwords against the credential store.
type CredentialVerifier struct {
	store     CredentialStore
	hasher    PasswordHasher
	dummyHash string
	logger    *slog.Logger
}

// NewCredentialVerifier creates a CredentialVerifier. A nil logger uses
// slog.Default().
func NewCredentialVerifier(store CredentialStore, hasher PasswordHasher, logger *slog.Logger) (*CredentialVerifier, error) {
	if store == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("credential store is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	dummy, err := hasher.Hash(timingGuardPassword)
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").With("operation", "hash timing guard").Wrap(err)
	}
	return &CredentialVerifier{
		store:     store,
		hasher:    hasher,
		dummyHash: dummy,
		logger:    logger,
	}, nil
}

// Verify reports whether username exists and password matches its hash.
// An unknown user is a normal false result. The only error is an
// infrastructure fault (AUTH_STORE_UNAVAILABLE) or cancellation.
func (v *CredentialVerifier) Verify(ctx context.Context, username, password string) (bool, error) {
	_, err := v.Authenticate(ctx, username, password)
	switch Classify(err) {
	case OutcomeIssued:
		return true, nil
	case OutcomeBadCredentials:
		return false, nil
	default:
		return false, err
	}
}

// Authenticate verifies the pair and returns the identity it proves.
// Unknown users and wrong passwords both yield AUTH_BAD_CREDENTIALS.
func (v *CredentialVerifier) Authenticate(ctx context.Context, username, password string) (Identity, error) {
	cred, lookupErr := v.store.LookupCredential(ctx, username)

	targetHash := v.dummyHash
	found := false
	switch {
	case lookupErr == nil:
		targetHash = cred.PasswordHash
		found = true
	case errors.Is(lookupErr, ErrNotFound):
		// fall through to the dummy comparison
	case errors.Is(lookupErr, context.Canceled), errors.Is(lookupErr, context.DeadlineExceeded):
		return Identity{}, oops.Code(CodeCancelled).With("operation", "lookup credential").Wrap(lookupErr)
	default:
		return Identity{}, oops.Code(CodeStoreUnavailable).
			With("operation", "lookup credential").
			Wrap(lookupErr)
	}

	// Always run one comparison so unknown users cost the same as known ones.
	valid, verifyErr := v.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if found {
			v.logger.WarnContext(ctx, "stored password hash is unreadable", "username", username)
		}
		return Identity{}, badCredentialsError()
	}
	if !found || !valid {
		return Identity{}, badCredentialsError()
	}

	if v.hasher.NeedsUpgrade(cred.PasswordHash) {
		v.upgradeHash(ctx, cred.Username, password)
	}

	return Identity{Subject: cred.Username, Role: cred.Role}, nil
}

// upgradeHash rehashes with the current cost. Failure is logged only; the
// login already succeeded.
func (v *CredentialVerifier) upgradeHash(ctx context.Context, username, password string) {
	hash, err := v.hasher.Hash(password)
	if err != nil {
		v.logger.WarnContext(ctx, "password rehash failed", "username", username, "error", err)
		return
	}
	if err := v.store.UpdatePasswordHash(ctx, username, hash); err != nil {
		v.logger.WarnContext(ctx, "password rehash not stored", "username", username, "error", err)
	}
}
