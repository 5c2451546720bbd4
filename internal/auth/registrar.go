// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
)

// Registration is a signup request.
type Registration struct {
	Username        string
	Password        string
	ConfirmPassword string
	Role            string
}

// Registrar creates new credential records.
type Registrar struct {
	store  CredentialStore
	hasher PasswordHasher
	logger *slog.Logger
}

// NewRegistrar creates a Registrar.
func NewRegistrar(store CredentialStore, hasher PasswordHasher, logger *slog.Logger) (*Registrar, error) {
	if store == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("credential store is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registrar{store: store, hasher: hasher, logger: logger}, nil
}

// Register validates reg, hashes the password with a fresh salt and stores
// the record. A taken username yields AUTH_USERNAME_TAKEN.
func (r *Registrar) Register(ctx context.Context, reg Registration) (*Credential, error) {
	if err := ValidateUsername(reg.Username); err != nil {
		return nil, err
	}
	if err := ValidatePassword(reg.Password); err != nil {
		return nil, err
	}
	if reg.Password != reg.ConfirmPassword {
		return nil, oops.Code(CodePasswordMismatch).Errorf("password and confirmation do not match")
	}

	hash, err := r.hasher.Hash(reg.Password)
	if err != nil {
		return nil, err
	}
	cred, err := NewCredential(reg.Username, hash, reg.Role)
	if err != nil {
		return nil, err
	}

	if err := r.store.InsertUser(ctx, cred); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, oops.Code(CodeUsernameTaken).
				With("username", reg.Username).
				Errorf("username is already taken")
		}
		return nil, oops.Code(CodeStoreUnavailable).
			With("operation", "insert user").
			Wrap(err)
	}

	r.logger.InfoContext(ctx, "user registered", "credential", cred)
	return cred, nil
}
