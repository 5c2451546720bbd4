// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

// Package postgres implements auth.CredentialStore on PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/secureauth/secureauth/internal/auth"
	"github.com/secureauth/secureauth/internal/store"
)

// CredentialRepository implements auth.CredentialStore using PostgreSQL.
//
// Errors carry operation context but no oops code; the verifier and
// registrar decide what a failure means to the caller.
type CredentialRepository struct {
	pool store.Pool
}

// NewCredentialRepository creates a new CredentialRepository.
func NewCredentialRepository(pool store.Pool) *CredentialRepository {
	return &CredentialRepository{pool: pool}
}

var _ auth.CredentialStore = (*CredentialRepository)(nil)

// LookupCredential retrieves the record for username.
func (r *CredentialRepository) LookupCredential(ctx context.Context, username string) (*auth.Credential, error) {
	var cred auth.Credential
	err := r.pool.QueryRow(ctx, `
		SELECT username, password_hash, role, created_at
		FROM users
		WHERE username = $1
	`, username).Scan(&cred.Username, &cred.PasswordHash, &cred.Role, &cred.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.With("username", username).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.
			With("operation", "lookup credential").
			With("username", username).
			Wrap(err)
	}
	return &cred, nil
}

// InsertUser stores a new record. A zero CreatedAt lets the database
// default it.
func (r *CredentialRepository) InsertUser(ctx context.Context, cred *auth.Credential) error {
	var createdAt any
	if !cred.CreatedAt.IsZero() {
		createdAt = cred.CreatedAt
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (username, password_hash, role, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, cred.Username, cred.PasswordHash, cred.Role, createdAt)
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return oops.With("username", cred.Username).Wrap(auth.ErrAlreadyExists)
	}
	return oops.
		With("operation", "insert user").
		With("username", cred.Username).
		Wrap(err)
}

// UpdatePasswordHash replaces the stored hash for username.
func (r *CredentialRepository) UpdatePasswordHash(ctx context.Context, username, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2 WHERE username = $1
	`, username, passwordHash)
	if err != nil {
		return oops.
			With("operation", "update password hash").
			With("username", username).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.With("username", username).Wrap(auth.ErrNotFound)
	}
	return nil
}

// Ping reports whether the database answers. Readiness checks use it.
func (r *CredentialRepository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return oops.With("operation", "ping database").Wrap(err)
	}
	return nil
}
