// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package auth

import (
	"context"
	"log/slog"
	"regexp"
	"time"

	"github.com/samber/oops"
)

// Username validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
)

// Password constraints. bcrypt ignores input past 72 bytes.
const (
	MinPasswordLength = 8
	MaxPasswordBytes  = 72
)

// Roles carried in the token role claim.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// usernameRegex matches usernames that:
// - Start with a letter (a-z, A-Z)
// - Contain only letters, numbers, and underscores
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// Credential is a stored user record. PasswordHash never leaves the verifier
// and is omitted when the record is logged.
type Credential struct {
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// LogValue implements slog.LogValuer.
func (c *Credential) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("username", c.Username),
		slog.String("role", c.Role),
	)
}

// NewCredential creates a Credential with a validated username and role.
// An empty role defaults to RoleUser.
func NewCredential(username, passwordHash, role string) (*Credential, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code(CodeInvalidPassword).Errorf("password hash cannot be empty")
	}
	if role == "" {
		role = RoleUser
	}
	if role != RoleUser && role != RoleAdmin {
		return nil, oops.Code("AUTH_INVALID_ROLE").With("role", role).Errorf("unknown role %q", role)
	}
	return &Credential{
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now(),
	}, nil
}

// ValidateUsername validates a username against rules.
// Username requirements:
// - Length: MinUsernameLength to MaxUsernameLength characters
// - Must start with a letter
// - Can contain only letters (a-z, A-Z), numbers (0-9), and underscores (_)
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code(CodeInvalidUsername).Errorf("username cannot be empty")
	}
	if len(username) < MinUsernameLength {
		return oops.Code(CodeInvalidUsername).
			With("min", MinUsernameLength).
			Errorf("username must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return oops.Code(CodeInvalidUsername).
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code(CodeInvalidUsername).
			Errorf("username must start with a letter and contain only letters, numbers, and underscores")
	}
	return nil
}

// ValidatePassword checks a new password's length.
func ValidatePassword(password string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	if len(password) < MinPasswordLength {
		return oops.Code(CodeInvalidPassword).
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordBytes {
		return oops.Code(CodeInvalidPassword).
			With("max", MaxPasswordBytes).
			Errorf("password must be at most %d bytes", MaxPasswordBytes)
	}
	return nil
}

// CredentialStore is the persistent user store. Implementations use
// parameterized queries only.
type CredentialStore interface {
	// LookupCredential retrieves the record for username.
	// Returns ErrNotFound if no record exists. Any other error means the
	// store could not answer.
	LookupCredential(ctx context.Context, username string) (*Credential, error)

	// InsertUser stores a new record.
	// Returns ErrAlreadyExists if the username is taken.
	InsertUser(ctx context.Context, cred *Credential) error

	// UpdatePasswordHash replaces the stored hash for username.
	// Returns ErrNotFound if no record exists.
	UpdatePasswordHash(ctx context.Context, username, passwordHash string) error
}
