// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package auth

import (
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

// Token defaults.
const (
	DefaultTokenLifetime = 120 * time.Minute
	MinSigningKeyLength  = 32
)

// TokenConfig holds the immutable settings shared by every TokenIssuer.
type TokenConfig struct {
	SigningKey []byte
	Issuer     string
	Audience   string
	Lifetime   time.Duration
}

// Token is a minted bearer token. It is immutable once returned.
type Token struct {
	Subject   string
	Role      string
	ID        uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
	// Raw is the compact signed encoding handed to the client.
	Raw string
}

// Claims is the fixed payload carried by every token.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and validates HS256 bearer tokens.
type TokenIssuer struct {
	key      []byte
	issuer   string
	audience string
	lifetime time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// TokenOption configures a TokenIssuer.
type TokenOption func(*TokenIssuer)

// WithTokenClock overrides the clock used for iat, exp and validation.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(ti *TokenIssuer) {
		ti.now = now
	}
}

// WithTokenLogger sets the logger that receives validation diagnostics.
func WithTokenLogger(logger *slog.Logger) TokenOption {
	return func(ti *TokenIssuer) {
		ti.logger = logger
	}
}

// NewTokenIssuer creates a TokenIssuer. The key is copied.
func NewTokenIssuer(cfg TokenConfig, opts ...TokenOption) (*TokenIssuer, error) {
	if len(cfg.SigningKey) < MinSigningKeyLength {
		return nil, oops.Code("ISSUER_MISCONFIGURED").
			With("min", MinSigningKeyLength).
			Errorf("signing key must be at least %d bytes", MinSigningKeyLength)
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, oops.Code("ISSUER_MISCONFIGURED").Errorf("issuer and audience are required")
	}
	if cfg.Lifetime == 0 {
		cfg.Lifetime = DefaultTokenLifetime
	}
	if cfg.Lifetime < time.Second {
		return nil, oops.Code("ISSUER_MISCONFIGURED").
			With("lifetime", cfg.Lifetime.String()).
			Errorf("token lifetime must be at least one second")
	}

	ti := &TokenIssuer{
		key:      append([]byte(nil), cfg.SigningKey...),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		lifetime: cfg.Lifetime,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(ti)
	}
	return ti, nil
}

// Lifetime returns the fixed token lifetime.
func (ti *TokenIssuer) Lifetime() time.Duration {
	return ti.lifetime
}

// Mint signs a new token for subject. expiresAt is always issuedAt plus the
// configured lifetime, both at second precision.
func (ti *TokenIssuer) Mint(subject, role string) (*Token, error) {
	if subject == "" {
		return nil, oops.Code("TOKEN_MINT_FAILED").Errorf("subject cannot be empty")
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, oops.Code("TOKEN_MINT_FAILED").With("operation", "generate token id").Wrap(err)
	}
	issuedAt := ti.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(ti.lifetime)

	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        id.String(),
			Issuer:    ti.issuer,
			Audience:  jwt.ClaimStrings{ti.audience},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.key)
	if err != nil {
		return nil, oops.Code("TOKEN_MINT_FAILED").With("operation", "sign").Wrap(err)
	}

	return &Token{
		Subject:   subject,
		Role:      role,
		ID:        id,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
		Raw:       raw,
	}, nil
}

// Validate verifies the signature, issuer, audience and expiry of raw.
// Every failure collapses to ok=false; the reason is only logged.
func (ti *TokenIssuer) Validate(raw string) (Identity, bool) {
	claims, err := ti.parse(raw)
	if err != nil {
		ti.logger.Debug("token rejected", "reason", rejectionReason(err))
		return Identity{}, false
	}
	return Identity{
		Subject:   claims.Subject,
		Role:      claims.Role,
		Scheme:    SchemeBearer,
		ExpiresAt: claims.ExpiresAt.Time,
	}, true
}

// ValidateErr is Validate for callers that propagate errors. The returned
// error is always AUTH_TOKEN_INVALID.
func (ti *TokenIssuer) ValidateErr(raw string) (Identity, error) {
	id, ok := ti.Validate(raw)
	if !ok {
		return Identity{}, oops.Code(CodeTokenInvalid).Errorf("token is invalid")
	}
	return id, nil
}

func (ti *TokenIssuer) parse(raw string) (*Claims, error) {
	if raw == "" {
		return nil, jwt.ErrTokenMalformed
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return ti.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(ti.issuer),
		jwt.WithAudience(ti.audience),
		// iat is informational: instances with skewed clocks must still
		// accept each other's tokens. Expiry stays exact.
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ti.now),
	)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errMissingSubject
	}
	if _, err := uuid.Parse(claims.ID); err != nil {
		return nil, errMissingTokenID
	}
	return claims, nil
}

var (
	errMissingSubject = errors.New("token has no subject")
	errMissingTokenID = errors.New("token has no valid id")
)

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return "not_yet_valid"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "signature"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "issuer"
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return "audience"
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return "missing_claim"
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return "unverifiable"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, errMissingSubject):
		return "subject"
	case errors.Is(err, errMissingTokenID):
		return "token_id"
	default:
		return "invalid"
	}
}
