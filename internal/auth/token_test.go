// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secureauth/secureauth/internal/auth"
	"github.com/secureauth/secureauth/pkg/errutil"
)

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

func testTokenConfig() auth.TokenConfig {
	return auth.TokenConfig{
		SigningKey: testSigningKey,
		Issuer:     "https://auth.example.test",
		Audience:   "example-api",
		Lifetime:   120 * time.Minute,
	}
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func newIssuer(t *testing.T, cfg auth.TokenConfig, clock *testClock) *auth.TokenIssuer {
	t.Helper()
	ti, err := auth.NewTokenIssuer(cfg, auth.WithTokenClock(clock.Now))
	require.NoError(t, err)
	return ti
}

func TestNewTokenIssuer(t *testing.T) {
	t.Run("rejects short signing key", func(t *testing.T) {
		cfg := testTokenConfig()
		cfg.SigningKey = []byte("short")
		_, err := auth.NewTokenIssuer(cfg)
		errutil.AssertErrorCode(t, err, "ISSUER_MISCONFIGURED")
	})

	t.Run("requires issuer and audience", func(t *testing.T) {
		cfg := testTokenConfig()
		cfg.Audience = ""
		_, err := auth.NewTokenIssuer(cfg)
		errutil.AssertErrorCode(t, err, "ISSUER_MISCONFIGURED")
	})

	t.Run("zero lifetime defaults to 120 minutes", func(t *testing.T) {
		cfg := testTokenConfig()
		cfg.Lifetime = 0
		ti, err := auth.NewTokenIssuer(cfg)
		require.NoError(t, err)
		assert.Equal(t, 120*time.Minute, ti.Lifetime())
	})

	t.Run("copies the signing key", func(t *testing.T) {
		cfg := testTokenConfig()
		cfg.SigningKey = append([]byte(nil), testSigningKey...)
		clock := &testClock{now: time.Now()}
		ti := newIssuer(t, cfg, clock)

		tok, err := ti.Mint("alice", auth.RoleUser)
		require.NoError(t, err)
		cfg.SigningKey[0] ^= 0xff

		_, ok := ti.Validate(tok.Raw)
		assert.True(t, ok)
	})
}

func TestTokenIssuer_Mint(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 30, 15, 500, time.UTC)}
	ti := newIssuer(t, testTokenConfig(), clock)

	tok, err := ti.Mint("alice", auth.RoleUser)
	require.NoError(t, err)

	t.Run("expiry is issuance plus lifetime", func(t *testing.T) {
		assert.Equal(t, time.Date(2026, 3, 1, 9, 30, 15, 0, time.UTC), tok.IssuedAt)
		assert.Equal(t, tok.IssuedAt.Add(120*time.Minute), tok.ExpiresAt)
	})

	t.Run("compact three part encoding", func(t *testing.T) {
		assert.Len(t, strings.Split(tok.Raw, "."), 3)
	})

	t.Run("claims carry subject, id, issuer and audience", func(t *testing.T) {
		claims := &auth.Claims{}
		_, _, err := jwt.NewParser().ParseUnverified(tok.Raw, claims)
		require.NoError(t, err)

		assert.Equal(t, "alice", claims.Subject)
		assert.Equal(t, tok.ID.String(), claims.ID)
		assert.Equal(t, "https://auth.example.test", claims.Issuer)
		assert.Equal(t, jwt.ClaimStrings{"example-api"}, claims.Audience)
		assert.Equal(t, auth.RoleUser, claims.Role)
	})

	t.Run("token ids are unique per mint", func(t *testing.T) {
		seen := map[uuid.UUID]bool{tok.ID: true}
		for i := 0; i < 50; i++ {
			next, err := ti.Mint("alice", auth.RoleUser)
			require.NoError(t, err)
			assert.False(t, seen[next.ID])
			seen[next.ID] = true
		}
	})

	t.Run("rejects empty subject", func(t *testing.T) {
		_, err := ti.Mint("", auth.RoleUser)
		errutil.AssertErrorCode(t, err, "TOKEN_MINT_FAILED")
	})
}

func TestTokenIssuer_Validate(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("freshly minted token validates with the same subject", func(t *testing.T) {
		clock := &testClock{now: start}
		ti := newIssuer(t, testTokenConfig(), clock)

		tok, err := ti.Mint("alice", auth.RoleAdmin)
		require.NoError(t, err)

		id, ok := ti.Validate(tok.Raw)
		require.True(t, ok)
		assert.Equal(t, "alice", id.Subject)
		assert.Equal(t, auth.RoleAdmin, id.Role)
		assert.Equal(t, auth.SchemeBearer, id.Scheme)
		assert.Equal(t, tok.ExpiresAt, id.ExpiresAt.UTC())
	})

	t.Run("expired token fails", func(t *testing.T) {
		clock := &testClock{now: start}
		ti := newIssuer(t, testTokenConfig(), clock)

		tok, err := ti.Mint("alice", auth.RoleUser)
		require.NoError(t, err)

		clock.now = start.Add(119 * time.Minute)
		_, ok := ti.Validate(tok.Raw)
		assert.True(t, ok)

		clock.now = start.Add(121 * time.Minute)
		_, ok = ti.Validate(tok.Raw)
		assert.False(t, ok)
	})

	t.Run("token from an instance with a fast clock is accepted", func(t *testing.T) {
		fast := newIssuer(t, testTokenConfig(), &testClock{now: start.Add(30 * time.Second)})
		tok, err := fast.Mint("alice", auth.RoleUser)
		require.NoError(t, err)

		_, ok := newIssuer(t, testTokenConfig(), &testClock{now: start}).Validate(tok.Raw)
		assert.True(t, ok)
	})

	t.Run("token signed with another key fails", func(t *testing.T) {
		clock := &testClock{now: start}
		other := testTokenConfig()
		other.SigningKey = []byte("ffffffffffffffffffffffffffffffff")
		forger := newIssuer(t, other, clock)
		ti := newIssuer(t, testTokenConfig(), clock)

		tok, err := forger.Mint("alice", auth.RoleAdmin)
		require.NoError(t, err)

		_, ok := ti.Validate(tok.Raw)
		assert.False(t, ok)
	})

	t.Run("wrong issuer fails", func(t *testing.T) {
		clock := &testClock{now: start}
		other := testTokenConfig()
		other.Issuer = "https://evil.example.test"
		tok, err := newIssuer(t, other, clock).Mint("alice", auth.RoleUser)
		require.NoError(t, err)

		_, ok := newIssuer(t, testTokenConfig(), clock).Validate(tok.Raw)
		assert.False(t, ok)
	})

	t.Run("wrong audience fails", func(t *testing.T) {
		clock := &testClock{now: start}
		other := testTokenConfig()
		other.Audience = "another-api"
		tok, err := newIssuer(t, other, clock).Mint("alice", auth.RoleUser)
		require.NoError(t, err)

		_, ok := newIssuer(t, testTokenConfig(), clock).Validate(tok.Raw)
		assert.False(t, ok)
	})

	t.Run("tampered payload fails", func(t *testing.T) {
		clock := &testClock{now: start}
		ti := newIssuer(t, testTokenConfig(), clock)
		tok, err := ti.Mint("alice", auth.RoleUser)
		require.NoError(t, err)

		parts := strings.Split(tok.Raw, ".")
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
			Role: auth.RoleAdmin,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "alice",
				ID:        uuid.NewString(),
				Issuer:    "https://auth.example.test",
				Audience:  jwt.ClaimStrings{"example-api"},
				IssuedAt:  jwt.NewNumericDate(start),
				ExpiresAt: jwt.NewNumericDate(start.Add(time.Hour)),
			},
		}).SigningString()
		require.NoError(t, err)

		forgedParts := strings.Split(forged, ".")
		_, ok := ti.Validate(forgedParts[0] + "." + forgedParts[1] + "." + parts[2])
		assert.False(t, ok)
	})

	t.Run("alg none is rejected", func(t *testing.T) {
		clock := &testClock{now: start}
		ti := newIssuer(t, testTokenConfig(), clock)

		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, auth.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "alice",
				ID:        uuid.NewString(),
				Issuer:    "https://auth.example.test",
				Audience:  jwt.ClaimStrings{"example-api"},
				IssuedAt:  jwt.NewNumericDate(start),
				ExpiresAt: jwt.NewNumericDate(start.Add(time.Hour)),
			},
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, ok := ti.Validate(unsigned)
		assert.False(t, ok)
	})

	t.Run("token without expiry is rejected", func(t *testing.T) {
		clock := &testClock{now: start}
		ti := newIssuer(t, testTokenConfig(), clock)

		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:  "alice",
				ID:       uuid.NewString(),
				Issuer:   "https://auth.example.test",
				Audience: jwt.ClaimStrings{"example-api"},
				IssuedAt: jwt.NewNumericDate(start),
			},
		}).SignedString(testSigningKey)
		require.NoError(t, err)

		_, ok := ti.Validate(raw)
		assert.False(t, ok)
	})

	t.Run("garbage fails", func(t *testing.T) {
		ti := newIssuer(t, testTokenConfig(), &testClock{now: start})
		for _, raw := range []string{"", "abc", "a.b.c", "....."} {
			_, ok := ti.Validate(raw)
			assert.False(t, ok, raw)
		}
	})

	t.Run("ValidateErr reports a uniform code", func(t *testing.T) {
		ti := newIssuer(t, testTokenConfig(), &testClock{now: start})
		_, err := ti.ValidateErr("a.b.c")
		errutil.AssertErrorCode(t, err, auth.CodeTokenInvalid)
	})
}
