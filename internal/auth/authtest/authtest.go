// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

// Package authtest provides test helpers for code built on the auth
// package: an in-memory credential store and a fully wired issuance stack.
package authtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/require"

	"github.com/secureauth/secureauth/internal/auth"
	"github.com/secureauth/secureauth/internal/ratelimit"
)

// Fixed keys for tests. Never use these outside tests.
var (
	SigningKey = []byte("fedcba9876543210fedcba9876543210")
	SessionKey = []byte("0123456789abcdef0123456789abcdef")
)

// MemoryCredentials is a CredentialStore backed by a map.
type MemoryCredentials struct {
	mu    sync.Mutex
	users map[string]*auth.Credential
	err   error
}

var _ auth.CredentialStore = (*MemoryCredentials)(nil)

// NewMemoryCredentials creates an empty store.
func NewMemoryCredentials() *MemoryCredentials {
	return &MemoryCredentials{users: make(map[string]*auth.Credential)}
}

// FailWith makes every subsequent call return err. Nil restores service.
func (m *MemoryCredentials) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// LookupCredential implements auth.CredentialStore.
func (m *MemoryCredentials) LookupCredential(_ context.Context, username string) (*auth.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	cred, ok := m.users[username]
	if !ok {
		return nil, auth.ErrNotFound
	}
	c := *cred
	return &c, nil
}

// InsertUser implements auth.CredentialStore.
func (m *MemoryCredentials) InsertUser(_ context.Context, cred *auth.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.users[cred.Username]; ok {
		return auth.ErrAlreadyExists
	}
	c := *cred
	m.users[cred.Username] = &c
	return nil
}

// UpdatePasswordHash implements auth.CredentialStore.
func (m *MemoryCredentials) UpdatePasswordHash(_ context.Context, username, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	cred, ok := m.users[username]
	if !ok {
		return auth.ErrNotFound
	}
	cred.PasswordHash = passwordHash
	return nil
}

// StackOptions tunes NewStack.
type StackOptions struct {
	// Limits replaces ratelimit.DefaultConfig.
	Limits *ratelimit.Config
	// Recorder receives issuance and validation metrics.
	Recorder auth.Recorder
	// Now drives the limiter, token issuer and sessions. Defaults to
	// time.Now.
	Now func() time.Time
}

// Stack is every issuance collaborator wired against a MemoryCredentials.
type Stack struct {
	Store        *MemoryCredentials
	Hasher       *auth.BcryptHasher
	Registrar    *auth.Registrar
	Verifier     *auth.CredentialVerifier
	Issuer       *auth.TokenIssuer
	Sessions     *auth.CookieSessions
	Bearer       *auth.BearerStrategy
	Limiter      *ratelimit.Controller
	Orchestrator *auth.Orchestrator
}

// NewStack builds a Stack seeded with alice/wonderland (user) and
// root/supersecret (admin). The bcrypt cost is the minimum allowed.
func NewStack(t testing.TB, opts StackOptions) *Stack {
	t.Helper()

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	hasher, err := auth.NewBcryptHasher(auth.MinBcryptCost)
	require.NoError(t, err)
	store := NewMemoryCredentials()

	registrar, err := auth.NewRegistrar(store, hasher, nil)
	require.NoError(t, err)
	for _, u := range []struct{ name, password, role string }{
		{"alice", "wonderland", auth.RoleUser},
		{"root", "supersecret", auth.RoleAdmin},
	} {
		_, err := registrar.Register(context.Background(), auth.Registration{
			Username:        u.name,
			Password:        u.password,
			ConfirmPassword: u.password,
			Role:            u.role,
		})
		require.NoError(t, err)
	}

	verifier, err := auth.NewCredentialVerifier(store, hasher, nil)
	require.NoError(t, err)
	issuer, err := auth.NewTokenIssuer(auth.TokenConfig{
		SigningKey: SigningKey,
		Issuer:     "https://auth.example.test",
		Audience:   "example-api",
		Lifetime:   2 * time.Hour,
	}, auth.WithTokenClock(now))
	require.NoError(t, err)

	limits := ratelimit.DefaultConfig()
	if opts.Limits != nil {
		limits = *opts.Limits
	}
	limiterStore := ratelimit.NewMemoryStore(ratelimit.MemoryConfig{CleanupInterval: -1})
	t.Cleanup(limiterStore.Close)
	limiter, err := ratelimit.NewController(limiterStore, limits, ratelimit.WithClock(now))
	require.NoError(t, err)

	cookies, err := auth.NewCookieSessions(sessions.NewCookieStore(SessionKey),
		auth.SessionConfig{Secure: true}, opts.Recorder)
	require.NoError(t, err)
	cookies.SetClock(now)

	orch, err := auth.NewOrchestrator(auth.OrchestratorDeps{
		Admitter: limiter,
		Verifier: verifier,
		Issuer:   issuer,
		Sessions: cookies,
		Recorder: opts.Recorder,
	})
	require.NoError(t, err)

	return &Stack{
		Store:        store,
		Hasher:       hasher,
		Registrar:    registrar,
		Verifier:     verifier,
		Issuer:       issuer,
		Sessions:     cookies,
		Bearer:       auth.NewBearerStrategy(issuer, opts.Recorder),
		Limiter:      limiter,
		Orchestrator: orch,
	}
}
