// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package auth

import (
	"net/http"
	"strings"
	"time"
)

// Scheme names the credential an Identity was resolved from.
type Scheme string

// Supported authentication schemes.
const (
	SchemeBearer Scheme = "bearer"
	SchemeCookie Scheme = "cookie"
)

// Identity is the canonical authenticated principal. Both strategies
// produce the same shape for the same verified user.
type Identity struct {
	Subject   string
	Role      string
	Scheme    Scheme
	ExpiresAt time.Time
}

// HasRole reports whether the identity carries role.
func (i Identity) HasRole(role string) bool {
	return i.Role == role
}

// Strategy resolves an Identity from one kind of presented credential.
// Implementations may write to w (the cookie strategy renews its session).
type Strategy interface {
	Scheme() Scheme
	Authenticate(w http.ResponseWriter, r *http.Request) (Identity, bool)
}

// Recorder receives authentication metrics. observability.Metrics
// implements it.
type Recorder interface {
	RecordIssuance(transport string, outcome Outcome)
	RecordTokenValidation(scheme Scheme, valid bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordIssuance(string, Outcome)     {}
func (nopRecorder) RecordTokenValidation(Scheme, bool) {}

// BearerStrategy authenticates the Authorization: Bearer header.
type BearerStrategy struct {
	issuer   *TokenIssuer
	recorder Recorder
}

// NewBearerStrategy creates a BearerStrategy. A nil recorder discards metrics.
func NewBearerStrategy(issuer *TokenIssuer, recorder Recorder) *BearerStrategy {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &BearerStrategy{issuer: issuer, recorder: recorder}
}

// Scheme implements Strategy.
func (s *BearerStrategy) Scheme() Scheme {
	return SchemeBearer
}

// Authenticate implements Strategy.
func (s *BearerStrategy) Authenticate(_ http.ResponseWriter, r *http.Request) (Identity, bool) {
	raw, ok := BearerToken(r.Header.Get("Authorization"))
	if !ok {
		return Identity{}, false
	}
	return s.ResolveToken(raw)
}

// ResolveToken validates a raw token. Transports without HTTP headers
// (gRPC metadata) call it directly.
func (s *BearerStrategy) ResolveToken(raw string) (Identity, bool) {
	id, ok := s.issuer.Validate(raw)
	s.recorder.RecordTokenValidation(SchemeBearer, ok)
	return id, ok
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// FirstOf tries each strategy in order and returns the first identity found.
func FirstOf(w http.ResponseWriter, r *http.Request, strategies ...Strategy) (Identity, bool) {
	for _, s := range strategies {
		if id, ok := s.Authenticate(w, r); ok {
			return id, true
		}
	}
	return Identity{}, false
}
