// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/sessions"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Cookie session bounds and defaults.
const (
	MinSessionTTL     = 30 * time.Minute
	MaxSessionTTL     = 120 * time.Minute
	DefaultSessionTTL = 30 * time.Minute
	DefaultCookieName = "secureauth_session"

	// CSRFTokenBytes is the length of a generated CSRF token before encoding.
	CSRFTokenBytes = 32
)

// Session value keys.
const (
	sessionKeyID      = "sid"
	sessionKeySubject = "sub"
	sessionKeyRole    = "role"
	sessionKeyExpires = "exp"
	sessionKeyCSRF    = "csrf"
)

// SessionConfig configures the cookie carrying a browser session.
type SessionConfig struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
	SameSite   http.SameSite
}

// CookieSessions manages the opaque browser session issued at login. It is
// independent of bearer tokens: both are derived from the same verified
// identity but neither consults the other.
type CookieSessions struct {
	store    sessions.Store
	cfg      SessionConfig
	now      func() time.Time
	recorder Recorder
}

// NewCookieSessions creates a CookieSessions backed by store.
func NewCookieSessions(store sessions.Store, cfg SessionConfig, recorder Recorder) (*CookieSessions, error) {
	if store == nil {
		return nil, oops.Code("SESSION_INVALID_CONFIG").Errorf("session store is required")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultSessionTTL
	}
	if cfg.TTL < MinSessionTTL || cfg.TTL > MaxSessionTTL {
		return nil, oops.Code("SESSION_INVALID_CONFIG").
			With("ttl", cfg.TTL.String()).
			Errorf("session ttl must be between %s and %s", MinSessionTTL, MaxSessionTTL)
	}
	if cfg.SameSite == 0 {
		cfg.SameSite = http.SameSiteStrictMode
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &CookieSessions{store: store, cfg: cfg, now: time.Now, recorder: recorder}, nil
}

// SetClock overrides the clock used for expiry. Intended for tests.
func (c *CookieSessions) SetClock(now func() time.Time) {
	c.now = now
}

// TTL returns the sliding session lifetime.
func (c *CookieSessions) TTL() time.Duration {
	return c.cfg.TTL
}

// Scheme implements Strategy.
func (c *CookieSessions) Scheme() Scheme {
	return SchemeCookie
}

// Establish starts a session for id and writes the cookie. Any previous
// session values are discarded.
func (c *CookieSessions) Establish(w http.ResponseWriter, r *http.Request, id Identity) (ulid.ULID, error) {
	sess, err := c.load(r)
	if err != nil {
		return ulid.ULID{}, err
	}
	for k := range sess.Values {
		delete(sess.Values, k)
	}

	sid := ulid.Make()
	sess.Values[sessionKeyID] = sid.String()
	sess.Values[sessionKeySubject] = id.Subject
	sess.Values[sessionKeyRole] = id.Role
	sess.Values[sessionKeyExpires] = c.now().Add(c.cfg.TTL).Unix()
	if err := c.save(w, r, sess); err != nil {
		return ulid.ULID{}, err
	}
	return sid, nil
}

// Authenticate implements Strategy. A live session has its expiry pushed
// out by the full TTL; an expired one is cleared.
func (c *CookieSessions) Authenticate(w http.ResponseWriter, r *http.Request) (Identity, bool) {
	id, ok := c.resolve(w, r)
	c.recorder.RecordTokenValidation(SchemeCookie, ok)
	return id, ok
}

func (c *CookieSessions) resolve(w http.ResponseWriter, r *http.Request) (Identity, bool) {
	sess, err := c.load(r)
	if err != nil {
		return Identity{}, false
	}
	subject, _ := sess.Values[sessionKeySubject].(string)
	expires, _ := sess.Values[sessionKeyExpires].(int64)
	if subject == "" || expires == 0 {
		return Identity{}, false
	}

	now := c.now()
	if !now.Before(time.Unix(expires, 0)) {
		_ = c.clearSession(w, r, sess) //nolint:errcheck // best effort, the session is already unusable
		return Identity{}, false
	}

	next := now.Add(c.cfg.TTL)
	sess.Values[sessionKeyExpires] = next.Unix()
	if err := c.save(w, r, sess); err != nil {
		return Identity{}, false
	}

	role, _ := sess.Values[sessionKeyRole].(string)
	return Identity{
		Subject:   subject,
		Role:      role,
		Scheme:    SchemeCookie,
		ExpiresAt: next,
	}, true
}

// Clear ends the session and expires the cookie.
func (c *CookieSessions) Clear(w http.ResponseWriter, r *http.Request) error {
	sess, err := c.load(r)
	if err != nil {
		return err
	}
	return c.clearSession(w, r, sess)
}

func (c *CookieSessions) clearSession(w http.ResponseWriter, r *http.Request, sess *sessions.Session) error {
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	c.applyOptions(sess)
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		return oops.Code("SESSION_SAVE_FAILED").Wrap(err)
	}
	return nil
}

// CSRFToken returns the per-session CSRF token, creating and storing one
// if the session has none yet.
func (c *CookieSessions) CSRFToken(w http.ResponseWriter, r *http.Request) (string, error) {
	sess, err := c.load(r)
	if err != nil {
		return "", err
	}
	if token, _ := sess.Values[sessionKeyCSRF].(string); token != "" {
		return token, nil
	}
	token, err := GenerateCSRFToken()
	if err != nil {
		return "", err
	}
	sess.Values[sessionKeyCSRF] = token
	if err := c.save(w, r, sess); err != nil {
		return "", err
	}
	return token, nil
}

// CheckCSRF reports whether presented matches the session's CSRF token.
func (c *CookieSessions) CheckCSRF(r *http.Request, presented string) bool {
	sess, err := c.load(r)
	if err != nil {
		return false
	}
	expected, _ := sess.Values[sessionKeyCSRF].(string)
	if expected == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) == 1
}

// GenerateCSRFToken creates a random hex token.
func GenerateCSRFToken() (string, error) {
	b := make([]byte, CSRFTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", CSRFTokenBytes).
			Wrap(err)
	}
	return hex.EncodeToString(b), nil
}

// SameSiteFromString parses strict, lax or none. Anything else is strict.
func SameSiteFromString(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteStrictMode
	}
}

func (c *CookieSessions) load(r *http.Request) (*sessions.Session, error) {
	sess, err := c.store.Get(r, c.cfg.CookieName)
	if err != nil {
		// A cookie that fails authentication yields a fresh session alongside
		// the error; treat it as anonymous.
		if sess != nil {
			return sess, nil
		}
		return nil, oops.Code("SESSION_LOAD_FAILED").Wrap(err)
	}
	return sess, nil
}

func (c *CookieSessions) save(w http.ResponseWriter, r *http.Request, sess *sessions.Session) error {
	c.applyOptions(sess)
	if err := sess.Save(r, w); err != nil {
		return oops.Code("SESSION_SAVE_FAILED").Wrap(err)
	}
	return nil
}

func (c *CookieSessions) applyOptions(sess *sessions.Session) {
	if sess.Options == nil {
		sess.Options = &sessions.Options{}
	}
	sess.Options.Path = "/"
	sess.Options.MaxAge = int(c.cfg.TTL.Seconds())
	sess.Options.HttpOnly = true
	sess.Options.Secure = c.cfg.Secure
	sess.Options.SameSite = c.cfg.SameSite
}
