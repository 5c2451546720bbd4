// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

// Package config loads the service configuration from defaults, a YAML file,
// SECUREAUTH_ environment variables and command-line flags, in that order of
// precedence.
package config

import (
	"net/http"
	"time"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/secureauth/secureauth/internal/auth"
	"github.com/secureauth/secureauth/internal/ratelimit"
)

// CodeInvalid is the oops code for every validation failure.
const CodeInvalid = "CONFIG_INVALID"

// Rate limiter backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the complete service configuration. It is not modified after
// Load returns.
type Config struct {
	Token       TokenConfig     `koanf:"token" json:"token,omitempty"`
	RateLimit   RateLimitConfig `koanf:"ratelimit" json:"ratelimit,omitempty"`
	Session     SessionConfig   `koanf:"session" json:"session,omitempty"`
	Database    DatabaseConfig  `koanf:"database" json:"database,omitempty"`
	HTTPAddr    string          `koanf:"http_addr" json:"http_addr,omitempty" jsonschema:"description=REST and browser listen address"`
	GRPCAddr    string          `koanf:"grpc_addr" json:"grpc_addr,omitempty" jsonschema:"description=gRPC listen address"`
	MetricsAddr string          `koanf:"metrics_addr" json:"metrics_addr,omitempty" jsonschema:"description=metrics and health listen address; empty disables"`
	LogFormat   string          `koanf:"log_format" json:"log_format,omitempty" jsonschema:"enum=json,enum=text"`
	BcryptCost  int             `koanf:"bcrypt_cost" json:"bcrypt_cost,omitempty" jsonschema:"minimum=10,maximum=14"`

	// TrustedProxies are the proxies whose X-Forwarded-For is believed
	// when deriving the client key. Empty trusts none.
	TrustedProxies []string `koanf:"trusted_proxies" json:"trusted_proxies,omitempty"`
}

// TokenConfig configures bearer token issuance.
type TokenConfig struct {
	SigningKey string        `koanf:"signing_key" json:"signing_key,omitempty" jsonschema:"minLength=32,description=HMAC-SHA256 key; at least 32 bytes"`
	Issuer     string        `koanf:"issuer" json:"issuer,omitempty"`
	Audience   string        `koanf:"audience" json:"audience,omitempty"`
	Lifetime   time.Duration `koanf:"lifetime" json:"lifetime,omitempty"`
}

// RateLimitConfig configures admission control.
type RateLimitConfig struct {
	Backend  string         `koanf:"backend" json:"backend,omitempty" jsonschema:"enum=memory,enum=redis"`
	RedisURL string         `koanf:"redis_url" json:"redis_url,omitempty"`
	Bucket   BucketConfig   `koanf:"bucket" json:"bucket,omitempty"`
	Window   WindowConfig   `koanf:"window" json:"window,omitempty" jsonschema:"description=defaults for policies that omit limit or length"`
	Policies []PolicyConfig `koanf:"policies" json:"policies,omitempty"`
	IdleTTL  time.Duration  `koanf:"idle_ttl" json:"idle_ttl,omitempty"`
}

// BucketConfig is the global per-client token bucket.
type BucketConfig struct {
	Capacity        int     `koanf:"capacity" json:"capacity,omitempty" jsonschema:"minimum=1"`
	RefillPerSecond float64 `koanf:"refill_per_second" json:"refill_per_second,omitempty" jsonschema:"exclusiveMinimum=0"`
}

// WindowConfig is a fixed window.
type WindowConfig struct {
	Limit  int           `koanf:"limit" json:"limit,omitempty" jsonschema:"minimum=1"`
	Length time.Duration `koanf:"length" json:"length,omitempty"`
}

// PolicyConfig names a fixed window applied to routes matching any of the
// glob patterns.
type PolicyConfig struct {
	Name   string        `koanf:"name" json:"name" jsonschema:"required"`
	Routes []string      `koanf:"routes" json:"routes" jsonschema:"required"`
	Limit  int           `koanf:"limit" json:"limit,omitempty"`
	Length time.Duration `koanf:"length" json:"length,omitempty"`
}

// SessionConfig configures the browser cookie session.
type SessionConfig struct {
	AuthKey       string        `koanf:"auth_key" json:"auth_key,omitempty" jsonschema:"description=HMAC key for the session cookie; generated per process when empty"`
	EncryptionKey string        `koanf:"encryption_key" json:"encryption_key,omitempty" jsonschema:"description=optional AES key of 16 24 or 32 bytes"`
	CookieName    string        `koanf:"cookie_name" json:"cookie_name,omitempty"`
	TTL           time.Duration `koanf:"ttl" json:"ttl,omitempty"`
	Secure        bool          `koanf:"secure" json:"secure,omitempty"`
	SameSite      string        `koanf:"same_site" json:"same_site,omitempty" jsonschema:"enum=strict,enum=lax,enum=none"`
}

// DatabaseConfig configures the credential store.
type DatabaseConfig struct {
	URL            string        `koanf:"url" json:"url,omitempty"`
	ConnectTimeout time.Duration `koanf:"connect_timeout" json:"connect_timeout,omitempty"`
}

// Default returns the configuration every layer is applied over.
func Default() Config {
	rl := ratelimit.DefaultConfig()
	policies := make([]PolicyConfig, 0, len(rl.Policies))
	for _, p := range rl.Policies {
		policies = append(policies, PolicyConfig{
			Name:   p.Name,
			Routes: append([]string(nil), p.Routes...),
		})
	}
	return Config{
		Token: TokenConfig{
			Issuer:   "secureauth",
			Audience: "secureauth-clients",
			Lifetime: auth.DefaultTokenLifetime,
		},
		RateLimit: RateLimitConfig{
			Backend: BackendMemory,
			Bucket: BucketConfig{
				Capacity:        rl.Bucket.Capacity,
				RefillPerSecond: rl.Bucket.RefillPerSecond,
			},
			Window: WindowConfig{
				Limit:  ratelimit.DefaultWindowLimit,
				Length: ratelimit.DefaultWindowLength,
			},
			Policies: policies,
			IdleTTL:  ratelimit.DefaultIdleTTL,
		},
		Session: SessionConfig{
			CookieName: auth.DefaultCookieName,
			TTL:        auth.DefaultSessionTTL,
			Secure:     true,
			SameSite:   "strict",
		},
		Database: DatabaseConfig{
			ConnectTimeout: 5 * time.Second,
		},
		HTTPAddr:    ":8080",
		GRPCAddr:    ":9090",
		MetricsAddr: "127.0.0.1:9100",
		LogFormat:   "json",
		BcryptCost:  auth.DefaultBcryptCost,
	}
}

func invalid(field string, format string, args ...any) error {
	return oops.Code(CodeInvalid).With("field", field).Errorf(format, args...)
}

// Validate reports the first problem found. It does not check that the
// database or redis are reachable.
func (c *Config) Validate() error {
	if len(c.Token.SigningKey) < auth.MinSigningKeyLength {
		return invalid("token.signing_key", "signing key must be at least %d bytes", auth.MinSigningKeyLength)
	}
	if c.Token.Issuer == "" {
		return invalid("token.issuer", "issuer is required")
	}
	if c.Token.Audience == "" {
		return invalid("token.audience", "audience is required")
	}
	if c.Token.Lifetime < time.Second {
		return invalid("token.lifetime", "lifetime must be at least 1s, got %s", c.Token.Lifetime)
	}

	if err := c.RateLimit.validate(); err != nil {
		return err
	}
	if err := c.Session.validate(); err != nil {
		return err
	}

	if c.LogFormat != "json" && c.LogFormat != "text" {
		return invalid("log_format", "log format must be 'json' or 'text', got %q", c.LogFormat)
	}
	if c.BcryptCost < auth.MinBcryptCost || c.BcryptCost > auth.MaxBcryptCost {
		return invalid("bcrypt_cost", "bcrypt cost must be between %d and %d, got %d",
			auth.MinBcryptCost, auth.MaxBcryptCost, c.BcryptCost)
	}
	if c.HTTPAddr == "" && c.GRPCAddr == "" {
		return invalid("http_addr", "at least one of http_addr or grpc_addr is required")
	}
	return nil
}

// ValidateAdmin checks only what the administrative commands (migrate,
// useradd) need: a database URL and a usable bcrypt cost.
func (c *Config) ValidateAdmin() error {
	if c.Database.URL == "" {
		return invalid("database.url", "database url is required")
	}
	if c.BcryptCost < auth.MinBcryptCost || c.BcryptCost > auth.MaxBcryptCost {
		return invalid("bcrypt_cost", "bcrypt cost must be between %d and %d, got %d",
			auth.MinBcryptCost, auth.MaxBcryptCost, c.BcryptCost)
	}
	return nil
}

func (r *RateLimitConfig) validate() error {
	switch r.Backend {
	case BackendMemory:
	case BackendRedis:
		if r.RedisURL == "" {
			return invalid("ratelimit.redis_url", "redis backend requires redis_url")
		}
	default:
		return invalid("ratelimit.backend", "unknown backend %q", r.Backend)
	}
	if r.Bucket.Capacity < 1 {
		return invalid("ratelimit.bucket.capacity", "capacity must be at least 1, got %d", r.Bucket.Capacity)
	}
	if r.Bucket.RefillPerSecond <= 0 {
		return invalid("ratelimit.bucket.refill_per_second", "refill rate must be positive, got %g", r.Bucket.RefillPerSecond)
	}
	if r.Window.Limit < 1 {
		return invalid("ratelimit.window.limit", "window limit must be at least 1, got %d", r.Window.Limit)
	}
	if r.Window.Length <= 0 {
		return invalid("ratelimit.window.length", "window length must be positive, got %s", r.Window.Length)
	}
	if r.IdleTTL < 0 {
		return invalid("ratelimit.idle_ttl", "idle ttl must not be negative")
	}
	seen := make(map[string]bool, len(r.Policies))
	for i, p := range r.Policies {
		field := "ratelimit.policies"
		if p.Name == "" {
			return oops.Code(CodeInvalid).With("field", field).With("index", i).Errorf("policy name is required")
		}
		if seen[p.Name] {
			return oops.Code(CodeInvalid).With("field", field).With("policy", p.Name).Errorf("duplicate policy name")
		}
		seen[p.Name] = true
		if len(p.Routes) == 0 {
			return oops.Code(CodeInvalid).With("field", field).With("policy", p.Name).Errorf("policy needs at least one route")
		}
		if p.Limit < 0 || p.Length < 0 {
			return oops.Code(CodeInvalid).With("field", field).With("policy", p.Name).Errorf("policy limit and length must not be negative")
		}
		for _, pattern := range p.Routes {
			if _, err := glob.Compile(pattern, '/'); err != nil {
				return oops.Code(CodeInvalid).
					With("field", field).
					With("policy", p.Name).
					With("pattern", pattern).
					Wrapf(err, "invalid route glob")
			}
		}
	}
	return nil
}

func (s *SessionConfig) validate() error {
	if s.TTL < auth.MinSessionTTL || s.TTL > auth.MaxSessionTTL {
		return invalid("session.ttl", "session ttl must be between %s and %s, got %s",
			auth.MinSessionTTL, auth.MaxSessionTTL, s.TTL)
	}
	if s.CookieName == "" {
		return invalid("session.cookie_name", "cookie name is required")
	}
	if s.AuthKey != "" && len(s.AuthKey) < 32 {
		return invalid("session.auth_key", "session auth key must be at least 32 bytes")
	}
	switch len(s.EncryptionKey) {
	case 0, 16, 24, 32:
	default:
		return invalid("session.encryption_key", "encryption key must be 16, 24 or 32 bytes")
	}
	switch s.SameSite {
	case "strict", "lax", "none":
	default:
		return invalid("session.same_site", "same_site must be strict, lax or none, got %q", s.SameSite)
	}
	if s.SameSite == "none" && !s.Secure {
		return invalid("session.same_site", "same_site none requires secure cookies")
	}
	return nil
}

// TokenSettings converts the token section for auth.NewTokenIssuer.
func (c *Config) TokenSettings() auth.TokenConfig {
	return auth.TokenConfig{
		SigningKey: []byte(c.Token.SigningKey),
		Issuer:     c.Token.Issuer,
		Audience:   c.Token.Audience,
		Lifetime:   c.Token.Lifetime,
	}
}

// SessionSettings converts the session section for auth.NewCookieSessions.
func (c *Config) SessionSettings() auth.SessionConfig {
	return auth.SessionConfig{
		CookieName: c.Session.CookieName,
		TTL:        c.Session.TTL,
		Secure:     c.Session.Secure,
		SameSite:   c.sameSite(),
	}
}

func (c *Config) sameSite() http.SameSite {
	return auth.SameSiteFromString(c.Session.SameSite)
}

// RateLimitSettings converts the ratelimit section for
// ratelimit.NewController. Policies without their own limit or length take
// them from the window section.
func (c *Config) RateLimitSettings() ratelimit.Config {
	out := ratelimit.Config{
		Bucket: ratelimit.BucketPolicy{
			Capacity:        c.RateLimit.Bucket.Capacity,
			RefillPerSecond: c.RateLimit.Bucket.RefillPerSecond,
		},
	}
	for _, p := range c.RateLimit.Policies {
		rp := ratelimit.RoutePolicy{
			Name:   p.Name,
			Routes: append([]string(nil), p.Routes...),
			Limit:  p.Limit,
			Length: p.Length,
		}
		if rp.Limit == 0 {
			rp.Limit = c.RateLimit.Window.Limit
		}
		if rp.Length == 0 {
			rp.Length = c.RateLimit.Window.Length
		}
		out.Policies = append(out.Policies, rp)
	}
	return out
}
