// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/secureauth/secureauth/pkg/errutil"
)

// RoutePolicy is a named fixed-window policy applied to the routes its
// glob patterns match. Patterns use '/' as separator, so '*' stays within
// one path segment and '**' spans segments.
type RoutePolicy struct {
	Name   string
	Routes []string
	Limit  int
	Length time.Duration
}

// Config configures a Controller.
type Config struct {
	Bucket   BucketPolicy
	Policies []RoutePolicy
}

// DefaultConfig returns the stock limits: a 10 token bucket refilling at
// 2/s and a 10 per 10s window on the issuance routes.
func DefaultConfig() Config {
	return Config{
		Bucket: BucketPolicy{
			Capacity:        DefaultBucketCapacity,
			RefillPerSecond: DefaultRefillPerSecond,
		},
		Policies: []RoutePolicy{{
			Name:   "token-issuance",
			Routes: []string{"/api/auth/token", "/secureauth.v1.Authenticator/GetToken"},
			Limit:  DefaultWindowLimit,
			Length: DefaultWindowLength,
		}},
	}
}

// Recorder receives admission metrics.
type Recorder interface {
	RecordAdmissionRejection(limiter string)
}

type nopRecorder struct{}

func (nopRecorder) RecordAdmissionRejection(string) {}

type compiledPolicy struct {
	name     string
	matchers []glob.Glob
	window   WindowPolicy
}

func (p compiledPolicy) matches(route string) bool {
	for _, m := range p.matchers {
		if m.Match(route) {
			return true
		}
	}
	return false
}

// Controller admits or rejects issuance attempts. Both the client's token
// bucket and the route's window (if any policy matches) are charged on
// every call; the attempt is admitted only if both admit.
type Controller struct {
	store    Store
	bucket   BucketPolicy
	policies []compiledPolicy
	now      func() time.Time
	recorder Recorder
	logger   *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides the clock passed to the store.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// NewController validates cfg and compiles its route patterns.
func NewController(store Store, cfg Config, opts ...Option) (*Controller, error) {
	if store == nil {
		return nil, oops.Code("RATELIMIT_INVALID_CONFIG").Errorf("store is required")
	}
	if cfg.Bucket.Capacity < 1 {
		return nil, oops.Code("RATELIMIT_INVALID_CONFIG").
			With("capacity", cfg.Bucket.Capacity).
			Errorf("bucket capacity must be at least 1")
	}
	if cfg.Bucket.RefillPerSecond <= 0 {
		return nil, oops.Code("RATELIMIT_INVALID_CONFIG").
			With("refill_per_second", cfg.Bucket.RefillPerSecond).
			Errorf("bucket refill rate must be positive")
	}

	c := &Controller{
		store:    store,
		bucket:   cfg.Bucket,
		now:      time.Now,
		recorder: nopRecorder{},
		logger:   slog.Default(),
	}
	for _, p := range cfg.Policies {
		compiled, err := compilePolicy(p)
		if err != nil {
			return nil, err
		}
		c.policies = append(c.policies, compiled)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func compilePolicy(p RoutePolicy) (compiledPolicy, error) {
	if p.Name == "" {
		return compiledPolicy{}, oops.Code("RATELIMIT_INVALID_CONFIG").Errorf("policy name is required")
	}
	if p.Limit < 1 || p.Length <= 0 {
		return compiledPolicy{}, oops.Code("RATELIMIT_INVALID_CONFIG").
			With("policy", p.Name).
			Errorf("policy limit must be at least 1 and length positive")
	}
	out := compiledPolicy{name: p.Name, window: WindowPolicy{Limit: p.Limit, Length: p.Length}}
	for _, pattern := range p.Routes {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return compiledPolicy{}, oops.Code("RATELIMIT_INVALID_CONFIG").
				With("policy", p.Name).
				With("pattern", pattern).
				Wrap(err)
		}
		out.matchers = append(out.matchers, g)
	}
	return out, nil
}

// PolicyFor returns the name of the first policy matching route.
func (c *Controller) PolicyFor(route string) (string, bool) {
	if p := c.policyFor(route); p != nil {
		return p.name, true
	}
	return "", false
}

func (c *Controller) policyFor(route string) *compiledPolicy {
	for i := range c.policies {
		if c.policies[i].matches(route) {
			return &c.policies[i]
		}
	}
	return nil
}

// Admit charges one attempt by clientKey against route. Capacity is
// consumed whatever happens to the attempt afterwards. A store failure
// fails closed with RATELIMIT_STORE_FAILED.
func (c *Controller) Admit(ctx context.Context, clientKey, route string) (Decision, error) {
	if clientKey == "" {
		clientKey = UnknownClient
	}
	now := c.now()

	bucketDecision, err := c.store.TakeToken(ctx, clientKey, c.bucket, now)
	if err != nil {
		return Decision{}, c.storeFailure(err, LimiterTokenBucket)
	}
	decisions := []Decision{bucketDecision}
	if !bucketDecision.Allowed {
		c.recorder.RecordAdmissionRejection(LimiterTokenBucket)
	}

	if p := c.policyFor(route); p != nil {
		windowDecision, err := c.store.HitWindow(ctx, p.name+":"+clientKey, p.window, now)
		if err != nil {
			return Decision{}, c.storeFailure(err, LimiterFixedWindow)
		}
		decisions = append(decisions, windowDecision)
		if !windowDecision.Allowed {
			c.recorder.RecordAdmissionRejection(LimiterFixedWindow)
		}
	}

	d := combine(decisions...)
	if !d.Allowed {
		c.logger.DebugContext(ctx, "admission rejected",
			"client", clientKey,
			"route", route,
			"retry_after", d.RetryAfter)
	}
	return d, nil
}

func (c *Controller) storeFailure(err error, limiter string) error {
	if errutil.HasCode(err) {
		return oops.With("limiter", limiter).Wrap(err)
	}
	return oops.Code("RATELIMIT_STORE_FAILED").With("limiter", limiter).Wrap(err)
}
