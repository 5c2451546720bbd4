// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

// Package ratelimit implements admission control for token issuance: a
// per-client token bucket combined with per-route fixed windows.
package ratelimit

import (
	"math"
	"time"
)

// Default limiter values.
const (
	// DefaultBucketCapacity is the number of requests a client can make in a
	// burst before the bucket is empty.
	DefaultBucketCapacity = 10

	// DefaultRefillPerSecond is the sustained request rate.
	DefaultRefillPerSecond = 2.0

	// DefaultWindowLimit is the number of requests per fixed window.
	DefaultWindowLimit = 10

	// DefaultWindowLength is the fixed window duration.
	DefaultWindowLength = 10 * time.Second

	// DefaultIdleTTL is how long an untouched key is kept before it may be
	// reclaimed.
	DefaultIdleTTL = time.Hour

	// UnknownClient partitions requests whose client key could not be derived.
	UnknownClient = "unknown"
)

// Limiter names reported to metrics.
const (
	LimiterTokenBucket = "token_bucket"
	LimiterFixedWindow = "fixed_window"
)

// Decision is the result of one admission check.
type Decision struct {
	Allowed bool
	// RetryAfter is zero when Allowed. Otherwise it is the wait until the
	// limiter would admit again.
	RetryAfter time.Duration
	// Remaining is the whole number of requests still available.
	Remaining int
}

// BucketPolicy configures a token bucket.
type BucketPolicy struct {
	Capacity        int
	RefillPerSecond float64
}

// BucketState is the mutable state of one bucket. 0 <= Tokens <= Capacity.
type BucketState struct {
	Tokens     float64
	LastRefill time.Time
}

// Fresh returns the state of a bucket first observed at now: full.
func (p BucketPolicy) Fresh(now time.Time) BucketState {
	return BucketState{Tokens: float64(p.Capacity), LastRefill: now}
}

// Take refills s for the time elapsed up to now and consumes one token if
// available. A clock that moves backwards refills nothing.
func (p BucketPolicy) Take(s BucketState, now time.Time) (BucketState, Decision) {
	elapsed := now.Sub(s.LastRefill).Seconds()
	if elapsed < 0 {
		elapsed = 0
	} else {
		s.LastRefill = now
	}
	s.Tokens = math.Min(float64(p.Capacity), s.Tokens+elapsed*p.RefillPerSecond)

	if s.Tokens >= 1.0 {
		s.Tokens -= 1.0
		return s, Decision{Allowed: true, Remaining: int(s.Tokens)}
	}

	deficit := 1.0 - s.Tokens
	wait := time.Duration(math.Ceil(deficit / p.RefillPerSecond * float64(time.Second/time.Millisecond)))
	return s, Decision{RetryAfter: wait * time.Millisecond}
}

// FullAfter returns how long an untouched bucket in state s takes to refill
// completely. Reclaiming it after that is unobservable.
func (p BucketPolicy) FullAfter(s BucketState) time.Duration {
	missing := float64(p.Capacity) - s.Tokens
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing / p.RefillPerSecond * float64(time.Second))
}

// WindowPolicy configures a fixed window.
type WindowPolicy struct {
	Limit  int
	Length time.Duration
}

// WindowState is the mutable state of one window.
type WindowState struct {
	Start time.Time
	Count int
}

// Hit counts one request at now, starting a new window when the current
// one has elapsed.
func (p WindowPolicy) Hit(s WindowState, now time.Time) (WindowState, Decision) {
	if s.Start.IsZero() || now.Sub(s.Start) >= p.Length {
		s = WindowState{Start: now}
	}
	if s.Count < p.Limit {
		s.Count++
		return s, Decision{Allowed: true, Remaining: p.Limit - s.Count}
	}
	wait := s.Start.Add(p.Length).Sub(now)
	if wait < 0 {
		wait = 0
	}
	return s, Decision{RetryAfter: wait}
}

// combine merges decisions from independent limiters: admitted only if
// every limiter admitted, retrying after the slowest declining one.
func combine(decisions ...Decision) Decision {
	out := Decision{Allowed: true, Remaining: math.MaxInt}
	for _, d := range decisions {
		if !d.Allowed {
			out.Allowed = false
			if d.RetryAfter > out.RetryAfter {
				out.RetryAfter = d.RetryAfter
			}
		}
		if d.Remaining < out.Remaining {
			out.Remaining = d.Remaining
		}
	}
	if !out.Allowed {
		out.Remaining = 0
	}
	return out
}
