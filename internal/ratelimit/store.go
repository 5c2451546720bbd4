// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package ratelimit

import (
	"context"
	"time"
)

// Store holds limiter state per partition key. Every method performs its
// read-modify-write atomically with respect to other calls for the same key,
// and creates state lazily on first sight of a key.
type Store interface {
	// TakeToken refills the bucket for key up to now and consumes one token.
	TakeToken(ctx context.Context, key string, policy BucketPolicy, now time.Time) (Decision, error)

	// HitWindow counts one request against the fixed window for key.
	HitWindow(ctx context.Context, key string, policy WindowPolicy, now time.Time) (Decision, error)
}

// Pinger is implemented by stores backed by an external service.
type Pinger interface {
	Ping(ctx context.Context) error
}
