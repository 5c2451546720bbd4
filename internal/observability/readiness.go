// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package observability

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Pinger is a dependency the service needs to answer requests.
// The credential repository and the redis limiter store implement it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping implements Pinger.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// DefaultCheckTimeout bounds each readiness probe.
const DefaultCheckTimeout = 2 * time.Second

// Readiness aggregates dependency checks. All checks run concurrently.
type Readiness struct {
	checks  map[string]Pinger
	timeout time.Duration
}

// NewReadiness creates an empty Readiness. With no checks it is always ready.
func NewReadiness(timeout time.Duration) *Readiness {
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	return &Readiness{checks: make(map[string]Pinger), timeout: timeout}
}

// Add registers a named check. It must be called before the server starts.
func (r *Readiness) Add(name string, p Pinger) *Readiness {
	r.checks[name] = p
	return r
}

// Check runs every check and returns the names of those that failed,
// sorted. An empty result means ready.
func (r *Readiness) Check(ctx context.Context) []string {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var (
		mu     sync.Mutex
		failed []string
		wg     sync.WaitGroup
	)
	for name, p := range r.checks {
		wg.Add(1)
		go func(name string, p Pinger) {
			defer wg.Done()
			if err := p.Ping(ctx); err != nil {
				mu.Lock()
				failed = append(failed, name)
				mu.Unlock()
			}
		}(name, p)
	}
	wg.Wait()
	sort.Strings(failed)
	return failed
}
