// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultCleanupInterval is the interval at which the sweeper runs.
const DefaultCleanupInterval = 5 * time.Minute

// MemoryConfig configures a MemoryStore.
type MemoryConfig struct {
	// IdleTTL is the minimum time a key must go untouched before the sweeper
	// may reclaim it. Defaults to DefaultIdleTTL.
	IdleTTL time.Duration

	// CleanupInterval is the sweeper period. Zero uses DefaultCleanupInterval;
	// a negative value disables the sweeper.
	CleanupInterval time.Duration

	// Now is the sweeper's clock. Defaults to time.Now.
	Now func() time.Time

	// Registerer, if set, receives a gauge of tracked keys.
	Registerer prometheus.Registerer
}

// entry is the state of one partition key. Its mutex serializes updates
// for that key only.
type entry struct {
	mu       sync.Mutex
	bucket   BucketState
	window   WindowState
	lastSeen time.Time
	// reclaimAt is when the state becomes indistinguishable from fresh.
	reclaimAt time.Time
	deleted   bool
}

// MemoryStore keeps limiter state in process. It is safe for concurrent use.
//
// When the sweeper is enabled a background goroutine reclaims idle keys.
// Call Close to stop it.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
	idleTTL time.Duration
	now     func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	keyGauge prometheus.Gauge
}

// NewMemoryStore creates a MemoryStore.
func NewMemoryStore(cfg MemoryConfig) *MemoryStore {
	idleTTL := cfg.IdleTTL
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &MemoryStore{
		entries:  make(map[string]*entry),
		idleTTL:  idleTTL,
		now:      now,
		stopChan: make(chan struct{}),
	}

	if cfg.Registerer != nil {
		s.keyGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "secureauth_ratelimit_keys",
			Help: "Current number of tracked rate limiter keys",
		})
		cfg.Registerer.MustRegister(s.keyGauge)
	}

	interval := cfg.CleanupInterval
	if interval == 0 {
		interval = DefaultCleanupInterval
	}
	if interval > 0 {
		s.wg.Add(1)
		go s.cleanupLoop(interval)
	}
	return s
}

// TakeToken implements Store.
func (s *MemoryStore) TakeToken(_ context.Context, key string, policy BucketPolicy, now time.Time) (Decision, error) {
	e := s.lock("bucket:"+key, func(e *entry) {
		e.bucket = policy.Fresh(now)
	})
	defer e.mu.Unlock()

	var d Decision
	e.bucket, d = policy.Take(e.bucket, now)
	e.touch(now, now.Add(policy.FullAfter(e.bucket)))
	return d, nil
}

// HitWindow implements Store.
func (s *MemoryStore) HitWindow(_ context.Context, key string, policy WindowPolicy, now time.Time) (Decision, error) {
	e := s.lock("window:"+key, nil)
	defer e.mu.Unlock()

	var d Decision
	e.window, d = policy.Hit(e.window, now)
	e.touch(now, e.window.Start.Add(policy.Length))
	return d, nil
}

// KeyCount returns the number of tracked keys.
func (s *MemoryStore) KeyCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// lock returns the locked entry for key, creating it with init if absent.
// An entry reclaimed between lookup and lock is never used.
func (s *MemoryStore) lock(key string, init func(*entry)) *entry {
	for {
		s.mu.RLock()
		e := s.entries[key]
		s.mu.RUnlock()

		if e == nil {
			s.mu.Lock()
			if e = s.entries[key]; e == nil {
				e = &entry{}
				if init != nil {
					init(e)
				}
				s.entries[key] = e
				if s.keyGauge != nil {
					s.keyGauge.Set(float64(len(s.entries)))
				}
			}
			s.mu.Unlock()
		}

		e.mu.Lock()
		if !e.deleted {
			return e
		}
		e.mu.Unlock()
	}
}

func (e *entry) touch(now, reclaimAt time.Time) {
	if now.After(e.lastSeen) {
		e.lastSeen = now
	}
	e.reclaimAt = reclaimAt
}

// Cleanup removes keys idle for at least the idle TTL whose state has
// returned to fresh. It is called by the sweeper but may be called directly.
func (s *MemoryStore) Cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.entries {
		e.mu.Lock()
		if now.Sub(e.lastSeen) >= s.idleTTL && !now.Before(e.reclaimAt) {
			e.deleted = true
			delete(s.entries, key)
		}
		e.mu.Unlock()
	}

	if s.keyGauge != nil {
		s.keyGauge.Set(float64(len(s.entries)))
	}
}

func (s *MemoryStore) cleanupLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.Cleanup()
		}
	}
}

// Close stops the sweeper and waits for it to exit. It is safe to call
// more than once.
func (s *MemoryStore) Close() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}
