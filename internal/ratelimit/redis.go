// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// DefaultKeyPrefix namespaces limiter keys in a shared redis.
const DefaultKeyPrefix = "secureauth:rl:"

// takeTokenScript refills and consumes in one atomic step.
// KEYS[1] bucket key
// ARGV[1] capacity, ARGV[2] refill per second, ARGV[3] now (ms), ARGV[4] ttl (ms)
// Returns {allowed, retry_after_ms, remaining}.
var takeTokenScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])
local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil or ts == nil then
  tokens = capacity
  ts = now
end
local elapsed = now - ts
if elapsed < 0 then
  elapsed = 0
else
  ts = now
end
tokens = math.min(capacity, tokens + (elapsed / 1000) * rate)
local allowed = 0
local retry = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
else
  retry = math.ceil(((1 - tokens) / rate) * 1000)
end
redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'ts', tostring(ts))
redis.call('PEXPIRE', KEYS[1], ttl)
return {allowed, retry, math.floor(tokens)}
`)

// hitWindowScript counts one request in a fixed window atomically.
// KEYS[1] window key
// ARGV[1] limit, ARGV[2] length (ms), ARGV[3] now (ms), ARGV[4] ttl (ms)
// Returns {allowed, retry_after_ms, remaining}.
var hitWindowScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local length = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])
local state = redis.call('HMGET', KEYS[1], 'start', 'count')
local start = tonumber(state[1])
local count = tonumber(state[2])
if start == nil or count == nil or now - start >= length then
  start = now
  count = 0
end
local allowed = 0
local retry = 0
if count < limit then
  count = count + 1
  allowed = 1
else
  retry = start + length - now
end
redis.call('HSET', KEYS[1], 'start', tostring(start), 'count', tostring(count))
redis.call('PEXPIRE', KEYS[1], ttl)
return {allowed, retry, limit - count}
`)

// RedisStore keeps limiter state in redis so several service instances
// share one logical limiter. Each update is a single Lua script and so is
// atomic across instances. Time is supplied by the caller.
type RedisStore struct {
	client  redis.UniversalClient
	prefix  string
	idleTTL time.Duration
}

// NewRedisStore creates a RedisStore. An empty prefix uses DefaultKeyPrefix.
func NewRedisStore(client redis.UniversalClient, prefix string, idleTTL time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	return &RedisStore{client: client, prefix: prefix, idleTTL: idleTTL}
}

// TakeToken implements Store.
func (s *RedisStore) TakeToken(ctx context.Context, key string, policy BucketPolicy, now time.Time) (Decision, error) {
	ttl := s.idleTTL
	if full := policy.FullAfter(BucketState{}); full > ttl {
		ttl = full
	}
	return s.run(ctx, takeTokenScript, s.prefix+"bucket:"+key,
		policy.Capacity,
		strconv.FormatFloat(policy.RefillPerSecond, 'f', -1, 64),
		now.UnixMilli(),
		ttl.Milliseconds(),
	)
}

// HitWindow implements Store.
func (s *RedisStore) HitWindow(ctx context.Context, key string, policy WindowPolicy, now time.Time) (Decision, error) {
	ttl := s.idleTTL
	if policy.Length > ttl {
		ttl = policy.Length
	}
	return s.run(ctx, hitWindowScript, s.prefix+"window:"+key,
		policy.Limit,
		policy.Length.Milliseconds(),
		now.UnixMilli(),
		ttl.Milliseconds(),
	)
}

// Ping implements Pinger.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) run(ctx context.Context, script *redis.Script, key string, args ...any) (Decision, error) {
	vals, err := script.Run(ctx, s.client, []string{key}, args...).Int64Slice()
	if err != nil {
		return Decision{}, oops.Code("RATELIMIT_STORE_FAILED").
			With("key", key).
			Wrap(err)
	}
	if len(vals) != 3 {
		return Decision{}, oops.Code("RATELIMIT_STORE_FAILED").
			With("key", key).
			Errorf("unexpected script reply of length %d", len(vals))
	}
	d := Decision{
		Allowed:   vals[0] == 1,
		Remaining: int(vals[2]),
	}
	if !d.Allowed {
		d.RetryAfter = time.Duration(vals[1]) * time.Millisecond
		d.Remaining = 0
	}
	return d, nil
}

// DialRedis parses redisURL and pings the server, retrying with
// exponential backoff up to attempts times.
func DialRedis(ctx context.Context, redisURL string, attempts uint64) (*redis.Client, error) {
	if redisURL == "" {
		return nil, oops.Code("RATELIMIT_STORE_FAILED").Errorf("redis url is empty")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, oops.Code("RATELIMIT_STORE_FAILED").With("operation", "parse url").Wrap(err)
	}
	client := redis.NewClient(opts)

	backoff := retry.WithMaxRetries(attempts, retry.NewExponential(200*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = client.Close() //nolint:errcheck // already failing
		return nil, oops.Code("RATELIMIT_STORE_FAILED").With("operation", "ping").Wrap(err)
	}
	return client, nil
}
