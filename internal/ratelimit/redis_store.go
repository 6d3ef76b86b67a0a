package ratelimit

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// INCR and set the expiry on the first hit of a window, atomically.
// A key that somehow lost its TTL gets one again so it cannot stick forever.
const fixedWindowScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`

// RedisStore is a CounterStore shared by every API instance
type RedisStore struct {
	client redis.Scripter
	script *redis.Script
	now    func() time.Time
}

// NewRedisStore creates a store on an existing Redis client
func NewRedisStore(client redis.Scripter) *RedisStore {
	return &RedisStore{
		client: client,
		script: redis.NewScript(fixedWindowScript),
		now:    time.Now,
	}
}

// WithClock replaces the time source used for ResetAt. Used by tests.
func (s *RedisStore) WithClock(now func() time.Time) *RedisStore {
	s.now = now
	return s
}

func (s *RedisStore) IncrementAndCheck(ctx context.Context, key string, win time.Duration, limit int) (Result, error) {
	if key == "" {
		return Result{}, errors.New("rate limiter key is empty")
	}

	res, err := s.script.Run(ctx, s.client, []string{key}, win.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, err
	}
	if len(res) < 2 {
		return Result{}, errors.New("invalid rate limit script response")
	}

	count := int(res[0])
	return Result{
		Allowed: count <= limit,
		Count:   count,
		Limit:   limit,
		ResetAt: s.now().Add(time.Duration(res[1]) * time.Millisecond),
	}, nil
}
