package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "ratelimit:"

// hitScript performs the fixed-window step server-side so concurrent checks
// from several instances are serialised by Redis itself.
//
// KEYS[1] = entry key
// ARGV[1] = now (unix ms), ARGV[2] = window (ms), ARGV[3] = limit
// Returns {count, reset_unix_ms, allowed(0|1)}.
var hitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

local fields = redis.call('HMGET', key, 'count', 'reset')
local count = tonumber(fields[1])
local reset = tonumber(fields[2])

if count == nil or reset == nil or now > reset then
  reset = now + window
  redis.call('HSET', key, 'count', 1, 'reset', reset)
  redis.call('PEXPIREAT', key, reset + 1)
  return {1, reset, 1}
end

if count < limit then
  count = redis.call('HINCRBY', key, 'count', 1)
  return {count, reset, 1}
end

return {count, reset, 0}
`)

// RedisStore keeps entries in Redis hashes so limits hold across instances.
//
// Each entry is a hash {count, reset} whose key expires just after the window
// closes, which bounds memory without a sweep.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// RedisStoreConfig configures RedisStore.
type RedisStoreConfig struct {
	// Prefix is prepended to every key. Default: "ratelimit:".
	Prefix string
}

// NewRedisStore creates a Redis-backed store using client.
func NewRedisStore(client redis.UniversalClient, cfg RedisStoreConfig) *RedisStore {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: cfg.Prefix}
}

// Get returns the entry for key.
func (s *RedisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	vals, err := s.client.HMGet(ctx, s.prefix+key, "count", "reset").Result()
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis hmget: %w", err)
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return Entry{}, false, nil
	}

	count, err := parseRedisInt(vals[0])
	if err != nil {
		return Entry{}, false, fmt.Errorf("parse count: %w", err)
	}
	reset, err := parseRedisInt(vals[1])
	if err != nil {
		return Entry{}, false, fmt.Errorf("parse reset: %w", err)
	}
	return Entry{Count: int(count), WindowResetAt: time.UnixMilli(reset)}, true, nil
}

// Set creates or replaces the entry for key. The key expires when the window closes.
func (s *RedisStore) Set(ctx context.Context, key string, entry Entry) error {
	k := s.prefix + key
	reset := entry.WindowResetAt.UnixMilli()
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, k, "count", entry.Count, "reset", reset)
		pipe.PExpireAt(ctx, k, time.UnixMilli(reset+1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set entry: %w", err)
	}
	return nil
}

// Delete removes the entry for key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Hit runs the fixed-window step atomically in Redis.
func (s *RedisStore) Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Entry, bool, error) {
	res, err := hitScript.Run(ctx, s.client,
		[]string{s.prefix + key},
		now.UnixMilli(), window.Milliseconds(), limit,
	).Int64Slice()
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis hit script: %w", err)
	}
	if len(res) != 3 {
		return Entry{}, false, fmt.Errorf("redis hit script: unexpected reply length %d", len(res))
	}
	entry := Entry{Count: int(res[0]), WindowResetAt: time.UnixMilli(res[1])}
	return entry, res[2] == 1, nil
}

// Ping checks connectivity, used by readiness probes.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func parseRedisInt(v interface{}) (int64, error) {
	switch t := v.(type) {
	case string:
		return strconv.ParseInt(t, 10, 64)
	case int64:
		return t, nil
	default:
		return 0, errors.New("unexpected redis value type")
	}
}
