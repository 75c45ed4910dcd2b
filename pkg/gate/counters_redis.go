package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounterStore shares per-scope counters across kernel instances.
// Daily keys expire after two days so abandoned scopes clean themselves
// up; the cap check uses INCR with a compensating DECR above cap, which
// keeps the "below cap" decision atomic without a Lua script.
type RedisCounterStore struct {
	client *redis.Client
	prefix string
	clock  func() time.Time
}

// NewRedisCounterStore wraps a Redis client. prefix namespaces the keys,
// typically the tenant id.
func NewRedisCounterStore(client *redis.Client, prefix string, clock func() time.Time) *RedisCounterStore {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &RedisCounterStore{client: client, prefix: prefix, clock: clock}
}

func (s *RedisCounterStore) dailyKey(scope string) string {
	return fmt.Sprintf("%s:daily:%s:%s", s.prefix, scope, s.clock().Format("2006-01-02"))
}

func (s *RedisCounterStore) lastRunKey(scope string) string {
	return fmt.Sprintf("%s:lastrun:%s", s.prefix, scope)
}

func (s *RedisCounterStore) IncrDailyBelow(ctx context.Context, scope string, limit int) (int64, bool, error) {
	key := s.dailyKey(scope)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, false, fmt.Errorf("counter store: incr %s: %w", key, err)
	}
	if count == 1 {
		// First increment of the day sets the expiry.
		if err := s.client.Expire(ctx, key, 48*time.Hour).Err(); err != nil {
			return 0, false, fmt.Errorf("counter store: expire %s: %w", key, err)
		}
	}

	if limit > 0 && count > int64(limit) {
		if err := s.client.Decr(ctx, key).Err(); err != nil {
			return 0, false, fmt.Errorf("counter store: decr %s: %w", key, err)
		}
		return count - 1, false, nil
	}
	return count, true, nil
}

func (s *RedisCounterStore) DailyCount(ctx context.Context, scope string) (int64, error) {
	count, err := s.client.Get(ctx, s.dailyKey(scope)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("counter store: get %s: %w", s.dailyKey(scope), err)
	}
	return count, nil
}

func (s *RedisCounterStore) LastExecution(ctx context.Context, scope string) (time.Time, bool, error) {
	raw, err := s.client.Get(ctx, s.lastRunKey(scope)).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("counter store: get %s: %w", s.lastRunKey(scope), err)
	}

	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("counter store: parse last run: %w", err)
	}
	return at, true, nil
}

func (s *RedisCounterStore) RecordExecution(ctx context.Context, scope string, at time.Time) error {
	err := s.client.Set(ctx, s.lastRunKey(scope), at.UTC().Format(time.RFC3339Nano), 0).Err()
	if err != nil {
		return fmt.Errorf("counter store: set %s: %w", s.lastRunKey(scope), err)
	}
	return nil
}
