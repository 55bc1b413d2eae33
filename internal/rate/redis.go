package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	countPrefix = "idg:c:"
	lockPrefix  = "idg:l:"
)

// RedisGuard is a Guard backed by Redis counters, for multi-node
// deployments where every node must see the same attempt budget.
type RedisGuard struct {
	redis  redis.UniversalClient
	config Config
}

// NewRedisGuard validates cfg and returns a guard using the given client.
func NewRedisGuard(redisClient redis.UniversalClient, cfg Config) (*RedisGuard, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &RedisGuard{redis: redisClient, config: cfg}, nil
}

// Check reports whether key may attempt right now.
func (g *RedisGuard) Check(ctx context.Context, key string) (Status, error) {
	ttl, err := g.redis.TTL(ctx, lockPrefix+key).Result()
	if err != nil {
		return Status{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if ttl > 0 {
		return Status{LockedUntil: time.Now().Add(ttl)}, nil
	}

	count, err := g.redis.Get(ctx, countPrefix+key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Status{Allowed: true, Remaining: g.config.MaxAttempts}, nil
		}
		return Status{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	remaining := g.config.MaxAttempts - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Status{Allowed: true, Remaining: remaining}, nil
}

// RecordFailure counts a failed attempt; the failure that reaches the
// threshold sets the lock marker and returns true.
func (g *RedisGuard) RecordFailure(ctx context.Context, key string) (bool, error) {
	count, err := g.redis.Incr(ctx, countPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if count == 1 {
		// Fixed-window semantics: TTL only on the first hit.
		if err := g.redis.Expire(ctx, countPrefix+key, g.config.Window).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}
	if count < int64(g.config.MaxAttempts) {
		return false, nil
	}
	if err := g.redis.Set(ctx, lockPrefix+key, 1, g.config.LockoutDuration).Err(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return true, nil
}

// Reset clears the key's counter and lock.
func (g *RedisGuard) Reset(ctx context.Context, key string) error {
	if err := g.redis.Del(ctx, countPrefix+key, lockPrefix+key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}
