// Package lock provides a Redis-backed tick lock for the scheduler. It has
// the same contract as db.JobLockRepository: the first caller for a lock id
// wins until the TTL expires.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"leanpulse/internal/types"
)

const keyPrefix = "leanpulse:joblock:"

// setNXer is the subset of redis.Cmdable used by RedisLocker.
type setNXer interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

// RedisLocker acquires locks with SET NX PX.
type RedisLocker struct {
	client setNXer
	closer func() error
}

// NewRedisLocker connects to redisURL and verifies it with PING.
func NewRedisLocker(ctx context.Context, redisURL string) (*RedisLocker, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("lock: parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("lock: redis ping: %w", err)
	}
	return &RedisLocker{client: client, closer: client.Close}, nil
}

// Acquire reports whether workerID obtained lockID for ttl.
func (l *RedisLocker) Acquire(ctx context.Context, lockID, workerID string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, keyPrefix+lockID, workerID, ttl).Result()
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to acquire redis lock", err)
	}
	return ok, nil
}

// Close releases the Redis connection.
func (l *RedisLocker) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer()
}
