package scheduler

import (
	"context"
	"log/slog"
	"time"

	"telecaller-platform/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker guards a job so only one replica runs a given tick.
type Locker interface {
	TryLock(ctx context.Context) (release func(), ok bool, err error)
}

// RedisLocker is a Locker over a single Redis key.
// TTL must exceed the longest expected pass.
type RedisLocker struct {
	Client *redis.Client
	Key    string
	TTL    time.Duration
}

func NewRedisLocker(rdb *redis.Client, key string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{Client: rdb, Key: key, TTL: ttl}
}

func (l *RedisLocker) TryLock(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := utils.AcquireLock(ctx, l.Client, l.Key, token, l.TTL)
	if err != nil || !ok {
		return func() {}, false, err
	}
	release := func() {
		// ctx may already be cancelled at shutdown
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := utils.ReleaseLock(rctx, l.Client, l.Key, token); err != nil {
			slog.Default().Warn("scheduler lock release failed", "key", l.Key, "err", err)
		}
	}
	return release, true, nil
}
