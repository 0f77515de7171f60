package schedule

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLockProvider implements LockProvider using Redis SETNX
type RedisLockProvider struct {
	client *redis.Client
	prefix string
}

func NewRedisLockProvider(client *redis.Client, prefix string) *RedisLockProvider {
	return &RedisLockProvider{client: client, prefix: prefix}
}

func (r *RedisLockProvider) GetLock(ctx context.Context, name string, duration time.Duration) (bool, error) {
	// SET name value NX EX duration
	success, err := r.client.SetNX(ctx, r.prefix+"lock:"+name, "locked", duration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

func (r *RedisLockProvider) ReleaseLock(ctx context.Context, name string) error {
	return r.client.Del(ctx, r.prefix+"lock:"+name).Err()
}
