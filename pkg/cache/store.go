package cache

import (
	"context"
	"time"
)

// Store represents a cache backend. A missing key is reported as an
// empty value, not an error.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key string, value string, ttl time.Duration) error
	Forget(ctx context.Context, key string) error
}
