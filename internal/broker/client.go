package broker

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisClient is the slice of *redis.Client this package actually calls,
// narrowed to an interface so tests can substitute a fake broker without a
// live Redis server.
type redisClient interface {
	RPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}
