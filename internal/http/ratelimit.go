package http

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Limiter interface {
	// Allow counts one request for key and reports whether it is within the
	// limit, and if not, how long until the window resets.
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// RedisLimiter is a fixed-window counter shared by every replica that uses
// the same Redis.
type RedisLimiter struct {
	client *redis.Client
	max    int
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, max: max, window: window, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	now := l.now()
	windowStart := now.Truncate(l.window)
	bucket := rateLimitKey(key, windowStart)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, bucket)
	pipe.Expire(ctx, bucket, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, err
	}
	if incr.Val() > int64(l.max) {
		return false, windowStart.Add(l.window).Sub(now), nil
	}
	return true, 0, nil
}

func rateLimitKey(client string, windowStart time.Time) string {
	return fmt.Sprintf("aquasense:ratelimit:%s:%d", client, windowStart.Unix())
}
