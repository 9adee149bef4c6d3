package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// RedisLimiter is a fixed one-minute window counter. A key may be hit
// perMinute+burst times per window.
type RedisLimiter struct {
	rdb       *redis.Client
	perMinute int
	burst     int
	now       func() time.Time
}

func NewRedisLimiter(rdb *redis.Client, perMinute, burst int) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, perMinute: perMinute, burst: burst, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	windowStart := l.now().Truncate(time.Minute)
	fullKey := fmt.Sprintf("%s%s:%d", keyPrefix, key, windowStart.Unix())

	pipe := l.rdb.Pipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.ExpireNX(ctx, fullKey, time.Minute)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Result{}, fmt.Errorf("rate limit check: %w", err)
	}

	return evaluate(incr.Val(), l.perMinute+l.burst, windowStart.Add(time.Minute)), nil
}

func evaluate(count int64, limit int, resetAt time.Time) Result {
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= int64(limit),
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}
