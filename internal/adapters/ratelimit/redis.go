package ratelimit

import (
	"context"
	"time"

	"pet-clinical-history/internal/ports/ratelimit"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "petclinic:ratelimit:"

// RedisLimiter comparte contadores entre instancias: INCR + EXPIRE NX en un pipeline MULTI.
type RedisLimiter struct {
	client redis.UniversalClient
}

func NewRedisLimiter(client redis.UniversalClient) *RedisLimiter {
	return &RedisLimiter{client: client}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, win time.Duration) (ratelimit.Result, error) {
	k := keyPrefix + key

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.ExpireNX(ctx, k, win)
		ttl = p.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return ratelimit.Result{}, err
	}

	count := int(incr.Val())
	resetAt := time.Now().Add(win)
	if d := ttl.Val(); d > 0 {
		resetAt = time.Now().Add(d)
	}

	if count > limit {
		return ratelimit.Result{Allowed: false, Remaining: 0, ResetAt: resetAt}, nil
	}
	return ratelimit.Result{Allowed: true, Remaining: limit - count, ResetAt: resetAt}, nil
}
