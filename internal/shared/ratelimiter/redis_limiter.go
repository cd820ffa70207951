package ratelimiter

import (
	"context"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// allower は (*redis_rate.Limiter).Allow と同じシグネチャを持ちます。
type allower interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)
}

// RedisLimiter は redis_rate (GCRA) による複数インスタンス間で共有される予算です。
// キーは prefix + key で保存されます。
type RedisLimiter struct {
	limiter allower
	limit   redis_rate.Limit
	prefix  string
	enabled bool
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter は rdb を使う RedisLimiter を作成します。
func NewRedisLimiter(rdb redis.UniversalClient, limit Limit, prefix string) *RedisLimiter {
	return newRedisLimiter(redis_rate.NewLimiter(rdb), limit, prefix)
}

func newRedisLimiter(a allower, limit Limit, prefix string) *RedisLimiter {
	return &RedisLimiter{
		limiter: a,
		limit: redis_rate.Limit{
			Rate:   limit.Rate,
			Period: limit.Period,
			Burst:  limit.burst(),
		},
		prefix:  prefix,
		enabled: limit.Enabled(),
	}
}

// Allow は key の予算を1つ消費します。
// Redis のエラーはそのまま返し、呼び出しを続行するかは呼び出し元が判断します。
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	if !l.enabled {
		return Decision{Allowed: true}, nil
	}
	res, err := l.limiter.Allow(ctx, l.prefix+key, l.limit)
	if err != nil {
		return Decision{}, err
	}
	if res.Allowed > 0 {
		return Decision{Allowed: true}, nil
	}
	return Decision{RetryAfter: max(res.RetryAfter, 0)}, nil
}
