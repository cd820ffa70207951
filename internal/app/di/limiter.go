package di

import (
	"github.com/redis/go-redis/v9"

	"stock_quote/internal/shared/ratelimiter"
)

// budgetKeyPrefix namespaces the shared budget keys in Redis.
const budgetKeyPrefix = "stock_quote:budget:"

// NewBudgetLimiter creates the upstream call budget.
// If Redis is available, it returns a Redis-backed limiter shared across
// instances. Otherwise, it falls back to an in-process limiter.
// It returns nil when no budget is configured.
func NewBudgetLimiter(rdb redis.UniversalClient, limit ratelimiter.Limit) ratelimiter.Limiter {
	if !limit.Enabled() {
		return nil
	}
	if rdb != nil {
		return ratelimiter.NewRedisLimiter(rdb, limit, budgetKeyPrefix)
	}
	return ratelimiter.NewLocalLimiter(limit)
}
