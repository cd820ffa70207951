// Package ratelimiter はプロバイダーアダプターが共有する上流呼び出し予算を提供します。
// Limiter はブロックしません。予算切れは結果として返し、呼び出し元が即座に失敗できるようにします。
package ratelimiter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limit は Period あたり Rate 回、最大 Burst 回の連続呼び出しを許可する予算です。
type Limit struct {
	Rate   int
	Period time.Duration
	Burst  int
}

// Enabled は予算が設定されているかを返します。
func (l Limit) Enabled() bool { return l.Rate > 0 && l.Period > 0 }

func (l Limit) burst() int {
	if l.Burst > 0 {
		return l.Burst
	}
	return l.Rate
}

func (l Limit) String() string {
	return fmt.Sprintf("%d/%s (burst %d)", l.Rate, l.Period, l.burst())
}

// Decision は1回の Allow の結果です。
type Decision struct {
	Allowed bool
	// RetryAfter は次の呼び出しが許可されるまでの待ち時間です。
	// 許可された場合や不明な場合は0です。
	RetryAfter time.Duration
}

// Limiter はキーごとに呼び出し予算を消費するインターフェースです。
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// LocalLimiter は golang.org/x/time/rate によるプロセス内のキー別トークンバケットです。
type LocalLimiter struct {
	limit Limit
	now   func() time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

var _ Limiter = (*LocalLimiter)(nil)

// NewLocalLimiter は LocalLimiter を作成します。予算が無効な場合はすべて許可します。
func NewLocalLimiter(limit Limit) *LocalLimiter {
	return &LocalLimiter{
		limit:    limit,
		now:      time.Now,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow はトークンが残っていれば key の予算を1つ消費します。
func (l *LocalLimiter) Allow(_ context.Context, key string) (Decision, error) {
	if !l.limit.Enabled() {
		return Decision{Allowed: true}, nil
	}
	lim := l.get(key)
	now := l.now()
	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return Decision{}, nil
	}
	if d := r.DelayFrom(now); d > 0 {
		// 待たないのでトークンを返却する
		r.CancelAt(now)
		return Decision{RetryAfter: d}, nil
	}
	return Decision{Allowed: true}, nil
}

func (l *LocalLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		every := rate.Every(l.limit.Period / time.Duration(l.limit.Rate))
		lim = rate.NewLimiter(every, l.limit.burst())
		l.limiters[key] = lim
	}
	return lim
}
