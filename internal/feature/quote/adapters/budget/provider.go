// Package budget は Provider に上流呼び出し予算を付与するデコレーターを提供します。
package budget

import (
	"context"
	"errors"
	"log/slog"

	"stock_quote/internal/feature/quote/domain"
	"stock_quote/internal/feature/quote/domain/entity"
	"stock_quote/internal/feature/quote/usecase"
	"stock_quote/internal/shared/ratelimiter"
)

var errBudgetExhausted = errors.New("upstream call budget exhausted")

// Provider は上流呼び出しの前に予算を1つ消費する usecase.Provider のデコレーターです。
// 予算が尽きている場合はネットワーク呼び出しを行わずに RATE_LIMITED を返します。
// 予算の確認自体に失敗した場合（Redis障害など）はそのまま呼び出します。
type Provider struct {
	next    usecase.Provider
	limiter ratelimiter.Limiter
	logger  *slog.Logger
}

var _ usecase.Provider = (*Provider)(nil)

// New は next を limiter でラップします。予算のキーは next.Name() です。
func New(next usecase.Provider, limiter ratelimiter.Limiter, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{next: next, limiter: limiter, logger: logger}
}

// Name はラップしたプロバイダーの名前を返します。
func (p *Provider) Name() string { return p.next.Name() }

// Fetch は予算を1つ消費してから、ラップしたプロバイダーに委譲します。
func (p *Provider) Fetch(ctx context.Context, symbol string) (entity.RawFieldBag, error) {
	d, err := p.limiter.Allow(ctx, p.next.Name())
	if err != nil {
		p.logger.Warn("budget check failed, calling through",
			"provider", p.next.Name(), "error", err)
		return p.next.Fetch(ctx, symbol)
	}
	if !d.Allowed {
		fe := domain.NewFetchError(p.next.Name(), domain.FetchRateLimited, errBudgetExhausted)
		if d.RetryAfter > 0 {
			return entity.RawFieldBag{}, &domain.RetryAfterError{Err: fe, After: d.RetryAfter}
		}
		return entity.RawFieldBag{}, fe
	}
	return p.next.Fetch(ctx, symbol)
}
