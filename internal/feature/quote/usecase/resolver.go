// Package usecase はクオート解決を実装します。
// シンボル処理、フィールド正規化、マーケットクロック、およびそれらをまとめるオーケストレーターです。
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"stock_quote/internal/feature/quote/domain"
	"stock_quote/internal/feature/quote/domain/entity"
)

// Provider は上流ソースからシンボル1件分の RawFieldBag を取得します。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type Provider interface {
	Name() string
	Fetch(ctx context.Context, symbol string) (entity.RawFieldBag, error)
}

// QuoteCache は解決済みのクオートをシンボルごとに保持します。
type QuoteCache interface {
	Get(symbol string) (entity.Quote, bool)
	Put(symbol string, q entity.Quote)
}

// Recorder はメトリクス用に解決イベントを受け取ります。
type Recorder interface {
	CacheHit()
	CacheMiss()
	Upstream(provider, outcome string)
	Resolution(outcome string)
}

type noopRecorder struct{}

func (noopRecorder) CacheHit()            {}
func (noopRecorder) CacheMiss()           {}
func (noopRecorder) Upstream(_, _ string) {}
func (noopRecorder) Resolution(string)    {}

// FetchPolicy はキャッシュミス時のプロバイダーの呼び出し方です。
type FetchPolicy int

const (
	// MergeAll はすべてのプロバイダーを呼び出してマージします。
	// スナップショットのみのプロバイダーに previousClose がない場合は必須です。
	MergeAll FetchPolicy = iota
	// ShortCircuit は price と previousClose が揃った時点で呼び出しを止めます。
	ShortCircuit
)

// ParseFetchPolicy は設定値を FetchPolicy に変換します。
func ParseFetchPolicy(s string) (FetchPolicy, error) {
	switch s {
	case "", "merge_all":
		return MergeAll, nil
	case "short_circuit":
		return ShortCircuit, nil
	}
	return MergeAll, fmt.Errorf("unknown fetch policy %q", s)
}

// Recorder に報告する解決結果です。
const (
	OutcomeCacheHit        = "cache_hit"
	OutcomeResolved        = "resolved"
	OutcomeDataUnavailable = "data_unavailable"
	OutcomeRateLimited     = "rate_limited"
	OutcomeInvalidSymbol   = "invalid_symbol"
	OutcomeOK              = "ok"
)

// Resolver はクオート解決のオーケストレーターです。
type Resolver struct {
	providers     []Provider
	cache         QuoteCache
	normalizer    *Normalizer
	clock         *MarketClock
	defaultSuffix string
	policy        FetchPolicy
	parallel      bool
	now           func() time.Time
	logger        *slog.Logger
	recorder      Recorder

	flight singleflight.Group
}

// ResolverOption は Resolver の設定を変更します。
type ResolverOption func(*Resolver)

// WithDefaultSuffix はサフィックスのないシンボルに付与する取引所サフィックスを設定します。
func WithDefaultSuffix(suffix string) ResolverOption {
	return func(r *Resolver) { r.defaultSuffix = suffix }
}

// WithFetchPolicy はプロバイダーの呼び出しポリシーを設定します。
func WithFetchPolicy(p FetchPolicy) ResolverOption {
	return func(r *Resolver) { r.policy = p }
}

// WithParallelFetch は MergeAll のときプロバイダーを並列に呼び出します。
// マージは優先順位どおりに行います。
func WithParallelFetch(enabled bool) ResolverOption {
	return func(r *Resolver) { r.parallel = enabled }
}

// WithNow は現在時刻の取得元を差し替えます。
func WithNow(now func() time.Time) ResolverOption {
	return func(r *Resolver) { r.now = now }
}

// WithLogger はロガーを設定します。
func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// WithRecorder はメトリクスの Recorder を設定します。
func WithRecorder(rec Recorder) ResolverOption {
	return func(r *Resolver) { r.recorder = rec }
}

// NewResolver は Resolver を生成します。providers はスライスの順に呼び出されます。
func NewResolver(providers []Provider, cache QuoteCache, normalizer *Normalizer, clock *MarketClock, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		providers:     providers,
		cache:         cache,
		normalizer:    normalizer,
		clock:         clock,
		defaultSuffix: DefaultExchangeSuffix,
		now:           time.Now,
		logger:        slog.Default(),
		recorder:      noopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.normalizer == nil {
		r.normalizer = NewNormalizer()
	}
	if r.clock == nil {
		r.clock = NewMarketClock()
	}
	return r
}

// Resolve はクライアントが指定したシンボルのクオートを返します。
// 失敗は domain.ErrInvalidSymbol / domain.ErrDataUnavailable / domain.ErrRateLimited のいずれかで、
// それ以外は内部エラーです。
func (r *Resolver) Resolve(ctx context.Context, rawSymbol string) (entity.Quote, error) {
	symbol, err := NormalizeSymbol(rawSymbol, r.defaultSuffix)
	if err != nil {
		r.recorder.Resolution(OutcomeInvalidSymbol)
		return entity.Quote{}, err
	}

	if q, ok := r.cache.Get(symbol); ok {
		r.recorder.CacheHit()
		r.recorder.Resolution(OutcomeCacheHit)
		return q, nil
	}
	r.recorder.CacheMiss()

	// 同一シンボルへの同時ミスは1回の上流呼び出しを共有する。
	// 共有呼び出しは最初の呼び出し元のキャンセルで止めない。
	v, err, shared := r.flight.Do(symbol, func() (any, error) {
		if q, ok := r.cache.Get(symbol); ok {
			return flightResult{quote: q, cached: true}, nil
		}
		q, err := r.resolveUpstream(context.WithoutCancel(ctx), symbol)
		return flightResult{quote: q}, err
	})
	if err != nil {
		r.recorder.Resolution(outcomeOf(err))
		return entity.Quote{}, err
	}
	res := v.(flightResult)
	if shared {
		r.logger.Debug("shared upstream resolution", "symbol", symbol)
	}
	if res.cached {
		r.recorder.Resolution(OutcomeCacheHit)
	} else {
		r.recorder.Resolution(OutcomeResolved)
	}
	return res.quote, nil
}

// flightResult は singleflight 内の再確認でキャッシュにヒットしたかどうかを保持します。
// 直前に終わった別の呼び出しがキャッシュを埋めた場合に cached になります。
type flightResult struct {
	quote  entity.Quote
	cached bool
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		return OutcomeRateLimited
	case errors.Is(err, domain.ErrDataUnavailable):
		return OutcomeDataUnavailable
	case errors.Is(err, domain.ErrInvalidSymbol):
		return OutcomeInvalidSymbol
	}
	return "internal"
}

type fetchResult struct {
	provider string
	bag      entity.RawFieldBag
	err      error
}

// resolveUpstream は取得・正規化・タイムスタンプ付与・キャッシュ保存を行います。
func (r *Resolver) resolveUpstream(ctx context.Context, symbol string) (entity.Quote, error) {
	results := r.fetch(ctx, symbol)

	bags := make([]entity.RawFieldBag, 0, len(results))
	var (
		rateLimited bool
		retryAfter  time.Duration
	)
	for _, res := range results {
		if res.err != nil {
			kind := domain.KindOf(res.err)
			r.recorder.Upstream(res.provider, kind.String())
			r.logger.Warn("provider fetch failed",
				"provider", res.provider, "symbol", symbol, "kind", kind.String(), "error", res.err)
			if kind == domain.FetchRateLimited {
				rateLimited = true
				if d, ok := domain.RetryAfter(res.err); ok && d > retryAfter {
					retryAfter = d
				}
			}
			continue
		}
		if res.bag.Empty() {
			r.recorder.Upstream(res.provider, domain.FetchNoData.String())
			continue
		}
		r.recorder.Upstream(res.provider, OutcomeOK)
		bags = append(bags, res.bag)
	}

	norm, err := r.normalizer.Normalize(symbol, bags)
	if err != nil {
		if !errors.Is(err, domain.ErrNoPrice) {
			return entity.Quote{}, err
		}
		if rateLimited {
			return entity.Quote{}, &domain.RetryAfterError{Err: domain.ErrRateLimited, After: retryAfter}
		}
		return entity.Quote{}, fmt.Errorf("%w for %s", domain.ErrDataUnavailable, symbol)
	}

	q := norm.Quote
	q.LastTrade, q.MarketStatus = r.clock.Stamp(norm.LastTrade, r.now())
	if !q.HasPrice() {
		return entity.Quote{}, fmt.Errorf("%w for %s", domain.ErrDataUnavailable, symbol)
	}

	r.cache.Put(symbol, q)
	r.logger.Info("quote resolved",
		"symbol", symbol, "sources", len(bags), "market_status", string(q.MarketStatus))
	return q, nil
}

// fetch はポリシーに従ってプロバイダーを呼び出し、呼び出したプロバイダーごとの結果を優先順位順に返します。
func (r *Resolver) fetch(ctx context.Context, symbol string) []fetchResult {
	if r.policy == MergeAll && r.parallel && len(r.providers) > 1 {
		return r.fetchParallel(ctx, symbol)
	}

	results := make([]fetchResult, 0, len(r.providers))
	var bags []entity.RawFieldBag
	for _, p := range r.providers {
		bag, err := p.Fetch(ctx, symbol)
		results = append(results, fetchResult{provider: p.Name(), bag: bag, err: err})
		if err != nil || r.policy != ShortCircuit {
			continue
		}
		bags = append(bags, bag)
		if r.normalizer.Satisfied(bags) {
			break
		}
	}
	return results
}

func (r *Resolver) fetchParallel(ctx context.Context, symbol string) []fetchResult {
	results := make([]fetchResult, len(r.providers))
	var g errgroup.Group
	for i, p := range r.providers {
		g.Go(func() error {
			bag, err := p.Fetch(ctx, symbol)
			results[i] = fetchResult{provider: p.Name(), bag: bag, err: err}
			return nil
		})
	}
	_ = g.Wait() // プロバイダーごとのエラーは results に入っている
	return results
}
