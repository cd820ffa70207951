// Package di provides dependency injection factories for creating application components.
package di

import (
	"fmt"
	"log/slog"
	"net/http"

	"stock_quote/internal/app/config"
	"stock_quote/internal/feature/quote/adapters/alphavantage"
	"stock_quote/internal/feature/quote/adapters/budget"
	"stock_quote/internal/feature/quote/adapters/cache"
	"stock_quote/internal/feature/quote/adapters/twelvedata"
	"stock_quote/internal/feature/quote/adapters/yahoochart"
	"stock_quote/internal/feature/quote/adapters/yahooquote"
	"stock_quote/internal/feature/quote/usecase"
	"stock_quote/internal/shared/ratelimiter"
)

// NewProviders creates the providers named in cfg.Providers, in that order.
// Vendors that need an API key are skipped with a warning when none is set.
// Every provider is wrapped in the budget decorator when limiter is non-nil.
func NewProviders(cfg config.Config, client *http.Client, limiter ratelimiter.Limiter, logger *slog.Logger) ([]usecase.Provider, error) {
	providers := make([]usecase.Provider, 0, len(cfg.Providers))
	for _, name := range cfg.Providers {
		var p usecase.Provider
		switch name {
		case config.ProviderYahooChart:
			p = yahoochart.NewClient(yahoochart.Config{BaseURL: cfg.YahooChartBaseURL}, client)
		case config.ProviderYahooQuote:
			p = yahooquote.NewClient(client)
		case config.ProviderTwelveData:
			if cfg.TwelveData.APIKey == "" {
				logger.Warn("provider disabled: TWELVE_DATA_API_KEY is not set", "provider", name)
				continue
			}
			p = twelvedata.NewClient(twelvedata.Config{APIKey: cfg.TwelveData.APIKey, BaseURL: cfg.TwelveData.BaseURL}, client)
		case config.ProviderAlphaVantage:
			if cfg.AlphaVantage.APIKey == "" {
				logger.Warn("provider disabled: ALPHA_VANTAGE_API_KEY is not set", "provider", name)
				continue
			}
			p = alphavantage.NewClient(alphavantage.Config{APIKey: cfg.AlphaVantage.APIKey, BaseURL: cfg.AlphaVantage.BaseURL}, client)
		default:
			return nil, fmt.Errorf("unknown provider %q", name)
		}
		if limiter != nil {
			p = budget.New(p, limiter, logger)
		}
		providers = append(providers, p)
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no usable provider among %v", cfg.Providers)
	}
	return providers, nil
}

// NewQuoteCache creates the in-memory quote cache.
func NewQuoteCache(cfg config.Config) *cache.MemoryCache {
	return cache.NewMemoryCache(cfg.Cache.TTL, cache.WithMaxItems(cfg.Cache.MaxItems))
}

// NewResolver assembles the quote resolver.
func NewResolver(cfg config.Config, providers []usecase.Provider, c usecase.QuoteCache, rec usecase.Recorder, logger *slog.Logger) (*usecase.Resolver, error) {
	policy, err := usecase.ParseFetchPolicy(cfg.FetchPolicy)
	if err != nil {
		return nil, err
	}

	var normOpts []usecase.NormalizerOption
	if cfg.PreviousCloseFromOpen {
		normOpts = append(normOpts, usecase.WithPreviousCloseFromOpen())
	}

	opts := []usecase.ResolverOption{
		usecase.WithDefaultSuffix(cfg.DefaultSuffix),
		usecase.WithFetchPolicy(policy),
		usecase.WithParallelFetch(cfg.ParallelFetch),
		usecase.WithLogger(logger),
	}
	if rec != nil {
		opts = append(opts, usecase.WithRecorder(rec))
	}

	return usecase.NewResolver(providers, c, usecase.NewNormalizer(normOpts...), usecase.NewMarketClock(), opts...), nil
}
