// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"stock_quote/internal/feature/quote/usecase"
	"stock_quote/internal/platform/logger"
	platformredis "stock_quote/internal/platform/redis"
	"stock_quote/internal/shared/ratelimiter"
)

// Provider names accepted in PROVIDERS.
const (
	ProviderYahooChart   = "yahoo_chart"
	ProviderYahooQuote   = "yahoo_quote"
	ProviderTwelveData   = "twelvedata"
	ProviderAlphaVantage = "alphavantage"
)

var knownProviders = map[string]bool{
	ProviderYahooChart:   true,
	ProviderYahooQuote:   true,
	ProviderTwelveData:   true,
	ProviderAlphaVantage: true,
}

// CacheConfig configures the in-memory quote cache.
type CacheConfig struct {
	TTL           time.Duration
	MaxItems      int
	SweepInterval time.Duration
}

// VendorConfig is an API key and base URL pair.
type VendorConfig struct {
	APIKey  string
	BaseURL string
}

// Config is the full service configuration.
type Config struct {
	Port    string
	GinMode string
	Log     logger.Config

	Cache                 CacheConfig
	DefaultSuffix         string
	FetchPolicy           string
	ParallelFetch         bool
	PreviousCloseFromOpen bool

	UpstreamTimeout   time.Duration
	Providers         []string // priority order
	YahooChartBaseURL string
	TwelveData        VendorConfig
	AlphaVantage      VendorConfig
	Budget            ratelimiter.Limit
	Redis             platformredis.Config

	CORSAllowedOrigins []string
	MetricsEnabled     bool
}

// setDefaults registers every key so AutomaticEnv can see it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("gin_mode", "release")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("log_file", "")
	v.SetDefault("log_file_max_size_mb", 100)
	v.SetDefault("log_file_max_backups", 5)

	v.SetDefault("quote_cache_ttl", "30s")
	v.SetDefault("quote_cache_max_items", 0)
	v.SetDefault("quote_cache_sweep_interval", "0s")
	v.SetDefault("default_exchange_suffix", usecase.DefaultExchangeSuffix)
	v.SetDefault("fetch_policy", "merge_all")
	v.SetDefault("parallel_fetch", false)
	v.SetDefault("previous_close_from_open", false)

	v.SetDefault("upstream_timeout", "10s")
	v.SetDefault("providers", strings.Join([]string{ProviderYahooChart, ProviderYahooQuote, ProviderTwelveData}, ","))
	v.SetDefault("yahoo_chart_base_url", "")
	v.SetDefault("twelve_data_api_key", "")
	v.SetDefault("twelve_data_base_url", "")
	v.SetDefault("alpha_vantage_api_key", "")
	v.SetDefault("alpha_vantage_base_url", "")

	v.SetDefault("upstream_budget_rate", 0)
	v.SetDefault("upstream_budget_period", "1m")
	v.SetDefault("upstream_budget_burst", 0)

	v.SetDefault("redis_host", "")
	v.SetDefault("redis_port", "6379")
	v.SetDefault("redis_password", "")

	v.SetDefault("cors_allowed_origins", "*")
	v.SetDefault("metrics_enabled", true)
}

// Load reads optional .env files into the process environment and then
// builds the configuration from environment variables over defaults.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	if err := godotenv.Load(envFiles...); err != nil {
		slog.Info(".env not found; using system environment variables")
	}

	v := viper.New()
	v.AutomaticEnv()
	return FromViper(v)
}

// FromViper builds and validates a Config from v.
func FromViper(v *viper.Viper) (Config, error) {
	setDefaults(v)

	cfg := Config{
		Port:    v.GetString("port"),
		GinMode: v.GetString("gin_mode"),
		Log: logger.Config{
			Level:      v.GetString("log_level"),
			Format:     v.GetString("log_format"),
			File:       v.GetString("log_file"),
			MaxSizeMB:  v.GetInt("log_file_max_size_mb"),
			MaxBackups: v.GetInt("log_file_max_backups"),
		},
		Cache: CacheConfig{
			TTL:           v.GetDuration("quote_cache_ttl"),
			MaxItems:      v.GetInt("quote_cache_max_items"),
			SweepInterval: v.GetDuration("quote_cache_sweep_interval"),
		},
		DefaultSuffix:         v.GetString("default_exchange_suffix"),
		FetchPolicy:           v.GetString("fetch_policy"),
		ParallelFetch:         v.GetBool("parallel_fetch"),
		PreviousCloseFromOpen: v.GetBool("previous_close_from_open"),
		UpstreamTimeout:       v.GetDuration("upstream_timeout"),
		Providers:             splitList(v.GetString("providers")),
		YahooChartBaseURL:     v.GetString("yahoo_chart_base_url"),
		TwelveData: VendorConfig{
			APIKey:  v.GetString("twelve_data_api_key"),
			BaseURL: v.GetString("twelve_data_base_url"),
		},
		AlphaVantage: VendorConfig{
			APIKey:  v.GetString("alpha_vantage_api_key"),
			BaseURL: v.GetString("alpha_vantage_base_url"),
		},
		Budget: ratelimiter.Limit{
			Rate:   v.GetInt("upstream_budget_rate"),
			Period: v.GetDuration("upstream_budget_period"),
			Burst:  v.GetInt("upstream_budget_burst"),
		},
		Redis: platformredis.Config{
			Host:     v.GetString("redis_host"),
			Port:     v.GetString("redis_port"),
			Password: v.GetString("redis_password"),
		},
		CORSAllowedOrigins: splitList(v.GetString("cors_allowed_origins")),
		MetricsEnabled:     v.GetBool("metrics_enabled"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, fmt.Errorf("QUOTE_CACHE_TTL must be positive, got %s", c.Cache.TTL))
	}
	if c.Cache.MaxItems < 0 {
		errs = append(errs, fmt.Errorf("QUOTE_CACHE_MAX_ITEMS must not be negative, got %d", c.Cache.MaxItems))
	}
	if c.Cache.SweepInterval < 0 {
		errs = append(errs, fmt.Errorf("QUOTE_CACHE_SWEEP_INTERVAL must not be negative, got %s", c.Cache.SweepInterval))
	}
	if c.UpstreamTimeout <= 0 {
		errs = append(errs, fmt.Errorf("UPSTREAM_TIMEOUT must be positive, got %s", c.UpstreamTimeout))
	}
	if _, err := usecase.ParseFetchPolicy(c.FetchPolicy); err != nil {
		errs = append(errs, fmt.Errorf("FETCH_POLICY: %w", err))
	}
	if len(c.Providers) == 0 {
		errs = append(errs, errors.New("PROVIDERS must name at least one provider"))
	}
	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if !knownProviders[p] {
			errs = append(errs, fmt.Errorf("PROVIDERS: unknown provider %q", p))
		}
		if seen[p] {
			errs = append(errs, fmt.Errorf("PROVIDERS: %q listed twice", p))
		}
		seen[p] = true
	}
	if c.Budget.Rate < 0 || c.Budget.Burst < 0 {
		errs = append(errs, errors.New("UPSTREAM_BUDGET_RATE and UPSTREAM_BUDGET_BURST must not be negative"))
	}
	if c.Budget.Rate > 0 && c.Budget.Period <= 0 {
		errs = append(errs, errors.New("UPSTREAM_BUDGET_PERIOD must be positive when a budget rate is set"))
	}
	return errors.Join(errs...)
}

// Addr returns the listen address.
func (c Config) Addr() string { return ":" + c.Port }

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
