package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := FromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Zero(t, cfg.Cache.MaxItems)
	assert.Zero(t, cfg.Cache.SweepInterval)
	assert.Equal(t, ".NS", cfg.DefaultSuffix)
	assert.Equal(t, "merge_all", cfg.FetchPolicy)
	assert.False(t, cfg.ParallelFetch)
	assert.False(t, cfg.PreviousCloseFromOpen)
	assert.Equal(t, 10*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, []string{ProviderYahooChart, ProviderYahooQuote, ProviderTwelveData}, cfg.Providers)
	assert.False(t, cfg.Budget.Enabled())
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestFromViper_Overrides(t *testing.T) {
	t.Parallel()

	v := viper.New()
	v.Set("port", "5000")
	v.Set("quote_cache_ttl", "45s")
	v.Set("quote_cache_max_items", 500)
	v.Set("fetch_policy", "short_circuit")
	v.Set("parallel_fetch", "true")
	v.Set("providers", " alphavantage , YAHOO_CHART ")
	v.Set("upstream_budget_rate", 5)
	v.Set("upstream_budget_period", "1m")
	v.Set("redis_host", "redis")
	v.Set("cors_allowed_origins", "https://a.example,https://b.example")

	cfg, err := FromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, 45*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 500, cfg.Cache.MaxItems)
	assert.Equal(t, "short_circuit", cfg.FetchPolicy)
	assert.True(t, cfg.ParallelFetch)
	assert.Equal(t, []string{ProviderAlphaVantage, ProviderYahooChart}, cfg.Providers)
	assert.True(t, cfg.Budget.Enabled())
	assert.Equal(t, "redis:6379", cfg.Redis.Addr())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestFromViper_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		key  string
		val  any
		msg  string
	}{
		{"zero ttl", "quote_cache_ttl", "0s", "QUOTE_CACHE_TTL"},
		{"negative timeout", "upstream_timeout", "-1s", "UPSTREAM_TIMEOUT"},
		{"unknown policy", "fetch_policy", "sometimes", "FETCH_POLICY"},
		{"unknown provider", "providers", "yahoo_chart,bloomberg", "bloomberg"},
		{"duplicate provider", "providers", "yahoo_chart,yahoo_chart", "listed twice"},
		{"empty providers", "providers", " , ", "at least one provider"},
		{"negative max items", "quote_cache_max_items", -1, "QUOTE_CACHE_MAX_ITEMS"},
		{"empty port", "port", "", "PORT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v := viper.New()
			v.Set(tt.key, tt.val)
			_, err := FromViper(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestValidate_BudgetNeedsPeriod(t *testing.T) {
	t.Parallel()

	cfg, err := FromViper(viper.New())
	require.NoError(t, err)

	cfg.Budget.Rate = 5
	cfg.Budget.Period = 0
	assert.ErrorContains(t, cfg.Validate(), "UPSTREAM_BUDGET_PERIOD")
}

// TestLoad_EnvFile は .env と環境変数から設定が読み込まれることを検証します。
func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("QUOTE_CACHE_TTL=15s\nDEFAULT_EXCHANGE_SUFFIX=.BO\n"), 0o600))

	// godotenv never overrides variables that are already set.
	t.Setenv("DEFAULT_EXCHANGE_SUFFIX", ".NS")
	t.Setenv("QUOTE_CACHE_TTL", "")
	require.NoError(t, os.Unsetenv("QUOTE_CACHE_TTL"))
	t.Setenv("PORT", "9090")

	cfg, err := Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 15*time.Second, cfg.Cache.TTL)
	assert.Equal(t, ".NS", cfg.DefaultSuffix)
}
