package twelvedata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock_quote/internal/feature/quote/domain"
	"stock_quote/internal/feature/quote/domain/entity"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return NewClient(Config{APIKey: "test-key", BaseURL: server.URL}, server.Client())
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{APIKey: "test-key"}, &http.Client{})
	require.NotNil(t, c)
	assert.Equal(t, "test-key", c.cfg.APIKey)
	assert.Equal(t, DefaultBaseURL, c.cfg.BaseURL)
	assert.Equal(t, Name, c.Name())
}

func TestClient_Fetch_Success(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// リクエストパラメータを検証
		assert.Equal(t, "/time_series", r.URL.Path)
		assert.Equal(t, "TCS", r.URL.Query().Get("symbol"))
		assert.Equal(t, "NSE", r.URL.Query().Get("exchange"))
		assert.Equal(t, "1day", r.URL.Query().Get("interval"))
		assert.Equal(t, "2", r.URL.Query().Get("outputsize"))
		assert.Equal(t, "UTC", r.URL.Query().Get("timezone"))
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "ok",
			"meta": {"symbol": "TCS", "interval": "1day", "exchange": "NSE"},
			"values": [
				{"datetime": "2026-01-05", "open": "3495.00", "high": "3520.00", "low": "3490.00", "close": "3512.10", "volume": "1523000"},
				{"datetime": "2026-01-02", "open": "3480.00", "high": "3505.00", "low": "3470.00", "close": "3500.00", "volume": "1400000"}
			]
		}`))
	})

	bag, err := c.Fetch(context.Background(), "TCS.NS")
	require.NoError(t, err)
	assert.Equal(t, entity.SourceSeries, bag.Source)

	closeV, ok := bag.Float("close")
	require.True(t, ok)
	assert.Equal(t, 3512.10, closeV)

	prev, ok := bag.Float("previousClose")
	require.True(t, ok)
	assert.Equal(t, 3500.00, prev)

	vol, ok := bag.Float("volume")
	require.True(t, ok)
	assert.Equal(t, 1523000.0, vol)

	ts, ok := bag.Timestamp("datetime")
	require.True(t, ok)
	assert.False(t, ts.HasZone)
	assert.Equal(t, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), ts.Time)
}

func TestClient_Fetch_ExchangeMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		symbol       string
		wantSymbol   string
		wantExchange string
	}{
		{"TCS.NS", "TCS", "NSE"},
		{"INFY.BO", "INFY", "BSE"},
		{"AAPL", "AAPL", ""},
		{"VOD.L", "VOD.L", ""},
	}

	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			t.Parallel()

			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.wantSymbol, r.URL.Query().Get("symbol"))
				assert.Equal(t, tt.wantExchange, r.URL.Query().Get("exchange"))
				_, _ = w.Write([]byte(`{"status":"ok","values":[{"datetime":"2026-01-05","close":"1"}]}`))
			})

			_, err := c.Fetch(context.Background(), tt.symbol)
			require.NoError(t, err)
		})
	}
}

func TestClient_Fetch_SingleRowHasNoPreviousClose(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","values":[{"datetime":"2026-01-05","open":"10","high":"11","low":"9","close":"10.5","volume":"100"}]}`))
	})

	bag, err := c.Fetch(context.Background(), "X.NS")
	require.NoError(t, err)
	_, ok := bag.Float("previousClose")
	assert.False(t, ok)
	open, ok := bag.Float("open")
	require.True(t, ok)
	assert.Equal(t, 10.0, open)
}

func TestClient_Fetch_HTTPError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		statusCode int
		want       error
	}{
		{"bad request", http.StatusBadRequest, domain.ErrUpstreamInvalidSymbol},
		{"unauthorized", http.StatusUnauthorized, domain.ErrUpstreamUnreachable},
		{"forbidden", http.StatusForbidden, domain.ErrUpstreamUnreachable},
		{"not found", http.StatusNotFound, domain.ErrUpstreamInvalidSymbol},
		{"too many requests", http.StatusTooManyRequests, domain.ErrUpstreamRateLimited},
		{"internal server error", http.StatusInternalServerError, domain.ErrUpstreamUnreachable},
		{"service unavailable", http.StatusServiceUnavailable, domain.ErrUpstreamUnreachable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			})

			_, err := c.Fetch(context.Background(), "AAPL")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestClient_Fetch_APIError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want error
	}{
		{"out of credits", `{"status":"error","code":429,"message":"You have run out of API credits for the current minute."}`, domain.ErrUpstreamRateLimited},
		{"symbol not found", `{"status":"error","code":400,"message":"**symbol** not found: ZZZZ"}`, domain.ErrUpstreamInvalidSymbol},
		{"invalid api key", `{"status":"error","code":401,"message":"Invalid API key"}`, domain.ErrUpstreamUnreachable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Fetch(context.Background(), "ZZZZ")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestClient_Fetch_InvalidJSON(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{invalid json`))
	})

	_, err := c.Fetch(context.Background(), "AAPL")
	assert.True(t, errors.Is(err, domain.ErrUpstreamUnreachable))
}

// TestClient_Fetch_InvalidNumbers は不正な数値が欠損として扱われることを検証します。
func TestClient_Fetch_InvalidNumbers(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","values":[
			{"datetime":"2026-01-05","open":"abc","high":"155.00","low":"bad","close":"154.50","volume":"not-a-number"},
			{"datetime":"2026-01-02","close":"xyz"}
		]}`))
	})

	bag, err := c.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)

	_, hasOpen := bag.Float("open")
	_, hasLow := bag.Float("low")
	_, hasVol := bag.Float("volume")
	_, hasPrev := bag.Float("previousClose")
	assert.False(t, hasOpen)
	assert.False(t, hasLow)
	assert.False(t, hasVol)
	assert.False(t, hasPrev)

	high, ok := bag.Float("high")
	require.True(t, ok)
	assert.Equal(t, 155.0, high)
}

func TestClient_Fetch_EmptyValues(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","values":[]}`))
	})

	_, err := c.Fetch(context.Background(), "AAPL")
	assert.True(t, errors.Is(err, domain.ErrUpstreamNoData))
}

func TestClient_Fetch_ContextCancellation(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.Fetch(ctx, "AAPL")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUpstreamUnreachable))
}
