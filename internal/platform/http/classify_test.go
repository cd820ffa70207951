package http

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock_quote/internal/feature/quote/domain"
)

func TestClassifyStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code   int
		kind   domain.FetchKind
		failed bool
	}{
		{http.StatusOK, 0, false},
		{http.StatusNoContent, 0, false},
		{http.StatusTooManyRequests, domain.FetchRateLimited, true},
		{http.StatusNotFound, domain.FetchInvalidSymbol, true},
		{http.StatusBadRequest, domain.FetchInvalidSymbol, true},
		{http.StatusUnauthorized, domain.FetchUnreachable, true},
		{http.StatusInternalServerError, domain.FetchUnreachable, true},
		{http.StatusBadGateway, domain.FetchUnreachable, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			t.Parallel()
			kind, failed := ClassifyStatus(tt.code)
			assert.Equal(t, tt.failed, failed)
			if tt.failed {
				assert.Equal(t, tt.kind, kind)
			}
		})
	}
}

func TestStatusError_RetryAfter(t *testing.T) {
	t.Parallel()

	res := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{}}
	res.Header.Set("Retry-After", "12")

	err := StatusError("yahoo_chart", res)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUpstreamRateLimited))
	assert.Equal(t, domain.FetchRateLimited, domain.KindOf(err))

	d, ok := domain.RetryAfter(err)
	require.True(t, ok)
	assert.Equal(t, 12*time.Second, d)
}

func TestStatusError_NotFound(t *testing.T) {
	t.Parallel()

	err := StatusError("twelvedata", &http.Response{StatusCode: http.StatusNotFound, Header: http.Header{}})
	assert.True(t, errors.Is(err, domain.ErrUpstreamInvalidSymbol))
	_, ok := domain.RetryAfter(err)
	assert.False(t, ok)
}

func TestTransportError(t *testing.T) {
	t.Parallel()

	err := TransportError("alphavantage", context.DeadlineExceeded)
	assert.True(t, errors.Is(err, domain.ErrUpstreamUnreachable))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"", 0, false},
		{"30", 30 * time.Second, true},
		{" 5 ", 5 * time.Second, true},
		{"0", 0, false},
		{"-1", 0, false},
		{"Wed, 21 Oct 2015 07:28:00 GMT", 0, false},
	}
	for _, tt := range tests {
		d, ok := ParseRetryAfter(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, d, tt.in)
	}
}

func TestNewHTTPClient(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultUpstreamTimeout, NewHTTPClient(0).Timeout)
	assert.Equal(t, 3*time.Second, NewHTTPClient(3*time.Second).Timeout)
}
