// Package yahooquote provides the full-quote provider backed by
// github.com/piquette/finance-go.
package yahooquote

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/quote"

	"stock_quote/internal/feature/quote/domain"
	"stock_quote/internal/feature/quote/domain/entity"
	"stock_quote/internal/feature/quote/usecase"
)

// Name identifies this provider in logs, metrics and the PROVIDERS setting.
const Name = "yahoo_quote"

// getFunc matches quote.Get.
type getFunc func(symbol string) (*finance.Quote, error)

// Client adapts finance-go's quote lookup to usecase.Provider.
type Client struct {
	get getFunc
}

var _ usecase.Provider = (*Client)(nil)

// NewClient returns a Client using finance-go's package-level backend. When
// httpClient is non-nil it replaces the backend's HTTP client, which is how the
// per-call timeout is applied.
func NewClient(httpClient *http.Client) *Client {
	if httpClient != nil {
		finance.SetHTTPClient(httpClient)
	}
	return &Client{get: quote.Get}
}

// Name implements usecase.Provider.
func (c *Client) Name() string { return Name }

// Fetch returns the full quote document for symbol. finance-go has no context
// support, so the lookup runs in its own goroutine and Fetch gives up when ctx
// is done; the HTTP client timeout bounds the abandoned call.
func (c *Client) Fetch(ctx context.Context, symbol string) (entity.RawFieldBag, error) {
	type result struct {
		q   *finance.Quote
		err error
	}
	ch := make(chan result, 1)
	go func() {
		q, err := c.get(symbol)
		ch <- result{q, err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return entity.RawFieldBag{}, domain.NewFetchError(Name, domain.FetchUnreachable, ctx.Err())
	case res = <-ch:
	}

	if res.err != nil {
		return entity.RawFieldBag{}, domain.NewFetchError(Name, classify(res.err), res.err)
	}
	if res.q == nil {
		// finance-go returns (nil, nil) when the result list is empty, which is
		// how unknown symbols come back.
		return entity.RawFieldBag{}, domain.NewFetchError(Name, domain.FetchInvalidSymbol, fmt.Errorf("no quote for %s", symbol))
	}

	bag := entity.NewRawFieldBag(Name, entity.SourceFull, quoteFields(res.q))
	if bag.Empty() {
		return bag, domain.NewFetchError(Name, domain.FetchNoData, nil)
	}
	return bag, nil
}

// quoteFields maps the finance-go quote to full-source keys. finance-go
// decodes missing numbers as zero, so zero is treated as absent.
func quoteFields(q *finance.Quote) map[string]any {
	f := make(map[string]any)
	put := func(key string, v float64) {
		if v > 0 {
			f[key] = v
		}
	}
	put("regularMarketPrice", q.RegularMarketPrice)
	put("previousClose", q.RegularMarketPreviousClose)
	put("open", q.RegularMarketOpen)
	put("dayHigh", q.RegularMarketDayHigh)
	put("dayLow", q.RegularMarketDayLow)
	if q.RegularMarketVolume > 0 {
		f["volume"] = q.RegularMarketVolume
	}
	if q.RegularMarketTime > 0 {
		f["regularMarketTime"] = q.RegularMarketTime
	}
	return f
}

// classify inspects finance-go's remote error text; the library does not
// expose the HTTP status in a typed way.
func classify(err error) domain.FetchKind {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "too many requests"):
		return domain.FetchRateLimited
	case strings.Contains(msg, "404"), strings.Contains(msg, "not found"):
		return domain.FetchInvalidSymbol
	}
	return domain.FetchUnreachable
}
