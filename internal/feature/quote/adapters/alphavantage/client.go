// Package alphavantage provides the full-quote provider backed by the Alpha
// Vantage GLOBAL_QUOTE function.
package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"stock_quote/internal/feature/quote/adapters/alphavantage/dto"
	"stock_quote/internal/feature/quote/domain"
	"stock_quote/internal/feature/quote/domain/entity"
	"stock_quote/internal/feature/quote/usecase"
	platformhttp "stock_quote/internal/platform/http"
)

// Name identifies this provider in logs, metrics and the PROVIDERS setting.
const Name = "alphavantage"

// DefaultBaseURL is the public API host.
const DefaultBaseURL = "https://www.alphavantage.co"

const (
	requestedSuffix = ".NS"
	vendorSuffix    = ".BSE"
)

// quoteKeys are the GLOBAL_QUOTE fields copied into the bag.
var quoteKeys = []string{
	"02. open",
	"03. high",
	"04. low",
	"05. price",
	"06. volume",
	"07. latest trading day",
	"08. previous close",
}

// Config holds configuration for the Alpha Vantage client.
type Config struct {
	APIKey  string
	BaseURL string
}

// Client is the GLOBAL_QUOTE provider.
type Client struct {
	cfg    Config
	client *http.Client
}

var _ usecase.Provider = (*Client)(nil)

// NewClient creates a Client.
func NewClient(cfg Config, client *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Client{cfg: cfg, client: client}
}

// Name implements usecase.Provider.
func (c *Client) Name() string { return Name }

// Fetch returns the global quote for symbol. NSE symbols are requested under
// their BSE listing, which is the convention the vendor serves.
func (c *Client) Fetch(ctx context.Context, symbol string) (entity.RawFieldBag, error) {
	vendorSymbol := usecase.SwapSuffix(symbol, requestedSuffix, vendorSuffix)

	q := url.Values{}
	q.Set("function", "GLOBAL_QUOTE")
	q.Set("symbol", vendorSymbol)
	q.Set("apikey", c.cfg.APIKey)
	u := fmt.Sprintf("%s/query?%s", strings.TrimRight(c.cfg.BaseURL, "/"), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return entity.RawFieldBag{}, platformhttp.TransportError(Name, err)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return entity.RawFieldBag{}, platformhttp.TransportError(Name, err)
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "provider", Name, "error", err)
		}
	}()

	if _, failed := platformhttp.ClassifyStatus(res.StatusCode); failed {
		return entity.RawFieldBag{}, platformhttp.StatusError(Name, res)
	}

	var body dto.GlobalQuoteResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return entity.RawFieldBag{}, domain.NewFetchError(Name, domain.FetchUnreachable, fmt.Errorf("decode global quote: %w", err))
	}

	switch {
	case body.Note != "":
		return entity.RawFieldBag{}, domain.NewFetchError(Name, domain.FetchRateLimited, errors.New(body.Note))
	case body.Information != "":
		return entity.RawFieldBag{}, domain.NewFetchError(Name, domain.FetchRateLimited, errors.New(body.Information))
	case body.ErrorMessage != "":
		return entity.RawFieldBag{}, domain.NewFetchError(Name, domain.FetchInvalidSymbol, errors.New(body.ErrorMessage))
	}

	fields := make(map[string]any, len(quoteKeys)+1)
	for _, k := range quoteKeys {
		if v := strings.TrimSpace(body.GlobalQuote[k]); v != "" {
			fields[k] = v
		}
	}
	if len(fields) == 0 {
		return entity.RawFieldBag{}, domain.NewFetchError(Name, domain.FetchNoData, nil)
	}
	if s := body.GlobalQuote["01. symbol"]; s != "" {
		fields["01. symbol"] = usecase.SwapSuffix(s, vendorSuffix, requestedSuffix)
	}
	return entity.NewRawFieldBag(Name, entity.SourceFull, fields), nil
}
