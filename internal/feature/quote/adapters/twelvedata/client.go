// Package twelvedata は Twelve Data 株価APIを使うシリーズプロバイダーを提供します。
package twelvedata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"stock_quote/internal/feature/quote/adapters/twelvedata/dto"
	"stock_quote/internal/feature/quote/domain"
	"stock_quote/internal/feature/quote/domain/entity"
	"stock_quote/internal/feature/quote/usecase"
	platformhttp "stock_quote/internal/platform/http"
)

// Name はログ・メトリクス・PROVIDERS 設定で使うプロバイダー名です。
const Name = "twelvedata"

// DefaultBaseURL は公開APIのホストです。
const DefaultBaseURL = "https://api.twelvedata.com"

// exchanges はシンボルのサフィックスを Twelve Data の取引所コードに対応付けます。
var exchanges = map[string]string{
	".NS": "NSE",
	".BO": "BSE",
}

// Config は Twelve Data APIクライアントの設定です。
type Config struct {
	APIKey  string // 認証用のAPIキー
	BaseURL string // APIのベースURL（例: "https://api.twelvedata.com"）
}

// Client はTwelve Data APIから直近2本の日足を取得する Provider 実装です。
type Client struct {
	cfg    Config
	client *http.Client
}

var _ usecase.Provider = (*Client)(nil)

// NewClient は指定された設定とHTTPクライアントでClientの新しいインスタンスを生成します。
func NewClient(cfg Config, client *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Client{cfg: cfg, client: client}
}

// Name は usecase.Provider を実装します。
func (c *Client) Name() string { return Name }

// Fetch は最新の日足をシリーズソースのフィールドとして返します。
// 2本目の終値は previousClose になります。
func (c *Client) Fetch(ctx context.Context, symbol string) (entity.RawFieldBag, error) {
	base, suffix := usecase.SplitSuffix(symbol)

	q := url.Values{}
	if exch, ok := exchanges[strings.ToUpper(suffix)]; ok {
		q.Set("symbol", base)
		q.Set("exchange", exch)
	} else {
		q.Set("symbol", symbol)
	}
	q.Set("interval", "1day")
	q.Set("outputsize", "2")
	q.Set("timezone", "UTC")
	q.Set("apikey", c.cfg.APIKey)

	u := fmt.Sprintf("%s/time_series?%s", strings.TrimRight(c.cfg.BaseURL, "/"), q.Encode())

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

	var body dto.TimeSeriesResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return entity.RawFieldBag{}, domain.NewFetchError(Name, domain.FetchUnreachable, fmt.Errorf("decode time_series: %w", err))
	}
	if body.Status == "error" {
		kind, _ := platformhttp.ClassifyStatus(body.Code)
		return entity.RawFieldBag{}, domain.NewFetchError(Name, kind, errors.New(body.Message))
	}
	if len(body.Values) == 0 {
		return entity.RawFieldBag{}, domain.NewFetchError(Name, domain.FetchNoData, nil)
	}

	bag := entity.NewRawFieldBag(Name, entity.SourceSeries, seriesFields(symbol, body.Values))
	if bag.Empty() {
		return bag, domain.NewFetchError(Name, domain.FetchNoData, nil)
	}
	return bag, nil
}

// seriesFields は最新の足を open/high/low/close/volume/datetime に、
// その前の足の終値を previousClose に対応付けます。パースできない数値は含めません。
func seriesFields(symbol string, values []dto.TimeSeriesValue) map[string]any {
	f := make(map[string]any)
	latest := values[0]

	for key, raw := range map[string]string{
		"open":  latest.Open,
		"high":  latest.High,
		"low":   latest.Low,
		"close": latest.Close,
	} {
		if v, ok := parseFloat(symbol, key, raw); ok {
			f[key] = v
		}
	}
	if latest.Volume != "" {
		if vol, err := strconv.ParseInt(latest.Volume, 10, 64); err == nil {
			f["volume"] = vol
		} else {
			slog.Debug("twelvedata: dropping field", "symbol", symbol, "field", "volume", "value", latest.Volume)
		}
	}
	if latest.Datetime != "" {
		// timezone=UTC で取得しているのでタイムゾーンなしの値はUTC
		f["datetime"] = latest.Datetime
	}
	if len(values) > 1 {
		if v, ok := parseFloat(symbol, "previousClose", values[1].Close); ok {
			f["previousClose"] = v
		}
	}
	return f
}

func parseFloat(symbol, field, raw string) (float64, bool) {
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		slog.Debug("twelvedata: dropping field", "symbol", symbol, "field", field, "value", raw)
		return 0, false
	}
	return v, true
}
