// Package yahoochart は Yahoo Finance の chart エンドポイントを使うスナップショットプロバイダーを提供します。
package yahoochart

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"stock_quote/internal/feature/quote/adapters/yahoochart/dto"
	"stock_quote/internal/feature/quote/domain"
	"stock_quote/internal/feature/quote/domain/entity"
	"stock_quote/internal/feature/quote/usecase"
	platformhttp "stock_quote/internal/platform/http"
)

// Name はログ・メトリクス・PROVIDERS 設定で使うプロバイダー名です。
const Name = "yahoo_chart"

// DefaultBaseURL は公開 chart API のホストです。
const DefaultBaseURL = "https://query1.finance.yahoo.com"

// Config は chart クライアントの設定です。
type Config struct {
	BaseURL   string
	UserAgent string
}

// Client は Yahoo chart API からスナップショットを取得する Provider 実装です。
type Client struct {
	cfg    Config
	client *http.Client
}

var _ usecase.Provider = (*Client)(nil)

// NewClient は指定された設定とHTTPクライアントで Client を生成します。
func NewClient(cfg Config, client *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		// ブラウザ相当の User-Agent がないと拒否される
		cfg.UserAgent = "Mozilla/5.0"
	}
	return &Client{cfg: cfg, client: client}
}

// Name は usecase.Provider を実装します。
func (c *Client) Name() string { return Name }

// Fetch は symbol のスナップショット（fast-info 形式のキー）を返します。
func (c *Client) Fetch(ctx context.Context, symbol string) (entity.RawFieldBag, error) {
	q := url.Values{}
	q.Set("interval", "1m")
	q.Set("range", "1d")
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(symbol), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return entity.RawFieldBag{}, platformhttp.TransportError(Name, err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

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

	var body dto.ChartResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return entity.RawFieldBag{}, domain.NewFetchError(Name, domain.FetchUnreachable, fmt.Errorf("decode chart: %w", err))
	}
	if e := body.Chart.Error; e != nil {
		kind := domain.FetchNoData
		if strings.EqualFold(e.Code, "Not Found") {
			kind = domain.FetchInvalidSymbol
		}
		return entity.RawFieldBag{}, domain.NewFetchError(Name, kind, fmt.Errorf("%s: %s", e.Code, e.Description))
	}
	if len(body.Chart.Result) == 0 {
		return entity.RawFieldBag{}, domain.NewFetchError(Name, domain.FetchNoData, nil)
	}

	bag := entity.NewRawFieldBag(Name, entity.SourceSnapshot, snapshotFields(body.Chart.Result[0]))
	if bag.Empty() {
		return bag, domain.NewFetchError(Name, domain.FetchNoData, nil)
	}
	return bag, nil
}

// snapshotFields は chart の meta からスナップショットのキーを作ります。
// meta にない値は当日の分足から補います。
func snapshotFields(r dto.ChartResult) map[string]any {
	f := make(map[string]any)
	m := r.Meta

	putFloat(f, "lastPrice", m.RegularMarketPrice)
	putFloat(f, "previousClose", m.PreviousClose)
	if _, ok := f["previousClose"]; !ok {
		putFloat(f, "previousClose", m.ChartPreviousClose)
	}
	putFloat(f, "dayHigh", m.RegularMarketDayHigh)
	putFloat(f, "dayLow", m.RegularMarketDayLow)
	if m.RegularMarketVolume != nil {
		f["lastVolume"] = *m.RegularMarketVolume
	}
	if m.RegularMarketTime != nil && *m.RegularMarketTime > 0 {
		f["lastTradeTime"] = *m.RegularMarketTime
	}

	if len(r.Indicators.Quote) == 0 {
		return f
	}
	bars := r.Indicators.Quote[0]
	putFloat(f, "open", first(bars.Open))
	if _, ok := f["lastPrice"]; !ok {
		putFloat(f, "lastPrice", last(bars.Close))
	}
	if _, ok := f["dayHigh"]; !ok {
		putFloat(f, "dayHigh", extreme(bars.High, func(a, b float64) bool { return a > b }))
	}
	if _, ok := f["dayLow"]; !ok {
		putFloat(f, "dayLow", extreme(bars.Low, func(a, b float64) bool { return a < b }))
	}
	if _, ok := f["lastTradeTime"]; !ok && len(r.Timestamp) > 0 {
		if ts := r.Timestamp[len(r.Timestamp)-1]; ts > 0 {
			f["lastTradeTime"] = ts
		}
	}
	return f
}

func putFloat(f map[string]any, key string, v *float64) {
	if v != nil {
		f[key] = *v
	}
}

func first(xs []*float64) *float64 {
	for _, x := range xs {
		if x != nil {
			return x
		}
	}
	return nil
}

func last(xs []*float64) *float64 {
	for i := len(xs) - 1; i >= 0; i-- {
		if xs[i] != nil {
			return xs[i]
		}
	}
	return nil
}

func extreme(xs []*float64, better func(a, b float64) bool) *float64 {
	var best *float64
	for _, x := range xs {
		if x != nil && (best == nil || better(*x, *best)) {
			best = x
		}
	}
	return best
}
