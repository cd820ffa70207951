// Package dto はクオートエンドポイントのJSONボディを定義します。
package dto

import (
	"github.com/shopspring/decimal"

	"stock_quote/internal/feature/quote/domain/entity"
)

// QuoteResponse は GET /stock/:symbol のレスポンスDTOです。
// 欠損値は null で返します。
type QuoteResponse struct {
	Symbol           string   `json:"symbol"`
	Price            *float64 `json:"price"`
	Open             *float64 `json:"open"`
	High             *float64 `json:"high"`
	Low              *float64 `json:"low"`
	PreviousClose    *float64 `json:"previous_close"`
	Change           *float64 `json:"change"`
	ChangePercent    string   `json:"change_percent"`
	Volume           *int64   `json:"volume"`
	LatestTradingDay string   `json:"latest_trading_day"` // dd/mm/yyyy, hh:mm:ss AM/PM
	MarketStatus     string   `json:"market_status,omitempty"`
}

// ErrorResponse は2xx以外のすべてのレスポンスのボディです。
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewQuoteResponse は q をレスポンスDTOに変換します。最終取引時刻は layout で整形します。
func NewQuoteResponse(q entity.Quote, layout string) QuoteResponse {
	return QuoteResponse{
		Symbol:           q.Symbol,
		Price:            number(q.Price),
		Open:             number(q.Open),
		High:             number(q.High),
		Low:              number(q.Low),
		PreviousClose:    number(q.PreviousClose),
		Change:           number(q.Change),
		ChangePercent:    q.ChangePercent,
		Volume:           q.Volume,
		LatestTradingDay: q.LastTrade.Format(layout),
		MarketStatus:     string(q.MarketStatus),
	}
}

// number は丸め済みの decimal をJSONの数値に変換します。
func number(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	f := d.Decimal.InexactFloat64()
	return &f
}
