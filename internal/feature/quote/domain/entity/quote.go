// Package entity defines the domain models for the quote feature.
package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketStatus reports whether the exchange session is running.
type MarketStatus string

const (
	MarketOpen   MarketStatus = "OPEN"
	MarketClosed MarketStatus = "CLOSED"
)

// NoDataMarker is rendered in place of a timestamp when no data point exists.
const NoDataMarker = "N/A"

// LastTrade is the last-trade instant in the display timezone.
// The zero value is the "no data" sentinel.
type LastTrade struct {
	Time  time.Time
	Valid bool
}

// Format renders the instant with layout, or NoDataMarker when invalid.
func (lt LastTrade) Format(layout string) string {
	if !lt.Valid {
		return NoDataMarker
	}
	return lt.Time.Format(layout)
}

// Quote is the canonical normalized price record for one symbol.
// Price fields are rounded to 2 fractional digits; a NullDecimal with
// Valid == false means no source supplied the value.
type Quote struct {
	Symbol        string
	Price         decimal.NullDecimal
	Open          decimal.NullDecimal
	High          decimal.NullDecimal
	Low           decimal.NullDecimal
	PreviousClose decimal.NullDecimal
	Change        decimal.NullDecimal
	ChangePercent string // e.g. "0.35%"; "0%" when previous close is zero or absent
	Volume        *int64
	LastTrade     LastTrade
	MarketStatus  MarketStatus // empty when not computed
}

// HasPrice reports whether the quote satisfies the validity gate:
// a present, non-zero price.
func (q Quote) HasPrice() bool {
	return q.Price.Valid && !q.Price.Decimal.IsZero()
}
