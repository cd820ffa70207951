package usecase

import (
	"time"

	"stock_quote/internal/feature/quote/domain/entity"
)

const (
	// DisplayOffset は表示タイムゾーンの固定オフセット（UTC+05:30）です。
	DisplayOffset = 5*time.Hour + 30*time.Minute
	// DisplayLayout は "19/10/2026, 02:30:00 PM" 形式の表示レイアウトです。
	DisplayLayout = "02/01/2006, 03:04:05 PM"

	sessionOpen  = 9*time.Hour + 15*time.Minute
	sessionClose = 15*time.Hour + 30*time.Minute
)

// DisplayZone は最終取引時刻を表示するタイムゾーンです。
var DisplayZone = time.FixedZone("IST", int(DisplayOffset/time.Second))

// MarketClock はデータ点のタイムスタンプを表示タイムゾーンに変換し、市場ステータスを判定します。
//
// 取引所の休場日は扱いません。平日は常に取引日とみなします。
type MarketClock struct {
	loc *time.Location
}

// NewMarketClock は DisplayZone を使う MarketClock を生成します。
func NewMarketClock() *MarketClock {
	return &MarketClock{loc: DisplayZone}
}

// Resolve は raw を表示タイムゾーンに変換し、now 時点の市場ステータスを返します。
// ステータスは now が取引日の取引時間内かどうかだけで決まります。
// タイムゾーンのない raw はUTCの壁時計時刻として読みます（表示タイムゾーンとしては扱いません）。
func (c *MarketClock) Resolve(raw time.Time, hasTimezone bool, now time.Time) (entity.LastTrade, entity.MarketStatus) {
	if !hasTimezone {
		raw = time.Date(raw.Year(), raw.Month(), raw.Day(), raw.Hour(), raw.Minute(), raw.Second(), raw.Nanosecond(), time.UTC)
	}
	local := raw.In(c.loc)
	localNow := now.In(c.loc)

	status := entity.MarketClosed
	if c.InSession(localNow) {
		status = entity.MarketOpen
	}
	return entity.LastTrade{Time: local, Valid: true}, status
}

// Stamp は省略可能なタイムスタンプに対する Resolve です。
// データ点がなければ CLOSED と "no data" の番兵値を返します。
func (c *MarketClock) Stamp(raw *entity.RawTimestamp, now time.Time) (entity.LastTrade, entity.MarketStatus) {
	if raw == nil || raw.Time.IsZero() {
		return entity.LastTrade{}, entity.MarketClosed
	}
	return c.Resolve(raw.Time, raw.HasZone, now)
}

// InSession は t が取引日の [09:15:00, 15:30:00]（表示タイムゾーン）に入るかを返します。
func (c *MarketClock) InSession(t time.Time) bool {
	t = t.In(c.loc)
	if !IsTradingDay(t) {
		return false
	}
	tod := time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
	return tod >= sessionOpen && tod <= sessionClose
}

// IsTradingDay は t が平日かを返します。
func IsTradingDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}
