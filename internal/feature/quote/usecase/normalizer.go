package usecase

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"stock_quote/internal/feature/quote/domain"
	"stock_quote/internal/feature/quote/domain/entity"
)

// Field は正規化後の Quote のフィールド名です。
type Field string

const (
	FieldPrice         Field = "price"
	FieldPreviousClose Field = "previousClose"
	FieldOpen          Field = "open"
	FieldHigh          Field = "high"
	FieldLow           Field = "low"
	FieldVolume        Field = "volume"
	FieldLastTrade     Field = "lastTrade"
)

// Candidate はフォールバックチェーンの1要素（ソース, キー）です。
type Candidate struct {
	Source entity.SourceKind
	Key    string
}

// FieldChains は各フィールドを順序付きのフォールバックチェーンに対応付けます。
// 順序は呼び出し順ではなくソースの信頼度を表します。
type FieldChains map[Field][]Candidate

func snap(key string) Candidate   { return Candidate{Source: entity.SourceSnapshot, Key: key} }
func full(key string) Candidate   { return Candidate{Source: entity.SourceFull, Key: key} }
func series(key string) Candidate { return Candidate{Source: entity.SourceSeries, Key: key} }

// DefaultFieldChains は本番で使う優先順位表を返します。
// price チェーン末尾の previousClose は、古いデータしかない場合でも失敗させないためのものです。
// price の候補値が0以下の場合は欠損とみなし、チェーンの次の要素に進みます。
func DefaultFieldChains() FieldChains {
	return FieldChains{
		FieldPrice: {
			snap("lastPrice"),
			full("regularMarketPrice"),
			full("currentPrice"),
			full("05. price"),
			series("close"),
			full("previousClose"),
			snap("previousClose"),
			full("08. previous close"),
		},
		FieldPreviousClose: {
			snap("previousClose"),
			snap("regularMarketPreviousClose"),
			full("previousClose"),
			full("regularMarketPreviousClose"),
			full("08. previous close"),
			series("previousClose"),
		},
		FieldOpen: {
			snap("open"),
			full("open"),
			full("regularMarketOpen"),
			full("02. open"),
			series("open"),
		},
		FieldHigh: {
			snap("dayHigh"),
			full("dayHigh"),
			full("regularMarketDayHigh"),
			full("03. high"),
			series("high"),
		},
		FieldLow: {
			snap("dayLow"),
			full("dayLow"),
			full("regularMarketDayLow"),
			full("04. low"),
			series("low"),
		},
		FieldVolume: {
			snap("volume"),
			snap("lastVolume"),
			full("volume"),
			full("regularMarketVolume"),
			full("06. volume"),
			series("volume"),
		},
		FieldLastTrade: {
			snap("lastTradeTime"),
			full("regularMarketTime"),
			series("datetime"),
			full("07. latest trading day"),
		},
	}
}

// clone は表を複製します。オプションが共有の値を書き換えないようにします。
func (fc FieldChains) clone() FieldChains {
	out := make(FieldChains, len(fc))
	for f, chain := range fc {
		out[f] = append([]Candidate(nil), chain...)
	}
	return out
}

// NormalizerOption は Normalizer の設定を変更します。
type NormalizerOption func(*Normalizer)

// WithFieldChains は優先順位表を置き換えます。
func WithFieldChains(fc FieldChains) NormalizerOption {
	return func(n *Normalizer) { n.chains = fc.clone() }
}

// WithPreviousCloseFromOpen は previousClose が欠損しているとき、シリーズの当日始値で近似します。
// 「前日終値」と「当日始値」を同一視する近似のため、既定では無効です。
func WithPreviousCloseFromOpen() NormalizerOption {
	return func(n *Normalizer) {
		n.chains[FieldPreviousClose] = append(n.chains[FieldPreviousClose], series("open"))
	}
}

// Normalizer は複数の RawFieldBag を1つの Quote にマージします。
type Normalizer struct {
	chains FieldChains
}

// NewNormalizer は DefaultFieldChains を使う Normalizer を生成します（オプションで置き換え可能）。
func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{chains: DefaultFieldChains()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalization はマージ結果です。LastTrade は最新データ点の生タイムスタンプで、
// 表示用の変換は呼び出し側が行います。
type Normalization struct {
	Quote     entity.Quote
	LastTrade *entity.RawTimestamp
}

// Normalize は bags に対してすべてのフィールドチェーンを評価します。
// price が得られない場合のみ domain.ErrNoPrice で失敗し、他のフィールドはベストエフォートです。
func (n *Normalizer) Normalize(symbol string, bags []entity.RawFieldBag) (Normalization, error) {
	price, ok := n.lookupPrice(bags)
	if !ok {
		return Normalization{}, fmt.Errorf("%s: %w", symbol, domain.ErrNoPrice)
	}

	q := entity.Quote{Symbol: symbol, Price: round2(price, true)}

	prev, hasPrev := n.lookupNonNegative(FieldPreviousClose, bags)
	q.PreviousClose = round2(prev, hasPrev)
	if v, ok := n.lookupNonNegative(FieldOpen, bags); ok {
		q.Open = round2(v, true)
	}
	if v, ok := n.lookupNonNegative(FieldHigh, bags); ok {
		q.High = round2(v, true)
	}
	if v, ok := n.lookupNonNegative(FieldLow, bags); ok {
		q.Low = round2(v, true)
	}
	if v, ok := n.lookupNonNegative(FieldVolume, bags); ok {
		vol := int64(v) // 切り捨て
		q.Volume = &vol
	}

	q.ChangePercent = "0%"
	if hasPrev {
		// change と割合は丸め前の値から計算し、それぞれ1回だけ丸める
		change := decimal.NewFromFloat(price).Sub(decimal.NewFromFloat(prev))
		q.Change = decimal.NewNullDecimal(change.Round(2))
		if prev != 0 {
			pct := change.Div(decimal.NewFromFloat(prev)).Mul(decimal.NewFromInt(100))
			q.ChangePercent = formatPercent(pct)
		}
	}

	out := Normalization{Quote: q}
	if ts, ok := n.lookupTimestamp(bags); ok {
		out.LastTrade = &ts
	}
	return out, nil
}

// Satisfied は bags から price と previousClose の両方が得られるかを返します。
// ShortCircuit ポリシーはこの時点でプロバイダー呼び出しを止めます。
func (n *Normalizer) Satisfied(bags []entity.RawFieldBag) bool {
	if _, ok := n.lookupPrice(bags); !ok {
		return false
	}
	_, ok := n.lookupNonNegative(FieldPreviousClose, bags)
	return ok
}

// lookupPrice は0以下の候補を飛ばして price チェーンを評価します。
// あるソースのプレースホルダーの0が、他ソースの実際の価格を隠さないようにします。
func (n *Normalizer) lookupPrice(bags []entity.RawFieldBag) (float64, bool) {
	return n.lookup(FieldPrice, bags, func(f float64) bool { return f > 0 })
}

func (n *Normalizer) lookupNonNegative(field Field, bags []entity.RawFieldBag) (float64, bool) {
	return n.lookup(field, bags, func(f float64) bool { return f >= 0 })
}

func (n *Normalizer) lookup(field Field, bags []entity.RawFieldBag, accept func(float64) bool) (float64, bool) {
	for _, c := range n.chains[field] {
		for _, b := range bags {
			if b.Source != c.Source {
				continue
			}
			if v, ok := b.Float(c.Key); ok && accept(v) {
				return v, true
			}
		}
	}
	return 0, false
}

// lookupTimestamp はタイムスタンプ候補の中で最新のデータ点を返します。
// タイムゾーンなしの値はUTCとしてパース済みなので時刻はそのまま比較できます。同時刻ならチェーンの前の要素が優先です。
func (n *Normalizer) lookupTimestamp(bags []entity.RawFieldBag) (entity.RawTimestamp, bool) {
	var (
		best  entity.RawTimestamp
		found bool
	)
	for _, c := range n.chains[FieldLastTrade] {
		for _, b := range bags {
			if b.Source != c.Source {
				continue
			}
			if ts, ok := b.Timestamp(c.Key); ok && (!found || ts.Time.After(best.Time)) {
				best, found = ts, true
			}
		}
	}
	return best, found
}

// formatPercent は pct を小数第2位に丸め、小数部を最低1桁残して整形します。
// 計算結果の0は "0.0%" になり、previousClose が0または欠損のときの "0%" と区別されます。
func formatPercent(pct decimal.Decimal) string {
	r := pct.Round(2)
	s := r.String()
	if !strings.Contains(s, ".") {
		s = r.StringFixed(1)
	}
	return s + "%"
}

func round2(v float64, ok bool) decimal.NullDecimal {
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(v).Round(2))
}
