package usecase

import (
	"fmt"
	"strings"

	"stock_quote/internal/feature/quote/domain"
)

// DefaultExchangeSuffix は取引所マーカーのないシンボルに付与するサフィックスです。
const DefaultExchangeSuffix = ".NS"

const maxSymbolLen = 32

// NormalizeSymbol は raw の前後の空白を除いて大文字化し、サフィックス規約を適用します。
// "." を含まないシンボルには defaultSuffix を付与します。
// defaultSuffix が空の場合はそのまま返します。
func NormalizeSymbol(raw, defaultSuffix string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return "", fmt.Errorf("%w: empty symbol", domain.ErrInvalidSymbol)
	}
	if len(s) > maxSymbolLen {
		return "", fmt.Errorf("%w: %q is too long", domain.ErrInvalidSymbol, raw)
	}
	for _, r := range s {
		if !validSymbolRune(r) {
			return "", fmt.Errorf("%w: %q contains %q", domain.ErrInvalidSymbol, raw, r)
		}
	}
	if strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".") {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidSymbol, raw)
	}
	if _, suffix := SplitSuffix(s); suffix == "" && defaultSuffix != "" {
		s += strings.ToUpper(defaultSuffix)
	}
	return s, nil
}

func validSymbolRune(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '-', r == '&', r == '_', r == '^', r == '=':
		return true
	}
	return false
}

// SplitSuffix は "TCS.NS" を ("TCS", ".NS") に分割します。
// 取引所マーカーがなければサフィックスは空です。
func SplitSuffix(symbol string) (base, suffix string) {
	i := strings.LastIndex(symbol, ".")
	if i <= 0 {
		return symbol, ""
	}
	return symbol[:i], symbol[i:]
}

// SwapSuffix はサフィックス from を to に置き換えます。
// 別のサフィックスを持つシンボルはそのまま返します。
func SwapSuffix(symbol, from, to string) string {
	base, suffix := SplitSuffix(symbol)
	if !strings.EqualFold(suffix, from) {
		return symbol
	}
	return base + to
}
