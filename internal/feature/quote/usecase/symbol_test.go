package usecase_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"stock_quote/internal/feature/quote/domain"
	"stock_quote/internal/feature/quote/usecase"
)

func TestNormalizeSymbol(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		suffix  string
		want    string
		wantErr bool
	}{
		{"bare symbol gets default suffix", "tcs", ".NS", "TCS.NS", false},
		{"existing suffix kept", "reliance.ns", ".NS", "RELIANCE.NS", false},
		{"other exchange kept", "Infy.BO", ".NS", "INFY.BO", false},
		{"whitespace trimmed", "  hdfcbank ", ".NS", "HDFCBANK.NS", false},
		{"ampersand allowed", "M&M", ".NS", "M&M.NS", false},
		{"index symbol", "^nsei", ".NS", "^NSEI.NS", false},
		{"no default suffix", "aapl", "", "AAPL", false},
		{"lowercase default suffix", "tcs", ".ns", "TCS.NS", false},
		{"empty", "   ", ".NS", "", true},
		{"slash rejected", "TCS/NS", ".NS", "", true},
		{"space inside rejected", "T CS", ".NS", "", true},
		{"leading dot rejected", ".NS", ".NS", "", true},
		{"trailing dot rejected", "TCS.", ".NS", "", true},
		{"too long", "ABCDEFGHIJKLMNOPQRSTUVWXYZABCDEFGH", ".NS", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := usecase.NormalizeSymbol(tt.raw, tt.suffix)
			if tt.wantErr {
				assert.True(t, errors.Is(err, domain.ErrInvalidSymbol), "got %v", err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitSuffix(t *testing.T) {
	t.Parallel()

	base, suffix := usecase.SplitSuffix("TCS.NS")
	assert.Equal(t, "TCS", base)
	assert.Equal(t, ".NS", suffix)

	base, suffix = usecase.SplitSuffix("AAPL")
	assert.Equal(t, "AAPL", base)
	assert.Empty(t, suffix)
}

func TestSwapSuffix(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "TCS.BSE", usecase.SwapSuffix("TCS.NS", ".NS", ".BSE"))
	assert.Equal(t, "TCS.NS", usecase.SwapSuffix("TCS.BSE", ".BSE", ".NS"))
	assert.Equal(t, "TCS.BO", usecase.SwapSuffix("TCS.BO", ".NS", ".BSE"))
	assert.Equal(t, "AAPL", usecase.SwapSuffix("AAPL", ".NS", ".BSE"))
}
