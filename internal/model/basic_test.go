package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPrice(t *testing.T) {
	p, err := NewPrice("100.50")
	require.NoError(t, err)
	assert.Equal(t, "100.5", p.String())

	for _, input := range []string{"", "0", "0.00", "-1", "-0.5", "abc", "1.2.3", "1,5"} {
		_, err := NewPrice(input)
		assert.Errorf(t, err, "input %q should be rejected", input)
	}
}

func TestNewSize(t *testing.T) {
	s, err := NewSize("0.001")
	require.NoError(t, err)
	assert.Equal(t, "0.001", s.String())

	_, err = NewSize("0")
	assert.ErrorIs(t, err, ErrNonPositive)

	_, err = NewSize("")
	assert.ErrorIs(t, err, ErrEmptyNumeric)

	_, err = NewSize("12x")
	assert.ErrorIs(t, err, ErrMalformedNumber)
}

func TestPriceArithmetic(t *testing.T) {
	a := RequirePrice("101.00")
	b := RequirePrice("100.00")

	diff := a.Decimal.Sub(b.Decimal)
	assert.True(t, diff.Equal(decimal.RequireFromString("1.00")))

	// Negative intermediates are plain decimals, never reconstructed as Price.
	loss := b.Decimal.Sub(a.Decimal)
	assert.True(t, loss.IsNegative())

	ratio := a.Ratio(b)
	assert.True(t, ratio.GreaterThan(decimal.NewFromInt(1)))
}

func TestNotional(t *testing.T) {
	n := Notional(RequirePrice("100.00"), RequireSize("0.5"))
	assert.True(t, n.Equal(decimal.RequireFromString("50")))
}

func TestPriceExactComparison(t *testing.T) {
	assert.True(t, RequirePrice("1.10").Equal(RequirePrice("1.1")))
	assert.False(t, RequirePrice("1.100001").Equal(RequirePrice("1.1")))
	assert.Equal(t, 1, RequirePrice("2").Cmp(RequirePrice("1.999999")))
}

func TestSymbolSplitAssets(t *testing.T) {
	base, quote := Symbol("BTCUSDT").SplitAssets()
	assert.Equal(t, "BTC", base)
	assert.Equal(t, "USDT", quote)

	// The default last-4 policy misreads 3-letter quotes; a configured quote
	// list fixes the split.
	base, quote = Symbol("ETHBTC").SplitAssets("BTC", "USDT")
	assert.Equal(t, "ETH", base)
	assert.Equal(t, "BTC", quote)

	// Longest suffix wins when several match.
	base, quote = Symbol("SOLUSDT").SplitAssets("USDT", "SDT", "T")
	assert.Equal(t, "SOL", base)
	assert.Equal(t, "USDT", quote)

	base, quote = Symbol("BTC").SplitAssets()
	assert.Equal(t, "BTC", base)
	assert.Equal(t, "", quote)
}

func TestSymbolSlice(t *testing.T) {
	s := Symbol("BTCUSDT")
	assert.Equal(t, 7, s.Len())
	assert.Equal(t, "BTC", s.Slice(0, 3))
	assert.Equal(t, "USDT", s.Slice(3, 99))
	assert.Equal(t, "", s.Slice(5, 2))
}

func TestOrderHelpers(t *testing.T) {
	order := LimitBuy("BTCUSDT", "binance", RequirePrice("100"), RequireSize("1"))
	require.NotNil(t, order.Price)
	assert.NotEmpty(t, order.ClientOrderID)

	sell := MarketSell("BTCUSDT", "binance", RequireSize("1"))
	assert.Nil(t, sell.Price)
	assert.NotEqual(t, order.ClientOrderID, sell.ClientOrderID)
}
