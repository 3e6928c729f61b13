package predictor

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model"
	"main/internal/model/enum"
)

func trade(at int64, side enum.Side, size string) model.Trade {
	return model.Trade{
		Symbol:    "BTCUSDT",
		Exchange:  "binance",
		Price:     model.RequirePrice("100"),
		Size:      model.RequireSize(size),
		Side:      side,
		Timestamp: at,
	}
}

func TestTradeFlowNotReady(t *testing.T) {
	f := NewTradeFlowIndicator(time.Minute, 3)

	f.Add(trade(1700000000000, enum.SideBuy, "1"))
	f.Add(trade(1700000001000, enum.SideSell, "1"))

	assert.False(t, f.IsReady())

	_, ok := f.FlowRatio()
	assert.False(t, ok)

	_, ok = f.Pressure()
	assert.False(t, ok)
}

func TestTradeFlowRatioAndPressure(t *testing.T) {
	f := NewTradeFlowIndicator(time.Minute, 2)

	f.Add(trade(1700000000000, enum.SideBuy, "3"))
	f.Add(trade(1700000001000, enum.SideSell, "1"))

	require.True(t, f.IsReady())

	buy, sell := f.Volumes()
	assert.True(t, buy.Equal(decimal.RequireFromString("3")))
	assert.True(t, sell.Equal(decimal.RequireFromString("1")))

	ratio, ok := f.FlowRatio()
	require.True(t, ok)
	assert.True(t, ratio.Equal(decimal.RequireFromString("0.75")))

	pressure, ok := f.Pressure()
	require.True(t, ok)
	assert.True(t, pressure.Equal(decimal.RequireFromString("2")))
}

func TestTradeFlowHorizonEviction(t *testing.T) {
	f := NewTradeFlowIndicator(10*time.Second, 1)

	f.Add(trade(1700000000000, enum.SideBuy, "5"))
	f.Add(trade(1700000020000, enum.SideSell, "1"))

	// The buy is 20s old relative to the newest trade and falls outside the
	// 10s horizon.
	buy, sell := f.Volumes()
	assert.True(t, buy.IsZero())
	assert.True(t, sell.Equal(decimal.RequireFromString("1")))
}

func TestTradeFlowMomentum(t *testing.T) {
	m := NewTradeFlowMomentum(time.Minute, 2)

	// Older half balanced, newer half all buys: momentum +0.5.
	m.Add(trade(1700000000000, enum.SideBuy, "1"))
	m.Add(trade(1700000001000, enum.SideSell, "1"))
	m.Add(trade(1700000030000, enum.SideBuy, "1"))
	m.Add(trade(1700000031000, enum.SideBuy, "1"))

	require.True(t, m.IsReady())

	momentum, ok := m.Momentum()
	require.True(t, ok)
	assert.True(t, momentum.Equal(decimal.RequireFromString("0.5")), "momentum %s", momentum)
}

func TestTradeFlowMomentumNotReady(t *testing.T) {
	m := NewTradeFlowMomentum(time.Minute, 2)

	m.Add(trade(1700000000000, enum.SideBuy, "1"))
	m.Add(trade(1700000030000, enum.SideBuy, "1"))

	assert.False(t, m.IsReady())

	_, ok := m.Momentum()
	assert.False(t, ok)
}
