package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/clock"
	"main/internal/model"
	"main/internal/model/enum"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func limitOrder(side enum.Side, price, size string) model.NewOrder {
	return model.NewOrder{
		Symbol:        "BTCUSDT",
		Exchange:      "binance",
		Side:          side,
		Type:          enum.OrderTypeLimit,
		TimeInForce:   enum.TimeInForceGTC,
		Price:         ptr(model.RequirePrice(price)),
		Size:          model.RequireSize(size),
		ClientOrderID: "c-" + price + "-" + size + "-" + side.String(),
	}
}

func ptr[T any](v T) *T { return &v }

func TestPositionSizeRuleBoundaries(t *testing.T) {
	e := NewEngine()
	e.AddRule(NewPositionSizeRule())
	e.SetMaxPosition("BTCUSDT", dec("1.00"))
	e.SetPosition("BTCUSDT", dec("0.50"), nil)

	// Selling 1.50 lands exactly on -1.00: inclusive boundary, accepted.
	assert.Nil(t, e.CheckOrder(limitOrder(enum.SideSell, "100", "1.50")))

	// Selling 1.60 lands on -1.10: rejected.
	v := e.CheckOrder(limitOrder(enum.SideSell, "100", "1.60"))
	require.NotNil(t, v)
	assert.Equal(t, RulePositionSizeLimit, v.Rule)

	// Buying 0.50 lands exactly on +1.00: accepted; 0.51 rejected.
	assert.Nil(t, e.CheckOrder(limitOrder(enum.SideBuy, "100", "0.50")))
	assert.NotNil(t, e.CheckOrder(limitOrder(enum.SideBuy, "100", "0.51")))
}

func TestPositionSizeRuleNoLimitConfigured(t *testing.T) {
	e := NewEngine()
	e.AddRule(NewPositionSizeRule())

	assert.Nil(t, e.CheckOrder(limitOrder(enum.SideBuy, "100", "99999")))
}

func TestCheckOrderFirstViolationWins(t *testing.T) {
	e := NewEngine()
	e.AddRule(NewPositionSizeRule())
	e.AddRule(NewTotalExposureRule(dec("1")))
	e.SetMaxPosition("BTCUSDT", dec("0.01"))

	// Both rules would fail; registration order decides the reported rule.
	v := e.CheckOrder(limitOrder(enum.SideBuy, "100", "5"))
	require.NotNil(t, v)
	assert.Equal(t, RulePositionSizeLimit, v.Rule)

	reversed := NewEngine()
	reversed.AddRule(NewTotalExposureRule(dec("1")))
	reversed.AddRule(NewPositionSizeRule())
	reversed.SetMaxPosition("BTCUSDT", dec("0.01"))

	v = reversed.CheckOrder(limitOrder(enum.SideBuy, "100", "5"))
	require.NotNil(t, v)
	assert.Equal(t, RuleTotalExposureLimit, v.Rule)
}

func TestBalanceRule(t *testing.T) {
	e := NewEngine()
	e.AddRule(NewBalanceRule(map[string]decimal.Decimal{"USDT": dec("100")}))
	e.SetBalance("USDT", dec("1000"), dec("0"))

	// Cost 500 leaves 500 free, above the 100 minimum.
	assert.Nil(t, e.CheckOrder(limitOrder(enum.SideBuy, "100", "5")))

	// Cost 950 leaves 50 free, below the minimum.
	v := e.CheckOrder(limitOrder(enum.SideBuy, "100", "9.5"))
	require.NotNil(t, v)
	assert.Equal(t, RuleBalanceLimit, v.Rule)

	// Sells never spend quote funds.
	assert.Nil(t, e.CheckOrder(limitOrder(enum.SideSell, "100", "9.5")))

	// Market buys carry no price and are skipped.
	assert.Nil(t, e.CheckOrder(model.MarketBuy("BTCUSDT", "binance", model.RequireSize("9.5"))))
}

func TestTotalExposureRule(t *testing.T) {
	e := NewEngine()
	e.AddRule(NewTotalExposureRule(dec("1000")))
	e.SetPosition("ETHUSDT", dec("2"), ptr(model.RequirePrice("300")))

	// 600 existing + 300 candidate = 900, under the ceiling.
	assert.Nil(t, e.CheckOrder(limitOrder(enum.SideBuy, "100", "3")))

	// 600 existing + 500 candidate = 1100, over.
	v := e.CheckOrder(limitOrder(enum.SideBuy, "100", "5"))
	require.NotNil(t, v)
	assert.Equal(t, RuleTotalExposureLimit, v.Rule)
}

func TestDailyLossRule(t *testing.T) {
	e := NewEngine()
	e.AddRule(NewDailyLossRule())
	e.SetMaxDailyLoss("BTCUSDT", dec("100"))
	e.SetPosition("BTCUSDT", dec("2"), ptr(model.RequirePrice("100")))

	// Selling 2 at 80 realizes a 40 loss: allowed under the 100 ceiling.
	assert.Nil(t, e.CheckOrder(limitOrder(enum.SideSell, "80", "2")))

	// Selling 2 at 40 realizes a 120 loss: rejected.
	v := e.CheckOrder(limitOrder(enum.SideSell, "40", "2"))
	require.NotNil(t, v)
	assert.Equal(t, RuleDailyLossLimit, v.Rule)

	// Selling at or above entry never trips the rule.
	assert.Nil(t, e.CheckOrder(limitOrder(enum.SideSell, "100", "2")))
	assert.Nil(t, e.CheckOrder(limitOrder(enum.SideSell, "150", "2")))
}

func TestDailyLossRuleCountsAccumulatedLoss(t *testing.T) {
	e := NewEngine()
	e.AddRule(NewDailyLossRule())
	e.SetMaxDailyLoss("BTCUSDT", dec("100"))
	e.SetPosition("BTCUSDT", dec("4"), ptr(model.RequirePrice("100")))

	// Realize an 80 loss: sell 2 at 60.
	sell := limitOrder(enum.SideSell, "60", "2")
	require.Nil(t, e.CheckOrder(sell))
	e.RegisterOrder(sell)
	e.ApplyExecutionReport(model.ExecutionReport{
		OrderID:       "x1",
		ClientOrderID: sell.ClientOrderID,
		Symbol:        "BTCUSDT",
		Status:        enum.OrderStatusFilled,
		FilledSize:    model.RequireSize("2"),
	})
	assert.True(t, e.DailyLoss("BTCUSDT").Equal(dec("80")))

	// Another 30-loss sell would reach 110, over the 100 ceiling.
	v := e.CheckOrder(limitOrder(enum.SideSell, "85", "2"))
	require.NotNil(t, v)
	assert.Equal(t, RuleDailyLossLimit, v.Rule)

	// A 15-loss sell stays under.
	assert.Nil(t, e.CheckOrder(limitOrder(enum.SideSell, "92.5", "2")))

	e.ResetDailyLoss()
	assert.Nil(t, e.CheckOrder(limitOrder(enum.SideSell, "85", "2")))
}

func TestRateOfChangeLimitRule(t *testing.T) {
	fake := clock.NewFake(time.Unix(1700000000, 0))
	rule := NewRateOfChangeLimitRule(dec("1"), time.Minute, fake)

	e := NewEngine()
	e.AddRule(rule)

	// First order inside the window: change 0.6 <= 1.
	buy := limitOrder(enum.SideBuy, "100", "0.6")
	require.Nil(t, e.CheckOrder(buy))
	e.RegisterOrder(buy)
	e.ApplyExecutionReport(model.ExecutionReport{
		OrderID:       "x1",
		ClientOrderID: buy.ClientOrderID,
		Symbol:        "BTCUSDT",
		Status:        enum.OrderStatusFilled,
		FilledSize:    model.RequireSize("0.6"),
	})

	// Cumulative change within the same window would be 1.2: rejected.
	v := e.CheckOrder(limitOrder(enum.SideBuy, "100", "0.6"))
	require.NotNil(t, v)
	assert.Equal(t, RuleRateOfChangeLimit, v.Rule)

	// After the window elapses the baseline restarts.
	fake.Advance(2 * time.Minute)
	assert.Nil(t, e.CheckOrder(limitOrder(enum.SideBuy, "100", "0.6")))
}

func TestApplyExecutionReportUpdatesPosition(t *testing.T) {
	e := NewEngine()

	buy := limitOrder(enum.SideBuy, "100", "2")
	e.RegisterOrder(buy)
	e.ApplyExecutionReport(model.ExecutionReport{
		OrderID:       "x1",
		ClientOrderID: buy.ClientOrderID,
		Symbol:        "BTCUSDT",
		Status:        enum.OrderStatusPartiallyFilled,
		FilledSize:    model.RequireSize("1"),
	})

	pos := e.Position("BTCUSDT")
	assert.True(t, pos.Size.Equal(dec("1")))
	require.NotNil(t, pos.AvgEntryPrice)
	assert.True(t, pos.AvgEntryPrice.Equal(model.RequirePrice("100")))

	// Cumulative filled size: the second report adds only the increment.
	e.ApplyExecutionReport(model.ExecutionReport{
		OrderID:       "x1",
		ClientOrderID: buy.ClientOrderID,
		Symbol:        "BTCUSDT",
		Status:        enum.OrderStatusFilled,
		FilledSize:    model.RequireSize("2"),
		AveragePrice:  ptr(model.RequirePrice("110")),
	})

	pos = e.Position("BTCUSDT")
	assert.True(t, pos.Size.Equal(dec("2")))
	assert.True(t, pos.AvgEntryPrice.Equal(model.RequirePrice("105")))
}

func TestApplyExecutionReportSettlesBalances(t *testing.T) {
	e := NewEngine()
	e.SetBalance("USDT", dec("1000"), dec("0"))
	e.SetBalance("BTC", dec("0"), dec("0"))

	buy := limitOrder(enum.SideBuy, "100", "2")
	e.RegisterOrder(buy)
	e.ApplyExecutionReport(model.ExecutionReport{
		OrderID:       "x1",
		ClientOrderID: buy.ClientOrderID,
		Symbol:        "BTCUSDT",
		Status:        enum.OrderStatusFilled,
		FilledSize:    model.RequireSize("2"),
	})

	assert.True(t, e.Balance("USDT").Total.Equal(dec("800")))
	assert.True(t, e.Balance("BTC").Total.Equal(dec("2")))
}

func TestApplyExecutionReportUnknownOrderIgnored(t *testing.T) {
	e := NewEngine()
	e.ApplyExecutionReport(model.ExecutionReport{
		OrderID:       "ghost",
		ClientOrderID: "ghost",
		Symbol:        "BTCUSDT",
		Status:        enum.OrderStatusFilled,
		FilledSize:    model.RequireSize("1"),
	})

	assert.True(t, e.Position("BTCUSDT").Size.IsZero())
}

func TestFlipThroughZeroResetsEntry(t *testing.T) {
	e := NewEngine()
	e.SetPosition("BTCUSDT", dec("1"), ptr(model.RequirePrice("100")))

	sell := limitOrder(enum.SideSell, "90", "3")
	e.RegisterOrder(sell)
	e.ApplyExecutionReport(model.ExecutionReport{
		OrderID:       "x1",
		ClientOrderID: sell.ClientOrderID,
		Symbol:        "BTCUSDT",
		Status:        enum.OrderStatusFilled,
		FilledSize:    model.RequireSize("3"),
	})

	pos := e.Position("BTCUSDT")
	assert.True(t, pos.Size.Equal(dec("-2")))
	require.NotNil(t, pos.AvgEntryPrice)
	assert.True(t, pos.AvgEntryPrice.Equal(model.RequirePrice("90")))

	// The closed long realized a 10 loss.
	assert.True(t, e.DailyLoss("BTCUSDT").Equal(dec("10")))
}
