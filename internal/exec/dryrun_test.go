package exec

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/clock"
	"main/internal/model"
	"main/internal/model/enum"
)

func collectReports() (*[]model.ExecutionReport, ReportHandler) {
	reports := &[]model.ExecutionReport{}

	return reports, func(r model.ExecutionReport) {
		*reports = append(*reports, r)
	}
}

func TestDryRunLimitLifecycle(t *testing.T) {
	reports, handler := collectReports()
	d := NewDryRun(clock.NewFake(time.UnixMilli(1_700_000_000_000)), handler)

	order := model.LimitBuy("BTCUSDT", "binance", model.RequirePrice("100"), model.RequireSize("2"))
	require.NoError(t, d.Submit(context.Background(), order))
	require.Len(t, *reports, 1)
	assert.Equal(t, enum.OrderStatusNew, (*reports)[0].Status)
	assert.Equal(t, 1, d.Resting())

	require.NoError(t, d.Fill(order.ClientOrderID, model.RequireSize("0.5")))
	require.Len(t, *reports, 2)
	partial := (*reports)[1]
	assert.Equal(t, enum.OrderStatusPartiallyFilled, partial.Status)
	assert.True(t, partial.FilledSize.Decimal.Equal(model.RequireSize("0.5").Decimal))
	assert.True(t, partial.RemainingSize.Decimal.Equal(model.RequireSize("1.5").Decimal))
	require.NotNil(t, partial.AveragePrice)
	assert.True(t, partial.AveragePrice.Equal(model.RequirePrice("100")))

	require.NoError(t, d.Fill(order.ClientOrderID, model.RequireSize("1.5")))
	final := (*reports)[2]
	assert.Equal(t, enum.OrderStatusFilled, final.Status)
	assert.True(t, final.RemainingSize.IsZero())
	assert.Equal(t, 0, d.Resting())
}

func TestDryRunRejectsDuplicateAndUnknown(t *testing.T) {
	_, handler := collectReports()
	d := NewDryRun(clock.System(), handler)

	order := model.LimitSell("ETHUSDT", "binance", model.RequirePrice("2000"), model.RequireSize("1"))
	require.NoError(t, d.Submit(context.Background(), order))
	assert.ErrorIs(t, d.Submit(context.Background(), order), ErrDuplicateOrder)

	assert.ErrorIs(t, d.Fill("missing", model.RequireSize("1")), ErrUnknownOrder)
	assert.ErrorIs(t, d.Cancel(context.Background(), "missing", "ETHUSDT", "binance"), ErrUnknownOrder)
}

func TestDryRunOverfillRejected(t *testing.T) {
	_, handler := collectReports()
	d := NewDryRun(clock.System(), handler)

	order := model.LimitBuy("BTCUSDT", "binance", model.RequirePrice("100"), model.RequireSize("1"))
	require.NoError(t, d.Submit(context.Background(), order))
	assert.ErrorIs(t, d.Fill(order.ClientOrderID, model.RequireSize("1.1")), ErrInvalidFill)
}

func TestDryRunMarketOrders(t *testing.T) {
	reports, handler := collectReports()
	d := NewDryRun(clock.System(), handler)

	noMark := model.MarketBuy("BTCUSDT", "binance", model.RequireSize("1"))
	err := d.Submit(context.Background(), noMark)
	assert.ErrorIs(t, err, ErrNoMarkPrice)
	require.Len(t, *reports, 2)
	assert.Equal(t, enum.OrderStatusRejected, (*reports)[1].Status)

	d.SetMarkPrice("BTCUSDT", model.RequirePrice("101.5"))
	*reports = (*reports)[:0]

	filled := model.MarketSell("BTCUSDT", "binance", model.RequireSize("2"))
	require.NoError(t, d.Submit(context.Background(), filled))
	require.Len(t, *reports, 2)
	final := (*reports)[1]
	assert.Equal(t, enum.OrderStatusFilled, final.Status)
	require.NotNil(t, final.AveragePrice)
	assert.True(t, final.AveragePrice.Equal(model.RequirePrice("101.5")))
	assert.Equal(t, 0, d.Resting())
}

func TestDryRunMarkCrossesRestingLimits(t *testing.T) {
	reports, handler := collectReports()
	d := NewDryRun(clock.System(), handler)

	buy := model.LimitBuy("BTCUSDT", "binance", model.RequirePrice("99"), model.RequireSize("1"))
	sell := model.LimitSell("BTCUSDT", "binance", model.RequirePrice("103"), model.RequireSize("1"))
	require.NoError(t, d.Submit(context.Background(), buy))
	require.NoError(t, d.Submit(context.Background(), sell))
	assert.Equal(t, 2, d.Resting())

	d.SetMarkPrice("BTCUSDT", model.RequirePrice("100"))
	assert.Equal(t, 2, d.Resting())

	d.SetMarkPrice("BTCUSDT", model.RequirePrice("98.5"))
	assert.Equal(t, 1, d.Resting())
	last := (*reports)[len(*reports)-1]
	assert.Equal(t, buy.ClientOrderID, last.ClientOrderID)
	assert.Equal(t, enum.OrderStatusFilled, last.Status)
	require.NotNil(t, last.AveragePrice)
	assert.True(t, last.AveragePrice.Equal(model.RequirePrice("99")))

	d.SetMarkPrice("BTCUSDT", model.RequirePrice("103"))
	assert.Equal(t, 0, d.Resting())
}

func TestDryRunSubmitFillsCrossedLimitImmediately(t *testing.T) {
	reports, handler := collectReports()
	d := NewDryRun(clock.System(), handler)
	d.SetMarkPrice("BTCUSDT", model.RequirePrice("100"))

	order := model.LimitBuy("BTCUSDT", "binance", model.RequirePrice("100.5"), model.RequireSize("1"))
	require.NoError(t, d.Submit(context.Background(), order))
	require.Len(t, *reports, 2)
	assert.Equal(t, enum.OrderStatusFilled, (*reports)[1].Status)
	require.NotNil(t, (*reports)[1].AveragePrice)
	assert.True(t, (*reports)[1].AveragePrice.Equal(model.RequirePrice("100.5")))
}

func TestDryRunCancelAll(t *testing.T) {
	_, handler := collectReports()
	d := NewDryRun(clock.System(), handler)

	a := model.LimitBuy("BTCUSDT", "binance", model.RequirePrice("99"), model.RequireSize("1"))
	b := model.LimitSell("BTCUSDT", "binance", model.RequirePrice("101"), model.RequireSize("1"))
	other := model.LimitBuy("ETHUSDT", "binance", model.RequirePrice("2000"), model.RequireSize("1"))
	require.NoError(t, d.Submit(context.Background(), a))
	require.NoError(t, d.Submit(context.Background(), b))
	require.NoError(t, d.Submit(context.Background(), other))

	require.NoError(t, d.CancelAll(context.Background(), "BTCUSDT", "binance"))
	assert.Equal(t, 1, d.Resting())
}
