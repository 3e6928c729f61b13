package model

import (
	"github.com/google/uuid"

	"main/internal/model/enum"
)

// NewOrder is a candidate order produced by a strategy and submitted to an
// execution connector after passing risk checks. Price is nil for market
// orders.
type NewOrder struct {
	Symbol        Symbol
	Exchange      Exchange
	Side          enum.Side
	Type          enum.OrderType
	TimeInForce   enum.TimeInForce
	Price         *Price
	Size          Size
	ClientOrderID string
}

// MarketBuy builds an immediate-or-cancel market buy order.
func MarketBuy(symbol Symbol, exchange Exchange, size Size) NewOrder {
	return NewOrder{
		Symbol:        symbol,
		Exchange:      exchange,
		Side:          enum.SideBuy,
		Type:          enum.OrderTypeMarket,
		TimeInForce:   enum.TimeInForceIOC,
		Size:          size,
		ClientOrderID: newClientOrderID(),
	}
}

// MarketSell builds an immediate-or-cancel market sell order.
func MarketSell(symbol Symbol, exchange Exchange, size Size) NewOrder {
	order := MarketBuy(symbol, exchange, size)
	order.Side = enum.SideSell
	return order
}

// LimitBuy builds a good-till-cancelled limit buy order.
func LimitBuy(symbol Symbol, exchange Exchange, price Price, size Size) NewOrder {
	return NewOrder{
		Symbol:        symbol,
		Exchange:      exchange,
		Side:          enum.SideBuy,
		Type:          enum.OrderTypeLimit,
		TimeInForce:   enum.TimeInForceGTC,
		Price:         &price,
		Size:          size,
		ClientOrderID: newClientOrderID(),
	}
}

// LimitSell builds a good-till-cancelled limit sell order.
func LimitSell(symbol Symbol, exchange Exchange, price Price, size Size) NewOrder {
	order := LimitBuy(symbol, exchange, price, size)
	order.Side = enum.SideSell
	return order
}

// Reissued returns a copy of the order under a fresh client order id, for
// cancel-and-replace flows where the original id already belongs to a
// terminal order.
func (o NewOrder) Reissued() NewOrder {
	o.ClientOrderID = newClientOrderID()
	return o
}

func newClientOrderID() string {
	return uuid.NewString()
}
