package model

import "github.com/shopspring/decimal"

// SignalKind tags the Signal union.
type SignalKind uint16

const (
	_signal_kind_beg SignalKind = iota
	SignalPlaceOrder
	SignalCancelOrder
	SignalCancelAllOrders
	SignalUpdateOrder
	SignalArbitrage
	SignalCustom
	_signal_kind_end
)

func (k SignalKind) IsAvailable() bool {
	return k > _signal_kind_beg && k < _signal_kind_end
}

// Signal is a strategy intent. Signals are ephemeral: produced by a strategy,
// consumed immediately by the execution collaborator, never persisted.
type Signal interface {
	SignalKind() SignalKind
}

// PlaceOrder asks the connector to submit a new order.
type PlaceOrder struct {
	Order NewOrder
}

func (PlaceOrder) SignalKind() SignalKind { return SignalPlaceOrder }

// CancelOrder asks the connector to cancel one resting order.
type CancelOrder struct {
	OrderID  string
	Symbol   Symbol
	Exchange Exchange
}

func (CancelOrder) SignalKind() SignalKind { return SignalCancelOrder }

// CancelAllOrders asks the connector to cancel every resting order for the
// symbol.
type CancelAllOrders struct {
	Symbol   Symbol
	Exchange Exchange
}

func (CancelAllOrders) SignalKind() SignalKind { return SignalCancelAllOrders }

// UpdateOrder amends price and/or size of a resting order. Nil fields are
// left unchanged.
type UpdateOrder struct {
	OrderID string
	Price   *Price
	Size    *Size
}

func (UpdateOrder) SignalKind() SignalKind { return SignalUpdateOrder }

// Arbitrage reports a cross-venue opportunity: buy on BuyExchange, sell on
// SellExchange.
type Arbitrage struct {
	Symbol         Symbol
	BuyExchange    Exchange
	SellExchange   Exchange
	BuyPrice       Price
	SellPrice      Price
	Size           Size
	ExpectedProfit decimal.Decimal
}

func (Arbitrage) SignalKind() SignalKind { return SignalArbitrage }

// Custom carries strategy-specific intent as string metadata.
type Custom struct {
	Name     string
	Metadata map[string]string
}

func (Custom) SignalKind() SignalKind { return SignalCustom }
