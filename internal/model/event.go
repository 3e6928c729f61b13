package model

import "main/internal/model/enum"

// Event is the tagged union flowing between the feed, book, strategy and risk
// components. Timestamps are milliseconds since epoch, assigned by the venue
// adapter.
type Event interface {
	Kind() enum.EventKind
	EventSymbol() Symbol
	EventTime() int64
}

// Level is one (price, aggregate size) entry on one side of a book. A
// zero-value Size is the removal sentinel in deltas; it is never stored.
type Level struct {
	Price Price
	Size  Size
}

// RemoveLevel builds the delta entry that deletes the level at price.
func RemoveLevel(price Price) Level {
	return Level{Price: price}
}

// OrderBookSnapshot is a full replacement of all levels for one symbol.
type OrderBookSnapshot struct {
	Symbol    Symbol
	Exchange  Exchange
	Bids      []Level
	Asks      []Level
	Timestamp int64
}

func (e OrderBookSnapshot) Kind() enum.EventKind { return enum.EventOrderBookSnapshot }
func (e OrderBookSnapshot) EventSymbol() Symbol  { return e.Symbol }
func (e OrderBookSnapshot) EventTime() int64     { return e.Timestamp }

// OrderBookDelta is an incremental set of level changes, pre-sequenced by the
// feed adapter.
type OrderBookDelta struct {
	Symbol    Symbol
	Exchange  Exchange
	Bids      []Level
	Asks      []Level
	Timestamp int64
}

func (e OrderBookDelta) Kind() enum.EventKind { return enum.EventOrderBookDelta }
func (e OrderBookDelta) EventSymbol() Symbol  { return e.Symbol }
func (e OrderBookDelta) EventTime() int64     { return e.Timestamp }

// Trade is a single execution observed on the public feed.
type Trade struct {
	Symbol    Symbol
	Exchange  Exchange
	Price     Price
	Size      Size
	Side      enum.Side
	Timestamp int64
	TradeID   string
}

func (e Trade) Kind() enum.EventKind { return enum.EventTrade }
func (e Trade) EventSymbol() Symbol  { return e.Symbol }
func (e Trade) EventTime() int64     { return e.Timestamp }

// ExecutionReport is the connector's feedback on a submitted order. It flows
// back into the risk engine (position/balance update) and the strategy (fill
// tracking). FilledSize and RemainingSize may be zero-value quantities.
type ExecutionReport struct {
	OrderID       string
	ClientOrderID string
	Symbol        Symbol
	Exchange      Exchange
	Status        enum.OrderStatus
	FilledSize    Size
	RemainingSize Size
	AveragePrice  *Price
	Timestamp     int64
}

func (e ExecutionReport) Kind() enum.EventKind { return enum.EventExecutionReport }
func (e ExecutionReport) EventSymbol() Symbol  { return e.Symbol }
func (e ExecutionReport) EventTime() int64     { return e.Timestamp }
