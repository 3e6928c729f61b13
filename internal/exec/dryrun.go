package exec

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/clock"
	"main/internal/errors"
	"main/internal/model"
	"main/internal/model/enum"
)

var (
	ErrDuplicateOrder = errors.New("duplicate client order id")
	ErrUnknownOrder   = errors.New("unknown order")
	ErrTerminalOrder  = errors.New("order already terminal")
	ErrInvalidFill    = errors.New("fill exceeds remaining size")
	ErrNoMarkPrice    = errors.New("no mark price for symbol")
)

// restingOrder tracks a simulated order's lifecycle on the venue side.
type restingOrder struct {
	id     string
	order  model.NewOrder
	status enum.OrderStatus
	filled decimal.Decimal
	avg    decimal.Decimal
}

func (r *restingOrder) remaining() decimal.Decimal {
	return r.order.Size.Decimal.Sub(r.filled)
}

// ReportHandler receives execution reports emitted by the connector.
type ReportHandler func(model.ExecutionReport)

// DryRun is an in-process venue simulator. Limit orders rest until the mark
// price crosses them or a fill is injected; market orders fill at the current
// mark immediately. Every transition emits an execution report through the
// handler, synchronously, under the connector lock.
type DryRun struct {
	mu      sync.Mutex
	clk     clock.Clock
	handler ReportHandler
	nextID  uint64
	orders  map[string]*restingOrder // keyed by client order id
	marks   map[model.Symbol]decimal.Decimal
}

func NewDryRun(clk clock.Clock, handler ReportHandler) *DryRun {
	if handler == nil {
		handler = func(model.ExecutionReport) {}
	}

	return &DryRun{
		clk:     clk,
		handler: handler,
		orders:  make(map[string]*restingOrder),
		marks:   make(map[model.Symbol]decimal.Decimal),
	}
}

// Submit accepts an order intent. Limit orders acknowledge as New and rest.
// Market orders fill fully at the current mark, or reject when none exists.
func (d *DryRun) Submit(_ context.Context, order model.NewOrder) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.orders[order.ClientOrderID]; ok {
		return errors.Wrap(ErrDuplicateOrder, order.ClientOrderID)
	}

	d.nextID++
	r := &restingOrder{
		id:     fmt.Sprintf("sim-%d", d.nextID),
		order:  order,
		status: enum.OrderStatusNew,
	}
	d.orders[order.ClientOrderID] = r
	d.emitLocked(r)

	switch order.Type {
	case enum.OrderTypeMarket:
		mark, ok := d.marks[order.Symbol]
		if !ok {
			r.status = enum.OrderStatusRejected
			d.emitLocked(r)
			delete(d.orders, order.ClientOrderID)

			return errors.Wrap(ErrNoMarkPrice, string(order.Symbol))
		}

		d.fillLocked(r, mark, r.remaining())
	case enum.OrderTypeLimit:
		if mark, ok := d.marks[order.Symbol]; ok && crosses(order, mark) {
			d.fillLocked(r, order.Price.Decimal, r.remaining())
		}
	}

	if r.status.IsTerminal() {
		delete(d.orders, order.ClientOrderID)
	}

	return nil
}

// Cancel removes a resting order, reporting Cancelled with fills so far.
func (d *DryRun) Cancel(_ context.Context, orderID string, _ model.Symbol, _ model.Exchange) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.orders[orderID]
	if !ok {
		return errors.Wrap(ErrUnknownOrder, orderID)
	}

	if r.status.IsTerminal() {
		return errors.Wrap(ErrTerminalOrder, orderID)
	}

	r.status = enum.OrderStatusCancelled
	d.emitLocked(r)
	delete(d.orders, orderID)

	return nil
}

// CancelAll cancels every resting order for the symbol on the exchange.
func (d *DryRun) CancelAll(_ context.Context, symbol model.Symbol, exchange model.Exchange) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for clientID, r := range d.orders {
		if r.order.Symbol != symbol || r.order.Exchange != exchange {
			continue
		}

		r.status = enum.OrderStatusCancelled
		d.emitLocked(r)
		delete(d.orders, clientID)
	}

	return nil
}

// SetMarkPrice advances the simulated mark, filling resting limit orders the
// new mark crosses at their limit price.
func (d *DryRun) SetMarkPrice(symbol model.Symbol, price model.Price) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.marks[symbol] = price.Decimal

	for _, r := range d.orders {
		if r.order.Symbol != symbol || r.status.IsTerminal() {
			continue
		}

		if r.order.Type == enum.OrderTypeLimit && crosses(r.order, price.Decimal) {
			d.fillLocked(r, r.order.Price.Decimal, r.remaining())
		}
	}
	d.pruneLocked()
}

// Fill injects a partial or full fill on a resting order at its limit price.
func (d *DryRun) Fill(orderID string, size model.Size) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.orders[orderID]
	if !ok {
		return errors.Wrap(ErrUnknownOrder, orderID)
	}

	if r.status.IsTerminal() {
		return errors.Wrap(ErrTerminalOrder, orderID)
	}

	if size.Decimal.GreaterThan(r.remaining()) {
		return errors.Wrap(ErrInvalidFill, orderID)
	}

	price := r.avg
	if r.order.Price != nil {
		price = r.order.Price.Decimal
	} else if mark, ok := d.marks[r.order.Symbol]; ok {
		price = mark
	}

	d.fillLocked(r, price, size.Decimal)
	if r.status.IsTerminal() {
		delete(d.orders, orderID)
	}

	return nil
}

// Resting reports how many orders are currently live on the simulator.
func (d *DryRun) Resting() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.orders)
}

func (d *DryRun) fillLocked(r *restingOrder, price, size decimal.Decimal) {
	if size.IsZero() {
		return
	}

	notional := r.avg.Mul(r.filled).Add(price.Mul(size))
	r.filled = r.filled.Add(size)
	r.avg = notional.Div(r.filled)

	if r.remaining().IsZero() {
		r.status = enum.OrderStatusFilled
	} else {
		r.status = enum.OrderStatusPartiallyFilled
	}

	d.emitLocked(r)
	if r.status.IsTerminal() {
		logs.Infof("dry-run filled %s %s %s @ %s", r.order.Side, r.order.Symbol, r.filled, r.avg)
	}
}

func (d *DryRun) pruneLocked() {
	for clientID, r := range d.orders {
		if r.status.IsTerminal() {
			delete(d.orders, clientID)
		}
	}
}

func (d *DryRun) emitLocked(r *restingOrder) {
	report := model.ExecutionReport{
		OrderID:       r.id,
		ClientOrderID: r.order.ClientOrderID,
		Symbol:        r.order.Symbol,
		Exchange:      r.order.Exchange,
		Status:        r.status,
		FilledSize:    model.Size{Decimal: r.filled},
		RemainingSize: model.Size{Decimal: r.remaining()},
		Timestamp:     d.clk.Now().UnixMilli(),
	}
	if r.filled.IsPositive() {
		if avg, err := model.PriceFromDecimal(r.avg); err == nil {
			report.AveragePrice = &avg
		}
	}

	d.handler(report)
}

// crosses reports whether the mark price would execute the limit order. A
// resting buy executes when the mark trades at or below its limit, a resting
// sell when the mark trades at or above it.
func crosses(order model.NewOrder, mark decimal.Decimal) bool {
	if order.Price == nil {
		return false
	}

	if order.Side == enum.SideBuy {
		return mark.LessThanOrEqual(order.Price.Decimal)
	}

	return mark.GreaterThanOrEqual(order.Price.Decimal)
}
