package risk

import (
	"sync"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/model"
	"main/internal/model/enum"
)

// Violation is the result of a failed rule check. It is a normal return
// value, not an error: rejection is a first-class expected outcome. Rule is
// the stable identifier used by tests and monitoring.
type Violation struct {
	Rule    string
	Message string
}

// Rule is one pluggable pre-trade check. Evaluate receives read access to the
// full risk state and the candidate order; it returns nil to accept.
//
// Rules run under the engine's read lock and must not block.
type Rule interface {
	Name() string
	Evaluate(state *State, order model.NewOrder) *Violation
}

// PositionObserver is implemented by rules that track a position baseline.
// The engine notifies observers after every fill it ingests.
type PositionObserver interface {
	ObservePosition(symbol model.Symbol, position decimal.Decimal)
}

// pendingOrder tracks cumulative fills so execution reports can be applied
// incrementally.
type pendingOrder struct {
	order  model.NewOrder
	filled decimal.Decimal
}

// Engine is the synchronous pre-trade veto authority. It owns balances,
// positions and limits, and runs an ordered chain of rules against every
// candidate order.
type Engine struct {
	mu      sync.RWMutex
	state   *State
	rules   []Rule
	pending map[string]*pendingOrder
}

// NewEngine creates an engine with no rules registered. Quote-asset suffixes
// configure symbol splitting for balance settlement; empty keeps the default
// last-four-characters policy.
func NewEngine(quoteAssets ...string) *Engine {
	state := newState()
	state.quoteAssets = quoteAssets

	return &Engine{
		state:   state,
		pending: make(map[string]*pendingOrder),
	}
}

// AddRule appends a rule to the chain. Registration order is evaluation
// order; register the cheapest or most-often-violated rules first.
func (e *Engine) AddRule(rule Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rules = append(e.rules, rule)
}

// CheckOrder evaluates the rule chain in registration order and returns the
// first violation, or nil when every rule accepts.
func (e *Engine) CheckOrder(order model.NewOrder) *Violation {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, rule := range e.rules {
		if v := rule.Evaluate(e.state, order); v != nil {
			return v
		}
	}

	return nil
}

// RegisterOrder records an accepted order so later execution reports can be
// resolved to a side and price. Call after CheckOrder accepts and the order
// is submitted.
func (e *Engine) RegisterOrder(order model.NewOrder) {
	if order.ClientOrderID == "" {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.pending[order.ClientOrderID] = &pendingOrder{order: order}
}

// ApplyExecutionReport folds a connector report into positions, balances and
// the daily loss counter, then refreshes position-observing rules. Reports
// for unknown orders are ignored with a warning; applying them would skew
// positions with an unknown side.
func (e *Engine) ApplyExecutionReport(report model.ExecutionReport) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pending, ok := e.pending[report.ClientOrderID]
	if !ok {
		logs.Errorf("execution report for unregistered order %q (client %q)", report.OrderID, report.ClientOrderID)
		return
	}

	increment := report.FilledSize.Decimal.Sub(pending.filled)
	if increment.IsPositive() {
		if price, ok := fillPrice(report, pending.order); ok {
			e.applyFill(pending.order, increment, price)
		} else {
			logs.Errorf("fill for order %q has no price, position update skipped", report.ClientOrderID)
		}
		pending.filled = report.FilledSize.Decimal
	}

	if report.Status.IsTerminal() {
		delete(e.pending, report.ClientOrderID)
	}
}

// applyFill updates position, balances and daily loss for one fill of qty at
// price. Caller holds the write lock.
func (e *Engine) applyFill(order model.NewOrder, qty decimal.Decimal, price model.Price) {
	signed := qty
	if order.Side == enum.SideSell {
		signed = qty.Neg()
	}

	pos := e.state.Position(order.Symbol)
	oldSize := pos.Size
	newSize := oldSize.Add(signed)

	closed := closedQuantity(oldSize, signed)
	if closed.IsPositive() && pos.AvgEntryPrice != nil {
		// Realized PnL on the closed portion; losses feed the daily counter.
		pnl := price.Decimal.Sub(pos.AvgEntryPrice.Decimal).Mul(closed)
		if oldSize.IsNegative() {
			pnl = pnl.Neg()
		}
		if pnl.IsNegative() {
			e.state.dailyLoss[order.Symbol] = e.state.dailyLoss[order.Symbol].Add(pnl.Abs())
		}
	}

	pos.Size = newSize
	pos.AvgEntryPrice = nextAvgEntry(pos.AvgEntryPrice, oldSize, newSize, signed, price)
	if newSize.IsZero() {
		pos.AvgEntryPrice = nil
		pos.UnrealizedPnL = nil
	}
	e.state.positions[order.Symbol] = pos

	e.settleBalances(order, qty, price)

	for _, rule := range e.rules {
		if observer, ok := rule.(PositionObserver); ok {
			observer.ObservePosition(order.Symbol, newSize)
		}
	}
}

// settleBalances moves funds between the base and quote assets for one fill.
func (e *Engine) settleBalances(order model.NewOrder, qty decimal.Decimal, price model.Price) {
	base, quote := order.Symbol.SplitAssets(e.state.quoteAssets...)
	if base == "" || quote == "" {
		return
	}

	notional := price.Decimal.Mul(qty)
	baseBal := e.state.Balance(base)
	quoteBal := e.state.Balance(quote)

	switch order.Side {
	case enum.SideBuy:
		baseBal.Total = baseBal.Total.Add(qty)
		quoteBal.Total = quoteBal.Total.Sub(notional)
	case enum.SideSell:
		baseBal.Total = baseBal.Total.Sub(qty)
		quoteBal.Total = quoteBal.Total.Add(notional)
	default:
		return
	}

	e.state.balances[base] = baseBal
	e.state.balances[quote] = quoteBal
}

// SetBalance installs or replaces the funds record for an asset.
func (e *Engine) SetBalance(asset string, total, used decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.balances[asset] = Balance{Asset: asset, Total: total, Used: used}
}

// SetPosition administratively replaces the position for a symbol.
func (e *Engine) SetPosition(symbol model.Symbol, size decimal.Decimal, avgEntry *model.Price) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.positions[symbol] = Position{Symbol: symbol, Size: size, AvgEntryPrice: avgEntry}

	for _, rule := range e.rules {
		if observer, ok := rule.(PositionObserver); ok {
			observer.ObservePosition(symbol, size)
		}
	}
}

// SetMaxPosition configures the symmetric per-symbol position bound.
func (e *Engine) SetMaxPosition(symbol model.Symbol, max decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.maxPosition[symbol] = max
}

// SetMaxDailyLoss configures the per-symbol daily loss ceiling.
func (e *Engine) SetMaxDailyLoss(symbol model.Symbol, max decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.maxDailyLoss[symbol] = max
}

// ResetDailyLoss clears the accumulated loss counters, typically at the
// venue's day rollover.
func (e *Engine) ResetDailyLoss() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for symbol := range e.state.dailyLoss {
		delete(e.state.dailyLoss, symbol)
	}
}

// Position returns the current position for a symbol.
func (e *Engine) Position(symbol model.Symbol) Position {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.state.Position(symbol)
}

// Balance returns the current funds record for an asset.
func (e *Engine) Balance(asset string) Balance {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.state.Balance(asset)
}

// DailyLoss returns the accumulated realized loss for a symbol.
func (e *Engine) DailyLoss(symbol model.Symbol) decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.state.DailyLoss(symbol)
}

// fillPrice picks the price a fill settled at: the report's average price
// when present, else the order's limit price.
func fillPrice(report model.ExecutionReport, order model.NewOrder) (model.Price, bool) {
	if report.AveragePrice != nil {
		return *report.AveragePrice, true
	}
	if order.Price != nil {
		return *order.Price, true
	}

	return model.Price{}, false
}

// closedQuantity returns how much of the existing position the signed delta
// closes: zero when extending, min(|old|, |delta|) when reducing or flipping.
func closedQuantity(oldSize, signedDelta decimal.Decimal) decimal.Decimal {
	if oldSize.IsZero() || oldSize.Sign() == signedDelta.Sign() {
		return decimal.Decimal{}
	}

	closed := signedDelta.Abs()
	if closed.GreaterThan(oldSize.Abs()) {
		closed = oldSize.Abs()
	}

	return closed
}

// nextAvgEntry computes the volume-weighted entry price after a fill.
// Extending re-weights; reducing keeps the entry; flipping through zero
// restarts at the fill price.
func nextAvgEntry(current *model.Price, oldSize, newSize, signedDelta decimal.Decimal, price model.Price) *model.Price {
	switch {
	case newSize.IsZero():
		return nil
	case oldSize.IsZero() || current == nil:
		return &price
	case oldSize.Sign() != newSize.Sign():
		// Flipped through zero: the surviving side entered at this fill.
		return &price
	case oldSize.Sign() == signedDelta.Sign():
		oldNotional := current.Decimal.Mul(oldSize.Abs())
		addNotional := price.Decimal.Mul(signedDelta.Abs())
		avg := oldNotional.Add(addNotional).Div(newSize.Abs())
		next, err := model.PriceFromDecimal(avg)
		if err != nil {
			return current
		}
		return &next
	default:
		// Reduced without flipping: entry price unchanged.
		return current
	}
}
