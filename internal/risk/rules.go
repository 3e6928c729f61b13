package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/clock"
	"main/internal/model"
	"main/internal/model/enum"
)

// Stable rule name tags. These strings are part of the external contract;
// monitoring keys off them.
const (
	RulePositionSizeLimit  = "PositionSizeLimit"
	RuleBalanceLimit       = "BalanceLimit"
	RuleTotalExposureLimit = "TotalExposureLimit"
	RuleDailyLossLimit     = "DailyLossLimit"
	RuleRateOfChangeLimit  = "RateOfChangeLimit"
)

// PositionSizeRule rejects orders whose projected position would leave the
// symmetric [-max, +max] band configured for the symbol. Both boundaries are
// inclusive. Symbols without a configured bound are accepted.
type PositionSizeRule struct{}

func NewPositionSizeRule() *PositionSizeRule { return &PositionSizeRule{} }

func (*PositionSizeRule) Name() string { return RulePositionSizeLimit }

func (*PositionSizeRule) Evaluate(state *State, order model.NewOrder) *Violation {
	max, ok := state.MaxPosition(order.Symbol)
	if !ok {
		return nil
	}

	projected := state.Position(order.Symbol).Size.Add(SignedSize(order.Side, order.Size))
	if projected.GreaterThan(max) || projected.LessThan(max.Neg()) {
		return &Violation{
			Rule: RulePositionSizeLimit,
			Message: fmt.Sprintf("projected position %s for %s exceeds limit %s",
				projected, order.Symbol, max),
		}
	}

	return nil
}

// BalanceRule rejects buy orders whose cost would drop the free balance of
// the spent asset below a configured minimum. The symbol is split into
// base/quote with the engine's configured quote suffixes (default: last four
// characters are the quote asset). Market orders carry no price and are
// skipped.
type BalanceRule struct {
	minFree map[string]decimal.Decimal
}

func NewBalanceRule(minFree map[string]decimal.Decimal) *BalanceRule {
	if minFree == nil {
		minFree = make(map[string]decimal.Decimal)
	}

	return &BalanceRule{minFree: minFree}
}

func (*BalanceRule) Name() string { return RuleBalanceLimit }

func (r *BalanceRule) Evaluate(state *State, order model.NewOrder) *Violation {
	if order.Side != enum.SideBuy || order.Price == nil {
		return nil
	}

	_, quote := order.Symbol.SplitAssets(state.QuoteAssets()...)
	if quote == "" {
		return nil
	}

	min, ok := r.minFree[quote]
	if !ok {
		return nil
	}

	cost := model.Notional(*order.Price, order.Size)
	remaining := state.Balance(quote).Free().Sub(cost)
	if remaining.LessThan(min) {
		return &Violation{
			Rule: RuleBalanceLimit,
			Message: fmt.Sprintf("buy would leave %s free balance at %s, below minimum %s",
				quote, remaining, min),
		}
	}

	return nil
}

// TotalExposureRule rejects orders when the summed notional exposure of all
// positions plus the candidate order exceeds a ceiling. Positions without an
// entry price and market orders contribute nothing.
type TotalExposureRule struct {
	maxExposure decimal.Decimal
}

func NewTotalExposureRule(maxExposure decimal.Decimal) *TotalExposureRule {
	return &TotalExposureRule{maxExposure: maxExposure}
}

func (*TotalExposureRule) Name() string { return RuleTotalExposureLimit }

func (r *TotalExposureRule) Evaluate(state *State, order model.NewOrder) *Violation {
	total := decimal.Decimal{}
	state.EachPosition(func(p Position) {
		if p.AvgEntryPrice != nil {
			total = total.Add(p.AvgEntryPrice.Decimal.Mul(p.Size.Abs()))
		}
	})

	if order.Price != nil {
		total = total.Add(model.Notional(*order.Price, order.Size))
	}

	if total.GreaterThan(r.maxExposure) {
		return &Violation{
			Rule: RuleTotalExposureLimit,
			Message: fmt.Sprintf("total exposure %s exceeds ceiling %s",
				total, r.maxExposure),
		}
	}

	return nil
}

// DailyLossRule rejects a sell priced below the position's average entry when
// the realized-loss-if-filled plus the accumulated daily loss would exceed
// the symbol's ceiling.
type DailyLossRule struct{}

func NewDailyLossRule() *DailyLossRule { return &DailyLossRule{} }

func (*DailyLossRule) Name() string { return RuleDailyLossLimit }

func (*DailyLossRule) Evaluate(state *State, order model.NewOrder) *Violation {
	if order.Side != enum.SideSell || order.Price == nil {
		return nil
	}

	max, ok := state.MaxDailyLoss(order.Symbol)
	if !ok {
		return nil
	}

	pos := state.Position(order.Symbol)
	if pos.AvgEntryPrice == nil || !pos.Size.IsPositive() {
		return nil
	}
	if !order.Price.LessThan(*pos.AvgEntryPrice) {
		return nil
	}

	closable := order.Size.Decimal
	if closable.GreaterThan(pos.Size) {
		closable = pos.Size
	}
	lossIfFilled := pos.AvgEntryPrice.Decimal.Sub(order.Price.Decimal).Mul(closable)

	projected := state.DailyLoss(order.Symbol).Add(lossIfFilled)
	if projected.GreaterThan(max) {
		return &Violation{
			Rule: RuleDailyLossLimit,
			Message: fmt.Sprintf("daily loss would reach %s for %s, ceiling %s",
				projected, order.Symbol, max),
		}
	}

	return nil
}

// RateOfChangeLimitRule rejects orders implying an absolute position change
// larger than maxChange within a rolling window. The baseline position is
// refreshed through ObservePosition: the engine calls it automatically on
// every ingested fill, and UpdatePosition remains available for callers
// driving the rule manually.
type RateOfChangeLimitRule struct {
	mu        sync.Mutex
	maxChange decimal.Decimal
	window    time.Duration
	clk       clock.Clock
	baselines map[model.Symbol]rocBaseline
}

type rocBaseline struct {
	position decimal.Decimal
	at       time.Time
}

func NewRateOfChangeLimitRule(maxChange decimal.Decimal, window time.Duration, clk clock.Clock) *RateOfChangeLimitRule {
	if clk == nil {
		clk = clock.System()
	}

	return &RateOfChangeLimitRule{
		maxChange: maxChange,
		window:    window,
		clk:       clk,
		baselines: make(map[model.Symbol]rocBaseline),
	}
}

func (*RateOfChangeLimitRule) Name() string { return RuleRateOfChangeLimit }

func (r *RateOfChangeLimitRule) Evaluate(state *State, order model.NewOrder) *Violation {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clk.Now()
	current := state.Position(order.Symbol).Size

	baseline, ok := r.baselines[order.Symbol]
	if !ok || now.Sub(baseline.at) >= r.window {
		baseline = rocBaseline{position: current, at: now}
		r.baselines[order.Symbol] = baseline
	}

	projected := current.Add(SignedSize(order.Side, order.Size))
	change := projected.Sub(baseline.position).Abs()
	if change.GreaterThan(r.maxChange) {
		return &Violation{
			Rule: RuleRateOfChangeLimit,
			Message: fmt.Sprintf("position change %s for %s within %s exceeds limit %s",
				change, order.Symbol, r.window, r.maxChange),
		}
	}

	return nil
}

// UpdatePosition refreshes the last-known position baseline for a symbol.
func (r *RateOfChangeLimitRule) UpdatePosition(symbol model.Symbol, position decimal.Decimal) {
	r.ObservePosition(symbol, position)
}

// ObservePosition implements PositionObserver. Within an open window the
// baseline stays put so cumulative change remains bounded; once the window
// elapses the baseline restarts at the observed position.
func (r *RateOfChangeLimitRule) ObservePosition(symbol model.Symbol, position decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clk.Now()
	baseline, ok := r.baselines[symbol]
	if !ok || now.Sub(baseline.at) >= r.window {
		r.baselines[symbol] = rocBaseline{position: position, at: now}
	}
}
