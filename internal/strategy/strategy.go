package strategy

import (
	"sync"
	"time"

	"main/internal/clock"
	"main/internal/model"
)

// Strategy converts market state into order intents. A nil or empty return
// means no signal; a quote set comes back as a batch of signals emitted
// together. Implementations are polymorphic; new strategies are a documented
// extension point.
type Strategy interface {
	Name() string
	GenerateSignal(state *MarketState) []model.Signal
}

// FillTracker is implemented by strategies that track their own fills. The
// engine forwards every execution report it processes.
type FillTracker interface {
	OnExecutionReport(report model.ExecutionReport)
}

// Engine wraps one strategy, tracks per-symbol market state and gates signal
// emission behind a cooldown. The cooldown is engine-level and global across
// symbols: after any emission, every symbol stays quiet until it elapses.
type Engine struct {
	mu       sync.Mutex
	strategy Strategy
	clk      clock.Clock
	cooldown time.Duration
	states   map[model.Symbol]*MarketState

	signalled    bool
	lastSignalAt time.Time
}

// NewEngine builds an engine around one strategy. A nil clock falls back to
// the system clock; tests inject a fake.
func NewEngine(s Strategy, cooldown time.Duration, clk clock.Clock) *Engine {
	if clk == nil {
		clk = clock.System()
	}

	return &Engine{
		strategy: s,
		clk:      clk,
		cooldown: cooldown,
		states:   make(map[model.Symbol]*MarketState),
	}
}

// State returns the market state tracked for a symbol, creating it on first
// use. Use it to attach predictors or flow indicators before events arrive.
func (e *Engine) State(symbol model.Symbol) *MarketState {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.stateFor(symbol)
}

// StrategyName returns the wrapped strategy's name.
func (e *Engine) StrategyName() string {
	return e.strategy.Name()
}

// ProcessEvent folds the event into the symbol's market state, then asks the
// strategy for signals unless the cooldown since the last emission is still
// running. Execution reports only feed fill tracking and never produce
// signals.
func (e *Engine) ProcessEvent(event model.Event) []model.Signal {
	e.mu.Lock()
	defer e.mu.Unlock()

	if report, ok := event.(model.ExecutionReport); ok {
		if tracker, ok := e.strategy.(FillTracker); ok {
			tracker.OnExecutionReport(report)
		}
		return nil
	}

	state := e.stateFor(event.EventSymbol())
	state.Update(event)

	now := e.clk.Now()
	if e.signalled && now.Sub(e.lastSignalAt) < e.cooldown {
		return nil
	}

	signals := e.strategy.GenerateSignal(state)
	if len(signals) == 0 {
		return nil
	}

	e.signalled = true
	e.lastSignalAt = now
	return signals
}

func (e *Engine) stateFor(symbol model.Symbol) *MarketState {
	state, ok := e.states[symbol]
	if !ok {
		state = NewMarketState(symbol)
		e.states[symbol] = state
	}

	return state
}
