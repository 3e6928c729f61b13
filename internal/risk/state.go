package risk

import (
	"github.com/shopspring/decimal"

	"main/internal/model"
	"main/internal/model/enum"
)

// Position is the engine's per-symbol net exposure. Size is signed: positive
// long, negative short. AvgEntryPrice is nil until the first fill.
type Position struct {
	Symbol        model.Symbol
	Size          decimal.Decimal
	AvgEntryPrice *model.Price
	UnrealizedPnL *decimal.Decimal
}

// Balance is the engine's per-asset funds record. Free is derived, never
// stored.
type Balance struct {
	Asset string
	Total decimal.Decimal
	Used  decimal.Decimal
}

func (b Balance) Free() decimal.Decimal {
	return b.Total.Sub(b.Used)
}

// State holds the live balances, positions and limits every rule reads.
// It is unexported-field only; mutation goes through the Engine, which owns
// the lock.
type State struct {
	balances     map[string]Balance
	positions    map[model.Symbol]Position
	maxPosition  map[model.Symbol]decimal.Decimal
	maxDailyLoss map[model.Symbol]decimal.Decimal
	dailyLoss    map[model.Symbol]decimal.Decimal
	quoteAssets  []string
}

func newState() *State {
	return &State{
		balances:     make(map[string]Balance),
		positions:    make(map[model.Symbol]Position),
		maxPosition:  make(map[model.Symbol]decimal.Decimal),
		maxDailyLoss: make(map[model.Symbol]decimal.Decimal),
		dailyLoss:    make(map[model.Symbol]decimal.Decimal),
	}
}

// Position returns the current position for the symbol, zero-valued when the
// symbol has never traded.
func (s *State) Position(symbol model.Symbol) Position {
	if p, ok := s.positions[symbol]; ok {
		return p
	}

	return Position{Symbol: symbol}
}

// Balance returns the funds record for the asset, zero-valued when unknown.
func (s *State) Balance(asset string) Balance {
	if b, ok := s.balances[asset]; ok {
		return b
	}

	return Balance{Asset: asset}
}

// MaxPosition returns the configured per-symbol position bound.
func (s *State) MaxPosition(symbol model.Symbol) (decimal.Decimal, bool) {
	m, ok := s.maxPosition[symbol]
	return m, ok
}

// MaxDailyLoss returns the configured per-symbol daily loss ceiling.
func (s *State) MaxDailyLoss(symbol model.Symbol) (decimal.Decimal, bool) {
	m, ok := s.maxDailyLoss[symbol]
	return m, ok
}

// DailyLoss returns the accumulated realized loss for the symbol since the
// last reset, as a non-negative number.
func (s *State) DailyLoss(symbol model.Symbol) decimal.Decimal {
	return s.dailyLoss[symbol]
}

// EachPosition visits every tracked position. Callers must not retain the
// value past the visit.
func (s *State) EachPosition(visit func(Position)) {
	for _, p := range s.positions {
		visit(p)
	}
}

// EachBalance visits every tracked balance. Callers must not retain the
// value past the visit.
func (s *State) EachBalance(visit func(Balance)) {
	for _, b := range s.balances {
		visit(b)
	}
}

// QuoteAssets returns the configured quote-asset suffixes used to split
// symbols. Empty means the default last-four-characters policy.
func (s *State) QuoteAssets() []string {
	return s.quoteAssets
}

// SignedSize converts an order quantity to a signed position delta: buys
// increase the position, sells decrease it.
func SignedSize(side enum.Side, size model.Size) decimal.Decimal {
	if side == enum.SideSell {
		return size.Decimal.Neg()
	}

	return size.Decimal
}
