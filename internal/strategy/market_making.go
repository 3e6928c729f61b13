package strategy

import (
	"sync"

	"github.com/shopspring/decimal"

	"main/internal/model"
	"main/internal/model/enum"
)

var two = decimal.NewFromInt(2)

// MarketMakingConfig parameterizes a symmetric quoting strategy.
type MarketMakingConfig struct {
	Symbol   model.Symbol
	Exchange model.Exchange

	// TargetSpread is the minimum market spread worth quoting into, and the
	// full width of the innermost quote pair.
	TargetSpread decimal.Decimal
	// OrderSize is the base quantity per level before inventory skew.
	OrderSize decimal.Decimal
	// MaxPosition bounds the net position symmetrically at +/- this value.
	MaxPosition decimal.Decimal
	// MaxLevels is the number of quote levels per side.
	MaxLevels int

	// PredictionWeight blends the predictor's extrapolated price into the
	// quoting mid: 0 ignores the prediction, 1 uses it fully.
	PredictionWeight decimal.Decimal
	// PredictionHorizonSeconds is how far ahead the predictor extrapolates.
	PredictionHorizonSeconds float64
}

// MarketMakingStrategy places symmetric limit quotes around mid whenever the
// market spread is at least the target spread, skewing quote sizes against
// the current inventory so fills bias the position back toward flat.
//
// The strategy tracks its own position from execution reports as a
// presubmission filter. The risk engine remains the authoritative gate; this
// filtering only avoids generating doomed signals.
type MarketMakingStrategy struct {
	mu         sync.Mutex
	cfg        MarketMakingConfig
	position   decimal.Decimal
	generation uint64
	pending    map[string]*mmPending // keyed by client order id
}

// mmPending tracks cumulative fills of one emitted order. generation is the
// quote set the order belongs to; entries two generations behind were
// superseded twice over and get evicted, which keeps the map bounded when
// rejected or resting quotes never report back.
type mmPending struct {
	side       enum.Side
	filled     decimal.Decimal
	generation uint64
}

func NewMarketMakingStrategy(cfg MarketMakingConfig) *MarketMakingStrategy {
	if cfg.MaxLevels < 1 {
		cfg.MaxLevels = 1
	}

	return &MarketMakingStrategy{
		cfg:     cfg,
		pending: make(map[string]*mmPending),
	}
}

func (*MarketMakingStrategy) Name() string { return "market_making" }

// Position returns the strategy's own fill-tracked net position.
func (s *MarketMakingStrategy) Position() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.position
}

// SetPosition administratively syncs the tracked position, e.g. after
// recovery.
func (s *MarketMakingStrategy) SetPosition(position decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.position = position
}

// GenerateSignal quotes both sides around mid. No signal when either side is
// missing, the spread is zero or inverted, or the spread is below target.
func (s *MarketMakingStrategy) GenerateSignal(state *MarketState) []model.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state.Symbol() != s.cfg.Symbol {
		return nil
	}

	bestBid, ok := state.BestBid()
	if !ok {
		return nil
	}
	bestAsk, ok := state.BestAsk()
	if !ok {
		return nil
	}
	if bestBid.Price.Cmp(bestAsk.Price) >= 0 {
		return nil
	}

	spread := bestAsk.Price.Decimal.Sub(bestBid.Price.Decimal)
	if spread.LessThan(s.cfg.TargetSpread) {
		return nil
	}

	mid := bestBid.Price.Decimal.Add(bestAsk.Price.Decimal).Div(two)
	mid = s.blendPrediction(state, mid)

	bidSize, askSize := s.skewedSizes()
	halfStep := s.cfg.TargetSpread.Div(two)

	next := s.generation + 1

	signals := make([]model.Signal, 0, 2*s.cfg.MaxLevels)
	projected := s.position
	for i := 0; i < s.cfg.MaxLevels; i++ {
		offset := halfStep.Mul(decimal.NewFromInt(int64(i + 1)))

		if order, ok := s.quote(enum.SideBuy, mid.Sub(offset), bidSize, projected); ok {
			signals = append(signals, model.PlaceOrder{Order: order})
			projected = projected.Add(order.Size.Decimal)
			s.pending[order.ClientOrderID] = &mmPending{side: enum.SideBuy, generation: next}
		}
	}

	projected = s.position
	for i := 0; i < s.cfg.MaxLevels; i++ {
		offset := halfStep.Mul(decimal.NewFromInt(int64(i + 1)))

		if order, ok := s.quote(enum.SideSell, mid.Add(offset), askSize, projected); ok {
			signals = append(signals, model.PlaceOrder{Order: order})
			projected = projected.Sub(order.Size.Decimal)
			s.pending[order.ClientOrderID] = &mmPending{side: enum.SideSell, generation: next}
		}
	}

	if len(signals) > 0 {
		s.generation = next
		s.evictStaleLocked()
	}

	return signals
}

// evictStaleLocked drops fill tracking for quotes more than one generation
// behind the current quote set.
func (s *MarketMakingStrategy) evictStaleLocked() {
	for id, p := range s.pending {
		if p.generation+1 < s.generation {
			delete(s.pending, id)
		}
	}
}

// quote builds one limit order when the price is valid and the projected
// position keeps headroom.
func (s *MarketMakingStrategy) quote(side enum.Side, price, size, projected decimal.Decimal) (model.NewOrder, bool) {
	if !size.IsPositive() {
		return model.NewOrder{}, false
	}

	p, err := model.PriceFromDecimal(price)
	if err != nil {
		return model.NewOrder{}, false
	}

	q, err := model.SizeFromDecimal(size)
	if err != nil {
		return model.NewOrder{}, false
	}

	if !s.canPlaceLocked(side, size, projected) {
		return model.NewOrder{}, false
	}

	if side == enum.SideBuy {
		return model.LimitBuy(s.cfg.Symbol, s.cfg.Exchange, p, q), true
	}

	return model.LimitSell(s.cfg.Symbol, s.cfg.Exchange, p, q), true
}

// CanPlaceOrder reports whether an order of the given side and size keeps
// the projected position inside [-max, +max].
func (s *MarketMakingStrategy) CanPlaceOrder(side enum.Side, size decimal.Decimal) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.canPlaceLocked(side, size, s.position)
}

func (s *MarketMakingStrategy) canPlaceLocked(side enum.Side, size, from decimal.Decimal) bool {
	if !s.cfg.MaxPosition.IsPositive() {
		return true
	}

	projected := from.Add(size)
	if side == enum.SideSell {
		projected = from.Sub(size)
	}

	return !projected.GreaterThan(s.cfg.MaxPosition) && !projected.LessThan(s.cfg.MaxPosition.Neg())
}

// skewedSizes shrinks the side that would extend the inventory and grows the
// side that would flatten it, proportionally to position/maxPosition.
func (s *MarketMakingStrategy) skewedSizes() (bidSize, askSize decimal.Decimal) {
	base := s.cfg.OrderSize
	if !s.cfg.MaxPosition.IsPositive() || s.position.IsZero() {
		return base, base
	}

	ratio := s.position.Div(s.cfg.MaxPosition)
	one := decimal.NewFromInt(1)

	bidSize = base.Mul(one.Sub(ratio))
	askSize = base.Mul(one.Add(ratio))
	if bidSize.IsNegative() {
		bidSize = decimal.Decimal{}
	}
	if askSize.IsNegative() {
		askSize = decimal.Decimal{}
	}

	return bidSize, askSize
}

// blendPrediction shifts mid toward the predictor's extrapolation by the
// configured weight. Without a ready predictor the mid passes through.
func (s *MarketMakingStrategy) blendPrediction(state *MarketState, mid decimal.Decimal) decimal.Decimal {
	if !s.cfg.PredictionWeight.IsPositive() {
		return mid
	}

	p := state.Predictor()
	if p == nil {
		return mid
	}

	predicted, ok := p.PredictAfterSeconds(s.cfg.PredictionHorizonSeconds)
	if !ok || !predicted.IsPositive() {
		return mid
	}

	one := decimal.NewFromInt(1)
	weight := s.cfg.PredictionWeight
	if weight.GreaterThan(one) {
		weight = one
	}

	return mid.Mul(one.Sub(weight)).Add(predicted.Mul(weight))
}

// OnExecutionReport updates the tracked position from fills of this
// strategy's own orders.
func (s *MarketMakingStrategy) OnExecutionReport(report model.ExecutionReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.pending[report.ClientOrderID]
	if !ok {
		return
	}

	// FilledSize is cumulative; apply only the increment.
	increment := report.FilledSize.Decimal.Sub(pending.filled)
	if increment.IsPositive() {
		switch pending.side {
		case enum.SideBuy:
			s.position = s.position.Add(increment)
		case enum.SideSell:
			s.position = s.position.Sub(increment)
		}
		pending.filled = report.FilledSize.Decimal
	}

	if report.Status.IsTerminal() {
		delete(s.pending, report.ClientOrderID)
	}
}
