package strategy

import (
	"github.com/shopspring/decimal"

	"main/internal/book"
	"main/internal/model"
	"main/internal/predictor"
)

// MarketState is the per-symbol rolling view a strategy reads: per-venue
// tracked books, the venue of the latest book event, the last trade and
// optional flow/prediction inputs. It is rebuilt incrementally on every
// event and owned by the strategy engine; one instance per tracked symbol.
type MarketState struct {
	symbol       model.Symbol
	books        map[model.Exchange]*book.OrderBook
	lastExchange model.Exchange
	lastEventAt  int64
	lastTrade    *model.Trade

	flow      *predictor.TradeFlowIndicator
	predictor *predictor.LinearRegressionPredictor
}

// NewMarketState creates an empty state for the symbol.
func NewMarketState(symbol model.Symbol) *MarketState {
	return &MarketState{
		symbol: symbol,
		books:  make(map[model.Exchange]*book.OrderBook),
	}
}

// AttachPredictor wires an optional linear regression predictor; trade prices
// feed it as observations.
func (s *MarketState) AttachPredictor(p *predictor.LinearRegressionPredictor) {
	s.predictor = p
}

// AttachFlow wires an optional trade-flow indicator.
func (s *MarketState) AttachFlow(f *predictor.TradeFlowIndicator) {
	s.flow = f
}

// Update folds one event into the state. Snapshot and delta events replace or
// patch the tracked book for their venue; trades refresh the last trade and
// the optional indicators. Execution reports are not market state and are
// ignored here.
func (s *MarketState) Update(event model.Event) {
	if event.EventSymbol() != s.symbol {
		return
	}

	switch e := event.(type) {
	case model.OrderBookSnapshot:
		s.bookFor(e.Exchange).ApplySnapshot(e)
		s.lastExchange = e.Exchange
	case model.OrderBookDelta:
		s.bookFor(e.Exchange).ApplyDelta(e)
		s.lastExchange = e.Exchange
	case model.Trade:
		trade := e
		s.lastTrade = &trade
		if s.flow != nil {
			s.flow.Add(e)
		}
		if s.predictor != nil {
			s.predictor.Update(e.Timestamp, e.Price)
		}
	default:
		return
	}

	s.lastEventAt = event.EventTime()
}

func (s *MarketState) bookFor(exchange model.Exchange) *book.OrderBook {
	b, ok := s.books[exchange]
	if !ok {
		b = book.New(s.symbol)
		s.books[exchange] = b
	}

	return b
}

func (s *MarketState) Symbol() model.Symbol { return s.symbol }

// LastEventAt returns the timestamp of the latest folded event in
// milliseconds since epoch.
func (s *MarketState) LastEventAt() int64 { return s.lastEventAt }

// LastTrade returns the most recent trade, or false before the first one.
func (s *MarketState) LastTrade() (model.Trade, bool) {
	if s.lastTrade == nil {
		return model.Trade{}, false
	}

	return *s.lastTrade, true
}

// BestBid returns the best bid on the venue of the latest book event.
func (s *MarketState) BestBid() (model.Level, bool) {
	b, ok := s.books[s.lastExchange]
	if !ok {
		return model.Level{}, false
	}

	return b.BestBid()
}

// BestAsk returns the best ask on the venue of the latest book event.
func (s *MarketState) BestAsk() (model.Level, bool) {
	b, ok := s.books[s.lastExchange]
	if !ok {
		return model.Level{}, false
	}

	return b.BestAsk()
}

// Spread returns the spread on the venue of the latest book event, or false
// when either side is empty.
func (s *MarketState) Spread() (decimal.Decimal, bool) {
	b, ok := s.books[s.lastExchange]
	if !ok {
		return decimal.Decimal{}, false
	}

	return b.Spread()
}

// BestBidOn returns the best bid on a specific venue.
func (s *MarketState) BestBidOn(exchange model.Exchange) (model.Level, bool) {
	b, ok := s.books[exchange]
	if !ok {
		return model.Level{}, false
	}

	return b.BestBid()
}

// BestAskOn returns the best ask on a specific venue.
func (s *MarketState) BestAskOn(exchange model.Exchange) (model.Level, bool) {
	b, ok := s.books[exchange]
	if !ok {
		return model.Level{}, false
	}

	return b.BestAsk()
}

// Exchanges lists the venues a book has been seen for.
func (s *MarketState) Exchanges() []model.Exchange {
	out := make([]model.Exchange, 0, len(s.books))
	for exchange := range s.books {
		out = append(out, exchange)
	}

	return out
}

// Predictor returns the attached predictor, or nil.
func (s *MarketState) Predictor() *predictor.LinearRegressionPredictor {
	return s.predictor
}

// Flow returns the attached trade-flow indicator, or nil.
func (s *MarketState) Flow() *predictor.TradeFlowIndicator {
	return s.flow
}
