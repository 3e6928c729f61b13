package strategy

import (
	"github.com/shopspring/decimal"

	"main/internal/model"
)

// ArbitrageConfig parameterizes cross-venue opportunity detection.
type ArbitrageConfig struct {
	Symbol model.Symbol
	// MinProfit is the minimum gross profit (sell notional minus buy
	// notional) worth reporting.
	MinProfit decimal.Decimal
	// OrderSize is the quantity quoted on both legs, capped by displayed
	// liquidity.
	OrderSize decimal.Decimal
}

// ArbitrageStrategy compares the best bid and ask across every venue seen in
// the market state and emits an Arbitrage signal when selling on one venue
// and buying on another clears the configured minimum profit.
type ArbitrageStrategy struct {
	cfg ArbitrageConfig
}

func NewArbitrageStrategy(cfg ArbitrageConfig) *ArbitrageStrategy {
	return &ArbitrageStrategy{cfg: cfg}
}

func (*ArbitrageStrategy) Name() string { return "arbitrage" }

// GenerateSignal scans venue tops. It needs at least two venues with a
// populated side each; otherwise there is nothing to compare and no signal.
func (s *ArbitrageStrategy) GenerateSignal(state *MarketState) []model.Signal {
	if state.Symbol() != s.cfg.Symbol {
		return nil
	}

	exchanges := state.Exchanges()
	if len(exchanges) < 2 {
		return nil
	}

	var (
		haveBid, haveAsk bool
		bestBid          model.Level
		bestAsk          model.Level
		sellVenue        model.Exchange
		buyVenue         model.Exchange
	)

	for _, exchange := range exchanges {
		if bid, ok := state.BestBidOn(exchange); ok {
			if !haveBid || bid.Price.GreaterThan(bestBid.Price) {
				bestBid, sellVenue, haveBid = bid, exchange, true
			}
		}
		if ask, ok := state.BestAskOn(exchange); ok {
			if !haveAsk || ask.Price.LessThan(bestAsk.Price) {
				bestAsk, buyVenue, haveAsk = ask, exchange, true
			}
		}
	}

	if !haveBid || !haveAsk || buyVenue == sellVenue {
		return nil
	}
	if bestBid.Price.Cmp(bestAsk.Price) <= 0 {
		return nil
	}

	size := s.cfg.OrderSize
	if bestBid.Size.Decimal.LessThan(size) {
		size = bestBid.Size.Decimal
	}
	if bestAsk.Size.Decimal.LessThan(size) {
		size = bestAsk.Size.Decimal
	}
	if !size.IsPositive() {
		return nil
	}

	profit := bestBid.Price.Decimal.Sub(bestAsk.Price.Decimal).Mul(size)
	if profit.LessThan(s.cfg.MinProfit) {
		return nil
	}

	quantity, err := model.SizeFromDecimal(size)
	if err != nil {
		return nil
	}

	return []model.Signal{model.Arbitrage{
		Symbol:         s.cfg.Symbol,
		BuyExchange:    buyVenue,
		SellExchange:   sellVenue,
		BuyPrice:       bestAsk.Price,
		SellPrice:      bestBid.Price,
		Size:           quantity,
		ExpectedProfit: profit,
	}}
}
