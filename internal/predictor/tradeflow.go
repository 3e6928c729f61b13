package predictor

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/model"
	"main/internal/model/enum"
)

type flowEntry struct {
	at   int64 // milliseconds since epoch, event time
	side enum.Side
	size decimal.Decimal
}

// TradeFlowIndicator maintains a bounded rolling window of trades within a
// time horizon and compares buy-side against sell-side executed volume.
// Pruning uses event timestamps, so replayed data behaves identically to
// live data.
type TradeFlowIndicator struct {
	mu        sync.Mutex
	horizon   time.Duration
	minTrades int
	window    []flowEntry
}

// NewTradeFlowIndicator keeps trades no older than horizon relative to the
// newest trade and reports ready once minTrades are inside the window.
func NewTradeFlowIndicator(horizon time.Duration, minTrades int) *TradeFlowIndicator {
	if minTrades < 1 {
		minTrades = 1
	}

	return &TradeFlowIndicator{horizon: horizon, minTrades: minTrades}
}

// Add folds one trade into the window and evicts expired entries.
func (f *TradeFlowIndicator) Add(trade model.Trade) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.window = append(f.window, flowEntry{
		at:   trade.Timestamp,
		side: trade.Side,
		size: trade.Size.Decimal,
	})
	f.prune(trade.Timestamp)
}

// IsReady reports whether the window holds enough trades.
func (f *TradeFlowIndicator) IsReady() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.window) >= f.minTrades
}

// Volumes returns total buy and sell volume inside the window.
func (f *TradeFlowIndicator) Volumes() (buy, sell decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return sumVolumes(f.window)
}

// FlowRatio returns buyVolume/(buyVolume+sellVolume), ranging 0..1 with 0.5
// balanced. Returns false while not ready or when the window volume is zero.
func (f *TradeFlowIndicator) FlowRatio() (decimal.Decimal, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.window) < f.minTrades {
		return decimal.Decimal{}, false
	}

	buy, sell := sumVolumes(f.window)
	total := buy.Add(sell)
	if total.IsZero() {
		return decimal.Decimal{}, false
	}

	return buy.Div(total), true
}

// Pressure returns buy volume minus sell volume, positive when buyers
// dominate. Returns false while not ready.
func (f *TradeFlowIndicator) Pressure() (decimal.Decimal, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.window) < f.minTrades {
		return decimal.Decimal{}, false
	}

	buy, sell := sumVolumes(f.window)
	return buy.Sub(sell), true
}

// prune drops entries older than horizon relative to now. Caller holds the
// lock.
func (f *TradeFlowIndicator) prune(now int64) {
	cutoff := now - f.horizon.Milliseconds()
	idx := 0
	for idx < len(f.window) && f.window[idx].at < cutoff {
		idx++
	}
	if idx > 0 {
		f.window = append(f.window[:0], f.window[idx:]...)
	}
}

func sumVolumes(entries []flowEntry) (buy, sell decimal.Decimal) {
	for _, e := range entries {
		switch e.side {
		case enum.SideBuy:
			buy = buy.Add(e.size)
		case enum.SideSell:
			sell = sell.Add(e.size)
		}
	}

	return buy, sell
}

// TradeFlowMomentum derives the change of flow ratio between the older and
// newer halves of a trade window: positive momentum means buy pressure is
// building.
type TradeFlowMomentum struct {
	mu        sync.Mutex
	horizon   time.Duration
	minTrades int // per half-window
	window    []flowEntry
}

func NewTradeFlowMomentum(horizon time.Duration, minTradesPerHalf int) *TradeFlowMomentum {
	if minTradesPerHalf < 1 {
		minTradesPerHalf = 1
	}

	return &TradeFlowMomentum{horizon: horizon, minTrades: minTradesPerHalf}
}

// Add folds one trade into the window and evicts expired entries.
func (m *TradeFlowMomentum) Add(trade model.Trade) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.window = append(m.window, flowEntry{
		at:   trade.Timestamp,
		side: trade.Side,
		size: trade.Size.Decimal,
	})

	cutoff := trade.Timestamp - m.horizon.Milliseconds()
	idx := 0
	for idx < len(m.window) && m.window[idx].at < cutoff {
		idx++
	}
	if idx > 0 {
		m.window = append(m.window[:0], m.window[idx:]...)
	}
}

// IsReady reports whether both sub-windows hold enough trades.
func (m *TradeFlowMomentum) IsReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	older, newer := m.split()
	return len(older) >= m.minTrades && len(newer) >= m.minTrades
}

// Momentum returns newerFlowRatio minus olderFlowRatio, in -1..1. Returns
// false while either sub-window lacks trades or volume.
func (m *TradeFlowMomentum) Momentum() (decimal.Decimal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	older, newer := m.split()
	if len(older) < m.minTrades || len(newer) < m.minTrades {
		return decimal.Decimal{}, false
	}

	olderRatio, ok := ratioOf(older)
	if !ok {
		return decimal.Decimal{}, false
	}
	newerRatio, ok := ratioOf(newer)
	if !ok {
		return decimal.Decimal{}, false
	}

	return newerRatio.Sub(olderRatio), true
}

// split divides the window by the midpoint of its time span. Caller holds
// the lock.
func (m *TradeFlowMomentum) split() (older, newer []flowEntry) {
	if len(m.window) == 0 {
		return nil, nil
	}

	first := m.window[0].at
	last := m.window[len(m.window)-1].at
	mid := first + (last-first)/2

	idx := 0
	for idx < len(m.window) && m.window[idx].at <= mid {
		idx++
	}

	return m.window[:idx], m.window[idx:]
}

func ratioOf(entries []flowEntry) (decimal.Decimal, bool) {
	buy, sell := sumVolumes(entries)
	total := buy.Add(sell)
	if total.IsZero() {
		return decimal.Decimal{}, false
	}

	return buy.Div(total), true
}
