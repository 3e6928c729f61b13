package book

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"main/internal/model"
)

// OrderBook maintains the authoritative view of outstanding liquidity for one
// symbol. Both sides are price-sorted ladders: no stored level has size zero,
// and each price appears at most once per side.
//
// Writers (ApplySnapshot, ApplyDelta) take the lock exclusively; queries take
// shared access. No operation suspends while holding the lock.
type OrderBook struct {
	mu         sync.RWMutex
	symbol     model.Symbol
	bids       ladder // ascending by price, best bid is the last entry
	asks       ladder // ascending by price, best ask is the first entry
	lastUpdate int64
}

// New creates an empty book for the symbol.
func New(symbol model.Symbol) *OrderBook {
	return &OrderBook{symbol: symbol}
}

func (b *OrderBook) Symbol() model.Symbol { return b.symbol }

// ApplySnapshot replaces both sides with the snapshot's levels. Duplicate
// prices within one side keep the later entry; zero-size entries are skipped.
func (b *OrderBook) ApplySnapshot(snapshot model.OrderBookSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bids = b.bids[:0]
	b.asks = b.asks[:0]
	for _, lvl := range snapshot.Bids {
		b.bids = b.bids.upsert(lvl)
	}
	for _, lvl := range snapshot.Asks {
		b.asks = b.asks.upsert(lvl)
	}
	b.lastUpdate = snapshot.Timestamp
}

// ApplyDelta merges incremental level changes: a positive size inserts or
// replaces the price level, a zero size removes it (no-op when absent).
// Deltas are applied unconditionally in arrival order; sequencing and gap
// recovery belong to the feed adapter.
func (b *OrderBook) ApplyDelta(delta model.OrderBookDelta) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, lvl := range delta.Bids {
		b.bids = b.bids.apply(lvl)
	}
	for _, lvl := range delta.Asks {
		b.asks = b.asks.apply(lvl)
	}
	b.lastUpdate = delta.Timestamp
}

// BestBid returns the highest bid level, or false when the side is empty.
func (b *OrderBook) BestBid() (model.Level, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.bids) == 0 {
		return model.Level{}, false
	}

	return b.bids[len(b.bids)-1], true
}

// BestAsk returns the lowest ask level, or false when the side is empty.
func (b *OrderBook) BestAsk() (model.Level, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.asks) == 0 {
		return model.Level{}, false
	}

	return b.asks[0], true
}

// Spread returns best ask price minus best bid price, or false when either
// side is empty.
func (b *OrderBook) Spread() (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.bids) == 0 || len(b.asks) == 0 {
		return decimal.Decimal{}, false
	}

	bestBid := b.bids[len(b.bids)-1].Price
	bestAsk := b.asks[0].Price
	return bestAsk.Decimal.Sub(bestBid.Decimal), true
}

// TopBids returns up to n bid levels, best (highest price) first.
func (b *OrderBook) TopBids(n int) []model.Level {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n > len(b.bids) {
		n = len(b.bids)
	}
	if n <= 0 {
		return nil
	}

	out := make([]model.Level, 0, n)
	for i := len(b.bids) - 1; i >= len(b.bids)-n; i-- {
		out = append(out, b.bids[i])
	}

	return out
}

// TopAsks returns up to n ask levels, best (lowest price) first.
func (b *OrderBook) TopAsks(n int) []model.Level {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n > len(b.asks) {
		n = len(b.asks)
	}
	if n <= 0 {
		return nil
	}

	out := make([]model.Level, 0, n)
	out = append(out, b.asks[:n]...)

	return out
}

// TopLevels returns both sides' top n, each best-first.
func (b *OrderBook) TopLevels(n int) (bids, asks []model.Level) {
	return b.TopBids(n), b.TopAsks(n)
}

// Depth returns the current level counts of both sides.
func (b *OrderBook) Depth() (bidCount, askCount int) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.bids), len(b.asks)
}

// LastUpdate returns the timestamp of the latest applied snapshot or delta in
// milliseconds since epoch.
func (b *OrderBook) LastUpdate() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.lastUpdate
}

// ladder is a price-ascending slice of levels.
type ladder []model.Level

// search returns the insertion index for price and whether an equal price is
// already present.
func (l ladder) search(price model.Price) (int, bool) {
	idx := sort.Search(len(l), func(i int) bool {
		return l[i].Price.Cmp(price) >= 0
	})
	return idx, idx < len(l) && l[idx].Price.Equal(price)
}

// upsert inserts or replaces a level. Non-positive sizes are skipped so a
// malformed snapshot entry degrades to an omission instead of corrupting the
// ladder.
func (l ladder) upsert(lvl model.Level) ladder {
	if !lvl.Size.Decimal.IsPositive() {
		return l
	}

	idx, found := l.search(lvl.Price)
	if found {
		l[idx] = lvl
		return l
	}

	l = append(l, model.Level{})
	copy(l[idx+1:], l[idx:])
	l[idx] = lvl
	return l
}

// apply merges one delta entry: upsert on positive size, remove on zero.
// Negative sizes are an upstream contract violation and skipped per level.
func (l ladder) apply(lvl model.Level) ladder {
	if lvl.Size.Decimal.IsNegative() {
		return l
	}
	if lvl.Size.IsZero() {
		return l.remove(lvl.Price)
	}

	return l.upsert(lvl)
}

func (l ladder) remove(price model.Price) ladder {
	idx, found := l.search(price)
	if !found {
		return l
	}

	copy(l[idx:], l[idx+1:])
	return l[:len(l)-1]
}
