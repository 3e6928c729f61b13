package risk

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/model"
)

// Snapshot captures the engine's account state at a point in time. Decimals
// are carried as values; persistence layers serialize them as text.
type Snapshot struct {
	TakenAt   time.Time
	Positions []PositionEntry
	Balances  []BalanceEntry
}

// PositionEntry is one symbol's exposure in a snapshot.
type PositionEntry struct {
	Symbol        model.Symbol
	Size          decimal.Decimal
	AvgEntryPrice *model.Price
	DailyLoss     decimal.Decimal
}

// BalanceEntry is one asset's funds record in a snapshot.
type BalanceEntry struct {
	Asset string
	Total decimal.Decimal
	Used  decimal.Decimal
}

// Snapshot builds a sorted, point-in-time copy of positions and balances.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := Snapshot{TakenAt: time.Now().UTC()}

	e.state.EachPosition(func(p Position) {
		snap.Positions = append(snap.Positions, PositionEntry{
			Symbol:        p.Symbol,
			Size:          p.Size,
			AvgEntryPrice: p.AvgEntryPrice,
			DailyLoss:     e.state.DailyLoss(p.Symbol),
		})
	})
	e.state.EachBalance(func(b Balance) {
		snap.Balances = append(snap.Balances, BalanceEntry{
			Asset: b.Asset,
			Total: b.Total,
			Used:  b.Used,
		})
	})

	sort.Slice(snap.Positions, func(i, j int) bool {
		return snap.Positions[i].Symbol < snap.Positions[j].Symbol
	})
	sort.Slice(snap.Balances, func(i, j int) bool {
		return snap.Balances[i].Asset < snap.Balances[j].Asset
	})

	return snap
}
