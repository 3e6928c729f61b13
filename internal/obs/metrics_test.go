package obs

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"main/internal/model/enum"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.ObserveEvent(enum.EventTrade)
	m.ObserveEvent(enum.EventTrade)
	m.ObserveSignals(3)
	m.ObserveOrderAccepted()
	m.ObserveOrderSubmitted()
	m.ObserveQueueDrop()
	m.ObserveViolation("PositionSizeLimit")
	m.ObserveViolation("PositionSizeLimit")
	m.ObserveViolation("BalanceLimit")

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.EventCounts[enum.EventTrade])
	assert.Equal(t, uint64(3), snap.SignalsEmitted)
	assert.Equal(t, uint64(1), snap.OrdersAccepted)
	assert.Equal(t, uint64(1), snap.OrdersSubmitted)
	assert.Equal(t, uint64(1), snap.QueueDrops)
	assert.Equal(t, uint64(2), snap.ViolationCounts["PositionSizeLimit"])
	assert.Equal(t, uint64(1), snap.ViolationCounts["BalanceLimit"])
}

func TestLatencyStats(t *testing.T) {
	m := NewMetrics()

	m.ObserveEventLatency(2 * time.Millisecond)
	m.ObserveEventLatency(4 * time.Millisecond)
	m.ObserveEventLatency(6 * time.Millisecond)

	lat := m.Snapshot().EventLatency
	assert.Equal(t, uint64(3), lat.Count)
	assert.Equal(t, 2*time.Millisecond, lat.Min)
	assert.Equal(t, 6*time.Millisecond, lat.Max)
	assert.Equal(t, 4*time.Millisecond, lat.Avg)
}

func TestLatencyStatsEmpty(t *testing.T) {
	lat := NewMetrics().Snapshot().RiskEvalLatency
	assert.Equal(t, uint64(0), lat.Count)
	assert.Equal(t, time.Duration(0), lat.Avg)
}

func TestMetricsConcurrent(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.ObserveEvent(enum.EventOrderBookDelta)
				m.ObserveViolation("DailyLossLimit")
			}
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	assert.Equal(t, uint64(800), snap.EventCounts[enum.EventOrderBookDelta])
	assert.Equal(t, uint64(800), snap.ViolationCounts["DailyLossLimit"])
}
