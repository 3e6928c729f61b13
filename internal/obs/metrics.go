package obs

import (
	"sync"
	"sync/atomic"
	"time"

	"main/internal/model/enum"
)

const maxEventKind = int(enum.EventExecutionReport)

// Metrics collects lightweight counters and latency stats for the pipeline.
type Metrics struct {
	eventCounts     [maxEventKind + 1]uint64
	signalsEmitted  uint64
	ordersAccepted  uint64
	ordersSubmitted uint64
	queueDrops      uint64

	mu              sync.Mutex
	violationCounts map[string]uint64

	eventLatency    LatencyStats
	riskEvalLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	EventCounts     map[enum.EventKind]uint64
	ViolationCounts map[string]uint64
	SignalsEmitted  uint64
	OrdersAccepted  uint64
	OrdersSubmitted uint64
	QueueDrops      uint64
	EventLatency    LatencySnapshot
	RiskEvalLatency LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{violationCounts: make(map[string]uint64)}
}

// ObserveEvent counts one consumed event.
func (m *Metrics) ObserveEvent(kind enum.EventKind) {
	if idx := int(kind); idx >= 0 && idx <= maxEventKind {
		atomic.AddUint64(&m.eventCounts[idx], 1)
	}
}

// ObserveEventLatency records time spent handling one event.
func (m *Metrics) ObserveEventLatency(d time.Duration) {
	m.eventLatency.observe(d)
}

// ObserveRiskEvalLatency records one CheckOrder duration.
func (m *Metrics) ObserveRiskEvalLatency(d time.Duration) {
	m.riskEvalLatency.observe(d)
}

// ObserveViolation counts one risk rejection by its stable rule name.
func (m *Metrics) ObserveViolation(rule string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.violationCounts[rule]++
}

// ObserveSignals counts emitted strategy signals.
func (m *Metrics) ObserveSignals(n int) {
	if n > 0 {
		atomic.AddUint64(&m.signalsEmitted, uint64(n))
	}
}

// ObserveOrderAccepted counts one order that passed every risk rule.
func (m *Metrics) ObserveOrderAccepted() {
	atomic.AddUint64(&m.ordersAccepted, 1)
}

// ObserveOrderSubmitted counts one order handed to the connector.
func (m *Metrics) ObserveOrderSubmitted() {
	atomic.AddUint64(&m.ordersSubmitted, 1)
}

// ObserveQueueDrop counts one event dropped at a full queue.
func (m *Metrics) ObserveQueueDrop() {
	atomic.AddUint64(&m.queueDrops, 1)
}

// Snapshot captures the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{
		EventCounts:     make(map[enum.EventKind]uint64, maxEventKind+1),
		ViolationCounts: make(map[string]uint64),
		SignalsEmitted:  atomic.LoadUint64(&m.signalsEmitted),
		OrdersAccepted:  atomic.LoadUint64(&m.ordersAccepted),
		OrdersSubmitted: atomic.LoadUint64(&m.ordersSubmitted),
		QueueDrops:      atomic.LoadUint64(&m.queueDrops),
		EventLatency:    m.eventLatency.snapshot(),
		RiskEvalLatency: m.riskEvalLatency.snapshot(),
	}

	for i := range m.eventCounts {
		if count := atomic.LoadUint64(&m.eventCounts[i]); count != 0 {
			snap.EventCounts[enum.EventKind(i)] = count
		}
	}

	m.mu.Lock()
	for rule, count := range m.violationCounts {
		snap.ViolationCounts[rule] = count
	}
	m.mu.Unlock()

	return snap
}

func (s *LatencyStats) observe(d time.Duration) {
	if d < 0 {
		return
	}

	v := uint64(d)
	atomic.AddUint64(&s.count, 1)
	atomic.AddUint64(&s.sum, v)

	for {
		cur := atomic.LoadUint64(&s.min)
		if cur != 0 && v >= cur {
			break
		}
		if atomic.CompareAndSwapUint64(&s.min, cur, v) {
			break
		}
	}

	for {
		cur := atomic.LoadUint64(&s.max)
		if v <= cur {
			break
		}
		if atomic.CompareAndSwapUint64(&s.max, cur, v) {
			break
		}
	}
}

func (s *LatencyStats) snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&s.count)
	if count == 0 {
		return LatencySnapshot{}
	}

	sum := atomic.LoadUint64(&s.sum)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(atomic.LoadUint64(&s.min)),
		Max:   time.Duration(atomic.LoadUint64(&s.max)),
		Avg:   time.Duration(sum / count),
	}
}
