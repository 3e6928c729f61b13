package enum

// EventKind describes the meaning of a market or trading event payload.
type EventKind uint16

const (
	_event_kind_beg EventKind = iota
	EventOrderBookSnapshot
	EventOrderBookDelta
	EventTrade
	EventExecutionReport
	_event_kind_end
)

func (k EventKind) IsAvailable() bool {
	return k > _event_kind_beg && k < _event_kind_end
}

func (k EventKind) String() string {
	switch k {
	case EventOrderBookSnapshot:
		return "orderbook_snapshot"
	case EventOrderBookDelta:
		return "orderbook_delta"
	case EventTrade:
		return "trade"
	case EventExecutionReport:
		return "execution_report"
	default:
		return "unknown"
	}
}
