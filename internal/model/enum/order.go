package enum

// Side describes order direction.
type Side uint16

const (
	_side_beg Side = iota
	SideBuy
	SideSell
	_side_end
)

func (s Side) IsAvailable() bool {
	return s > _side_beg && s < _side_end
}

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// Opposite returns the other side, or the receiver when unavailable.
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	default:
		return s
	}
}

// OrderType describes order type.
type OrderType uint16

const (
	_order_type_beg OrderType = iota
	OrderTypeMarket
	OrderTypeLimit
	OrderTypeStopLoss
	OrderTypeStopLimit
	_order_type_end
)

func (t OrderType) IsAvailable() bool {
	return t > _order_type_beg && t < _order_type_end
}

func (t OrderType) String() string {
	switch t {
	case OrderTypeMarket:
		return "market"
	case OrderTypeLimit:
		return "limit"
	case OrderTypeStopLoss:
		return "stop_loss"
	case OrderTypeStopLimit:
		return "stop_limit"
	default:
		return "unknown"
	}
}

// TimeInForce describes how long an order rests before expiring.
type TimeInForce uint16

const (
	_tif_beg TimeInForce = iota
	TimeInForceGTC
	TimeInForceIOC
	TimeInForceFOK
	_tif_end
)

func (t TimeInForce) IsAvailable() bool {
	return t > _tif_beg && t < _tif_end
}

func (t TimeInForce) String() string {
	switch t {
	case TimeInForceGTC:
		return "gtc"
	case TimeInForceIOC:
		return "ioc"
	case TimeInForceFOK:
		return "fok"
	default:
		return "unknown"
	}
}

// OrderStatus describes the execution lifecycle state reported back by a
// connector.
type OrderStatus uint16

const (
	_order_status_beg OrderStatus = iota
	OrderStatusNew
	OrderStatusPartiallyFilled
	OrderStatusFilled
	OrderStatusCancelled
	OrderStatusRejected
	_order_status_end
)

func (s OrderStatus) IsAvailable() bool {
	return s > _order_status_beg && s < _order_status_end
}

// IsTerminal reports whether no further reports will follow for the order.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
		return true
	default:
		return false
	}
}

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusNew:
		return "new"
	case OrderStatusPartiallyFilled:
		return "partially_filled"
	case OrderStatusFilled:
		return "filled"
	case OrderStatusCancelled:
		return "cancelled"
	case OrderStatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}
