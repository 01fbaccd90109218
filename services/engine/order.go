package engine

import "time"

type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

type OrderType string

const (
	OrderMarket OrderType = "MARKET"
	OrderLimit  OrderType = "LIMIT"
)

type OrderStatus string

const (
	OrderPending         OrderStatus = "PENDING"
	OrderSubmitted       OrderStatus = "SUBMITTED"
	OrderFilled          OrderStatus = "FILLED"
	OrderPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderCancelled       OrderStatus = "CANCELLED"
	OrderRejected        OrderStatus = "REJECTED"
)

// Order is a mutable order record owned by the engine. Terminal states are
// never mutated again.
type Order struct {
	ID           string
	Symbol       string
	Action       TradeSide
	Type         OrderType
	Quantity     float64
	LimitPrice   float64 // meaningful only for OrderLimit
	Status       OrderStatus
	FilledQty    float64
	AvgFillPrice float64
	CreatedAt    time.Time
	SubmittedAt  time.Time
	FilledAt     time.Time
	CancelledAt  time.Time
}

// NewOrder creates an order in PENDING state. The id is assigned by the
// engine on admission so that order numbering is deterministic per run.
func NewOrder(symbol string, action TradeSide, typ OrderType, quantity, limitPrice float64) *Order {
	return &Order{
		Symbol:     symbol,
		Action:     action,
		Type:       typ,
		Quantity:   quantity,
		LimitPrice: limitPrice,
		Status:     OrderPending,
	}
}

// NewMarketOrder is shorthand for a quantity-only market order.
func NewMarketOrder(symbol string, action TradeSide, quantity float64) *Order {
	return NewOrder(symbol, action, OrderMarket, quantity, 0)
}

// NewLimitOrder is shorthand for a limit order at the given price.
func NewLimitOrder(symbol string, action TradeSide, quantity, limitPrice float64) *Order {
	return NewOrder(symbol, action, OrderLimit, quantity, limitPrice)
}

// Remaining returns the unfilled quantity.
func (o *Order) Remaining() float64 {
	return o.Quantity - o.FilledQty
}

// IsActive reports whether the order can still fill.
func (o *Order) IsActive() bool {
	return o.Status == OrderSubmitted || o.Status == OrderPartiallyFilled
}

// IsTerminal reports whether the order reached a final state.
func (o *Order) IsTerminal() bool {
	switch o.Status {
	case OrderFilled, OrderCancelled, OrderRejected:
		return true
	}
	return false
}

// recordFill applies an execution to the order. The order moves to FILLED when
// the residual drops below the monetary epsilon, PARTIALLY_FILLED otherwise.
func (o *Order) recordFill(qty, price float64, ts time.Time) {
	filled := o.FilledQty + qty
	if filled > 0 {
		o.AvgFillPrice = (o.AvgFillPrice*o.FilledQty + price*qty) / filled
	}
	o.FilledQty = filled
	if o.Remaining() < epsilon {
		o.Status = OrderFilled
		o.FilledAt = ts
	} else {
		o.Status = OrderPartiallyFilled
	}
}
