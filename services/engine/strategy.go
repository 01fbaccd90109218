package engine

import "time"

// TickInfo is a snapshot of the simulation clock handed to strategies.
type TickInfo struct {
	Tick      int
	Timestamp time.Time
	Symbol    string
	Close     float64
}

// StrategyContext is the callback surface the engine exposes to a strategy.
// Strategies submit and cancel orders through it; they never touch the
// portfolio or the order book directly.
type StrategyContext interface {
	SubmitOrder(order *Order) bool
	CancelOrder(orderID string) bool
	CurrentTick() int
	TickInfo() TickInfo
}

// Strategy consumes bars and emits orders. The engine holds exactly one
// instance per run and dispatches to it dynamically; concrete strategies live
// outside the simulation core.
type Strategy interface {
	Initialize(ctx StrategyContext, params map[string]string) error
	OnBar(candle Candle)
	OnOrderUpdate(order *Order)
	State() map[string]any
}
