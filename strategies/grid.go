package strategies

import (
	"fmt"
	"strconv"

	"gridbacktest/services/engine"
)

func init() {
	Register("grid", func() engine.Strategy { return &GridStrategy{} })
}

// GridStrategy lays a ladder of limit buys below the first seen price. Each
// buy fill arms a paired limit sell one grid step above its fill price; each
// sell fill re-arms a buy one step below. Every round trip through a level is
// a reportable trade.
type GridStrategy struct {
	ctx engine.StrategyContext

	symbol     string
	levels     int
	spacingPct float64
	orderQty   float64

	base        float64
	initialized bool
	buysPlaced  int
	sellsPlaced int
	roundTrips  int
}

func (g *GridStrategy) Initialize(ctx engine.StrategyContext, params map[string]string) error {
	g.ctx = ctx
	g.levels = paramInt(params, "levels", 5)
	g.spacingPct = paramFloat(params, "spacing_pct", 1.0)
	g.orderQty = paramFloat(params, "order_qty", 1.0)
	if g.levels <= 0 {
		return fmt.Errorf("grid: levels must be positive, got %d", g.levels)
	}
	if g.spacingPct <= 0 {
		return fmt.Errorf("grid: spacing_pct must be positive, got %v", g.spacingPct)
	}
	return nil
}

func (g *GridStrategy) OnBar(candle engine.Candle) {
	if g.initialized {
		return
	}
	// Anchor the ladder on the first bar's close.
	g.symbol = candle.Symbol
	g.base = candle.Close
	step := g.spacingPct / 100
	for i := 1; i <= g.levels; i++ {
		price := g.base * (1 - step*float64(i))
		if g.ctx.SubmitOrder(engine.NewLimitOrder(g.symbol, engine.TradeSideBuy, g.orderQty, price)) {
			g.buysPlaced++
		}
	}
	g.initialized = true
}

func (g *GridStrategy) OnOrderUpdate(order *engine.Order) {
	if order.Status != engine.OrderFilled {
		return
	}
	step := g.spacingPct / 100
	if order.Action == engine.TradeSideBuy {
		price := order.AvgFillPrice * (1 + step)
		if g.ctx.SubmitOrder(engine.NewLimitOrder(g.symbol, engine.TradeSideSell, order.FilledQty, price)) {
			g.sellsPlaced++
		}
		return
	}
	g.roundTrips++
	price := order.AvgFillPrice * (1 - step)
	if g.ctx.SubmitOrder(engine.NewLimitOrder(g.symbol, engine.TradeSideBuy, g.orderQty, price)) {
		g.buysPlaced++
	}
}

func (g *GridStrategy) State() map[string]any {
	return map[string]any{
		"base":         g.base,
		"levels":       g.levels,
		"spacing_pct":  g.spacingPct,
		"buys_placed":  g.buysPlaced,
		"sells_placed": g.sellsPlaced,
		"round_trips":  g.roundTrips,
	}
}

func paramInt(params map[string]string, key string, def int) int {
	if raw, ok := params[key]; ok {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return def
}

func paramFloat(params map[string]string, key string, def float64) float64 {
	if raw, ok := params[key]; ok {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}
	return def
}
