package strategies

import (
	"fmt"

	"gridbacktest/services/engine"
)

func init() {
	Register("ema_trend", func() engine.Strategy { return &TrendStrategy{} })
}

// TrendStrategy is an EMA crossover follower: a golden cross of the fast EMA
// over the slow opens a long for a fixed notional, a death cross flattens it.
// Market orders only; fills land on the next bar.
type TrendStrategy struct {
	ctx engine.StrategyContext

	fastPeriod int
	slowPeriod int
	notional   float64

	fast *EMA
	slow *EMA

	prevDiff float64
	havePrev bool
	held     float64
	pending  bool // an order is in flight, do not stack signals
	signals  int
}

func (t *TrendStrategy) Initialize(ctx engine.StrategyContext, params map[string]string) error {
	t.ctx = ctx
	t.fastPeriod = paramInt(params, "fast_period", 12)
	t.slowPeriod = paramInt(params, "slow_period", 26)
	t.notional = paramFloat(params, "notional", 10000)
	if t.fastPeriod >= t.slowPeriod {
		return fmt.Errorf("ema_trend: fast_period %d must be below slow_period %d", t.fastPeriod, t.slowPeriod)
	}
	t.fast = NewEMA(t.fastPeriod)
	t.slow = NewEMA(t.slowPeriod)
	return nil
}

func (t *TrendStrategy) OnBar(candle engine.Candle) {
	fast := t.fast.Update(candle.Close)
	slow := t.slow.Update(candle.Close)
	if !t.slow.Primed() {
		return
	}

	diff := fast - slow
	defer func() {
		t.prevDiff = diff
		t.havePrev = true
	}()

	if !t.havePrev || t.pending {
		return
	}

	if t.prevDiff <= 0 && diff > 0 && t.held < 1e-8 {
		qty := t.notional / candle.Close
		if t.ctx.SubmitOrder(engine.NewMarketOrder(candle.Symbol, engine.TradeSideBuy, qty)) {
			t.pending = true
			t.signals++
		}
		return
	}

	if t.prevDiff >= 0 && diff < 0 && t.held > 1e-8 {
		if t.ctx.SubmitOrder(engine.NewMarketOrder(candle.Symbol, engine.TradeSideSell, t.held)) {
			t.pending = true
			t.signals++
		}
	}
}

func (t *TrendStrategy) OnOrderUpdate(order *engine.Order) {
	if !order.IsTerminal() {
		return
	}
	t.pending = false
	if order.Status != engine.OrderFilled {
		return
	}
	if order.Action == engine.TradeSideBuy {
		t.held += order.FilledQty
	} else {
		t.held -= order.FilledQty
		if t.held < 1e-8 {
			t.held = 0
		}
	}
}

func (t *TrendStrategy) State() map[string]any {
	return map[string]any{
		"fast_period": t.fastPeriod,
		"slow_period": t.slowPeriod,
		"held":        t.held,
		"signals":     t.signals,
	}
}
