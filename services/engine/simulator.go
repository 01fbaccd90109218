package engine

import (
	"math"
	"math/rand"
	"time"
)

// Fill describes one simulated execution of an order against a bar.
type Fill struct {
	OrderID   string
	Symbol    string
	Side      TradeSide
	Quantity  float64
	Price     float64
	Timestamp time.Time
}

// SimulatorConfig controls slippage and partial-fill behaviour.
type SimulatorConfig struct {
	SlippageBps  float64 // base slippage in basis points
	VolumeRatio  float64 // fraction of bar volume available to a single order
	MinFillRatio float64
	MaxFillRatio float64
	Seed         int64
}

func (c SimulatorConfig) withDefaults() SimulatorConfig {
	if c.VolumeRatio <= 0 {
		c.VolumeRatio = 0.01
	}
	if c.MinFillRatio <= 0 {
		c.MinFillRatio = 0.1
	}
	if c.MaxFillRatio <= 0 || c.MaxFillRatio > 1 {
		c.MaxFillRatio = 1.0
	}
	return c
}

// OrderSimulator decides if and how an order fills against a single bar.
// The PRNG is seeded once at construction so an identical order/candle
// sequence replays to identical fills.
type OrderSimulator struct {
	cfg SimulatorConfig
	rng *rand.Rand
}

func NewOrderSimulator(cfg SimulatorConfig) *OrderSimulator {
	cfg = cfg.withDefaults()
	return &OrderSimulator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// SimulateExecution returns a fill for the order against the bar, or nil when
// the order does not execute. Temporal admissibility (no same-tick fills) is
// the engine's responsibility, not the simulator's.
func (s *OrderSimulator) SimulateExecution(order *Order, candle Candle) *Fill {
	price, ok := s.rawPrice(order, candle)
	if !ok {
		return nil
	}

	qty := s.fillQuantity(order.Remaining(), candle)
	if qty < epsilon {
		return nil
	}

	price = s.applySlippage(order.Action, price, qty, candle)

	return &Fill{
		OrderID:   order.ID,
		Symbol:    order.Symbol,
		Side:      order.Action,
		Quantity:  qty,
		Price:     round2(price),
		Timestamp: candle.Timestamp,
	}
}

// rawPrice resolves the pre-slippage execution price. Market orders pay a
// synthetic half-spread against the trader; limit orders fill only when the
// bar touches the limit.
func (s *OrderSimulator) rawPrice(order *Order, candle Candle) (float64, bool) {
	switch order.Type {
	case OrderMarket:
		halfSpread := 0.01 * candle.Range()
		if order.Action == TradeSideBuy {
			return candle.Close + halfSpread, true
		}
		return candle.Close - halfSpread, true
	case OrderLimit:
		if order.Action == TradeSideBuy {
			if candle.Low <= order.LimitPrice {
				return math.Min(order.LimitPrice, candle.Low), true
			}
		} else {
			if candle.High >= order.LimitPrice {
				return math.Max(order.LimitPrice, candle.High), true
			}
		}
	}
	return 0, false
}

// fillQuantity caps the execution at a fraction of bar volume. Orders small
// relative to the cap fill completely; larger orders get a randomized partial
// fill shrunk by relative size and intrabar volatility.
func (s *OrderSimulator) fillQuantity(remaining float64, candle Candle) float64 {
	volCap := candle.Volume * s.cfg.VolumeRatio
	if volCap <= 0 || remaining <= volCap*0.1 {
		return remaining
	}

	relSize := remaining / volCap
	volatility := 0.0
	if candle.Close > 0 {
		volatility = candle.Range() / candle.Close
	}

	// Larger orders and choppier bars fill a smaller fraction.
	ratio := (1.0 / relSize) * (1.0 - math.Min(volatility*5, 0.5))
	ratio *= 0.5 + s.rng.Float64() // random factor in [0.5, 1.5)
	ratio = clamp(ratio, s.cfg.MinFillRatio, s.cfg.MaxFillRatio)

	return remaining * ratio
}

// applySlippage worsens the price for the trader by base bps plus a
// size-scaled impact term, jittered by a random factor in [0.5, 1.5).
func (s *OrderSimulator) applySlippage(side TradeSide, price, qty float64, candle Candle) float64 {
	volCap := candle.Volume * s.cfg.VolumeRatio
	impact := 0.0
	if volCap > 0 {
		impact = s.cfg.SlippageBps * math.Min(qty/volCap, 1.0)
	}
	bps := (s.cfg.SlippageBps + impact) * (0.5 + s.rng.Float64())

	if side == TradeSideBuy {
		return price * (1 + bps/10000)
	}
	return price * (1 - bps/10000)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
