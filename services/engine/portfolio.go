package engine

import "time"

// epsilon guards every monetary comparison against float drift.
const epsilon = 1e-8

// Position tracks holdings for one symbol. Unrealized and total pnl are
// computed from LastPrice, never stored.
type Position struct {
	Symbol      string
	Quantity    float64
	AvgPrice    float64
	RealizedPnl float64
	LastPrice   float64
	OpenedAt    time.Time
}

// MarketValue values the position at the last seen price.
func (p *Position) MarketValue() float64 {
	return p.Quantity * p.LastPrice
}

// UnrealizedPnl is the open pnl at the last seen price.
func (p *Position) UnrealizedPnl() float64 {
	return (p.LastPrice - p.AvgPrice) * p.Quantity
}

// TotalPnl is realized plus unrealized pnl.
func (p *Position) TotalPnl() float64 {
	return p.RealizedPnl + p.UnrealizedPnl()
}

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Timestamp   time.Time
	Equity      float64
	Drawdown    float64
	DrawdownPct float64
}

// Portfolio is the cash and position ledger. All position mutation goes
// through ExecuteOrder; the engine owns call ordering.
type Portfolio struct {
	Cash        float64
	InitialCash float64
	Positions   map[string]*Position
	EquityCurve []EquityPoint

	TotalFees float64

	peakEquity     float64
	maxDrawdown    float64
	maxDrawdownPct float64
}

func NewPortfolio(initialCash float64) *Portfolio {
	return &Portfolio{
		Cash:        initialCash,
		InitialCash: initialCash,
		Positions:   make(map[string]*Position),
		peakEquity:  initialCash,
	}
}

// ExecuteOrder applies a fill to the ledger. It rejects without mutation when
// a buy would drive cash negative or a sell exceeds the held quantity.
func (pf *Portfolio) ExecuteOrder(symbol string, side TradeSide, qty, price, commission float64, ts time.Time) error {
	if side == TradeSideBuy {
		cost := qty*price + commission
		if pf.Cash+epsilon < cost {
			return ErrInsufficientFunds
		}
		pf.Cash -= cost
		pf.TotalFees += commission

		pos, ok := pf.Positions[symbol]
		if !ok {
			pf.Positions[symbol] = &Position{
				Symbol:    symbol,
				Quantity:  qty,
				AvgPrice:  price,
				LastPrice: price,
				OpenedAt:  ts,
			}
			return nil
		}
		// Weighted-average cost over the combined quantity.
		newQty := pos.Quantity + qty
		pos.AvgPrice = (pos.AvgPrice*pos.Quantity + price*qty) / newQty
		pos.Quantity = newQty
		pos.LastPrice = price
		return nil
	}

	pos, ok := pf.Positions[symbol]
	if !ok || pos.Quantity+epsilon < qty {
		return ErrInsufficientShares
	}

	pf.Cash += qty*price - commission
	pf.TotalFees += commission
	pos.RealizedPnl += (price - pos.AvgPrice) * qty
	pos.Quantity -= qty
	pos.LastPrice = price
	// Avg price is unchanged on a partial close; a residual below epsilon
	// means the position is flat.
	if pos.Quantity < epsilon {
		pos.Quantity = 0
		pos.AvgPrice = 0
	}
	return nil
}

// UpdatePrices marks the symbol to the bar close and appends an equity point,
// tracking the running peak and max drawdown.
func (pf *Portfolio) UpdatePrices(candle Candle) {
	if pos, ok := pf.Positions[candle.Symbol]; ok {
		pos.LastPrice = candle.Close
	}

	equity := pf.Equity()
	if equity > pf.peakEquity {
		pf.peakEquity = equity
	}

	drawdown := pf.peakEquity - equity
	drawdownPct := 0.0
	if pf.peakEquity > 0 {
		drawdownPct = drawdown / pf.peakEquity * 100
	}
	if drawdown > pf.maxDrawdown {
		pf.maxDrawdown = drawdown
		pf.maxDrawdownPct = drawdownPct
	}

	pf.EquityCurve = append(pf.EquityCurve, EquityPoint{
		Timestamp:   candle.Timestamp,
		Equity:      equity,
		Drawdown:    drawdown,
		DrawdownPct: drawdownPct,
	})
}

// Equity is cash plus positions at their last seen prices.
func (pf *Portfolio) Equity() float64 {
	return pf.Cash + pf.PositionsValue()
}

// PositionsValue sums market value across open positions.
func (pf *Portfolio) PositionsValue() float64 {
	total := 0.0
	for _, pos := range pf.Positions {
		total += pos.MarketValue()
	}
	return total
}

// RealizedPnl sums realized pnl across all positions.
func (pf *Portfolio) RealizedPnl() float64 {
	total := 0.0
	for _, pos := range pf.Positions {
		total += pos.RealizedPnl
	}
	return total
}

// UnrealizedPnl sums open pnl across all positions.
func (pf *Portfolio) UnrealizedPnl() float64 {
	total := 0.0
	for _, pos := range pf.Positions {
		total += pos.UnrealizedPnl()
	}
	return total
}

// MaxDrawdown returns the worst absolute and percentage drawdown seen so far.
func (pf *Portfolio) MaxDrawdown() (float64, float64) {
	return pf.maxDrawdown, pf.maxDrawdownPct
}
