package engine

import (
	"math"
	"time"
)

const tradingDaysPerYear = 252

// PerformanceMetrics holds return, risk and trading statistics derived from
// the trade list and equity curve. Ratio fields are nil when undefined
// (no volatility, no losses, no drawdown) rather than zero or infinite.
type PerformanceMetrics struct {
	TotalReturn         float64
	TotalReturnPct      float64
	AnnualizedReturnPct float64
	MaxDrawdown         float64
	MaxDrawdownPct      float64
	VolatilityPct       float64
	SharpeRatio         *float64
	SortinoRatio        *float64
	CalmarRatio         *float64

	TotalTrades          int
	WinningTrades        int
	LosingTrades         int
	WinRatePct           float64
	ProfitFactor         *float64
	AvgWin               float64
	AvgLoss              float64
	LargestWin           float64
	LargestLoss          float64
	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	TotalFees            float64
}

// MetricsCalculator derives performance statistics from completed runs.
type MetricsCalculator struct {
	RiskFreeRatePct float64
}

func NewMetricsCalculator(riskFreeRatePct float64) *MetricsCalculator {
	return &MetricsCalculator{RiskFreeRatePct: riskFreeRatePct}
}

// Calculate is total-function over its inputs: empty trades or an empty
// equity curve yield an all-zero/nil result, never a panic.
func (mc *MetricsCalculator) Calculate(initialCash float64, trades []Trade, equity []EquityPoint) PerformanceMetrics {
	var m PerformanceMetrics
	mc.fillReturns(&m, initialCash, equity)
	mc.fillTradeStats(&m, trades)
	return m
}

func (mc *MetricsCalculator) fillReturns(m *PerformanceMetrics, initialCash float64, equity []EquityPoint) {
	if len(equity) == 0 || initialCash <= 0 {
		return
	}

	final := equity[len(equity)-1].Equity
	m.TotalReturn = final - initialCash
	m.TotalReturnPct = m.TotalReturn / initialCash * 100

	years := equity[len(equity)-1].Timestamp.Sub(equity[0].Timestamp).Hours() / (24 * 365.25)
	if years > 0 && final > 0 {
		m.AnnualizedReturnPct = (math.Pow(final/initialCash, 1/years) - 1) * 100
	}

	// Single forward pass over the curve tracking the running peak.
	peak := equity[0].Equity
	for _, p := range equity {
		if p.Equity > peak {
			peak = p.Equity
		}
		dd := peak - p.Equity
		if dd > m.MaxDrawdown {
			m.MaxDrawdown = dd
			if peak > 0 {
				m.MaxDrawdownPct = dd / peak * 100
			}
		}
	}

	daily := dailyReturns(equity)
	if sd := stdev(daily); sd > 0 {
		m.VolatilityPct = sd * math.Sqrt(tradingDaysPerYear) * 100

		sharpe := (m.AnnualizedReturnPct - mc.RiskFreeRatePct) / m.VolatilityPct
		m.SharpeRatio = &sharpe
	}

	if dd := downsideDeviation(daily, mc.RiskFreeRatePct/100/tradingDaysPerYear); dd > 0 {
		annDownside := dd * math.Sqrt(tradingDaysPerYear) * 100
		sortino := (m.AnnualizedReturnPct - mc.RiskFreeRatePct) / annDownside
		m.SortinoRatio = &sortino
	}

	if m.MaxDrawdownPct > 0 {
		calmar := m.AnnualizedReturnPct / m.MaxDrawdownPct
		m.CalmarRatio = &calmar
	}
}

func (mc *MetricsCalculator) fillTradeStats(m *PerformanceMetrics, trades []Trade) {
	m.TotalTrades = len(trades)
	if len(trades) == 0 {
		return
	}

	var grossProfit, grossLoss float64
	var winStreak, lossStreak int
	for _, t := range trades {
		m.TotalFees += t.Fees
		switch {
		case t.Pnl > 0:
			m.WinningTrades++
			grossProfit += t.Pnl
			winStreak++
			lossStreak = 0
			if t.Pnl > m.LargestWin {
				m.LargestWin = t.Pnl
			}
		case t.Pnl < 0:
			m.LosingTrades++
			grossLoss += -t.Pnl
			lossStreak++
			winStreak = 0
			if t.Pnl < m.LargestLoss {
				m.LargestLoss = t.Pnl
			}
		default:
			winStreak = 0
			lossStreak = 0
		}
		if winStreak > m.MaxConsecutiveWins {
			m.MaxConsecutiveWins = winStreak
		}
		if lossStreak > m.MaxConsecutiveLosses {
			m.MaxConsecutiveLosses = lossStreak
		}
	}

	m.WinRatePct = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
	if m.WinningTrades > 0 {
		m.AvgWin = grossProfit / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AvgLoss = -grossLoss / float64(m.LosingTrades)
	}
	if grossLoss > 0 {
		pf := grossProfit / grossLoss
		m.ProfitFactor = &pf
	}
}

// dailyReturns collapses the equity curve to one sample per calendar day and
// returns day-over-day percentage changes.
func dailyReturns(equity []EquityPoint) []float64 {
	var closes []float64
	lastDate := ""
	for _, p := range equity {
		date := p.Timestamp.UTC().Format("2006-01-02")
		if date == lastDate {
			closes[len(closes)-1] = p.Equity
			continue
		}
		closes = append(closes, p.Equity)
		lastDate = date
	}

	var returns []float64
	for i := 1; i < len(closes); i++ {
		if closes[i-1] != 0 {
			returns = append(returns, closes[i]/closes[i-1]-1)
		}
	}
	return returns
}

// stdev is the sample standard deviation (ddof=1).
func stdev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	ss := 0.0
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// downsideDeviation measures dispersion of returns below the daily risk-free
// rate, clamping positive excess returns to zero.
func downsideDeviation(xs []float64, dailyRiskFree float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	ss := 0.0
	for _, x := range xs {
		d := math.Min(0, x-dailyRiskFree)
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// tradeDuration is a small helper kept close to the metrics that consume it.
func tradeDuration(entry, exit time.Time) time.Duration {
	if exit.Before(entry) {
		return 0
	}
	return exit.Sub(entry)
}
