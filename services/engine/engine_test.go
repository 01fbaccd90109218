package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptStrategy drives the engine from test callbacks.
type scriptStrategy struct {
	ctx     StrategyContext
	onBar   func(ctx StrategyContext, candle Candle, tick int)
	updates []*Order
	bars    int
}

func (s *scriptStrategy) Initialize(ctx StrategyContext, _ map[string]string) error {
	s.ctx = ctx
	return nil
}

func (s *scriptStrategy) OnBar(candle Candle) {
	s.bars++
	if s.onBar != nil {
		s.onBar(s.ctx, candle, s.bars)
	}
}

func (s *scriptStrategy) OnOrderUpdate(order *Order) {
	s.updates = append(s.updates, order)
}

func (s *scriptStrategy) State() map[string]any {
	return map[string]any{"bars": s.bars}
}

func minuteBars(symbol string, closes ...float64) []Candle {
	start := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	candles := make([]Candle, 0, len(closes))
	for i, c := range closes {
		candles = append(candles, Candle{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1_000_000,
			Symbol:    symbol,
		})
	}
	return candles
}

func testConfig() Config {
	return Config{
		InitialCash: 100000,
		Seed:        7,
	}
}

func TestRunRequiresStrategyAndCandles(t *testing.T) {
	e := New(testConfig())
	_, err := e.Run(minuteBars("AAPL", 100))
	assert.ErrorIs(t, err, ErrNoStrategy)

	e = New(testConfig())
	require.NoError(t, e.SetStrategy(&scriptStrategy{}, nil))
	_, err = e.Run(nil)
	assert.ErrorIs(t, err, ErrNoCandles)
}

func TestEngineServicesExactlyOneRun(t *testing.T) {
	e := New(testConfig())
	require.NoError(t, e.SetStrategy(&scriptStrategy{}, nil))

	_, err := e.Run(minuteBars("AAPL", 100, 101))
	require.NoError(t, err)

	_, err = e.Run(minuteBars("AAPL", 100, 101))
	assert.ErrorIs(t, err, ErrEngineConsumed)
}

// An order submitted while processing a bar must not fill on that bar; the
// limit buy at 99 fills on the next bar at min(99, low 97) capped by the
// touch price.
func TestLimitBuyFillsNextBarOnly(t *testing.T) {
	bars := minuteBars("AAPL", 100, 98, 102) // lows: 99, 97, 101

	strat := &scriptStrategy{}
	strat.onBar = func(ctx StrategyContext, _ Candle, tick int) {
		if tick == 1 {
			require.True(t, ctx.SubmitOrder(NewLimitOrder("AAPL", TradeSideBuy, 10, 99)))
		}
	}

	e := New(testConfig())
	require.NoError(t, e.SetStrategy(strat, nil))
	res, err := e.Run(bars)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	trade := res.Trades[0]
	assert.Equal(t, bars[1].Timestamp, trade.ExitTime, "fill must land on the bar after submission")
	assert.InDelta(t, 97.0, trade.ExitPrice, 1e-9, "limit buy executes at min(limit, low)")
	assert.InDelta(t, 100000-970, e.Portfolio().Cash, 1e-6)
}

func TestLimitSellFillPrice(t *testing.T) {
	bars := minuteBars("AAPL", 100, 100, 104) // highs: 101, 101, 105

	strat := &scriptStrategy{}
	strat.onBar = func(ctx StrategyContext, _ Candle, tick int) {
		switch tick {
		case 1:
			require.True(t, ctx.SubmitOrder(NewMarketOrder("AAPL", TradeSideBuy, 5)))
		case 2:
			require.True(t, ctx.SubmitOrder(NewLimitOrder("AAPL", TradeSideSell, 5, 103)))
		}
	}

	e := New(testConfig())
	require.NoError(t, e.SetStrategy(strat, nil))
	res, err := e.Run(bars)
	require.NoError(t, err)

	require.Len(t, res.Trades, 2)
	sell := res.Trades[1]
	assert.Equal(t, TradeSideSell, sell.Side)
	assert.InDelta(t, 105.0, sell.ExitPrice, 1e-9, "limit sell executes at max(limit, high)")
}

func TestSubmitOrderValidation(t *testing.T) {
	bars := minuteBars("AAPL", 100, 100)

	var zeroQty, noLimit, tooBig bool
	strat := &scriptStrategy{}
	strat.onBar = func(ctx StrategyContext, _ Candle, tick int) {
		if tick != 1 {
			return
		}
		zeroQty = ctx.SubmitOrder(NewMarketOrder("AAPL", TradeSideBuy, 0))
		noLimit = ctx.SubmitOrder(NewOrder("AAPL", TradeSideBuy, OrderLimit, 1, 0))
		tooBig = ctx.SubmitOrder(NewMarketOrder("AAPL", TradeSideBuy, 15))
	}

	cfg := testConfig()
	cfg.InitialCash = 1000
	e := New(cfg)
	require.NoError(t, e.SetStrategy(strat, nil))
	res, err := e.Run(bars)
	require.NoError(t, err)

	assert.False(t, zeroQty)
	assert.False(t, noLimit)
	assert.False(t, tooBig, "buy costing 1500 against 1000 cash must be rejected")
	assert.Empty(t, res.Trades)
	assert.InDelta(t, 1000.0, e.Portfolio().Cash, 1e-9, "rejection must not mutate cash")
}

func TestCancelOrder(t *testing.T) {
	bars := minuteBars("AAPL", 100, 100, 100)

	var orderID string
	strat := &scriptStrategy{}
	strat.onBar = func(ctx StrategyContext, _ Candle, tick int) {
		switch tick {
		case 1:
			order := NewLimitOrder("AAPL", TradeSideBuy, 1, 1) // never touches
			require.True(t, ctx.SubmitOrder(order))
			orderID = order.ID
		case 2:
			assert.True(t, ctx.CancelOrder(orderID))
			assert.False(t, ctx.CancelOrder(orderID), "second cancel must fail")
			assert.False(t, ctx.CancelOrder("missing"))
		}
	}

	e := New(testConfig())
	require.NoError(t, e.SetStrategy(strat, nil))
	res, err := e.Run(bars)
	require.NoError(t, err)

	assert.Empty(t, res.OpenOrders)
	require.NotEmpty(t, strat.updates)
	assert.Equal(t, OrderCancelled, strat.updates[0].Status)
	assert.False(t, strat.updates[0].CancelledAt.IsZero())
}

func TestStrategyPanicDoesNotAbortRun(t *testing.T) {
	bars := minuteBars("AAPL", 100, 101, 102, 103)

	strat := &scriptStrategy{}
	strat.onBar = func(_ StrategyContext, _ Candle, tick int) {
		if tick == 2 {
			panic("strategy bug")
		}
	}

	e := New(testConfig())
	require.NoError(t, e.SetStrategy(strat, nil))
	res, err := e.Run(bars)
	require.NoError(t, err)

	assert.Equal(t, 4, strat.bars)
	assert.Len(t, res.EquityCurve, 4, "every bar still produces an equity point")
}

func TestStopStillAssemblesResult(t *testing.T) {
	bars := minuteBars("AAPL", 100, 101, 102, 103, 104)

	e := New(testConfig())
	strat := &scriptStrategy{}
	strat.onBar = func(_ StrategyContext, _ Candle, tick int) {
		if tick == 2 {
			e.Stop()
		}
	}
	require.NoError(t, e.SetStrategy(strat, nil))

	res, err := e.Run(bars)
	require.NoError(t, err)

	assert.Equal(t, 2, strat.bars)
	assert.Len(t, res.EquityCurve, 2)
	assert.Equal(t, 5, res.TotalCandles)
}

func TestProgressCallbackFailureIsSwallowed(t *testing.T) {
	bars := minuteBars("AAPL", 100, 101, 102, 103)

	cfg := testConfig()
	cfg.ProgressInterval = 2
	e := New(cfg)
	require.NoError(t, e.SetStrategy(&scriptStrategy{}, nil))

	calls := 0
	e.SetProgressCallback(func(processed, total int) {
		calls++
		panic("broken progress sink")
	})

	_, err := e.Run(bars)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

// cash + positions value must always equal initial cash plus total pnl minus
// fees, regardless of the fill sequence.
func TestAccountingIdentity(t *testing.T) {
	closes := []float64{100, 101, 99, 102, 104, 103, 105, 101, 100, 106}
	bars := minuteBars("AAPL", closes...)

	strat := &scriptStrategy{}
	strat.onBar = func(ctx StrategyContext, _ Candle, tick int) {
		switch tick {
		case 1, 3, 5:
			ctx.SubmitOrder(NewMarketOrder("AAPL", TradeSideBuy, 10))
		case 7, 9:
			ctx.SubmitOrder(NewMarketOrder("AAPL", TradeSideSell, 12))
		}
	}

	cfg := testConfig()
	cfg.FeeBps = 5
	cfg.CommissionPerTrade = 1
	cfg.SlippageBps = 3
	e := New(cfg)
	require.NoError(t, e.SetStrategy(strat, nil))
	res, err := e.Run(bars)
	require.NoError(t, err)
	require.NotEmpty(t, res.Trades)

	pf := e.Portfolio()
	lhs := pf.Cash + pf.PositionsValue()
	rhs := cfg.InitialCash + pf.RealizedPnl() + pf.UnrealizedPnl() - pf.TotalFees
	assert.InDelta(t, rhs, lhs, 1e-6)
}

func TestDeterministicReplay(t *testing.T) {
	closes := []float64{100, 102, 98, 101, 97, 103, 99, 104, 100, 105, 96, 107}
	bars := minuteBars("AAPL", closes...)

	run := func() ([]Trade, []EquityPoint) {
		strat := &scriptStrategy{}
		strat.onBar = func(ctx StrategyContext, candle Candle, tick int) {
			if tick%3 == 1 {
				ctx.SubmitOrder(NewMarketOrder("AAPL", TradeSideBuy, 500))
			}
			if tick%4 == 0 {
				ctx.SubmitOrder(NewMarketOrder("AAPL", TradeSideSell, 300))
			}
		}
		cfg := testConfig()
		cfg.FeeBps = 10
		cfg.SlippageBps = 4
		cfg.VolumeRatio = 0.001 // force partial-fill randomness through the PRNG
		e := New(cfg)
		require.NoError(t, e.SetStrategy(strat, nil))
		res, err := e.Run(bars)
		require.NoError(t, err)
		return res.Trades, res.EquityCurve
	}

	trades1, equity1 := run()
	trades2, equity2 := run()
	assert.Equal(t, trades1, trades2)
	assert.Equal(t, equity1, equity2)
}

// Every sold unit must be classified exactly once across the delivery and
// intraday counters.
func TestSellAllocationCountsMatchSellFills(t *testing.T) {
	// Two trading days: accumulate day one, sell across both buckets day two.
	day1 := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)
	var bars []Candle
	for i, start := range []time.Time{day1, day2} {
		for j := 0; j < 3; j++ {
			px := 100.0 + float64(i+j)
			bars = append(bars, Candle{
				Timestamp: start.Add(time.Duration(j) * time.Minute),
				Open:      px, High: px + 1, Low: px - 1, Close: px,
				Volume: 1_000_000, Symbol: "AAPL",
			})
		}
	}

	strat := &scriptStrategy{}
	strat.onBar = func(ctx StrategyContext, candle Candle, tick int) {
		switch tick {
		case 1:
			ctx.SubmitOrder(NewMarketOrder("AAPL", TradeSideBuy, 10))
		case 4:
			ctx.SubmitOrder(NewMarketOrder("AAPL", TradeSideBuy, 5))
		case 5:
			// Sells 12: 10 from delivery inventory, 2 from today's buys.
			ctx.SubmitOrder(NewMarketOrder("AAPL", TradeSideSell, 12))
		}
	}

	cfg := testConfig()
	cfg.DeliveryTaxPct = 0.1
	cfg.IntradayTaxPct = 0.025
	e := New(cfg)
	require.NoError(t, e.SetStrategy(strat, nil))
	res, err := e.Run(bars)
	require.NoError(t, err)

	sellFills := 0
	for _, tr := range res.Trades {
		if tr.Side == TradeSideSell {
			sellFills++
		}
	}
	total := res.TaxSummary.DeliveryTradesCount + res.TaxSummary.IntradayTradesCount
	assert.Equal(t, 2, total, "sell spanning both buckets counts once per bucket")
	assert.GreaterOrEqual(t, total, sellFills)
	assert.Greater(t, res.TaxSummary.TotalDeliveryTax, 0.0, "overnight inventory accrues delivery tax at EOD")
	assert.Greater(t, res.TaxSummary.TotalIntradayTax, 0.0)
}
