package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridbacktest/services/engine"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	return s
}

func sampleResult(runID string) *engine.BacktestResult {
	ts := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	return &engine.BacktestResult{
		RunID: runID,
		Trades: []engine.Trade{
			{
				ID: "trd-000001", Symbol: "AAPL", Side: engine.TradeSideSell,
				Quantity: 10, EntryTime: ts, EntryPrice: 50,
				ExitTime: ts.Add(time.Hour), ExitPrice: 55, Pnl: 50, Fees: 2,
			},
		},
		EquityCurve: []engine.EquityPoint{
			{Timestamp: ts, Equity: 100_000},
			{Timestamp: ts.Add(time.Minute), Equity: 100_050, Drawdown: 0},
		},
		TaxPositions: []engine.TaxDailyPosition{
			{Symbol: "AAPL", Date: "2024-03-04", SoldToday: 10, IntradayTaxAccrued: 0.14},
		},
		Metrics: engine.PerformanceMetrics{
			TotalReturnPct: 0.05,
			TotalTrades:    1,
			WinRatePct:     100,
			TotalFees:      2,
		},
		TaxSummary:    engine.TaxSummary{TotalIntradayTax: 0.14, TotalTax: 0.14},
		TotalCandles:  2,
		ExecutionTime: 15 * time.Millisecond,
		Manifest: engine.RunManifest{
			RunID:      runID,
			ConfigHash: "deadbeef",
			Seed:       42,
			CreatedAt:  ts,
		},
	}
}

func TestSaveAndReadBack(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.SaveResult("grid", 100_000, sampleResult("run-1")))

	runs, err := s.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	run := runs[0]
	assert.Equal(t, "run-1", run.RunID)
	assert.Equal(t, "grid", run.Strategy)
	assert.Equal(t, 1, run.TotalTrades)
	assert.InDelta(t, 100_050.0, run.FinalEquity, 1e-9)
	assert.InDelta(t, 0.14, run.TotalTax, 1e-9)
	assert.Equal(t, "deadbeef", run.ConfigHash)
	assert.Equal(t, int64(42), run.Seed)

	trades, err := s.Trades("run-1")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "trd-000001", trades[0].TradeID)
	assert.Equal(t, "SELL", trades[0].Side)
	assert.InDelta(t, 50.0, trades[0].Pnl, 1e-9)

	curve, err := s.EquityCurve("run-1")
	require.NoError(t, err)
	require.Len(t, curve, 2)
	assert.InDelta(t, 100_000.0, curve[0].Equity, 1e-9)
}

func TestRunIDIsUnique(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.SaveResult("grid", 100_000, sampleResult("run-1")))

	err := s.SaveResult("grid", 100_000, sampleResult("run-1"))
	assert.Error(t, err, "duplicate run id violates the unique index")

	// The failed transaction leaves the first run intact and nothing else.
	runs, err := s.Runs()
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestQueriesScopedToRun(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.SaveResult("grid", 100_000, sampleResult("run-1")))
	require.NoError(t, s.SaveResult("ema_trend", 100_000, sampleResult("run-2")))

	trades, err := s.Trades("run-2")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "run-2", trades[0].RunID)

	none, err := s.Trades("run-3")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestEmptyResultSavesSummaryOnly(t *testing.T) {
	s := testStore(t)
	res := &engine.BacktestResult{
		RunID:    "run-empty",
		Manifest: engine.RunManifest{RunID: "run-empty", CreatedAt: time.Now().UTC()},
	}
	require.NoError(t, s.SaveResult("grid", 100_000, res))

	runs, err := s.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Zero(t, runs[0].FinalEquity)

	trades, err := s.Trades("run-empty")
	require.NoError(t, err)
	assert.Empty(t, trades)
}
