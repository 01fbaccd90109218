package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func taxCalc() *TaxCalculator {
	return NewTaxCalculator(TaxConfig{DeliveryTaxPct: 0.1, IntradayTaxPct: 0.025})
}

func TestBuysAccrueNoTax(t *testing.T) {
	tc := taxCalc()
	tc.ProcessTrade("AAPL", "2024-03-04", TradeSideBuy, 100, 50)

	s := tc.Summary()
	assert.Zero(t, s.TotalTax)
	assert.Zero(t, s.DeliveryTradesCount)
	assert.Zero(t, s.IntradayTradesCount)
	assert.Equal(t, 1, s.DaysTracked)
}

func TestSameDayRoundTripIsIntraday(t *testing.T) {
	tc := taxCalc()
	tc.ProcessTrade("AAPL", "2024-03-04", TradeSideBuy, 100, 50)
	tc.ProcessTrade("AAPL", "2024-03-04", TradeSideSell, 100, 52)

	s := tc.Summary()
	assert.InDelta(t, 100*52*0.025/100, s.TotalIntradayTax, 1e-9)
	assert.Zero(t, s.TotalDeliveryTax)
	assert.Equal(t, 0, s.DeliveryTradesCount)
	assert.Equal(t, 1, s.IntradayTradesCount)

	positions := tc.DailyPositions()
	require.Len(t, positions, 1)
	assert.InDelta(t, 0.0, positions[0].ClosingQuantity, 1e-9)
}

func TestOvernightInventoryAccruesDeliveryTax(t *testing.T) {
	tc := taxCalc()
	tc.ProcessTrade("AAPL", "2024-03-04", TradeSideBuy, 100, 50)
	tc.ProcessEndOfDay("AAPL", "2024-03-04", 51)

	s := tc.Summary()
	assert.InDelta(t, 100*51*0.1/100, s.TotalDeliveryTax, 1e-9)
	assert.Zero(t, s.TotalIntradayTax)
}

func TestClosingQuantityCarriesForward(t *testing.T) {
	tc := taxCalc()
	tc.ProcessTrade("AAPL", "2024-03-04", TradeSideBuy, 100, 50)
	tc.ProcessEndOfDay("AAPL", "2024-03-04", 51)

	// First touch of the next day seeds opening from the prior close.
	tc.ProcessTrade("AAPL", "2024-03-05", TradeSideSell, 40, 53)

	positions := tc.DailyPositions()
	require.Len(t, positions, 2)
	day2 := positions[1]
	assert.Equal(t, "2024-03-05", day2.Date)
	assert.InDelta(t, 60.0, day2.OpeningQuantity, 1e-9)
	assert.InDelta(t, 60.0, day2.ClosingQuantity, 1e-9)
	assert.Equal(t, 1, day2.DeliveryTradesCount)
	assert.InDelta(t, 40*53*0.025/100, day2.IntradayTaxAccrued, 1e-9)
}

func TestSellDrainsOpeningBeforeSameDayBuys(t *testing.T) {
	tc := taxCalc()
	tc.ProcessTrade("AAPL", "2024-03-04", TradeSideBuy, 10, 50)
	tc.ProcessEndOfDay("AAPL", "2024-03-04", 50)

	tc.ProcessTrade("AAPL", "2024-03-05", TradeSideBuy, 5, 51)
	tc.ProcessTrade("AAPL", "2024-03-05", TradeSideSell, 12, 52)

	positions := tc.DailyPositions()
	require.Len(t, positions, 2)
	day2 := positions[1]

	// 10 from opening inventory, 2 from the same-day buy; both slices taxed
	// at the intraday rate but counted under separate headings.
	assert.Equal(t, 1, day2.DeliveryTradesCount)
	assert.Equal(t, 1, day2.IntradayTradesCount)
	assert.InDelta(t, 0.0, day2.OpeningQuantity, 1e-9)
	assert.InDelta(t, 3.0, day2.BoughtToday, 1e-9)
	assert.InDelta(t, 3.0, day2.ClosingQuantity, 1e-9)
	assert.InDelta(t, 12*52*0.025/100, day2.IntradayTaxAccrued, 1e-9)
}

func TestSummaryIsIdempotent(t *testing.T) {
	tc := taxCalc()
	tc.ProcessTrade("AAPL", "2024-03-04", TradeSideBuy, 100, 50)
	tc.ProcessTrade("AAPL", "2024-03-04", TradeSideSell, 50, 52)
	tc.ProcessEndOfDay("AAPL", "2024-03-04", 51)

	first := tc.Summary()
	second := tc.Summary()
	assert.Equal(t, first, second)
}

func TestBucketsAreKeyedBySymbolAndDate(t *testing.T) {
	tc := taxCalc()
	tc.ProcessTrade("AAPL", "2024-03-04", TradeSideBuy, 100, 50)
	tc.ProcessTrade("MSFT", "2024-03-04", TradeSideBuy, 10, 300)
	tc.ProcessTrade("AAPL", "2024-03-05", TradeSideBuy, 10, 51)

	positions := tc.DailyPositions()
	require.Len(t, positions, 3)
	assert.Equal(t, "AAPL", positions[0].Symbol)
	assert.Equal(t, "MSFT", positions[1].Symbol)
	assert.Equal(t, "2024-03-05", positions[2].Date)

	// MSFT carry is untouched by AAPL activity.
	assert.InDelta(t, 10.0, positions[1].ClosingQuantity, 1e-9)
}
