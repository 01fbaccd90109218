package engine

import "sort"

// Transaction-tax accrual across delivery and intraday inventory buckets.
//
// Shares carried overnight form the delivery bucket; a sell first draws from
// that bucket, then from shares bought the same day. Both draws are charged
// the intraday rate but counted separately, per the prevailing business rule.
// Inventory left at end of day accrues delivery tax on its closing value and
// carries forward as the next day's opening quantity.

type taxKey struct {
	Symbol string
	Date   string
}

// TaxDailyPosition tracks inventory and accrued tax for one (symbol, date).
type TaxDailyPosition struct {
	Symbol              string
	Date                string
	OpeningQuantity     float64
	BoughtToday         float64
	SoldToday           float64
	ClosingQuantity     float64
	DeliveryTaxAccrued  float64
	IntradayTaxAccrued  float64
	DeliveryTradesCount int
	IntradayTradesCount int
}

// TaxConfig holds jurisdiction rates in percent.
type TaxConfig struct {
	DeliveryTaxPct float64
	IntradayTaxPct float64
}

// TaxCalculator owns the per-(symbol, date) buckets. Buckets are created on
// the first trade of a day, seeded from the prior day's closing inventory.
type TaxCalculator struct {
	cfg     TaxConfig
	buckets map[taxKey]*TaxDailyPosition
	latest  map[string]*TaxDailyPosition // most recent bucket per symbol
}

func NewTaxCalculator(cfg TaxConfig) *TaxCalculator {
	return &TaxCalculator{
		cfg:     cfg,
		buckets: make(map[taxKey]*TaxDailyPosition),
		latest:  make(map[string]*TaxDailyPosition),
	}
}

func (tc *TaxCalculator) bucket(symbol, date string) *TaxDailyPosition {
	key := taxKey{Symbol: symbol, Date: date}
	if b, ok := tc.buckets[key]; ok {
		return b
	}

	b := &TaxDailyPosition{Symbol: symbol, Date: date}
	if prev, ok := tc.latest[symbol]; ok && prev.Date != date {
		b.OpeningQuantity = prev.ClosingQuantity
		b.ClosingQuantity = prev.ClosingQuantity
	}
	tc.buckets[key] = b
	tc.latest[symbol] = b
	return b
}

// ProcessTrade routes one fill into the day's bucket. Buys accrue no tax;
// sells are allocated first against opening (delivery) inventory, then
// against same-day buys, each slice taxed independently.
func (tc *TaxCalculator) ProcessTrade(symbol, date string, side TradeSide, qty, price float64) {
	b := tc.bucket(symbol, date)

	if side == TradeSideBuy {
		b.BoughtToday += qty
		b.ClosingQuantity += qty
		return
	}

	b.SoldToday += qty
	remaining := qty

	// Delivery shares sold today: transaction cost at the intraday rate.
	if b.OpeningQuantity > epsilon && remaining > epsilon {
		take := remaining
		if take > b.OpeningQuantity {
			take = b.OpeningQuantity
		}
		b.IntradayTaxAccrued += take * price * tc.cfg.IntradayTaxPct / 100
		b.OpeningQuantity -= take
		b.ClosingQuantity -= take
		b.DeliveryTradesCount++
		remaining -= take
	}

	// Same-day round trip.
	if remaining > epsilon {
		take := remaining
		if take > b.BoughtToday {
			take = b.BoughtToday
		}
		b.IntradayTaxAccrued += take * price * tc.cfg.IntradayTaxPct / 100
		b.BoughtToday -= take
		b.ClosingQuantity -= take
		b.IntradayTradesCount++
	}
}

// ProcessEndOfDay accrues delivery tax on inventory held at the close. The
// closing quantity carries into the next day's bucket on its first trade.
func (tc *TaxCalculator) ProcessEndOfDay(symbol, date string, lastPrice float64) {
	b := tc.bucket(symbol, date)
	if b.ClosingQuantity > epsilon {
		b.DeliveryTaxAccrued += b.ClosingQuantity * lastPrice * tc.cfg.DeliveryTaxPct / 100
	}
}

// TaxSummary aggregates accruals across all buckets.
type TaxSummary struct {
	TotalDeliveryTax    float64
	TotalIntradayTax    float64
	TotalTax            float64
	DeliveryTradesCount int
	IntradayTradesCount int
	DaysTracked         int
}

// Summary recomputes totals from the buckets; calling it repeatedly never
// double counts.
func (tc *TaxCalculator) Summary() TaxSummary {
	var s TaxSummary
	for _, b := range tc.buckets {
		s.TotalDeliveryTax += b.DeliveryTaxAccrued
		s.TotalIntradayTax += b.IntradayTaxAccrued
		s.DeliveryTradesCount += b.DeliveryTradesCount
		s.IntradayTradesCount += b.IntradayTradesCount
	}
	s.TotalTax = s.TotalDeliveryTax + s.TotalIntradayTax
	s.DaysTracked = len(tc.buckets)
	return s
}

// DailyPositions returns a copy of all tracked buckets ordered by date then
// symbol.
func (tc *TaxCalculator) DailyPositions() []TaxDailyPosition {
	out := make([]TaxDailyPosition, 0, len(tc.buckets))
	for _, b := range tc.buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}
