package engine

import (
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Engine replays a time-ordered candle sequence through one strategy,
// simulating execution against a cash/position ledger. Strictly sequential:
// equity, tax buckets and fills are all order-dependent, so one instance
// services exactly one run. Concurrent runs need separate instances.
type Engine struct {
	cfg       Config
	log       *logrus.Entry
	sim       *OrderSimulator
	portfolio *Portfolio
	tax       *TaxCalculator
	metrics   *MetricsCalculator
	strategy  Strategy

	activeOrders []*Order
	orderIndex   map[string]*Order
	orderHistory []*Order
	trades       []Trade
	events       EventLog

	runID       string
	tick        int
	currentTime time.Time
	current     Candle
	lastClose   map[string]float64
	fillsByDate map[string]map[string]bool

	stopFlag   atomic.Bool
	consumed   bool
	orderSeq   int
	progressFn func(processed, total int)
}

func New(cfg Config) *Engine {
	cfg = cfg.withDefaults()
	runID := uuid.NewString()
	return &Engine{
		cfg:         cfg,
		log:         logrus.WithField("run_id", runID),
		sim:         NewOrderSimulator(cfg.simulatorConfig()),
		portfolio:   NewPortfolio(cfg.InitialCash),
		tax:         NewTaxCalculator(cfg.taxConfig()),
		metrics:     NewMetricsCalculator(cfg.RiskFreeRatePct),
		orderIndex:  make(map[string]*Order),
		lastClose:   make(map[string]float64),
		fillsByDate: make(map[string]map[string]bool),
		runID:       runID,
	}
}

// RunID identifies this engine instance and its single run.
func (e *Engine) RunID() string { return e.runID }

// SetStrategy attaches and initializes the strategy for this run.
func (e *Engine) SetStrategy(s Strategy, params map[string]string) error {
	if err := s.Initialize(e, params); err != nil {
		return fmt.Errorf("strategy init: %w", err)
	}
	e.strategy = s
	return nil
}

// SetProgressCallback registers a cadence callback. It must not mutate
// simulation state; a panicking callback is swallowed and logged.
func (e *Engine) SetProgressCallback(fn func(processed, total int)) {
	e.progressFn = fn
}

// Stop requests cooperative cancellation. The loop checks the flag once per
// tick; end-of-day settlement and result assembly still run over whatever
// history was accumulated.
func (e *Engine) Stop() {
	e.stopFlag.Store(true)
}

// Run executes the backtest over the candle sequence and assembles the
// result. Candles are sorted by timestamp first; fills never occur on the
// bar an order was submitted on.
func (e *Engine) Run(candles []Candle) (*BacktestResult, error) {
	if e.strategy == nil {
		return nil, ErrNoStrategy
	}
	if len(candles) == 0 {
		return nil, ErrNoCandles
	}
	if e.consumed {
		return nil, ErrEngineConsumed
	}
	e.consumed = true

	started := time.Now()
	sorted := make([]Candle, len(candles))
	copy(sorted, candles)
	SortCandles(sorted)

	prevDate := ""
	for i, candle := range sorted {
		if e.stopFlag.Load() {
			e.events.Queue(Event{Ts: e.currentTime, Type: EventRunStopped})
			e.events.Drain()
			break
		}

		date := candle.Date()
		if prevDate != "" && date != prevDate {
			e.settleEndOfDay(prevDate)
		}
		prevDate = date

		e.tick++
		e.currentTime = candle.Timestamp
		e.current = candle

		e.portfolio.UpdatePrices(candle)
		e.lastClose[candle.Symbol] = candle.Close

		// First pass: orders submitted on earlier bars.
		e.processFills(candle)

		e.safeOnBar(candle)

		// Second pass for orders submitted during OnBar. The same exclusion
		// applies, so nothing fills on its own submission bar; this pass
		// exists to sweep cancelled orders and earlier partial fills.
		e.processFills(candle)

		e.events.Drain()

		if e.progressFn != nil && (i+1)%e.cfg.ProgressInterval == 0 {
			e.safeProgress(i+1, len(sorted))
		}
	}

	if prevDate != "" {
		e.settleEndOfDay(prevDate)
	}
	e.events.Drain()

	return e.buildResult(len(sorted), time.Since(started)), nil
}

// SubmitOrder validates and admits an order. Rejections return false and
// mutate nothing.
func (e *Engine) SubmitOrder(order *Order) bool {
	if order == nil || order.Quantity <= 0 {
		e.log.Warn("order rejected: non-positive quantity")
		return false
	}
	if order.Type == OrderLimit && order.LimitPrice <= 0 {
		e.log.WithField("symbol", order.Symbol).Warn("order rejected: limit order without price")
		return false
	}
	if order.Action == TradeSideBuy {
		estimate := e.estimatePrice(order)
		if order.Quantity*estimate > e.portfolio.Cash+epsilon {
			e.log.WithFields(logrus.Fields{
				"symbol": order.Symbol,
				"cost":   order.Quantity * estimate,
				"cash":   e.portfolio.Cash,
			}).Warn("order rejected: insufficient funds")
			return false
		}
	}

	if order.ID == "" {
		e.orderSeq++
		order.ID = fmt.Sprintf("ord-%06d", e.orderSeq)
	}
	order.Status = OrderSubmitted
	order.CreatedAt = e.currentTime
	order.SubmittedAt = e.currentTime
	e.activeOrders = append(e.activeOrders, order)
	e.orderIndex[order.ID] = order
	e.events.Queue(Event{Ts: e.currentTime, Type: EventOrderSubmitted, Symbol: order.Symbol, OrderID: order.ID})
	return true
}

// CancelOrder cancels an active order. Removal from the active set is left
// to the next fill-processing pass.
func (e *Engine) CancelOrder(orderID string) bool {
	order, ok := e.orderIndex[orderID]
	if !ok || !order.IsActive() {
		return false
	}
	order.Status = OrderCancelled
	order.CancelledAt = e.currentTime
	e.events.Queue(Event{Ts: e.currentTime, Type: EventOrderCancelled, Symbol: order.Symbol, OrderID: orderID})
	e.safeOnOrderUpdate(order)
	return true
}

// CurrentTick returns the number of processed bars.
func (e *Engine) CurrentTick() int { return e.tick }

// TickInfo snapshots the simulation clock.
func (e *Engine) TickInfo() TickInfo {
	return TickInfo{
		Tick:      e.tick,
		Timestamp: e.currentTime,
		Symbol:    e.current.Symbol,
		Close:     e.current.Close,
	}
}

// Portfolio exposes the ledger for read-only inspection.
func (e *Engine) Portfolio() *Portfolio { return e.portfolio }

// estimatePrice picks the affordability estimate for a buy: the limit price
// when present, else the last known price, else the configured default.
func (e *Engine) estimatePrice(order *Order) float64 {
	if order.Type == OrderLimit {
		return order.LimitPrice
	}
	if last, ok := e.lastClose[order.Symbol]; ok && last > 0 {
		return last
	}
	return e.cfg.DefaultPrice
}

// processFills attempts execution for every active order against the bar.
// Orders whose submission timestamp is not strictly before the bar are
// excluded -- the one-tick delay that prevents look-ahead.
func (e *Engine) processFills(candle Candle) {
	current := e.activeOrders
	// Callbacks fired during fills may submit new orders; they land in a
	// fresh slice and are appended after the sweep.
	e.activeOrders = nil

	var kept []*Order
	for _, order := range current {
		if order.IsTerminal() {
			continue // cancelled or rejected since the last sweep
		}
		if order.Symbol != candle.Symbol || !order.SubmittedAt.Before(candle.Timestamp) {
			kept = append(kept, order)
			continue
		}

		fill := e.sim.SimulateExecution(order, candle)
		if fill == nil {
			kept = append(kept, order)
			continue
		}

		e.applyFill(order, fill)
		if !order.IsTerminal() {
			kept = append(kept, order)
		}
	}
	e.activeOrders = append(kept, e.activeOrders...)
}

// applyFill books one execution: commission, ledger mutation, order state,
// strategy notification, trade derivation and tax routing. A ledger
// rejection marks the order REJECTED and the run continues.
func (e *Engine) applyFill(order *Order, fill *Fill) {
	commission := round2(fill.Quantity*fill.Price*e.cfg.FeeBps/10000 + e.cfg.CommissionPerTrade)

	// Snapshot entry data before the ledger mutates it (for sell trades).
	var entryPrice float64
	var entryTime time.Time
	if pos, ok := e.portfolio.Positions[order.Symbol]; ok {
		entryPrice = pos.AvgPrice
		entryTime = pos.OpenedAt
	}

	err := e.portfolio.ExecuteOrder(order.Symbol, order.Action, fill.Quantity, fill.Price, commission, fill.Timestamp)
	if err != nil {
		order.Status = OrderRejected
		e.orderHistory = append(e.orderHistory, order)
		e.events.Queue(Event{Ts: fill.Timestamp, Type: EventOrderRejected, Symbol: order.Symbol, OrderID: order.ID, Detail: err.Error()})
		e.log.WithFields(logrus.Fields{"order_id": order.ID, "err": err}).Warn("fill rejected by portfolio")
		return
	}

	order.recordFill(fill.Quantity, fill.Price, fill.Timestamp)
	if order.Status == OrderFilled {
		e.orderHistory = append(e.orderHistory, order)
		e.events.Queue(Event{Ts: fill.Timestamp, Type: EventOrderFilled, Symbol: order.Symbol, OrderID: order.ID})
	} else {
		e.events.Queue(Event{Ts: fill.Timestamp, Type: EventOrderPartial, Symbol: order.Symbol, OrderID: order.ID})
	}

	e.safeOnOrderUpdate(order)

	trade := e.deriveTrade(order, fill, commission, entryPrice, entryTime)
	e.trades = append(e.trades, trade)
	e.tax.ProcessTrade(order.Symbol, fill.Timestamp.UTC().Format("2006-01-02"), order.Action, fill.Quantity, fill.Price)
	e.markFill(order.Symbol, fill.Timestamp)
}

// deriveTrade turns a fill into a reportable trade. Sells realize pnl
// against the position's pre-fill average cost; buys open inventory and
// carry only their fees.
func (e *Engine) deriveTrade(order *Order, fill *Fill, commission, entryPrice float64, entryTime time.Time) Trade {
	trade := Trade{
		ID:        fmt.Sprintf("%s-%d", order.ID, len(e.trades)+1),
		Symbol:    order.Symbol,
		Side:      order.Action,
		Quantity:  fill.Quantity,
		ExitTime:  fill.Timestamp,
		ExitPrice: fill.Price,
		Fees:      commission,
	}
	if order.Action == TradeSideSell && entryPrice > 0 {
		trade.EntryTime = entryTime
		trade.EntryPrice = entryPrice
		trade.Pnl = (fill.Price-entryPrice)*fill.Quantity - commission
		trade.PnlPct = (fill.Price - entryPrice) / entryPrice * 100
		trade.Duration = tradeDuration(entryTime, fill.Timestamp)
	} else {
		trade.EntryTime = fill.Timestamp
		trade.EntryPrice = fill.Price
	}
	return trade
}

func (e *Engine) markFill(symbol string, ts time.Time) {
	date := ts.UTC().Format("2006-01-02")
	if e.fillsByDate[date] == nil {
		e.fillsByDate[date] = make(map[string]bool)
	}
	e.fillsByDate[date][symbol] = true
}

// settleEndOfDay accrues delivery tax for every symbol that traded on the
// date, at that symbol's last seen close.
func (e *Engine) settleEndOfDay(date string) {
	symbols := e.fillsByDate[date]
	for _, symbol := range sortedKeys(symbols) {
		e.tax.ProcessEndOfDay(symbol, date, e.lastClose[symbol])
		e.events.Queue(Event{Ts: e.currentTime, Type: EventEndOfDay, Symbol: symbol, Detail: date})
	}
}

func (e *Engine) buildResult(totalCandles int, elapsed time.Duration) *BacktestResult {
	var open []*Order
	for _, order := range e.activeOrders {
		if order.IsActive() {
			open = append(open, order)
		}
	}

	return &BacktestResult{
		RunID:         e.runID,
		Trades:        e.trades,
		OpenOrders:    open,
		EquityCurve:   e.portfolio.EquityCurve,
		Metrics:       e.metrics.Calculate(e.cfg.InitialCash, e.trades, e.portfolio.EquityCurve),
		TaxSummary:    e.tax.Summary(),
		TaxPositions:  e.tax.DailyPositions(),
		StrategyState: e.strategy.State(),
		Events:        e.events.Events,
		TotalCandles:  totalCandles,
		ExecutionTime: elapsed,
		Manifest:      newManifest(e.runID, e.cfg),
	}
}

// safeOnBar shields the tick loop from a panicking strategy: the bar's
// market-data and fill processing still complete.
func (e *Engine) safeOnBar(candle Candle) {
	defer func() {
		if r := recover(); r != nil {
			e.log.WithFields(logrus.Fields{"tick": e.tick, "panic": r}).Error("strategy OnBar panicked")
		}
	}()
	e.strategy.OnBar(candle)
}

func (e *Engine) safeOnOrderUpdate(order *Order) {
	defer func() {
		if r := recover(); r != nil {
			e.log.WithFields(logrus.Fields{"order_id": order.ID, "panic": r}).Error("strategy OnOrderUpdate panicked")
		}
	}()
	e.strategy.OnOrderUpdate(order)
}

func (e *Engine) safeProgress(processed, total int) {
	defer func() {
		if r := recover(); r != nil {
			e.log.WithField("panic", r).Warn("progress callback panicked")
		}
	}()
	e.progressFn(processed, total)
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
