package engine

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"
)

// Trade is a completed-execution record, one per fill. Buy fills open or add
// to inventory; sell fills realize pnl against the position's average cost.
type Trade struct {
	ID         string
	Symbol     string
	Side       TradeSide
	Quantity   float64
	EntryTime  time.Time
	EntryPrice float64
	ExitTime   time.Time
	ExitPrice  float64
	Pnl        float64
	PnlPct     float64
	Fees       float64
	Duration   time.Duration
}

// RunManifest pins down everything needed to reproduce a run.
type RunManifest struct {
	RunID         string    `json:"run_id"`
	EngineVersion string    `json:"engine_version"`
	ConfigHash    string    `json:"config_hash"`
	Seed          int64     `json:"seed"`
	CreatedAt     time.Time `json:"created_at"`
}

const engineVersion = "1.2.0"

func newManifest(runID string, cfg Config) RunManifest {
	raw, _ := json.Marshal(cfg)
	return RunManifest{
		RunID:         runID,
		EngineVersion: engineVersion,
		ConfigHash:    fmt.Sprintf("%x", sha256.Sum256(raw)),
		Seed:          cfg.Seed,
		CreatedAt:     time.Now().UTC(),
	}
}

// BacktestResult is the sole hand-off to export and visualization layers.
type BacktestResult struct {
	RunID         string
	Trades        []Trade
	OpenOrders    []*Order
	EquityCurve   []EquityPoint
	Metrics       PerformanceMetrics
	TaxSummary    TaxSummary
	TaxPositions  []TaxDailyPosition
	StrategyState map[string]any
	Events        []Event
	TotalCandles  int
	ExecutionTime time.Duration
	Manifest      RunManifest
}
