// Package store persists finished backtest results to sqlite. Strictly
// post-run: the tick loop never touches it.
package store

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gridbacktest/services/engine"
)

// Run summarizes one completed backtest.
type Run struct {
	ID             uint   `gorm:"primaryKey"`
	RunID          string `gorm:"uniqueIndex"`
	Strategy       string
	CreatedAt      time.Time
	TotalCandles   int
	ExecutionMs    int64
	InitialCash    float64
	FinalEquity    float64
	TotalReturnPct float64
	MaxDrawdownPct float64
	WinRatePct     float64
	TotalTrades    int
	TotalTax       float64
	TotalFees      float64
	ConfigHash     string
	Seed           int64
}

// TradeRow is one executed trade of a run.
type TradeRow struct {
	ID         uint   `gorm:"primaryKey"`
	RunID      string `gorm:"index"`
	TradeID    string
	Symbol     string
	Side       string
	Quantity   float64
	EntryTime  time.Time
	EntryPrice float64
	ExitTime   time.Time
	ExitPrice  float64
	Pnl        float64
	Fees       float64
}

// EquityRow is one equity-curve sample of a run.
type EquityRow struct {
	ID          uint   `gorm:"primaryKey"`
	RunID       string `gorm:"index"`
	Timestamp   time.Time
	Equity      float64
	Drawdown    float64
	DrawdownPct float64
}

// TaxRow is one (symbol, date) tax bucket of a run.
type TaxRow struct {
	ID                 uint   `gorm:"primaryKey"`
	RunID              string `gorm:"index"`
	Symbol             string
	Date               string
	OpeningQuantity    float64
	BoughtToday        float64
	SoldToday          float64
	ClosingQuantity    float64
	DeliveryTaxAccrued float64
	IntradayTaxAccrued float64
}

type Store struct {
	db  *gorm.DB
	log *logrus.Entry
}

// Open creates or opens the sqlite database and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.AutoMigrate(&Run{}, &TradeRow{}, &EquityRow{}, &TaxRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, log: logrus.WithField("component", "store")}, nil
}

// SaveResult writes the run summary plus its trades, equity curve and tax
// buckets in one transaction.
func (s *Store) SaveResult(strategy string, initialCash float64, res *engine.BacktestResult) error {
	run := Run{
		RunID:          res.RunID,
		Strategy:       strategy,
		CreatedAt:      res.Manifest.CreatedAt,
		TotalCandles:   res.TotalCandles,
		ExecutionMs:    res.ExecutionTime.Milliseconds(),
		InitialCash:    initialCash,
		TotalReturnPct: res.Metrics.TotalReturnPct,
		MaxDrawdownPct: res.Metrics.MaxDrawdownPct,
		WinRatePct:     res.Metrics.WinRatePct,
		TotalTrades:    res.Metrics.TotalTrades,
		TotalTax:       res.TaxSummary.TotalTax,
		TotalFees:      res.Metrics.TotalFees,
		ConfigHash:     res.Manifest.ConfigHash,
		Seed:           res.Manifest.Seed,
	}
	if n := len(res.EquityCurve); n > 0 {
		run.FinalEquity = res.EquityCurve[n-1].Equity
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		trades := make([]TradeRow, 0, len(res.Trades))
		for _, t := range res.Trades {
			trades = append(trades, TradeRow{
				RunID:      res.RunID,
				TradeID:    t.ID,
				Symbol:     t.Symbol,
				Side:       string(t.Side),
				Quantity:   t.Quantity,
				EntryTime:  t.EntryTime,
				EntryPrice: t.EntryPrice,
				ExitTime:   t.ExitTime,
				ExitPrice:  t.ExitPrice,
				Pnl:        t.Pnl,
				Fees:       t.Fees,
			})
		}
		if len(trades) > 0 {
			if err := tx.CreateInBatches(trades, 500).Error; err != nil {
				return fmt.Errorf("insert trades: %w", err)
			}
		}

		points := make([]EquityRow, 0, len(res.EquityCurve))
		for _, p := range res.EquityCurve {
			points = append(points, EquityRow{
				RunID:       res.RunID,
				Timestamp:   p.Timestamp,
				Equity:      p.Equity,
				Drawdown:    p.Drawdown,
				DrawdownPct: p.DrawdownPct,
			})
		}
		if len(points) > 0 {
			if err := tx.CreateInBatches(points, 500).Error; err != nil {
				return fmt.Errorf("insert equity curve: %w", err)
			}
		}

		taxes := make([]TaxRow, 0, len(res.TaxPositions))
		for _, b := range res.TaxPositions {
			taxes = append(taxes, TaxRow{
				RunID:              res.RunID,
				Symbol:             b.Symbol,
				Date:               b.Date,
				OpeningQuantity:    b.OpeningQuantity,
				BoughtToday:        b.BoughtToday,
				SoldToday:          b.SoldToday,
				ClosingQuantity:    b.ClosingQuantity,
				DeliveryTaxAccrued: b.DeliveryTaxAccrued,
				IntradayTaxAccrued: b.IntradayTaxAccrued,
			})
		}
		if len(taxes) > 0 {
			if err := tx.CreateInBatches(taxes, 500).Error; err != nil {
				return fmt.Errorf("insert tax buckets: %w", err)
			}
		}
		return nil
	})
}

// Runs lists saved runs, newest first.
func (s *Store) Runs() ([]Run, error) {
	var runs []Run
	if err := s.db.Order("created_at desc").Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// Trades returns all trades of a run in execution order.
func (s *Store) Trades(runID string) ([]TradeRow, error) {
	var trades []TradeRow
	if err := s.db.Where("run_id = ?", runID).Order("id").Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}

// EquityCurve returns the persisted equity curve of a run.
func (s *Store) EquityCurve(runID string) ([]EquityRow, error) {
	var points []EquityRow
	if err := s.db.Where("run_id = ?", runID).Order("id").Find(&points).Error; err != nil {
		return nil, err
	}
	return points, nil
}
