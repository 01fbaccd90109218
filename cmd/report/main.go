// Prints saved backtest runs from the results database. With -run it shows
// one run's trades and equity extremes instead of the run list.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"gridbacktest/services/store"
)

func main() {
	dbPath := flag.String("db", "backtest_results.db", "SQLite results database")
	runID := flag.String("run", "", "Run ID to detail; empty lists all runs")
	flag.Parse()

	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(logrus.InfoLevel)

	db, err := store.Open(*dbPath)
	if err != nil {
		logrus.Fatalf("results db: %v", err)
	}

	if *runID == "" {
		listRuns(db)
		return
	}
	detailRun(db, *runID)
}

func listRuns(db *store.Store) {
	runs, err := db.Runs()
	if err != nil {
		logrus.Fatalf("list runs: %v", err)
	}
	if len(runs) == 0 {
		fmt.Println("no saved runs")
		return
	}

	fmt.Printf("%-38s %-10s %-20s %8s %8s %10s %10s\n",
		"RUN", "STRATEGY", "CREATED", "TRADES", "WIN%", "RETURN%", "MAXDD%")
	for _, r := range runs {
		fmt.Printf("%-38s %-10s %-20s %8d %8.2f %10.2f %10.2f\n",
			r.RunID, r.Strategy, r.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			r.TotalTrades, r.WinRatePct, r.TotalReturnPct, r.MaxDrawdownPct)
	}
}

func detailRun(db *store.Store, runID string) {
	trades, err := db.Trades(runID)
	if err != nil {
		logrus.Fatalf("load trades: %v", err)
	}
	curve, err := db.EquityCurve(runID)
	if err != nil {
		logrus.Fatalf("load equity curve: %v", err)
	}
	if len(trades) == 0 && len(curve) == 0 {
		logrus.Fatalf("no data for run %s", runID)
	}

	fmt.Printf("Run %s: %d trades, %d equity points\n", runID, len(trades), len(curve))
	if len(curve) > 0 {
		low, high := curve[0], curve[0]
		for _, p := range curve {
			if p.Equity < low.Equity {
				low = p
			}
			if p.Equity > high.Equity {
				high = p
			}
		}
		fmt.Printf("Equity: start %.2f, end %.2f, high %.2f, low %.2f\n",
			curve[0].Equity, curve[len(curve)-1].Equity, high.Equity, low.Equity)
	}

	for _, t := range trades {
		fmt.Printf("%-12s %-8s %-4s qty %10.4f  %10.2f -> %-10.2f pnl %10.2f fees %6.2f\n",
			t.TradeID, t.Symbol, t.Side, t.Quantity, t.EntryPrice, t.ExitPrice, t.Pnl, t.Fees)
	}
}
