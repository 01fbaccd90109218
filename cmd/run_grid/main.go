package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"gridbacktest/services/clickhouse"
	"gridbacktest/services/config"
	"gridbacktest/services/engine"
	"gridbacktest/services/store"
	"gridbacktest/strategies"
)

func main() {
	// Flags
	cfgPath := flag.String("config", "", "Optional config.ini; flags below override it")
	csvPath := flag.String("csv", "", "Path to local CSV (timestamp_ms,open,high,low,close,volume); if set, skip ClickHouse")
	chAddr := flag.String("ch-addr", "localhost:9000", "ClickHouse native address")
	chUser := flag.String("ch-user", "backtest", "ClickHouse user")
	chPass := flag.String("ch-pass", "backtest123", "ClickHouse password")
	symbol := flag.String("symbol", "BTCUSDT", "Trading symbol")
	interval := flag.String("interval", "5m", "Candle interval")
	from := flag.String("from", "2023-01-01 00:00:00", "Start UTC (YYYY-MM-DD HH:MM:SS)")
	to := flag.String("to", "2024-01-01 00:00:00", "End UTC (YYYY-MM-DD HH:MM:SS)")

	cash := flag.Float64("cash", 100000, "Initial cash")
	feeBps := flag.Float64("fee-bps", 3, "Fee in basis points per trade value")
	slipBps := flag.Float64("slippage-bps", 2, "Base slippage in basis points")
	commission := flag.Float64("commission", 0, "Flat commission per trade")
	seed := flag.Int64("seed", 42, "Simulator random seed")

	levels := flag.Int("levels", 5, "Grid levels below the anchor price")
	spacing := flag.Float64("spacing-pct", 1.0, "Grid spacing in percent")
	orderQty := flag.Float64("order-qty", 1.0, "Quantity per grid order")

	outDB := flag.String("out-db", "backtest_results.db", "SQLite results database")
	flag.Parse()

	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(logrus.InfoLevel)

	app := config.Defaults()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			logrus.Fatalf("config: %v", err)
		}
		app = loaded
	}
	app.Engine.InitialCash = *cash
	app.Engine.FeeBps = *feeBps
	app.Engine.SlippageBps = *slipBps
	app.Engine.CommissionPerTrade = *commission
	app.Engine.Seed = *seed

	candles, err := loadCandles(app, *csvPath, *chAddr, *chUser, *chPass, *symbol, *interval, *from, *to)
	if err != nil {
		logrus.Fatalf("load candles: %v", err)
	}
	logrus.Infof("loaded %d candles for %s", len(candles), *symbol)

	strat, err := strategies.New("grid")
	if err != nil {
		logrus.Fatalf("strategy: %v", err)
	}

	eng := engine.New(app.Engine)
	params := map[string]string{
		"levels":      strconv.Itoa(*levels),
		"spacing_pct": strconv.FormatFloat(*spacing, 'f', -1, 64),
		"order_qty":   strconv.FormatFloat(*orderQty, 'f', -1, 64),
	}
	if err := eng.SetStrategy(strat, params); err != nil {
		logrus.Fatalf("strategy init: %v", err)
	}
	eng.SetProgressCallback(func(processed, total int) {
		logrus.Infof("progress: %d/%d candles", processed, total)
	})

	result, err := eng.Run(candles)
	if err != nil {
		logrus.Fatalf("run: %v", err)
	}

	printSummary(result)

	db, err := store.Open(*outDB)
	if err != nil {
		logrus.Fatalf("results db: %v", err)
	}
	if err := db.SaveResult("grid", app.Engine.InitialCash, result); err != nil {
		logrus.Fatalf("save result: %v", err)
	}
	logrus.Infof("saved run %s to %s", result.RunID, *outDB)
}

func loadCandles(app config.App, csvPath, chAddr, chUser, chPass, symbol, interval, from, to string) ([]engine.Candle, error) {
	if csvPath != "" {
		return strategies.LoadCSV(csvPath, symbol)
	}

	fromTS, err := time.Parse("2006-01-02 15:04:05", from)
	if err != nil {
		return nil, fmt.Errorf("parse -from: %w", err)
	}
	toTS, err := time.Parse("2006-01-02 15:04:05", to)
	if err != nil {
		return nil, fmt.Errorf("parse -to: %w", err)
	}

	chCfg := app.ClickHouse
	chCfg.Addr = chAddr
	chCfg.Username = chUser
	chCfg.Password = chPass
	client, err := clickhouse.NewClient(chCfg)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	return client.LoadCandles(ctx, symbol, interval, fromTS.UTC(), toTS.UTC())
}

func printSummary(res *engine.BacktestResult) {
	m := res.Metrics
	fmt.Println("\n=== BACKTEST SUMMARY ===")
	fmt.Printf("Run ID: %s\n", res.RunID)
	fmt.Printf("Candles: %d (%.2fs)\n", res.TotalCandles, res.ExecutionTime.Seconds())
	fmt.Printf("Total Trades: %d\n", m.TotalTrades)
	fmt.Printf("Win Rate: %.2f%%\n", m.WinRatePct)
	fmt.Printf("Total Return: %.2f (%.2f%%)\n", m.TotalReturn, m.TotalReturnPct)
	fmt.Printf("Annualized Return: %.2f%%\n", m.AnnualizedReturnPct)
	fmt.Printf("Max Drawdown: %.2f (%.2f%%)\n", m.MaxDrawdown, m.MaxDrawdownPct)
	if m.SharpeRatio != nil {
		fmt.Printf("Sharpe: %.2f\n", *m.SharpeRatio)
	}
	if m.ProfitFactor != nil {
		fmt.Printf("Profit Factor: %.2f\n", *m.ProfitFactor)
	}
	fmt.Printf("Fees: %.2f\n", m.TotalFees)
	fmt.Printf("Tax: %.2f (delivery %.2f, intraday %.2f)\n",
		res.TaxSummary.TotalTax, res.TaxSummary.TotalDeliveryTax, res.TaxSummary.TotalIntradayTax)
	fmt.Printf("Open Orders: %d\n", len(res.OpenOrders))
	fmt.Println("========================")
}
