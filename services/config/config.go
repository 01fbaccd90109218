// Package config loads application settings from an ini file. The engine
// itself only sees the flat engine.Config; this layer owns file parsing and
// defaults.
package config

import (
	"fmt"

	"gopkg.in/ini.v1"

	"gridbacktest/services/clickhouse"
	"gridbacktest/services/engine"
)

// App is the full application configuration.
type App struct {
	Engine     engine.Config
	ClickHouse clickhouse.Config
	DBPath     string
	Symbol     string
	Interval   string
}

// Defaults returns the configuration used when no ini file is present.
func Defaults() App {
	return App{
		Engine: engine.Config{
			InitialCash:        100000,
			FeeBps:             3,
			SlippageBps:        2,
			CommissionPerTrade: 0,
			DeliveryTaxPct:     0.1,
			IntradayTaxPct:     0.025,
			DefaultPrice:       100.0,
		},
		DBPath:   "backtest_results.db",
		Symbol:   "BTCUSDT",
		Interval: "5m",
	}
}

// Load reads the ini file and overlays it on the defaults.
func Load(path string) (App, error) {
	app := Defaults()

	file, err := ini.Load(path)
	if err != nil {
		return app, fmt.Errorf("load config %s: %w", path, err)
	}

	eng := file.Section("engine")
	app.Engine.InitialCash = eng.Key("initial_cash").MustFloat64(app.Engine.InitialCash)
	app.Engine.FeeBps = eng.Key("fee_bps").MustFloat64(app.Engine.FeeBps)
	app.Engine.SlippageBps = eng.Key("slippage_bps").MustFloat64(app.Engine.SlippageBps)
	app.Engine.CommissionPerTrade = eng.Key("commission_per_trade").MustFloat64(app.Engine.CommissionPerTrade)
	app.Engine.Seed = eng.Key("seed").MustInt64(app.Engine.Seed)
	app.Engine.VolumeRatio = eng.Key("volume_ratio").MustFloat64(app.Engine.VolumeRatio)
	app.Engine.MinFillRatio = eng.Key("min_fill_ratio").MustFloat64(app.Engine.MinFillRatio)
	app.Engine.MaxFillRatio = eng.Key("max_fill_ratio").MustFloat64(app.Engine.MaxFillRatio)
	app.Engine.DeliveryTaxPct = eng.Key("delivery_tax_pct").MustFloat64(app.Engine.DeliveryTaxPct)
	app.Engine.IntradayTaxPct = eng.Key("intraday_tax_pct").MustFloat64(app.Engine.IntradayTaxPct)
	app.Engine.RiskFreeRatePct = eng.Key("risk_free_rate_pct").MustFloat64(app.Engine.RiskFreeRatePct)
	app.Engine.DefaultPrice = eng.Key("default_price").MustFloat64(app.Engine.DefaultPrice)

	ch := file.Section("clickhouse")
	app.ClickHouse.Addr = ch.Key("addr").String()
	app.ClickHouse.Database = ch.Key("database").String()
	app.ClickHouse.Table = ch.Key("table").String()
	app.ClickHouse.Username = ch.Key("user").String()
	app.ClickHouse.Password = ch.Key("password").String()

	db := file.Section("db")
	app.DBPath = db.Key("path").MustString(app.DBPath)

	run := file.Section("run")
	app.Symbol = run.Key("symbol").MustString(app.Symbol)
	app.Interval = run.Key("interval").MustString(app.Interval)

	return app, nil
}
