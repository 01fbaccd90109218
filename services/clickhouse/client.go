// Package clickhouse loads candle history from the warehouse the ingestion
// service maintains. Read-only: ingestion itself lives elsewhere.
package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/sirupsen/logrus"

	"gridbacktest/services/engine"
)

type Config struct {
	Addr     string
	Database string
	Table    string
	Username string
	Password string
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = "localhost:9000"
	}
	if c.Database == "" {
		c.Database = "backtest"
	}
	if c.Table == "" {
		c.Table = "data"
	}
	return c
}

// Client wraps a native-protocol ClickHouse connection.
type Client struct {
	conn clickhouse.Conn
	cfg  Config
	log  *logrus.Entry
}

func NewClient(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	return &Client{
		conn: conn,
		cfg:  cfg,
		log:  logrus.WithField("component", "clickhouse"),
	}, nil
}

// LoadCandles reads bars for one symbol/interval window, ordered by open
// time. Gaps are logged, not repaired; gap handling belongs to ingestion.
func (c *Client) LoadCandles(ctx context.Context, symbol, interval string, from, to time.Time) ([]engine.Candle, error) {
	query := fmt.Sprintf(`
		SELECT open_time_ms, open, high, low, close, volume
		FROM %s.%s
		WHERE symbol = ? AND interval = ?
		  AND open_time_ms >= ? AND open_time_ms < ?
		ORDER BY open_time_ms`, c.cfg.Database, c.cfg.Table)

	rows, err := c.conn.Query(ctx, query, symbol, interval, uint64(from.UnixMilli()), uint64(to.UnixMilli()))
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	var candles []engine.Candle
	for rows.Next() {
		var (
			openTimeMs                     uint64
			open, high, low, close, volume float64
		)
		if err := rows.Scan(&openTimeMs, &open, &high, &low, &close, &volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		candles = append(candles, engine.Candle{
			Timestamp: time.UnixMilli(int64(openTimeMs)).UTC(),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    volume,
			Symbol:    symbol,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candles: %w", err)
	}

	if step, ok := intervalStep(interval); ok {
		if gaps := engine.DetectGaps(candles, step); len(gaps) > 0 {
			c.log.WithFields(logrus.Fields{
				"symbol": symbol,
				"gaps":   len(gaps),
				"first":  gaps[0],
			}).Warn("candle series has gaps")
		}
	}
	return candles, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func intervalStep(interval string) (time.Duration, bool) {
	switch interval {
	case "1m":
		return time.Minute, true
	case "5m":
		return 5 * time.Minute, true
	case "15m":
		return 15 * time.Minute, true
	case "1h":
		return time.Hour, true
	case "1d":
		return 24 * time.Hour, true
	}
	return 0, false
}
