package strategies

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"gridbacktest/services/engine"
)

// LoadCSV loads candles from a CSV export with columns
// timestamp_ms,open,high,low,close,volume. Handles UTF-16 exports and BOMs;
// malformed rows are skipped rather than failing the load.
func LoadCSV(filename, symbol string) ([]engine.Candle, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(bufio.NewReader(decodeUTF(file)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	candles := make([]engine.Candle, 0, 1_000)
	lineIndex := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil || len(rec) < 6 {
			lineIndex++
			continue
		}

		if lineIndex == 0 && (strings.EqualFold(rec[0], "timestamp") || strings.EqualFold(rec[0], "timestamp_ms")) {
			lineIndex++
			continue
		}
		lineIndex++

		tsStr := strings.TrimPrefix(strings.TrimSpace(rec[0]), "\ufeff")
		tsMs, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			continue
		}

		open, err1 := decimal.NewFromString(strings.TrimSpace(rec[1]))
		high, err2 := decimal.NewFromString(strings.TrimSpace(rec[2]))
		low, err3 := decimal.NewFromString(strings.TrimSpace(rec[3]))
		closePx, err4 := decimal.NewFromString(strings.TrimSpace(rec[4]))
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			continue
		}
		volume, err := decimal.NewFromString(strings.TrimSpace(rec[5]))
		if err != nil {
			volume = decimal.Zero
		}

		candles = append(candles, engine.Candle{
			Timestamp: time.UnixMilli(tsMs).UTC(),
			Open:      open.InexactFloat64(),
			High:      high.InexactFloat64(),
			Low:       low.InexactFloat64(),
			Close:     closePx.InexactFloat64(),
			Volume:    volume.InexactFloat64(),
			Symbol:    symbol,
		})
	}

	if len(candles) == 0 {
		return nil, fmt.Errorf("no candles parsed from %s", filename)
	}
	return candles, nil
}

// decodeUTF wraps the reader with a BOM-aware UTF-16 decoder so that
// spreadsheet and warehouse exports load transparently.
func decodeUTF(r io.Reader) io.Reader {
	dec := unicode.UTF8BOM.NewDecoder()
	return transform.NewReader(r, unicode.BOMOverride(dec.Transformer))
}
