// Resamples a candle CSV to a coarser interval, e.g. 5m bars into 15m bars.
// Useful for preparing inputs when the warehouse only carries the base cadence.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"gridbacktest/services/engine"
	"gridbacktest/strategies"
)

func main() {
	in := flag.String("in", "", "Input CSV (timestamp_ms,open,high,low,close,volume)")
	out := flag.String("out", "", "Output CSV path")
	src := flag.String("src", "5m", "Source cadence, minutes (e.g. 5m)")
	dst := flag.String("dst", "15m", "Target cadence, minutes (e.g. 15m)")
	symbol := flag.String("symbol", "BTCUSDT", "Symbol tag for parsing")
	flag.Parse()

	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(logrus.InfoLevel)

	if *in == "" || *out == "" {
		logrus.Fatal("-in and -out are required")
	}

	srcStep, err := parseMinutes(*src)
	if err != nil {
		logrus.Fatalf("parse -src: %v", err)
	}
	dstStep, err := parseMinutes(*dst)
	if err != nil {
		logrus.Fatalf("parse -dst: %v", err)
	}
	if dstStep%srcStep != 0 {
		logrus.Fatalf("target cadence %s must be a multiple of source %s", *dst, *src)
	}

	candles, err := strategies.LoadCSV(*in, *symbol)
	if err != nil {
		logrus.Fatalf("load candles: %v", err)
	}
	engine.SortCandles(candles)

	if gaps := engine.DetectGaps(candles, srcStep); len(gaps) > 0 {
		logrus.Warnf("input has %d gaps at source cadence; buckets spanning a gap aggregate what is present", len(gaps))
	}

	resampled := resample(candles, dstStep)
	if err := writeCSV(*out, resampled); err != nil {
		logrus.Fatalf("write output: %v", err)
	}
	logrus.Infof("resampled %d bars into %d %s buckets -> %s", len(candles), len(resampled), *dst, *out)
}

func parseMinutes(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "in") // accept "15min"
	s = strings.TrimSuffix(s, "m")
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("unsupported cadence %q, want minutes like 5m or 15m", s)
	}
	return time.Duration(n) * time.Minute, nil
}

// resample aggregates sorted candles into buckets aligned to the epoch: open
// from the first bar, close from the last, high/low extremes, volume summed.
func resample(candles []engine.Candle, step time.Duration) []engine.Candle {
	buckets := make(map[int64]*engine.Candle)
	var order []int64

	stepMs := step.Milliseconds()
	for _, c := range candles {
		key := (c.Timestamp.UnixMilli() / stepMs) * stepMs
		agg, ok := buckets[key]
		if !ok {
			nb := c
			nb.Timestamp = time.UnixMilli(key).UTC()
			buckets[key] = &nb
			order = append(order, key)
			continue
		}
		if c.High > agg.High {
			agg.High = c.High
		}
		if c.Low < agg.Low {
			agg.Low = c.Low
		}
		agg.Close = c.Close
		agg.Volume += c.Volume
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	out := make([]engine.Candle, 0, len(order))
	for _, key := range order {
		out = append(out, *buckets[key])
	}
	return out
}

func writeCSV(path string, candles []engine.Candle) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := w.WriteString("timestamp_ms,open,high,low,close,volume\n"); err != nil {
		return err
	}
	for _, c := range candles {
		line := fmt.Sprintf("%d,%.8f,%.8f,%.8f,%.8f,%.8f\n",
			c.Timestamp.UnixMilli(), c.Open, c.High, c.Low, c.Close, c.Volume)
		if _, err := w.WriteString(line); err != nil {
			return err
		}
	}
	return w.Flush()
}
