package feed

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/quantframe/decision-engine/pkg/types"
)

// ReplayFeed serves a recorded primary-timeframe series as all four feed
// roles, so the engine can run against historical data without a host
// platform. A cursor marks the current bar; Advance steps it forward one
// bar per evaluation cycle. Higher timeframes are resampled from the
// primary series on demand.
type ReplayFeed struct {
	primary types.Timeframe
	bars    []types.OHLCV // chronological
	cursor  int

	adxPeriod    int
	atrPeriod    int
	atrMeanSpan  int
	startEquity  float64
	equityOffset float64
}

// NewReplayFeed creates a replay feed over chronological bars. The cursor
// starts at minStart so early cycles see enough history.
func NewReplayFeed(primary types.Timeframe, bars []types.OHLCV, minStart int, startEquity float64) *ReplayFeed {
	if minStart > len(bars) {
		minStart = len(bars)
	}
	return &ReplayFeed{
		primary:     primary,
		bars:        bars,
		cursor:      minStart,
		adxPeriod:   14,
		atrPeriod:   14,
		atrMeanSpan: 20,
		startEquity: startEquity,
	}
}

// Advance moves the cursor one bar forward. Returns false when the series
// is exhausted.
func (f *ReplayFeed) Advance() bool {
	if f.cursor >= len(f.bars) {
		return false
	}
	f.cursor++
	return f.cursor <= len(f.bars)
}

// CurrentPrice returns the close of the bar under the cursor.
func (f *ReplayFeed) CurrentPrice() float64 {
	if f.cursor == 0 {
		return 0
	}
	return f.bars[f.cursor-1].Close
}

// visible returns the chronological window for a timeframe up to the
// cursor.
func (f *ReplayFeed) visible(tf types.Timeframe) []types.OHLCV {
	window := f.bars[:f.cursor]
	ratio := int(tf.Duration() / f.primary.Duration())
	return resample(window, ratio)
}

// Ready implements IndicatorFeed.
func (f *ReplayFeed) Ready(tf types.Timeframe, minBars int) bool {
	return len(f.visible(tf)) >= minBars
}

// TrendStrength implements IndicatorFeed.
func (f *ReplayFeed) TrendStrength(tf types.Timeframe) (float64, error) {
	adx, _, _, err := wilderADX(f.visible(tf), f.adxPeriod)
	return adx, err
}

// Directional implements IndicatorFeed.
func (f *ReplayFeed) Directional(tf types.Timeframe) (float64, float64, error) {
	_, plusDI, minusDI, err := wilderADX(f.visible(tf), f.adxPeriod)
	return plusDI, minusDI, err
}

// Volatility implements IndicatorFeed.
func (f *ReplayFeed) Volatility(tf types.Timeframe) (float64, float64, error) {
	bars := f.visible(tf)
	atr, err := wilderATR(bars, f.atrPeriod)
	if err != nil {
		return 0, 0, err
	}
	series, err := wilderATRSeries(bars, f.atrPeriod)
	if err != nil {
		return 0, 0, err
	}
	span := f.atrMeanSpan
	if span > len(series) {
		span = len(series)
	}
	var sum float64
	for _, v := range series[len(series)-span:] {
		sum += v
	}
	return atr, sum / float64(span), nil
}

// Bars implements BarFeed: newest-first, per the host convention.
func (f *ReplayFeed) Bars(tf types.Timeframe, count int) ([]types.OHLCV, error) {
	visible := f.visible(tf)
	if len(visible) == 0 {
		return nil, ErrNotReady
	}
	if count > len(visible) {
		count = len(visible)
	}
	return types.Reversed(visible[len(visible)-count:]), nil
}

// Snapshot implements AccountFeed with a flat simulated account.
func (f *ReplayFeed) Snapshot() (types.AccountSnapshot, error) {
	equity := f.startEquity + f.equityOffset
	return types.AccountSnapshot{
		Equity:    equity,
		Balance:   equity,
		Timestamp: time.Now(),
	}, nil
}

// AdjustEquity shifts the simulated equity, letting replay scenarios
// exercise the drawdown guard.
func (f *ReplayFeed) AdjustEquity(delta float64) {
	f.equityOffset += delta
}

// csvColumns is the fixed column layout for recorded bar files:
// timestamp,open,high,low,close,volume with an optional header row.
const csvColumns = 6

// LoadCSVBars reads a chronological bar series from a CSV file. Timestamps
// may be unix seconds or "2006-01-02 15:04:05".
func LoadCSVBars(path string) ([]types.OHLCV, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("feed: open bar file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	var bars []types.OHLCV
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("feed: read bar file line %d: %w", line+1, err)
		}
		line++
		if len(record) < csvColumns {
			return nil, fmt.Errorf("feed: bar file line %d has %d columns, need %d", line, len(record), csvColumns)
		}

		ts, err := parseTimestamp(record[0])
		if err != nil {
			if line == 1 {
				continue // header row
			}
			return nil, fmt.Errorf("feed: bar file line %d: %w", line, err)
		}

		values := make([]float64, 5)
		for i := 0; i < 5; i++ {
			v, err := strconv.ParseFloat(record[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("feed: bar file line %d column %d: %w", line, i+2, err)
			}
			values[i] = v
		}

		bars = append(bars, types.OHLCV{
			Timestamp: ts,
			Open:      values[0],
			High:      values[1],
			Low:       values[2],
			Close:     values[3],
			Volume:    values[4],
		})
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("feed: bar file %s contains no data rows", path)
	}
	return bars, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	if ts, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
