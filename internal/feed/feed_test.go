package feed

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantframe/decision-engine/pkg/types"
)

// fakeIndicatorFeed serves canned values and flips ready after a number of
// checks.
type fakeIndicatorFeed struct {
	readyAfter int
	checks     int
}

func (f *fakeIndicatorFeed) Ready(tf types.Timeframe, minBars int) bool {
	f.checks++
	return f.checks > f.readyAfter
}

func (f *fakeIndicatorFeed) TrendStrength(tf types.Timeframe) (float64, error) {
	return 27.0, nil
}

func (f *fakeIndicatorFeed) Directional(tf types.Timeframe) (float64, float64, error) {
	return 24.0, 11.0, nil
}

func (f *fakeIndicatorFeed) Volatility(tf types.Timeframe) (float64, float64, error) {
	return 1.4, 1.2, nil
}

func TestReadinessPoller_Collect(t *testing.T) {
	tfs := []types.Timeframe{types.TimeframeH1, types.TimeframeH4, types.TimeframeD1}
	p := NewReadinessPoller(&fakeIndicatorFeed{}, tfs, 100, time.Second, zerolog.Nop())

	r, err := p.Collect(types.TimeframeH1, [2]types.Timeframe{types.TimeframeH4, types.TimeframeD1})
	require.NoError(t, err)
	assert.Equal(t, 27.0, r.TrendStrength[types.TimeframeH1])
	assert.Equal(t, 24.0, r.PlusDI)
	assert.Equal(t, 11.0, r.MinusDI)
	assert.Equal(t, 1.4, r.ATR)
	assert.Equal(t, 1.2, r.ATRAverage)
}

func TestReadinessPoller_NotReadyIsExplicit(t *testing.T) {
	tfs := []types.Timeframe{types.TimeframeH1}
	p := NewReadinessPoller(&fakeIndicatorFeed{readyAfter: 1000}, tfs, 100, time.Second, zerolog.Nop())

	assert.False(t, p.Check())
	_, err := p.Collect(types.TimeframeH1, [2]types.Timeframe{types.TimeframeH4, types.TimeframeD1})
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestReadinessPoller_WaitReadyBounded(t *testing.T) {
	tfs := []types.Timeframe{types.TimeframeH1}

	ready := NewReadinessPoller(&fakeIndicatorFeed{}, tfs, 100, time.Second, zerolog.Nop())
	assert.NoError(t, ready.WaitReady(context.Background()))

	never := NewReadinessPoller(&fakeIndicatorFeed{readyAfter: 1 << 30}, tfs, 100, 10*time.Millisecond, zerolog.Nop())
	err := never.WaitReady(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
}

func trendingBars(n int) []types.OHLCV {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]types.OHLCV, n)
	for i := 0; i < n; i++ {
		p := 100.0 + 0.3*float64(i) + 1.2*math.Sin(float64(i)*0.7)
		bars[i] = types.OHLCV{
			Open: p, High: p + 0.8, Low: p - 0.8, Close: p + 0.2,
			Volume:    1500.0,
			Timestamp: start.Add(time.Duration(i) * time.Hour),
		}
	}
	return bars
}

func TestReplayFeed_ServesAllRoles(t *testing.T) {
	f := NewReplayFeed(types.TimeframeH1, trendingBars(400), 300, 10000.0)

	require.True(t, f.Ready(types.TimeframeH1, 200))
	require.True(t, f.Ready(types.TimeframeH4, 60))

	bars, err := f.Bars(types.TimeframeH1, 50)
	require.NoError(t, err)
	require.Len(t, bars, 50)
	assert.True(t, bars[0].Timestamp.After(bars[49].Timestamp), "bar feed must be newest-first")

	adx, err := f.TrendStrength(types.TimeframeH1)
	require.NoError(t, err)
	assert.Greater(t, adx, 0.0)
	assert.LessOrEqual(t, adx, 100.0)

	plus, minus, err := f.Directional(types.TimeframeH1)
	require.NoError(t, err)
	assert.Greater(t, plus, minus, "an uptrend must show +DI above -DI")

	atr, avg, err := f.Volatility(types.TimeframeH1)
	require.NoError(t, err)
	assert.Greater(t, atr, 0.0)
	assert.Greater(t, avg, 0.0)

	acct, err := f.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 10000.0, acct.Equity)

	price := f.CurrentPrice()
	assert.Greater(t, price, 0.0)
}

func TestReplayFeed_AdvanceExhausts(t *testing.T) {
	f := NewReplayFeed(types.TimeframeH1, trendingBars(310), 300, 10000.0)

	steps := 0
	for f.Advance() {
		steps++
	}
	assert.Equal(t, 10, steps)
}

func TestLoadCSVBars(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.csv")
	content := "timestamp,open,high,low,close,volume\n" +
		"1735689600,100.0,101.0,99.0,100.5,1500\n" +
		"1735693200,100.5,102.0,100.0,101.5,1600\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	bars, err := LoadCSVBars(path)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 100.0, bars[0].Open)
	assert.Equal(t, 101.5, bars[1].Close)
	assert.True(t, bars[1].Timestamp.After(bars[0].Timestamp))

	_, err = LoadCSVBars(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(empty, []byte("timestamp,open,high,low,close,volume\n"), 0o644))
	_, err = LoadCSVBars(empty)
	assert.Error(t, err)

	if errors.Is(err, ErrNotReady) {
		t.Fatal("empty file is a configuration error, not a readiness condition")
	}
}
