package regime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantframe/decision-engine/pkg/types"
)

func testReadings(adx float64) Readings {
	return Readings{
		Timestamp: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
		TrendStrength: map[types.Timeframe]float64{
			types.TimeframeH1: adx,
			types.TimeframeH4: 15.0,
			types.TimeframeD1: 15.0,
		},
		PlusDI:     25.0,
		MinusDI:    12.0,
		ATR:        1.2,
		ATRAverage: 1.2,
	}
}

func TestClassifier_VolatilityDominatesTrend(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	r := testReadings(40.0) // would otherwise be a clear bull trend
	r.ATR = 3.0
	r.ATRAverage = 1.0

	snap, ok := c.Update(r)
	require.True(t, ok)
	assert.Equal(t, RegimeHighVolatility, snap.Regime)
}

func TestClassifier_TrendDirectionFromDI(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	bull := testReadings(30.0)
	snap, ok := c.Update(bull)
	require.True(t, ok)
	assert.Equal(t, RegimeTrendBull, snap.Regime)

	bear := testReadings(30.0)
	bear.PlusDI, bear.MinusDI = 10.0, 28.0
	snap, ok = c.Update(bear)
	require.True(t, ok)
	assert.Equal(t, RegimeTrendBear, snap.Regime)
}

func TestClassifier_BreakoutBand(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	// H1 thresholds: breakout minimum 18, trend 25
	snap, ok := c.Update(testReadings(20.0))
	require.True(t, ok)
	assert.Equal(t, RegimeBreakoutSetup, snap.Regime)

	snap, ok = c.Update(testReadings(10.0))
	require.True(t, ok)
	assert.Equal(t, RegimeRanging, snap.Regime)
}

func TestClassifier_ConfidenceAlwaysClamped(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	for _, adx := range []float64{0, 5, 18, 25, 40, 60, 95} {
		r := testReadings(adx)
		r.TrendStrength[types.TimeframeH4] = 55.0
		r.TrendStrength[types.TimeframeD1] = 55.0
		r.PlusDI, r.MinusDI = 48.0, 2.0

		snap, ok := c.Update(r)
		require.True(t, ok)
		assert.GreaterOrEqual(t, snap.Confidence, 0.0)
		assert.LessOrEqual(t, snap.Confidence, 1.0)
	}
}

func TestClassifier_ConfidenceFormula(t *testing.T) {
	cfg := DefaultConfig()
	c := NewClassifier(cfg)

	r := testReadings(30.0)
	snap, ok := c.Update(r)
	require.True(t, ok)
	require.Equal(t, RegimeTrendBull, snap.Regime)

	// base 0.4 + 0.4*(30/50) + no alignment + |25-12|/50 + H1 bias 0
	want := 0.4 + 0.4*0.6 + 13.0/50.0
	assert.InDelta(t, want, snap.Confidence, 1e-9)

	// Alignment bonus kicks in only when both confirming timeframes clear
	// the floor.
	r.TrendStrength[types.TimeframeH4] = 22.0
	r.TrendStrength[types.TimeframeD1] = 25.0
	snap, ok = c.Update(r)
	require.True(t, ok)
	assert.InDelta(t, want+cfg.AlignmentBonusNear+cfg.AlignmentBonusFar, snap.Confidence, 1e-9)
}

func TestClassifier_SeparationBonusCapped(t *testing.T) {
	cfg := DefaultConfig()
	c := NewClassifier(cfg)

	r := testReadings(30.0)
	r.PlusDI, r.MinusDI = 50.0, 0.0 // separation bonus would be 1.0 uncapped

	snap, ok := c.Update(r)
	require.True(t, ok)
	want := 0.4 + 0.4*0.6 + cfg.SeparationCap
	assert.InDelta(t, want, snap.Confidence, 1e-9)
}

func TestClassifier_MissingReadingsReturnPrevious(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	first, ok := c.Update(testReadings(30.0))
	require.True(t, ok)

	broken := testReadings(5.0)
	broken.ATRAverage = 0

	snap, ok := c.Update(broken)
	assert.False(t, ok)
	assert.Equal(t, first, snap)
	assert.Equal(t, first, c.Last())

	delete(broken.TrendStrength, types.TimeframeD1)
	broken.ATRAverage = 1.0
	snap, ok = c.Update(broken)
	assert.False(t, ok)
	assert.Equal(t, first, snap)
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	bad := DefaultConfig()
	bad.HighVolMultiplier = 0.9
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.Thresholds[types.TimeframeH1] = Thresholds{Trend: 10.0, BreakoutMin: 18.0}
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	delete(bad.Thresholds, types.TimeframeD1)
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.Confirming = [2]types.Timeframe{types.TimeframeM5, types.TimeframeD1}
	assert.Error(t, bad.Validate())
}
