package regime

import (
	"fmt"
	"time"

	"github.com/quantframe/decision-engine/pkg/types"
)

// Regime represents different market regimes
type Regime int

const (
	RegimeRanging Regime = iota
	RegimeTrendBull
	RegimeTrendBear
	RegimeBreakoutSetup
	RegimeHighVolatility
)

func (r Regime) String() string {
	switch r {
	case RegimeRanging:
		return "RANGING"
	case RegimeTrendBull:
		return "TREND_BULL"
	case RegimeTrendBear:
		return "TREND_BEAR"
	case RegimeBreakoutSetup:
		return "BREAKOUT_SETUP"
	case RegimeHighVolatility:
		return "HIGH_VOLATILITY"
	default:
		return "UNKNOWN"
	}
}

// Trending reports whether the regime has a directional bias.
func (r Regime) Trending() bool {
	return r == RegimeTrendBull || r == RegimeTrendBear
}

// Readings holds the indicator values consumed by one classification pass.
// TrendStrength carries one ADX-style value per configured timeframe; the
// directional components and volatility refer to the primary timeframe.
type Readings struct {
	Timestamp     time.Time
	TrendStrength map[types.Timeframe]float64
	PlusDI        float64
	MinusDI       float64
	ATR           float64
	ATRAverage    float64
}

// Snapshot is the immutable output of one classification pass.
type Snapshot struct {
	Regime        Regime
	Confidence    float64 // 0.0 to 1.0
	Timestamp     time.Time
	TrendStrength map[types.Timeframe]float64
	PlusDI        float64
	MinusDI       float64
	ATR           float64
	ATRAverage    float64
}

// Thresholds holds the trend/breakout cutoffs for one timeframe. Longer
// timeframes carry higher cutoffs.
type Thresholds struct {
	Trend       float64
	BreakoutMin float64
}

// Config holds configuration parameters for regime classification
type Config struct {
	// Primary timeframe plus two longer confirmation timeframes, in order.
	Primary    types.Timeframe
	Confirming [2]types.Timeframe

	// Per-timeframe trend thresholds
	Thresholds map[types.Timeframe]Thresholds

	// Volatility dominance
	HighVolMultiplier float64 // current ATR vs average ATR

	// Confidence model
	BaseConfidence     float64
	TrendWeight        float64 // scaled by min(ADX/50, 1)
	AlignmentFloor     float64 // both confirming ADX must exceed this
	AlignmentBonusNear float64 // first confirming timeframe
	AlignmentBonusFar  float64 // second (longer) confirming timeframe
	SeparationCap      float64 // cap on |+DI - -DI| / 50 bonus
	TimeframeBias      map[types.Timeframe]float64
}

// DefaultConfig returns the calibrated classification parameters.
func DefaultConfig() Config {
	return Config{
		Primary:    types.TimeframeH1,
		Confirming: [2]types.Timeframe{types.TimeframeH4, types.TimeframeD1},
		Thresholds: map[types.Timeframe]Thresholds{
			types.TimeframeM5:  {Trend: 22.0, BreakoutMin: 16.0},
			types.TimeframeM15: {Trend: 24.0, BreakoutMin: 17.0},
			types.TimeframeH1:  {Trend: 25.0, BreakoutMin: 18.0},
			types.TimeframeH4:  {Trend: 28.0, BreakoutMin: 20.0},
			types.TimeframeD1:  {Trend: 30.0, BreakoutMin: 22.0},
		},
		HighVolMultiplier:  1.8,
		BaseConfidence:     0.4,
		TrendWeight:        0.4,
		AlignmentFloor:     20.0,
		AlignmentBonusNear: 0.04,
		AlignmentBonusFar:  0.06,
		SeparationCap:      0.15,
		TimeframeBias: map[types.Timeframe]float64{
			types.TimeframeM5:  -0.05,
			types.TimeframeM15: -0.02,
			types.TimeframeH1:  0.0,
			types.TimeframeH4:  0.03,
			types.TimeframeD1:  0.05,
		},
	}
}

// Validate checks configuration consistency. Failures here are fatal at
// startup: a classifier running with an inconsistent threshold table would
// silently misclassify every cycle.
func (c Config) Validate() error {
	if c.HighVolMultiplier <= 1.0 {
		return fmt.Errorf("regime: high volatility multiplier must exceed 1.0, got %.2f", c.HighVolMultiplier)
	}
	if c.BaseConfidence < 0 || c.TrendWeight < 0 || c.AlignmentBonusNear < 0 || c.AlignmentBonusFar < 0 || c.SeparationCap < 0 {
		return fmt.Errorf("regime: confidence weights must be non-negative")
	}
	required := []types.Timeframe{c.Primary, c.Confirming[0], c.Confirming[1]}
	for _, tf := range required {
		th, ok := c.Thresholds[tf]
		if !ok {
			return fmt.Errorf("regime: missing threshold entry for timeframe %s", tf)
		}
		if th.BreakoutMin <= 0 || th.Trend <= th.BreakoutMin {
			return fmt.Errorf("regime: timeframe %s needs 0 < breakout minimum < trend threshold, got %.1f/%.1f",
				tf, th.BreakoutMin, th.Trend)
		}
	}
	if c.Confirming[0].Duration() <= c.Primary.Duration() || c.Confirming[1].Duration() <= c.Confirming[0].Duration() {
		return fmt.Errorf("regime: confirming timeframes must be strictly longer than the primary")
	}
	return nil
}
