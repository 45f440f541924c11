package regime

import (
	"math"

	"github.com/quantframe/decision-engine/pkg/types"
)

// Classifier turns indicator readings into regime snapshots. It keeps only
// the previous snapshot, which it hands back when readings are unavailable;
// classification itself is a pure function of the readings and thresholds.
type Classifier struct {
	cfg  Config
	last Snapshot
}

// NewClassifier creates a classifier with the given configuration.
// The config must already be validated.
func NewClassifier(cfg Config) *Classifier {
	return &Classifier{
		cfg:  cfg,
		last: Snapshot{Regime: RegimeRanging},
	}
}

// Last returns the most recent snapshot.
func (c *Classifier) Last() Snapshot {
	return c.last
}

// Update classifies the given readings and stores the result. When required
// readings are missing it returns the previous snapshot unchanged and
// ok=false; the caller decides how to log or back off.
func (c *Classifier) Update(r Readings) (Snapshot, bool) {
	if !c.complete(r) {
		return c.last, false
	}
	snap := c.classify(r)
	c.last = snap
	return snap, true
}

// complete checks that every reading the classifier depends on is present.
func (c *Classifier) complete(r Readings) bool {
	if r.ATRAverage <= 0 || r.ATR <= 0 {
		return false
	}
	if _, ok := r.TrendStrength[c.cfg.Primary]; !ok {
		return false
	}
	for _, tf := range c.cfg.Confirming {
		if _, ok := r.TrendStrength[tf]; !ok {
			return false
		}
	}
	return true
}

// classify applies the decision ladder: volatility dominance first, then
// trend strength against the timeframe-adjusted thresholds.
func (c *Classifier) classify(r Readings) Snapshot {
	strengths := make(map[types.Timeframe]float64, len(r.TrendStrength))
	for tf, v := range r.TrendStrength {
		strengths[tf] = v
	}
	snap := Snapshot{
		Timestamp:     r.Timestamp,
		TrendStrength: strengths,
		PlusDI:        r.PlusDI,
		MinusDI:       r.MinusDI,
		ATR:           r.ATR,
		ATRAverage:    r.ATRAverage,
	}

	adx := r.TrendStrength[c.cfg.Primary]
	th := c.cfg.Thresholds[c.cfg.Primary]

	switch {
	case r.ATR >= r.ATRAverage*c.cfg.HighVolMultiplier:
		// Expansion in volatility overrides every trend signal.
		snap.Regime = RegimeHighVolatility
	case adx >= th.Trend:
		if r.PlusDI > r.MinusDI {
			snap.Regime = RegimeTrendBull
		} else {
			snap.Regime = RegimeTrendBear
		}
	case adx >= th.BreakoutMin:
		snap.Regime = RegimeBreakoutSetup
	default:
		snap.Regime = RegimeRanging
	}

	snap.Confidence = c.confidence(r, snap.Regime)
	return snap
}

// confidence computes the deterministic confidence score for a
// classification: base weight, trend-strength weight, a multi-timeframe
// alignment bonus, directional separation for trending regimes, and the
// per-timeframe bias.
func (c *Classifier) confidence(r Readings, reg Regime) float64 {
	adx := r.TrendStrength[c.cfg.Primary]

	conf := c.cfg.BaseConfidence
	conf += c.cfg.TrendWeight * math.Min(adx/50.0, 1.0)

	near := r.TrendStrength[c.cfg.Confirming[0]]
	far := r.TrendStrength[c.cfg.Confirming[1]]
	if near >= c.cfg.AlignmentFloor && far >= c.cfg.AlignmentFloor {
		conf += c.cfg.AlignmentBonusNear + c.cfg.AlignmentBonusFar
	}

	if reg.Trending() {
		sep := math.Abs(r.PlusDI-r.MinusDI) / 50.0
		conf += math.Min(sep, c.cfg.SeparationCap)
	}

	conf += c.cfg.TimeframeBias[c.cfg.Primary]

	return clamp01(conf)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
