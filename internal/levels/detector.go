package levels

import (
	"math"
	"sort"

	"github.com/quantframe/decision-engine/pkg/types"
)

// Detector finds swing points in a bar series and aggregates them into key
// levels. Detect replaces the stored set on every call; Reclassify must be
// called with the current price before any consumer reads the set.
type Detector struct {
	cfg    Config
	levels []KeyLevel
}

// NewDetector creates a level detector. The config must already be validated.
func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Detect scans the most recent lookback bars (chronological order) and
// rebuilds the level set. Insufficient history yields an empty set, not an
// error. atr widens the touch zone on volatile instruments; pass 0 to use the
// fixed fractional zone only.
func (d *Detector) Detect(bars []types.OHLCV, lookback int, atr float64) []KeyLevel {
	minBars := 2*d.cfg.NeighborSpan + 1
	if len(bars) < lookback || lookback < minBars {
		d.levels = nil
		return nil
	}

	window := bars[len(bars)-lookback:]
	swings := ScanSwings(window, d.cfg.NeighborSpan, d.cfg.FallbackMinLows)

	d.levels = d.aggregate(swings, window, atr)
	return d.Levels()
}

// Reclassify sets every level's kind relative to the given price. Levels
// above the price are resistance, levels at or below are support. The call
// is idempotent and mandatory before any external read of the set.
func (d *Detector) Reclassify(price float64) {
	for i := range d.levels {
		if d.levels[i].Price > price {
			d.levels[i].Kind = Resistance
		} else {
			d.levels[i].Kind = Support
		}
	}
}

// Levels returns a copy of the current level set.
func (d *Detector) Levels() []KeyLevel {
	out := make([]KeyLevel, len(d.levels))
	copy(out, d.levels)
	return out
}

// ScanSwings runs the windowed local-extremum scan over a chronological bar
// series. A bar is a swing low when its low is strictly below the lows of
// span neighbors on each side, and symmetrically for highs. When the strict
// pass finds fewer than minLows lows — the usual failure mode on a trending
// or drifting series — a liberal single-sided pass over the interior bars
// guarantees the scan never comes back empty.
func ScanSwings(bars []types.OHLCV, span, minLows int) []SwingPoint {
	var swings []SwingPoint
	lowAt := make(map[int]bool)

	for i := span; i < len(bars)-span; i++ {
		if isSwingLow(bars, i, span) {
			swings = append(swings, newSwing(bars, i, false, span))
			lowAt[i] = true
		}
		if isSwingHigh(bars, i, span) {
			swings = append(swings, newSwing(bars, i, true, span))
		}
	}

	if len(lowAt) < minLows {
		for i := 1; i < len(bars)-1; i++ {
			// Strict lows match the single-sided test too; emitting them
			// again would double-count their touch.
			if lowAt[i] {
				continue
			}
			if bars[i].Low < bars[i-1].Low || bars[i].Low < bars[i+1].Low {
				swings = append(swings, newSwing(bars, i, false, 1))
			}
		}
	}

	sort.Slice(swings, func(a, b int) bool { return swings[a].BarIndex < swings[b].BarIndex })
	return swings
}

func isSwingLow(bars []types.OHLCV, i, span int) bool {
	for j := 1; j <= span; j++ {
		if bars[i].Low >= bars[i-j].Low || bars[i].Low >= bars[i+j].Low {
			return false
		}
	}
	return true
}

func isSwingHigh(bars []types.OHLCV, i, span int) bool {
	for j := 1; j <= span; j++ {
		if bars[i].High <= bars[i-j].High || bars[i].High <= bars[i+j].High {
			return false
		}
	}
	return true
}

// newSwing builds a swing point with its prominence: how far the extremum
// sticks out from the average of its neighbors, as a fraction of price.
func newSwing(bars []types.OHLCV, i int, isHigh bool, span int) SwingPoint {
	price := bars[i].Low
	if isHigh {
		price = bars[i].High
	}

	var sum float64
	var n int
	for j := -span; j <= span; j++ {
		if j == 0 {
			continue
		}
		if isHigh {
			sum += bars[i+j].High
		} else {
			sum += bars[i+j].Low
		}
		n++
	}
	neighborAvg := sum / float64(n)

	prom := 0.0
	if price > 0 {
		if isHigh {
			prom = (price - neighborAvg) / price
		} else {
			prom = (neighborAvg - price) / price
		}
		if prom < 0 {
			prom = 0
		}
	}

	return SwingPoint{
		Price:      price,
		Timestamp:  bars[i].Timestamp,
		BarIndex:   i,
		IsHigh:     isHigh,
		Prominence: prom,
		Volume:     bars[i].Volume,
	}
}

// aggregate merges swing points into levels: a swing inside an existing
// level's touch zone reinforces that level, anything else seeds a new one.
// A second pass folds weak levels sitting inside a stronger level's zone
// into the stronger level.
func (d *Detector) aggregate(swings []SwingPoint, window []types.OHLCV, atr float64) []KeyLevel {
	var found []KeyLevel

	for _, sp := range swings {
		merged := false
		for i := range found {
			if math.Abs(sp.Price-found[i].Price) <= d.zone(found[i].Price, atr) {
				lv := &found[i]
				lv.Price = (lv.Price*float64(lv.Touches) + sp.Price) / float64(lv.Touches+1)
				lv.Touches++
				if sp.Timestamp.After(lv.LastTouch) {
					lv.LastTouch = sp.Timestamp
					lv.lastBar = sp.BarIndex
				}
				merged = true
				break
			}
		}
		if !merged {
			found = append(found, KeyLevel{
				Price:      sp.Price,
				Touches:    1,
				FirstTouch: sp.Timestamp,
				LastTouch:  sp.Timestamp,
				lastBar:    sp.BarIndex,
			})
		}
	}

	for i := range found {
		found[i].Strength = d.strength(found[i], len(window))
	}

	sort.Slice(found, func(a, b int) bool { return found[a].Strength > found[b].Strength })

	var kept []KeyLevel
	for _, lv := range found {
		absorbed := false
		for i := range kept {
			if math.Abs(lv.Price-kept[i].Price) <= d.zone(kept[i].Price, atr) {
				kept[i].Touches += lv.Touches
				if lv.FirstTouch.Before(kept[i].FirstTouch) {
					kept[i].FirstTouch = lv.FirstTouch
				}
				if lv.LastTouch.After(kept[i].LastTouch) {
					kept[i].LastTouch = lv.LastTouch
					kept[i].lastBar = lv.lastBar
				}
				kept[i].Strength = d.strength(kept[i], len(window))
				absorbed = true
				break
			}
		}
		if !absorbed {
			kept = append(kept, lv)
		}
	}

	sort.Slice(kept, func(a, b int) bool { return kept[a].Strength > kept[b].Strength })
	if len(kept) > d.cfg.MaxLevels {
		kept = kept[:d.cfg.MaxLevels]
	}
	return kept
}

// zone returns the touch tolerance around a level price. The ATR-derived
// zone wins when it is wider, so the tolerance stays meaningful across
// instruments of different volatility.
func (d *Detector) zone(price, atr float64) float64 {
	z := price * d.cfg.TouchZoneFrac
	if atr > 0 && atr*d.cfg.ATRZoneMult > z {
		z = atr * d.cfg.ATRZoneMult
	}
	return z
}

// strength grows with touch count and decays with the number of bars since
// the last touch.
func (d *Detector) strength(lv KeyLevel, windowLen int) float64 {
	base := 1.0 + 0.5*float64(lv.Touches-1)
	age := float64(windowLen - 1 - lv.lastBar)
	if age < 0 {
		age = 0
	}
	return base * math.Exp2(-age/float64(d.cfg.DecayHalfLife))
}
