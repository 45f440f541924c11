package pattern

import (
	"math"
	"time"

	"github.com/quantframe/decision-engine/internal/levels"
	"github.com/quantframe/decision-engine/pkg/types"
)

// Detector fits triangle patterns over a bar window. Every Detect call
// produces a fresh Triangle value; a failed detection replaces the stored
// pattern with the inactive zero value, so no partial state survives.
type Detector struct {
	cfg  Config
	last Triangle
}

// NewDetector creates a triangle detector. The config must already be
// validated.
func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Last returns the most recent detection result.
func (d *Detector) Last() Triangle {
	return d.last
}

// Reset discards the stored pattern.
func (d *Detector) Reset() {
	d.last = Triangle{}
}

// Detect runs the full pipeline over the most recent lookback bars
// (chronological order): swing extraction, per-side line fits, formation
// validation, geometry classification, confidence and breakout scoring,
// target/stop projection. Any stage failure aborts and yields an inactive
// pattern.
func (d *Detector) Detect(bars []types.OHLCV, lookback int) Triangle {
	tri, ok := d.detect(bars, lookback)
	if !ok {
		d.last = Triangle{}
		return d.last
	}
	d.last = tri
	return tri
}

func (d *Detector) detect(bars []types.OHLCV, lookback int) (Triangle, bool) {
	if len(bars) < lookback || lookback < d.cfg.MinFormationBars {
		return Triangle{}, false
	}
	window := bars[len(bars)-lookback:]

	// Same windowed-extremum scan as level detection, but without the
	// liberal fallback: geometry needs genuine extrema, not drift points.
	swings := levels.ScanSwings(window, d.cfg.NeighborSpan, 0)
	if len(swings) < d.cfg.MinSwingPoints {
		return Triangle{}, false
	}

	var highs, lows []levels.SwingPoint
	for _, s := range swings {
		if s.IsHigh {
			highs = append(highs, s)
		} else {
			lows = append(lows, s)
		}
	}
	if len(highs) < d.cfg.MinTouchesPerSide || len(lows) < d.cfg.MinTouchesPerSide {
		return Triangle{}, false
	}

	resistance, err := FitTrendLine(highs, d.cfg.SlopeTol)
	if err != nil {
		return Triangle{}, false
	}
	support, err := FitTrendLine(lows, d.cfg.SlopeTol)
	if err != nil {
		return Triangle{}, false
	}

	firstIdx := swings[0].BarIndex
	lastIdx := swings[len(swings)-1].BarIndex
	formationBars := lastIdx - firstIdx + 1
	if formationBars < d.cfg.MinFormationBars || formationBars > d.cfg.MaxFormationBars {
		return Triangle{}, false
	}

	kind := d.classify(resistance, support)
	if kind == KindNone {
		return Triangle{}, false
	}

	start := window[firstIdx].Timestamp
	end := window[lastIdx].Timestamp
	if kind == KindSymmetrical && !converges(resistance, support, start, end) {
		return Triangle{}, false
	}

	volumeOK := d.volumeContracts(window, firstIdx, lastIdx)
	conf := d.confidence(kind, resistance, support, highs, lows, formationBars, volumeOK)

	tri := Triangle{
		Kind:            kind,
		Resistance:      resistance,
		Support:         support,
		Confidence:      conf,
		BreakoutProb:    d.breakoutProb(kind, conf, volumeOK),
		VolumeConfirmed: volumeOK,
		FormationStart:  start,
		UpdatedAt:       window[len(window)-1].Timestamp,
		Active:          true,
	}
	tri.BreakoutUpward = d.breaksUpward(kind, resistance, support)
	tri.Target, tri.Stop = d.project(tri, start, tri.UpdatedAt)
	return tri, true
}

// classify maps the two normalized slopes onto the pattern geometry.
func (d *Detector) classify(resistance, support TrendLine) Kind {
	tol := d.cfg.SlopeTol
	rn := resistance.NormSlope()
	sn := support.NormSlope()

	switch {
	case resistance.IsHorizontal && sn > tol:
		return KindAscending
	case support.IsHorizontal && rn < -tol:
		return KindDescending
	case rn > tol && sn > tol:
		return KindRisingWedge
	case rn < -tol && sn < -tol:
		return KindFallingWedge
	case rn < -tol && sn > tol:
		return KindSymmetrical
	default:
		// Diverging or doubly flat formations are not triangles.
		return KindNone
	}
}

// converges verifies that a symmetrical formation actually narrows: the
// vertical range at the end of the formation must be positive and smaller
// than at the start. A "symmetrical" pair of lines that fails this is two
// unrelated trend lines, not a triangle.
func converges(resistance, support TrendLine, start, end time.Time) bool {
	heightStart := resistance.At(start) - support.At(start)
	heightEnd := resistance.At(end) - support.At(end)
	return heightStart > 0 && heightEnd > 0 && heightEnd < heightStart
}

// volumeContracts applies the standard pattern-validity heuristic: average
// volume over the most recent bars must sit below the formation average
// scaled by the decline ratio.
func (d *Detector) volumeContracts(window []types.OHLCV, firstIdx, lastIdx int) bool {
	if lastIdx <= firstIdx {
		return false
	}
	var formationSum float64
	for i := firstIdx; i <= lastIdx; i++ {
		formationSum += window[i].Volume
	}
	formationAvg := formationSum / float64(lastIdx-firstIdx+1)

	recent := d.cfg.VolumeWindow
	if recent > len(window) {
		recent = len(window)
	}
	var recentSum float64
	for i := len(window) - recent; i < len(window); i++ {
		recentSum += window[i].Volume
	}
	recentAvg := recentSum / float64(recent)

	return formationAvg > 0 && recentAvg < formationAvg*d.cfg.VolumeDeclineRatio
}

// confidence is the weighted sum of touch adequacy, slope consistency for
// the classified type, volume confirmation, formation-length normalization
// and average swing prominence. Weights sum to at most 1 and the result is
// clamped to [0,1].
func (d *Detector) confidence(kind Kind, resistance, support TrendLine,
	highs, lows []levels.SwingPoint, formationBars int, volumeOK bool) float64 {

	w := d.cfg.Weights

	touchScore := math.Min(float64(len(highs)+len(lows))/float64(4*d.cfg.MinTouchesPerSide), 1.0)

	slopeScore := (d.slopeDecisiveness(kind, resistance, true) +
		d.slopeDecisiveness(kind, support, false)) / 2.0

	volumeScore := 0.0
	if volumeOK {
		volumeScore = 1.0
	}

	lengthScore := float64(formationBars-d.cfg.MinFormationBars) /
		float64(d.cfg.MaxFormationBars-d.cfg.MinFormationBars)
	lengthScore = clamp01(lengthScore)

	var promSum float64
	for _, s := range highs {
		promSum += s.Prominence
	}
	for _, s := range lows {
		promSum += s.Prominence
	}
	avgProm := promSum / float64(len(highs)+len(lows))
	promScore := math.Min(avgProm/0.005, 1.0)

	conf := w.Touches*touchScore + w.Slope*slopeScore + w.Volume*volumeScore +
		w.Length*lengthScore + w.Prominence*promScore
	return clamp01(conf)
}

// slopeDecisiveness scores how cleanly one line matches the role the
// classified geometry assigns to it: flat lines score high when their slope
// is deep inside the horizontal band, directional lines when they are well
// clear of it.
func (d *Detector) slopeDecisiveness(kind Kind, line TrendLine, isResistance bool) float64 {
	tol := d.cfg.SlopeTol
	norm := math.Abs(line.NormSlope())

	wantFlat := (kind == KindAscending && isResistance) || (kind == KindDescending && !isResistance)
	if wantFlat {
		return clamp01(1.0 - norm/tol)
	}
	return math.Min(norm/(2.0*tol), 1.0)
}

// breakoutProb starts from the per-type base probability and adjusts by the
// confidence deviation from 0.5 plus a fixed bonus when volume confirms.
func (d *Detector) breakoutProb(kind Kind, conf float64, volumeOK bool) float64 {
	p := d.cfg.BaseProb[kind]
	p += (conf - 0.5) * d.cfg.ProbConfidenceFactor
	if volumeOK {
		p += d.cfg.VolumeProbBonus
	}
	return clamp01(p)
}

// breaksUpward resolves the expected breakout direction. Symmetrical
// formations take the direction of the midline drift; the other types are
// fixed by geometry.
func (d *Detector) breaksUpward(kind Kind, resistance, support TrendLine) bool {
	if kind == KindSymmetrical {
		return (resistance.Slope+support.Slope)/2.0 >= 0
	}
	return kind.BreaksUpward()
}

// project derives target and stop from the triangle height at formation
// start, projected from the breakout edge in the type-specific direction.
func (d *Detector) project(tri Triangle, start, end time.Time) (target, stop float64) {
	height := tri.Resistance.At(start) - tri.Support.At(start)
	if height < 0 {
		height = -height
	}
	endRes := tri.Resistance.At(end)
	endSup := tri.Support.At(end)

	if tri.BreakoutUpward {
		return endRes + height, endSup
	}
	return endSup - height, endRes
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
