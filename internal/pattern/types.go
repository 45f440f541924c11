package pattern

import (
	"fmt"
	"time"
)

// Kind classifies the triangle geometry from the two fitted slopes.
type Kind int

const (
	KindNone Kind = iota
	KindAscending
	KindDescending
	KindSymmetrical
	KindRisingWedge
	KindFallingWedge
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "NONE"
	case KindAscending:
		return "ASCENDING"
	case KindDescending:
		return "DESCENDING"
	case KindSymmetrical:
		return "SYMMETRICAL"
	case KindRisingWedge:
		return "RISING_WEDGE"
	case KindFallingWedge:
		return "FALLING_WEDGE"
	default:
		return "UNKNOWN"
	}
}

// BreaksUpward reports the expected breakout direction for the pattern
// type. Wedges break against their slope direction. Symmetrical patterns
// carry their own bias, resolved at detection time.
func (k Kind) BreaksUpward() bool {
	switch k {
	case KindAscending, KindFallingWedge:
		return true
	default:
		return false
	}
}

// Triangle aggregates the two fitted trend lines into a classified pattern.
// A failed detection yields the zero value: KindNone, inactive.
type Triangle struct {
	Kind       Kind
	Resistance TrendLine
	Support    TrendLine

	Confidence      float64
	BreakoutProb    float64
	BreakoutUpward  bool
	Target          float64
	Stop            float64
	VolumeConfirmed bool

	FormationStart time.Time
	UpdatedAt      time.Time
	Active         bool
}

// ConfidenceWeights are the weighted-sum coefficients for the confidence
// score. They must sum to at most 1.
type ConfidenceWeights struct {
	Touches    float64
	Slope      float64
	Volume     float64
	Length     float64
	Prominence float64
}

func (w ConfidenceWeights) sum() float64 {
	return w.Touches + w.Slope + w.Volume + w.Length + w.Prominence
}

// Config holds the triangle detection parameters.
type Config struct {
	NeighborSpan      int // swing scan window, shared technique with level detection
	MinSwingPoints    int
	MinTouchesPerSide int

	MinFormationBars int
	MaxFormationBars int

	// Normalized slope (price fraction per day) below which a line is
	// horizontal; beyond it the line counts as rising or falling.
	SlopeTol float64

	Weights ConfidenceWeights

	VolumeWindow       int     // most recent bars for the contraction check
	VolumeDeclineRatio float64 // recent average must be below formation average times this

	BaseProb             map[Kind]float64
	ProbConfidenceFactor float64 // scales confidence deviation from 0.5
	VolumeProbBonus      float64
}

// DefaultConfig returns the calibrated detection parameters.
func DefaultConfig() Config {
	return Config{
		NeighborSpan:      2,
		MinSwingPoints:    6,
		MinTouchesPerSide: 3,
		MinFormationBars:  15,
		MaxFormationBars:  120,
		SlopeTol:          0.0008,
		Weights: ConfidenceWeights{
			Touches:    0.30,
			Slope:      0.25,
			Volume:     0.15,
			Length:     0.15,
			Prominence: 0.15,
		},
		VolumeWindow:       10,
		VolumeDeclineRatio: 0.85,
		BaseProb: map[Kind]float64{
			KindAscending:    0.68,
			KindDescending:   0.48,
			KindSymmetrical:  0.55,
			KindRisingWedge:  0.62,
			KindFallingWedge: 0.62,
		},
		ProbConfidenceFactor: 0.2,
		VolumeProbBonus:      0.05,
	}
}

// Validate checks configuration consistency.
func (c Config) Validate() error {
	if c.NeighborSpan < 1 {
		return fmt.Errorf("pattern: neighbor span must be at least 1, got %d", c.NeighborSpan)
	}
	if c.MinTouchesPerSide < 2 {
		return fmt.Errorf("pattern: minimum touches per side must be at least 2, got %d", c.MinTouchesPerSide)
	}
	if c.MinSwingPoints < 2*c.MinTouchesPerSide {
		return fmt.Errorf("pattern: minimum swing points %d cannot satisfy %d touches per side",
			c.MinSwingPoints, c.MinTouchesPerSide)
	}
	if c.MinFormationBars <= 0 || c.MaxFormationBars <= c.MinFormationBars {
		return fmt.Errorf("pattern: formation bounds must satisfy 0 < min < max, got %d/%d",
			c.MinFormationBars, c.MaxFormationBars)
	}
	if c.SlopeTol <= 0 {
		return fmt.Errorf("pattern: slope tolerance must be positive, got %f", c.SlopeTol)
	}
	if c.Weights.Touches < 0 || c.Weights.Slope < 0 || c.Weights.Volume < 0 ||
		c.Weights.Length < 0 || c.Weights.Prominence < 0 {
		return fmt.Errorf("pattern: confidence weights must be non-negative")
	}
	if s := c.Weights.sum(); s > 1.0+1e-9 {
		return fmt.Errorf("pattern: confidence weights sum to %.3f, must not exceed 1", s)
	}
	if c.VolumeWindow < 1 || c.VolumeDeclineRatio <= 0 {
		return fmt.Errorf("pattern: volume confirmation parameters invalid")
	}
	for k, p := range c.BaseProb {
		if p < 0 || p > 1 {
			return fmt.Errorf("pattern: base probability for %s out of range: %f", k, p)
		}
	}
	return nil
}
