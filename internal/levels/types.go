package levels

import (
	"fmt"
	"time"
)

// Kind classifies a level relative to the current price. The classification
// is re-evaluated on every Reclassify call, never fixed at creation.
type Kind int

const (
	Support Kind = iota
	Resistance
)

func (k Kind) String() string {
	switch k {
	case Support:
		return "SUPPORT"
	case Resistance:
		return "RESISTANCE"
	default:
		return "UNKNOWN"
	}
}

// SwingPoint is a local price extremum relative to its neighbor window.
// Swing points are consumed immediately by level aggregation and trend-line
// fitting; they are not persisted across detection passes.
type SwingPoint struct {
	Price      float64
	Timestamp  time.Time
	BarIndex   int
	IsHigh     bool
	Prominence float64 // extremum depth relative to neighbors, as a price fraction
	Volume     float64
}

// KeyLevel is an aggregated support/resistance zone.
type KeyLevel struct {
	Price      float64
	Strength   float64
	Touches    int
	FirstTouch time.Time
	LastTouch  time.Time
	Kind       Kind

	lastBar int // chronological index of the most recent touch, drives recency decay
}

// Config holds the level detection parameters.
type Config struct {
	NeighborSpan  int     // bars compared on each side of a swing candidate
	TouchZoneFrac float64 // touch zone as a fraction of the level price
	ATRZoneMult   float64 // optional ATR-derived zone; the wider zone wins
	DecayHalfLife int     // bars until a level's strength halves
	MaxLevels     int

	// The liberal fallback re-scans with a single-sided comparison when the
	// strict pass finds fewer lows than this. The value is an empirical
	// calibration default, not a tuned constant.
	FallbackMinLows int
}

// DefaultConfig returns the validated working parameters. A neighbor span of
// 2 is deliberate: the stricter 6-point window suppressed almost all
// detections on real series.
func DefaultConfig() Config {
	return Config{
		NeighborSpan:    2,
		TouchZoneFrac:   0.002,
		ATRZoneMult:     0.5,
		DecayHalfLife:   200,
		MaxLevels:       12,
		FallbackMinLows: 2,
	}
}

// Validate checks configuration consistency.
func (c Config) Validate() error {
	if c.NeighborSpan < 1 {
		return fmt.Errorf("levels: neighbor span must be at least 1, got %d", c.NeighborSpan)
	}
	if c.TouchZoneFrac <= 0 {
		return fmt.Errorf("levels: touch zone fraction must be positive, got %f", c.TouchZoneFrac)
	}
	if c.ATRZoneMult < 0 {
		return fmt.Errorf("levels: ATR zone multiplier must be non-negative, got %f", c.ATRZoneMult)
	}
	if c.DecayHalfLife < 1 {
		return fmt.Errorf("levels: decay half-life must be at least 1 bar, got %d", c.DecayHalfLife)
	}
	if c.MaxLevels < 1 {
		return fmt.Errorf("levels: max levels must be at least 1, got %d", c.MaxLevels)
	}
	if c.FallbackMinLows < 1 {
		return fmt.Errorf("levels: fallback minimum must be at least 1, got %d", c.FallbackMinLows)
	}
	return nil
}
