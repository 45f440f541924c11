package engine

import (
	"github.com/quantframe/decision-engine/internal/levels"
	"github.com/quantframe/decision-engine/internal/pattern"
	"github.com/quantframe/decision-engine/internal/regime"
)

// SignalKind tags the variant carried by a Signal.
type SignalKind int

const (
	SignalRegime SignalKind = iota
	SignalLevel
	SignalTriangle
)

func (k SignalKind) String() string {
	switch k {
	case SignalRegime:
		return "REGIME"
	case SignalLevel:
		return "LEVEL"
	case SignalTriangle:
		return "TRIANGLE"
	default:
		return "UNKNOWN"
	}
}

// Signal is the tagged variant handed to the risk dispatcher. Exactly one
// payload field is set, matching Kind.
type Signal struct {
	Kind     SignalKind
	Regime   *regime.Snapshot
	Level    *levels.KeyLevel
	Triangle *pattern.Triangle
}

// buildSignals assembles the cycle's signal list in a fixed order: the
// regime first, then levels, then the pattern, so the dispatcher always
// sees the same world view the detectors finalized.
func buildSignals(snap regime.Snapshot, lvls []levels.KeyLevel, tri pattern.Triangle) []Signal {
	signals := []Signal{{Kind: SignalRegime, Regime: &snap}}
	for i := range lvls {
		signals = append(signals, Signal{Kind: SignalLevel, Level: &lvls[i]})
	}
	if tri.Active {
		signals = append(signals, Signal{Kind: SignalTriangle, Triangle: &tri})
	}
	return signals
}
