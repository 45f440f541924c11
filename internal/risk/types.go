package risk

import (
	"fmt"
	"time"

	"github.com/quantframe/decision-engine/internal/regime"
)

// Side is the direction of a position.
type Side int

const (
	Long Side = iota
	Short
)

func (s Side) String() string {
	switch s {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "UNKNOWN"
	}
}

// Position is the per-position record owned exclusively by the Manager.
type Position struct {
	ID       string
	Side     Side
	Entry    float64
	Stop     float64
	Target   float64
	Size     float64
	OpenedAt time.Time

	BreakevenApplied bool
	PartialClosed    bool

	EntryRegime regime.Regime
	Tag         string // opaque context string for downstream attribution
}

// BlockReason explains why a trade request was rejected.
type BlockReason int

const (
	ReasonNone BlockReason = iota
	ReasonTradingDisabled
	ReasonMaxPositions
	ReasonInvalidStop
	ReasonZeroSize
)

func (r BlockReason) String() string {
	switch r {
	case ReasonNone:
		return "NONE"
	case ReasonTradingDisabled:
		return "TRADING_DISABLED"
	case ReasonMaxPositions:
		return "MAX_POSITIONS"
	case ReasonInvalidStop:
		return "INVALID_STOP"
	case ReasonZeroSize:
		return "ZERO_SIZE"
	default:
		return "UNKNOWN"
	}
}

// Decision is the outcome of an open request. Rejected decisions always
// carry a reason; no silent no-ops.
type Decision struct {
	Accepted bool
	Reason   BlockReason
	Detail   string
	Position *Position
}

// EventType tags the discrete, loggable position-management events exposed
// to the host.
type EventType int

const (
	EventBreakeven EventType = iota
	EventPartialClose
	EventTrailingStop
	EventTradingLocked
	EventTradingResumed
)

func (e EventType) String() string {
	switch e {
	case EventBreakeven:
		return "BREAKEVEN"
	case EventPartialClose:
		return "PARTIAL_CLOSE"
	case EventTrailingStop:
		return "TRAILING_STOP"
	case EventTradingLocked:
		return "TRADING_LOCKED"
	case EventTradingResumed:
		return "TRADING_RESUMED"
	default:
		return "UNKNOWN"
	}
}

// Event is one position-management action taken during a cycle.
type Event struct {
	Type       EventType
	PositionID string
	Price      float64
	Stop       float64
	Size       float64
	Detail     string
	Timestamp  time.Time
}

// OpenRequest asks the manager to size and admit a new position. When the
// originating pattern supplies its own target/stop projection those are
// used; otherwise stop and target derive from ATR and the reward ratio.
type OpenRequest struct {
	Side   Side
	Entry  float64
	ATR    float64
	Regime regime.Regime

	PatternTarget float64
	PatternStop   float64

	Tag string
}

// Config holds the risk management parameters.
type Config struct {
	// Fraction of equity risked per trade, by regime at entry.
	RegimeRisk map[regime.Regime]float64
	// Hard ceiling on the per-trade risk fraction regardless of regime.
	MaxRiskPerTrade float64

	MaxDrawdown float64 // fraction of equity peak
	RecoveryPct float64 // recovery above the breach floor before re-enable

	StopATRMult float64
	RewardRatio float64

	BreakevenATRMult     float64 // unrealized profit, in ATRs, that arms breakeven
	BreakevenBufferATR   float64 // stop buffer above/below entry, in ATRs
	PartialCloseATRMult  float64
	PartialCloseFraction float64
	TrailingEnabled      bool
	TrailingATRMult      float64

	MaxPositions int
	ValuePerUnit float64 // account-currency value of one price unit per lot

	MinLot  float64
	MaxLot  float64
	LotStep float64
}

// DefaultConfig returns conservative risk defaults.
func DefaultConfig() Config {
	return Config{
		RegimeRisk: map[regime.Regime]float64{
			regime.RegimeTrendBull:      0.020,
			regime.RegimeTrendBear:      0.020,
			regime.RegimeBreakoutSetup:  0.015,
			regime.RegimeRanging:        0.010,
			regime.RegimeHighVolatility: 0.005,
		},
		MaxRiskPerTrade:      0.020,
		MaxDrawdown:          0.25,
		RecoveryPct:          0.05,
		StopATRMult:          2.0,
		RewardRatio:          2.0,
		BreakevenATRMult:     1.0,
		BreakevenBufferATR:   0.1,
		PartialCloseATRMult:  2.0,
		PartialCloseFraction: 0.5,
		TrailingEnabled:      true,
		TrailingATRMult:      1.5,
		MaxPositions:         3,
		ValuePerUnit:         1.0,
		MinLot:               0.01,
		MaxLot:               100.0,
		LotStep:              0.01,
	}
}

// Validate checks configuration consistency. A manager started with
// inconsistent thresholds could compute unsafe sizes, so failures here are
// fatal at initialization.
func (c Config) Validate() error {
	for reg, frac := range c.RegimeRisk {
		if frac <= 0 || frac > 0.5 {
			return fmt.Errorf("risk: regime %s risk fraction %.4f out of (0, 0.5]", reg, frac)
		}
	}
	if c.MaxRiskPerTrade <= 0 || c.MaxRiskPerTrade > 0.5 {
		return fmt.Errorf("risk: max risk per trade %.4f out of (0, 0.5]", c.MaxRiskPerTrade)
	}
	if c.MaxDrawdown <= 0 || c.MaxDrawdown >= 1 {
		return fmt.Errorf("risk: max drawdown %.4f out of (0, 1)", c.MaxDrawdown)
	}
	if c.RecoveryPct <= 0 {
		return fmt.Errorf("risk: recovery percentage must be positive, got %.4f", c.RecoveryPct)
	}
	if c.StopATRMult <= 0 || c.RewardRatio <= 0 {
		return fmt.Errorf("risk: stop multiplier and reward ratio must be positive")
	}
	if c.BreakevenATRMult <= 0 || c.BreakevenBufferATR < 0 {
		return fmt.Errorf("risk: breakeven parameters invalid")
	}
	if c.PartialCloseATRMult <= c.BreakevenATRMult {
		return fmt.Errorf("risk: partial close threshold %.2f must exceed breakeven threshold %.2f",
			c.PartialCloseATRMult, c.BreakevenATRMult)
	}
	if c.PartialCloseFraction <= 0 || c.PartialCloseFraction >= 1 {
		return fmt.Errorf("risk: partial close fraction %.4f out of (0, 1)", c.PartialCloseFraction)
	}
	if c.TrailingEnabled && c.TrailingATRMult <= 0 {
		return fmt.Errorf("risk: trailing multiplier must be positive when trailing is enabled")
	}
	if c.MaxPositions < 1 {
		return fmt.Errorf("risk: max positions must be at least 1, got %d", c.MaxPositions)
	}
	if c.ValuePerUnit <= 0 {
		return fmt.Errorf("risk: value per unit must be positive, got %f", c.ValuePerUnit)
	}
	if c.MinLot <= 0 || c.MaxLot < c.MinLot || c.LotStep <= 0 {
		return fmt.Errorf("risk: lot bounds must satisfy 0 < min <= max with a positive step")
	}
	return nil
}
