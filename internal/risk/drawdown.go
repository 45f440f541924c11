package risk

// GuardState represents the state of the drawdown circuit breaker.
type GuardState int

const (
	GuardActive GuardState = iota
	GuardLocked
)

func (s GuardState) String() string {
	switch s {
	case GuardActive:
		return "ACTIVE"
	case GuardLocked:
		return "LOCKED"
	default:
		return "UNKNOWN"
	}
}

// DrawdownGuard tracks the equity peak and locks trading once drawdown from
// that peak exceeds the configured maximum. The lock is terminal until
// equity recovers a configured percentage above the breach floor; the
// hysteresis prevents oscillating enable/disable around the threshold.
type DrawdownGuard struct {
	maxDrawdown float64
	recovery    float64

	state       GuardState
	peak        float64
	breachFloor float64

	onStateChange func(from, to GuardState)
}

// NewDrawdownGuard creates a guard in the active state.
func NewDrawdownGuard(maxDrawdown, recovery float64) *DrawdownGuard {
	return &DrawdownGuard{
		maxDrawdown: maxDrawdown,
		recovery:    recovery,
		state:       GuardActive,
	}
}

// SetStateChangeCallback registers a callback fired on every transition.
func (g *DrawdownGuard) SetStateChangeCallback(callback func(from, to GuardState)) {
	g.onStateChange = callback
}

// Update feeds the current equity into the state machine and returns the
// resulting state. While active the peak ratchets up monotonically; while
// locked the peak is frozen and only a recovery above the breach floor
// unlocks trading and restarts the peak from current equity.
func (g *DrawdownGuard) Update(equity float64) GuardState {
	switch g.state {
	case GuardActive:
		if equity > g.peak {
			g.peak = equity
		}
		if g.peak > 0 && (g.peak-equity)/g.peak > g.maxDrawdown {
			g.breachFloor = g.peak * (1.0 - g.maxDrawdown)
			g.transition(GuardLocked)
		}
	case GuardLocked:
		if equity >= g.breachFloor*(1.0+g.recovery) {
			g.peak = equity
			g.transition(GuardActive)
		}
	}
	return g.state
}

// Allowed reports whether trading is currently enabled.
func (g *DrawdownGuard) Allowed() bool {
	return g.state == GuardActive
}

// Peak returns the current equity peak.
func (g *DrawdownGuard) Peak() float64 {
	return g.peak
}

// Drawdown returns the current proportional decline from the peak.
func (g *DrawdownGuard) Drawdown(equity float64) float64 {
	if g.peak <= 0 {
		return 0
	}
	dd := (g.peak - equity) / g.peak
	if dd < 0 {
		return 0
	}
	return dd
}

func (g *DrawdownGuard) transition(to GuardState) {
	from := g.state
	g.state = to
	if g.onStateChange != nil {
		g.onStateChange(from, to)
	}
}
