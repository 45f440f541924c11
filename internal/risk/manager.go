package risk

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quantframe/decision-engine/internal/regime"
)

// Manager is the sole authority for position sizing, order-parameter
// computation and ongoing position adjustment. It exclusively owns the
// position table and the account-level drawdown state; the detectors are
// read-only producers whose outputs it consumes.
type Manager struct {
	cfg   Config
	log   zerolog.Logger
	guard *DrawdownGuard

	equity    float64
	positions []*Position
}

// NewManager creates a risk manager. The config must already be validated.
func NewManager(cfg Config, log zerolog.Logger) *Manager {
	return &Manager{
		cfg:   cfg,
		log:   log.With().Str("component", "risk").Logger(),
		guard: NewDrawdownGuard(cfg.MaxDrawdown, cfg.RecoveryPct),
	}
}

// CheckDrawdown feeds current equity into the drawdown guard and reports
// whether trading remains enabled. Transitions are logged and returned as
// events so the host can surface them.
func (m *Manager) CheckDrawdown(equity float64) (bool, []Event) {
	m.equity = equity

	var events []Event
	before := m.guard.Allowed()
	state := m.guard.Update(equity)
	after := state == GuardActive

	now := time.Now()
	if before && !after {
		m.log.Warn().
			Float64("equity", equity).
			Float64("peak", m.guard.Peak()).
			Float64("drawdown", m.guard.Drawdown(equity)).
			Msg("drawdown breach: trading locked")
		events = append(events, Event{Type: EventTradingLocked, Price: equity, Timestamp: now,
			Detail: "max drawdown exceeded"})
	} else if !before && after {
		m.log.Info().
			Float64("equity", equity).
			Msg("equity recovered: trading resumed")
		events = append(events, Event{Type: EventTradingResumed, Price: equity, Timestamp: now,
			Detail: "recovered above breach floor"})
	}
	return after, events
}

// TradingEnabled reports the guard state without updating it.
func (m *Manager) TradingEnabled() bool {
	return m.guard.Allowed()
}

// CheckMaxPositions reports whether another position may be opened.
func (m *Manager) CheckMaxPositions() bool {
	return len(m.positions) < m.cfg.MaxPositions
}

// LotSize computes the position size for a stop distance under the given
// regime's risk fraction: equity × risk ÷ (distance × value per unit). The
// effective risk fraction is capped by MaxRiskPerTrade regardless of the
// regime setting, and the result is floored to the lot step. Invalid inputs
// yield zero, which rejects the trade upstream.
func (m *Manager) LotSize(stopDistance float64, reg regime.Regime) float64 {
	if stopDistance <= 0 || m.equity <= 0 {
		return 0
	}

	frac, ok := m.cfg.RegimeRisk[reg]
	if !ok || frac <= 0 {
		return 0
	}
	if frac > m.cfg.MaxRiskPerTrade {
		frac = m.cfg.MaxRiskPerTrade
	}

	size := m.equity * frac / (stopDistance * m.cfg.ValuePerUnit)
	size = math.Floor(size/m.cfg.LotStep) * m.cfg.LotStep
	if size < m.cfg.MinLot {
		return 0
	}
	if size > m.cfg.MaxLot {
		size = m.cfg.MaxLot
	}
	return size
}

// StopLoss places the stop a volatility multiple away from entry.
func (m *Manager) StopLoss(entry, atr float64, side Side) float64 {
	if side == Long {
		return entry - atr*m.cfg.StopATRMult
	}
	return entry + atr*m.cfg.StopATRMult
}

// TakeProfit projects the target from the stop distance by the configured
// reward ratio.
func (m *Manager) TakeProfit(entry, stop float64, side Side) float64 {
	dist := math.Abs(entry - stop)
	if side == Long {
		return entry + dist*m.cfg.RewardRatio
	}
	return entry - dist*m.cfg.RewardRatio
}

// Open sizes and admits a new position. Every rejection carries a reason;
// blocked trades are logged, not retried within the cycle.
func (m *Manager) Open(req OpenRequest) Decision {
	if !m.guard.Allowed() {
		return m.reject(ReasonTradingDisabled, "drawdown guard is locked")
	}
	if !m.CheckMaxPositions() {
		return m.reject(ReasonMaxPositions, "maximum concurrent positions reached")
	}

	stop := req.PatternStop
	if !validStop(req.Side, req.Entry, stop) {
		stop = m.StopLoss(req.Entry, req.ATR, req.Side)
	}
	if !validStop(req.Side, req.Entry, stop) {
		return m.reject(ReasonInvalidStop, "no valid stop could be derived")
	}

	target := req.PatternTarget
	if !validTarget(req.Side, req.Entry, target) {
		target = m.TakeProfit(req.Entry, stop, req.Side)
	}

	size := m.LotSize(math.Abs(req.Entry-stop), req.Regime)
	if size <= 0 {
		return m.reject(ReasonZeroSize, "computed size is not positive")
	}

	pos := &Position{
		ID:          uuid.NewString(),
		Side:        req.Side,
		Entry:       req.Entry,
		Stop:        stop,
		Target:      target,
		Size:        size,
		OpenedAt:    time.Now(),
		EntryRegime: req.Regime,
		Tag:         req.Tag,
	}
	m.positions = append(m.positions, pos)

	m.log.Info().
		Str("position", pos.ID).
		Str("side", pos.Side.String()).
		Float64("entry", pos.Entry).
		Float64("stop", pos.Stop).
		Float64("target", pos.Target).
		Float64("size", pos.Size).
		Str("regime", pos.EntryRegime.String()).
		Msg("position opened")

	return Decision{Accepted: true, Position: pos}
}

// OnTick performs the per-cycle maintenance pass over all open positions:
// breakeven once, partial close once, then trailing. Returns the discrete
// events so the host can forward stop modifications and partial closes.
func (m *Manager) OnTick(price, atr float64, now time.Time) []Event {
	if atr <= 0 {
		return nil
	}

	var events []Event
	for _, pos := range m.positions {
		profit := price - pos.Entry
		if pos.Side == Short {
			profit = pos.Entry - price
		}

		if !pos.BreakevenApplied && profit >= m.cfg.BreakevenATRMult*atr {
			buffer := m.cfg.BreakevenBufferATR * atr
			if pos.Side == Long {
				pos.Stop = pos.Entry + buffer
			} else {
				pos.Stop = pos.Entry - buffer
			}
			pos.BreakevenApplied = true
			events = append(events, Event{Type: EventBreakeven, PositionID: pos.ID,
				Price: price, Stop: pos.Stop, Size: pos.Size, Timestamp: now})
			m.log.Info().Str("position", pos.ID).Float64("stop", pos.Stop).Msg("stop moved to breakeven")
		}

		if !pos.PartialClosed && profit >= m.cfg.PartialCloseATRMult*atr {
			closed := pos.Size * m.cfg.PartialCloseFraction
			pos.Size -= closed
			pos.PartialClosed = true
			events = append(events, Event{Type: EventPartialClose, PositionID: pos.ID,
				Price: price, Stop: pos.Stop, Size: closed, Timestamp: now})
			m.log.Info().Str("position", pos.ID).Float64("closed", closed).Msg("partial close")
		}

		if m.cfg.TrailingEnabled && pos.PartialClosed {
			var candidate float64
			improved := false
			if pos.Side == Long {
				candidate = price - m.cfg.TrailingATRMult*atr
				improved = candidate > pos.Stop
			} else {
				candidate = price + m.cfg.TrailingATRMult*atr
				improved = candidate < pos.Stop
			}
			if improved {
				pos.Stop = candidate
				events = append(events, Event{Type: EventTrailingStop, PositionID: pos.ID,
					Price: price, Stop: pos.Stop, Size: pos.Size, Timestamp: now})
			}
		}
	}
	return events
}

// Close removes a position from the table, typically after the host reports
// it filled or stopped out.
func (m *Manager) Close(id string) bool {
	for i, pos := range m.positions {
		if pos.ID == id {
			m.positions = append(m.positions[:i], m.positions[i+1:]...)
			m.log.Info().Str("position", id).Msg("position closed")
			return true
		}
	}
	return false
}

// Positions returns a snapshot copy of the open position table.
func (m *Manager) Positions() []Position {
	out := make([]Position, len(m.positions))
	for i, pos := range m.positions {
		out[i] = *pos
	}
	return out
}

func (m *Manager) reject(reason BlockReason, detail string) Decision {
	m.log.Warn().Str("reason", reason.String()).Str("detail", detail).Msg("trade blocked")
	return Decision{Accepted: false, Reason: reason, Detail: detail}
}

func validStop(side Side, entry, stop float64) bool {
	if stop <= 0 {
		return false
	}
	if side == Long {
		return stop < entry
	}
	return stop > entry
}

func validTarget(side Side, entry, target float64) bool {
	if target <= 0 {
		return false
	}
	if side == Long {
		return target > entry
	}
	return target < entry
}
