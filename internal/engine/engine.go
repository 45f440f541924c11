package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantframe/decision-engine/internal/feed"
	"github.com/quantframe/decision-engine/internal/levels"
	"github.com/quantframe/decision-engine/internal/monitoring"
	"github.com/quantframe/decision-engine/internal/pattern"
	"github.com/quantframe/decision-engine/internal/regime"
	"github.com/quantframe/decision-engine/internal/risk"
	"github.com/quantframe/decision-engine/pkg/types"
)

// Config holds the engine-level orchestration parameters.
type Config struct {
	Symbol   string
	Lookback int

	// Signal qualification thresholds.
	MinTriangleConfidence float64
	MinBreakoutProb       float64
	MinRegimeConfidence   float64
	TradeTrendRegimes     bool
}

// DefaultConfig returns the engine orchestration defaults.
func DefaultConfig() Config {
	return Config{
		Symbol:                "EURUSD",
		Lookback:              120,
		MinTriangleConfidence: 0.55,
		MinBreakoutProb:       0.60,
		MinRegimeConfidence:   0.65,
		TradeTrendRegimes:     true,
	}
}

// Validate checks configuration consistency.
func (c Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("engine: symbol must not be empty")
	}
	if c.Lookback < 30 {
		return fmt.Errorf("engine: lookback must be at least 30 bars, got %d", c.Lookback)
	}
	for name, v := range map[string]float64{
		"triangle confidence":  c.MinTriangleConfidence,
		"breakout probability": c.MinBreakoutProb,
		"regime confidence":    c.MinRegimeConfidence,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("engine: minimum %s %.3f out of [0, 1]", name, v)
		}
	}
	return nil
}

// View is the host/UI-facing snapshot of the latest cycle: the regime, the
// post-reclassification level set, the current pattern and the open
// positions.
type View struct {
	Regime    regime.Snapshot
	Levels    []levels.KeyLevel
	Triangle  pattern.Triangle
	Positions []risk.Position
	Price     float64
	UpdatedAt time.Time
}

// Engine runs the evaluation cycle: regime first, detections next, risk
// last. Everything executes synchronously on the caller's goroutine; the
// view is replaced wholesale at the end of each cycle.
type Engine struct {
	cfg     Config
	session *Session
	log     zerolog.Logger

	poller   *feed.ReadinessPoller
	barFeed  feed.BarFeed
	accounts feed.AccountFeed
	sink     feed.OrderSink

	classifier *regime.Classifier
	regimeCfg  regime.Config
	levelDet   *levels.Detector
	triDet     *pattern.Detector
	riskMgr    *risk.Manager

	prevRegime regime.Regime
	havePrev   bool
	view       View
}

// New wires an engine from validated configs and live collaborators.
func New(
	cfg Config,
	regimeCfg regime.Config,
	classifier *regime.Classifier,
	levelDet *levels.Detector,
	triDet *pattern.Detector,
	riskMgr *risk.Manager,
	poller *feed.ReadinessPoller,
	barFeed feed.BarFeed,
	accounts feed.AccountFeed,
	sink feed.OrderSink,
	log zerolog.Logger,
) *Engine {
	return &Engine{
		cfg:        cfg,
		session:    NewSession(log),
		log:        log.With().Str("component", "engine").Logger(),
		poller:     poller,
		barFeed:    barFeed,
		accounts:   accounts,
		sink:       sink,
		classifier: classifier,
		regimeCfg:  regimeCfg,
		levelDet:   levelDet,
		triDet:     triDet,
		riskMgr:    riskMgr,
	}
}

// Session exposes the engine's session context.
func (e *Engine) Session() *Session {
	return e.session
}

// View returns the latest cycle snapshot.
func (e *Engine) View() View {
	return e.view
}

// RunCycle executes one full evaluation cycle. Data unavailability is a
// no-op cycle, never an error; only feed faults that indicate real trouble
// propagate.
func (e *Engine) RunCycle(ctx context.Context) error {
	started := time.Now()
	defer func() { monitoring.ObserveCycle(time.Since(started)) }()

	readings, err := e.poller.Collect(e.regimeCfg.Primary, e.regimeCfg.Confirming)
	if err != nil {
		if errors.Is(err, feed.ErrNotReady) {
			e.session.WarnOnce("indicators_not_ready", "indicator feed not ready, skipping cycle")
			return nil
		}
		return fmt.Errorf("engine: collect readings: %w", err)
	}

	newest, err := e.barFeed.Bars(e.regimeCfg.Primary, e.cfg.Lookback)
	if err != nil {
		if errors.Is(err, feed.ErrNotReady) {
			e.session.WarnOnce("bars_not_ready", "bar feed not ready, skipping cycle")
			return nil
		}
		return fmt.Errorf("engine: fetch bars: %w", err)
	}
	bars := types.Reversed(newest)
	if len(bars) < e.cfg.Lookback {
		e.session.WarnOnce("short_history", "bar history below lookback, skipping cycle")
		return nil
	}
	price := bars[len(bars)-1].Close
	monitoring.UpdatePrice(e.cfg.Symbol, price)

	// Ordering guarantee: the regime updates before any detector that
	// consults it, and risk runs last against the finalized world view.
	snap, ok := e.classifier.Update(readings)
	if !ok {
		e.session.WarnOnce("regime_readings_incomplete", "incomplete readings, holding previous regime")
	}
	monitoring.RecordRegime(snap.Regime.String(), snap.Confidence)

	e.levelDet.Detect(bars, e.cfg.Lookback, readings.ATR)
	e.levelDet.Reclassify(price)
	lvls := e.levelDet.Levels()

	tri := e.triDet.Detect(bars, e.cfg.Lookback)

	acct, err := e.accounts.Snapshot()
	if err != nil {
		return fmt.Errorf("engine: account snapshot: %w", err)
	}
	enabled, guardEvents := e.riskMgr.CheckDrawdown(acct.Equity)
	e.publishEvents(ctx, guardEvents)

	signals := buildSignals(snap, lvls, tri)
	for _, sig := range signals {
		monitoring.RecordSignal(sig.Kind.String())
		if enabled {
			e.dispatch(ctx, sig, snap, price, readings.ATR)
		}
	}

	events := e.riskMgr.OnTick(price, readings.ATR, time.Now())
	e.publishEvents(ctx, events)

	positions := e.riskMgr.Positions()
	monitoring.SetOpenPositions(len(positions))

	e.view = View{
		Regime:    snap,
		Levels:    lvls,
		Triangle:  tri,
		Positions: positions,
		Price:     price,
		UpdatedAt: time.Now(),
	}

	e.prevRegime = snap.Regime
	e.havePrev = true
	return nil
}

// dispatch routes one qualifying signal into the risk manager. Level
// signals are contextual only: they refine stops but never open trades on
// their own.
func (e *Engine) dispatch(ctx context.Context, sig Signal, snap regime.Snapshot, price, atr float64) {
	switch sig.Kind {
	case SignalTriangle:
		e.dispatchTriangle(ctx, *sig.Triangle, snap, price, atr)
	case SignalRegime:
		e.dispatchRegime(ctx, *sig.Regime, price, atr)
	case SignalLevel:
		e.log.Debug().
			Float64("level", sig.Level.Price).
			Str("kind", sig.Level.Kind.String()).
			Float64("strength", sig.Level.Strength).
			Msg("key level")
	}
}

func (e *Engine) dispatchTriangle(ctx context.Context, tri pattern.Triangle, snap regime.Snapshot, price, atr float64) {
	if tri.Confidence < e.cfg.MinTriangleConfidence || tri.BreakoutProb < e.cfg.MinBreakoutProb {
		return
	}
	// Volatility blowouts invalidate measured-move projections.
	if snap.Regime == regime.RegimeHighVolatility {
		return
	}

	side := risk.Short
	if tri.BreakoutUpward {
		side = risk.Long
	}
	req := risk.OpenRequest{
		Side:          side,
		Entry:         price,
		ATR:           atr,
		Regime:        snap.Regime,
		PatternTarget: tri.Target,
		PatternStop:   tri.Stop,
		Tag:           fmt.Sprintf("%s|triangle:%s|regime:%s|session:%s", e.cfg.Symbol, tri.Kind, snap.Regime, e.session.ID()),
	}
	e.submit(ctx, e.riskMgr.Open(req))
}

// dispatchRegime opens a trend-following entry on the transition into a
// trending regime. Re-entries on every cycle of the same regime are
// suppressed.
func (e *Engine) dispatchRegime(ctx context.Context, snap regime.Snapshot, price, atr float64) {
	if !e.cfg.TradeTrendRegimes || !snap.Regime.Trending() {
		return
	}
	if snap.Confidence < e.cfg.MinRegimeConfidence {
		return
	}
	if e.havePrev && e.prevRegime == snap.Regime {
		return
	}

	side := risk.Long
	if snap.Regime == regime.RegimeTrendBear {
		side = risk.Short
	}
	req := risk.OpenRequest{
		Side:   side,
		Entry:  price,
		ATR:    atr,
		Regime: snap.Regime,
		Tag:    fmt.Sprintf("%s|trend:%s|session:%s", e.cfg.Symbol, snap.Regime, e.session.ID()),
	}

	// A strong level just beyond the ATR stop gives a tighter, structure-
	// aware stop.
	if refined, ok := e.levelStop(side, price, atr); ok {
		req.PatternStop = refined
	}

	e.submit(ctx, e.riskMgr.Open(req))
}

// levelStop looks for the strongest key level between the entry and the
// ATR stop and places the stop just beyond it.
func (e *Engine) levelStop(side risk.Side, price, atr float64) (float64, bool) {
	atrStop := e.riskMgr.StopLoss(price, atr, side)
	buffer := 0.1 * atr

	var best *levels.KeyLevel
	for _, lv := range e.levelDet.Levels() {
		lv := lv
		if side == risk.Long && lv.Kind == levels.Support && lv.Price > atrStop && lv.Price < price {
			if best == nil || lv.Strength > best.Strength {
				best = &lv
			}
		}
		if side == risk.Short && lv.Kind == levels.Resistance && lv.Price < atrStop && lv.Price > price {
			if best == nil || lv.Strength > best.Strength {
				best = &lv
			}
		}
	}
	if best == nil {
		return 0, false
	}
	if side == risk.Long {
		return best.Price - buffer, true
	}
	return best.Price + buffer, true
}

// submit forwards an accepted decision to the order sink and records
// rejections.
func (e *Engine) submit(ctx context.Context, dec risk.Decision) {
	if !dec.Accepted {
		monitoring.RecordBlockedTrade(dec.Reason.String())
		return
	}

	side := "SELL"
	if dec.Position.Side == risk.Long {
		side = "BUY"
	}
	order := feed.Order{
		Side:   side,
		Size:   dec.Position.Size,
		Stop:   dec.Position.Stop,
		Target: dec.Position.Target,
		Tag:    dec.Position.Tag,
	}
	if err := e.sink.Submit(ctx, order); err != nil {
		e.log.Error().Err(err).Str("position", dec.Position.ID).Msg("order submission failed")
		e.riskMgr.Close(dec.Position.ID)
		return
	}
	monitoring.RecordTradeOpened(side)
}

// publishEvents forwards lifecycle decisions to the order sink and metrics.
func (e *Engine) publishEvents(ctx context.Context, events []risk.Event) {
	for _, ev := range events {
		monitoring.RecordLifecycleEvent(ev.Type.String())
		e.log.Info().
			Str("event", ev.Type.String()).
			Str("position", ev.PositionID).
			Float64("price", ev.Price).
			Float64("stop", ev.Stop).
			Str("detail", ev.Detail).
			Msg("position management event")

		switch ev.Type {
		case risk.EventBreakeven, risk.EventTrailingStop:
			if err := e.sink.ModifyStop(ctx, ev.PositionID, ev.Stop); err != nil {
				e.log.Error().Err(err).Str("position", ev.PositionID).Msg("stop modification failed")
			}
		case risk.EventPartialClose:
			if err := e.sink.ClosePartial(ctx, ev.PositionID, ev.Size); err != nil {
				e.log.Error().Err(err).Str("position", ev.PositionID).Msg("partial close failed")
			}
		}
	}
}
