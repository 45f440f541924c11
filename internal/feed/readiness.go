package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/quantframe/decision-engine/internal/regime"
	"github.com/quantframe/decision-engine/pkg/types"
)

// ReadinessPoller wraps an IndicatorFeed with an explicit readiness state
// machine. Startup waits with bounded exponential backoff; inside the
// evaluation loop only the non-blocking Check and Collect are used, so a
// slow indicator can never stall a cycle.
type ReadinessPoller struct {
	feed       IndicatorFeed
	timeframes []types.Timeframe
	minBars    int
	maxWait    time.Duration
	log        zerolog.Logger
}

// NewReadinessPoller creates a poller over the given timeframes.
func NewReadinessPoller(f IndicatorFeed, timeframes []types.Timeframe, minBars int, maxWait time.Duration, log zerolog.Logger) *ReadinessPoller {
	return &ReadinessPoller{
		feed:       f,
		timeframes: timeframes,
		minBars:    minBars,
		maxWait:    maxWait,
		log:        log.With().Str("component", "feed").Logger(),
	}
}

// Check reports whether every timeframe has enough calculated bars. It
// never blocks.
func (p *ReadinessPoller) Check() bool {
	for _, tf := range p.timeframes {
		if !p.feed.Ready(tf, p.minBars) {
			return false
		}
	}
	return true
}

// WaitReady blocks until the feed is ready, the backoff budget is spent, or
// the context is cancelled. Intended for startup, not the evaluation loop.
func (p *ReadinessPoller) WaitReady(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = p.maxWait

	attempt := 0
	op := func() error {
		attempt++
		if p.Check() {
			return nil
		}
		p.log.Debug().Int("attempt", attempt).Msg("indicator feed not ready, backing off")
		return ErrNotReady
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return fmt.Errorf("feed: readiness wait exhausted after %d attempts: %w", attempt, ErrNotReady)
	}
	return nil
}

// Collect gathers a complete set of regime readings, or ErrNotReady when
// any required value is unavailable.
func (p *ReadinessPoller) Collect(primary types.Timeframe, confirming [2]types.Timeframe) (regime.Readings, error) {
	if !p.Check() {
		return regime.Readings{}, ErrNotReady
	}

	r := regime.Readings{
		Timestamp:     time.Now(),
		TrendStrength: make(map[types.Timeframe]float64, 3),
	}

	for _, tf := range []types.Timeframe{primary, confirming[0], confirming[1]} {
		v, err := p.feed.TrendStrength(tf)
		if err != nil {
			return regime.Readings{}, fmt.Errorf("feed: trend strength %s: %w", tf, ErrNotReady)
		}
		r.TrendStrength[tf] = v
	}

	plus, minus, err := p.feed.Directional(primary)
	if err != nil {
		return regime.Readings{}, fmt.Errorf("feed: directional %s: %w", primary, ErrNotReady)
	}
	r.PlusDI, r.MinusDI = plus, minus

	atr, avg, err := p.feed.Volatility(primary)
	if err != nil {
		return regime.Readings{}, fmt.Errorf("feed: volatility %s: %w", primary, ErrNotReady)
	}
	r.ATR, r.ATRAverage = atr, avg

	return r, nil
}
