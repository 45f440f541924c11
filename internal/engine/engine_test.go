package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantframe/decision-engine/internal/feed"
	"github.com/quantframe/decision-engine/internal/levels"
	"github.com/quantframe/decision-engine/internal/pattern"
	"github.com/quantframe/decision-engine/internal/regime"
	"github.com/quantframe/decision-engine/internal/risk"
	"github.com/quantframe/decision-engine/pkg/types"
)

// fakeMarket plays the indicator, bar and account feed roles with values
// the test mutates between cycles.
type fakeMarket struct {
	ready  bool
	adx    float64
	plusDI float64
	minusD float64
	atr    float64
	avgATR float64
	price  float64
	equity float64
}

func (f *fakeMarket) Ready(tf types.Timeframe, minBars int) bool { return f.ready }

func (f *fakeMarket) TrendStrength(tf types.Timeframe) (float64, error) { return f.adx, nil }

func (f *fakeMarket) Directional(tf types.Timeframe) (float64, float64, error) {
	return f.plusDI, f.minusD, nil
}

func (f *fakeMarket) Volatility(tf types.Timeframe) (float64, float64, error) {
	return f.atr, f.avgATR, nil
}

// Bars returns newest-first bars drifting monotonically up to the current
// price, matching the host convention. A monotonic series keeps the pattern
// detector quiet so only regime transitions open trades in these tests.
func (f *fakeMarket) Bars(tf types.Timeframe, count int) ([]types.OHLCV, error) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	bars := make([]types.OHLCV, count)
	for i := 0; i < count; i++ {
		p := f.price - 0.05*float64(i)
		bars[i] = types.OHLCV{
			Open: p, High: p + 0.4, Low: p - 0.4, Close: p,
			Volume:    1000,
			Timestamp: now.Add(-time.Duration(i) * time.Hour),
		}
	}
	return bars, nil
}

func (f *fakeMarket) Snapshot() (types.AccountSnapshot, error) {
	return types.AccountSnapshot{Equity: f.equity, Balance: f.equity, Timestamp: time.Now()}, nil
}

// recordingSink captures every order-side action the engine takes.
type recordingSink struct {
	mu       sync.Mutex
	orders   []feed.Order
	stops    map[string]float64
	partials map[string]float64
}

func newRecordingSink() *recordingSink {
	return &recordingSink{stops: make(map[string]float64), partials: make(map[string]float64)}
}

func (s *recordingSink) Submit(ctx context.Context, o feed.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, o)
	return nil
}

func (s *recordingSink) ModifyStop(ctx context.Context, id string, stop float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops[id] = stop
	return nil
}

func (s *recordingSink) ClosePartial(ctx context.Context, id string, size float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partials[id] = size
	return nil
}

func newTestEngine(t *testing.T, market *fakeMarket, sink *recordingSink) *Engine {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Lookback = 40

	regimeCfg := regime.DefaultConfig()
	require.NoError(t, regimeCfg.Validate())
	require.NoError(t, cfg.Validate())

	riskCfg := risk.DefaultConfig()
	require.NoError(t, riskCfg.Validate())

	tfs := []types.Timeframe{regimeCfg.Primary, regimeCfg.Confirming[0], regimeCfg.Confirming[1]}
	poller := feed.NewReadinessPoller(market, tfs, 30, time.Second, zerolog.Nop())

	return New(
		cfg,
		regimeCfg,
		regime.NewClassifier(regimeCfg),
		levels.NewDetector(levels.DefaultConfig()),
		pattern.NewDetector(pattern.DefaultConfig()),
		risk.NewManager(riskCfg, zerolog.Nop()),
		poller,
		market,
		market,
		sink,
		zerolog.Nop(),
	)
}

// trendingMarket is ready and classifies as TREND_BULL with confidence well
// above the entry threshold.
func trendingMarket() *fakeMarket {
	return &fakeMarket{
		ready:  true,
		adx:    40,
		plusDI: 24,
		minusD: 11,
		atr:    1.4,
		avgATR: 1.2,
		price:  100,
		equity: 10000,
	}
}

func TestRunCycle_NotReadyIsNoOp(t *testing.T) {
	market := trendingMarket()
	market.ready = false
	sink := newRecordingSink()
	eng := newTestEngine(t, market, sink)

	require.NoError(t, eng.RunCycle(context.Background()))
	require.NoError(t, eng.RunCycle(context.Background()))

	assert.Empty(t, sink.orders)
	assert.True(t, eng.View().UpdatedAt.IsZero(), "a skipped cycle must not publish a view")
}

func TestRunCycle_PublishesView(t *testing.T) {
	market := trendingMarket()
	sink := newRecordingSink()
	eng := newTestEngine(t, market, sink)

	require.NoError(t, eng.RunCycle(context.Background()))

	v := eng.View()
	assert.Equal(t, regime.RegimeTrendBull, v.Regime.Regime)
	assert.GreaterOrEqual(t, v.Regime.Confidence, 0.65)
	assert.Equal(t, 100.0, v.Price)
	assert.False(t, v.UpdatedAt.IsZero())
}

func TestRunCycle_TrendEntryOnTransitionOnly(t *testing.T) {
	market := trendingMarket()
	sink := newRecordingSink()
	eng := newTestEngine(t, market, sink)

	require.NoError(t, eng.RunCycle(context.Background()))
	require.Len(t, sink.orders, 1, "entering a trending regime must open exactly one position")
	assert.Equal(t, "BUY", sink.orders[0].Side)
	assert.Greater(t, sink.orders[0].Size, 0.0)
	assert.Less(t, sink.orders[0].Stop, 100.0)
	assert.Contains(t, sink.orders[0].Tag, "trend:TREND_BULL")
	assert.Contains(t, sink.orders[0].Tag, "session:"+eng.Session().ID())

	// Same regime on later cycles: no re-entry.
	require.NoError(t, eng.RunCycle(context.Background()))
	require.NoError(t, eng.RunCycle(context.Background()))
	assert.Len(t, sink.orders, 1)
}

func TestRunCycle_BearTransitionSells(t *testing.T) {
	market := trendingMarket()
	market.plusDI, market.minusD = 11, 24
	sink := newRecordingSink()
	eng := newTestEngine(t, market, sink)

	require.NoError(t, eng.RunCycle(context.Background()))

	require.Len(t, sink.orders, 1)
	assert.Equal(t, "SELL", sink.orders[0].Side)
	assert.Greater(t, sink.orders[0].Stop, 100.0)
}

func TestRunCycle_DrawdownBlocksEntries(t *testing.T) {
	market := trendingMarket()
	sink := newRecordingSink()
	eng := newTestEngine(t, market, sink)

	require.NoError(t, eng.RunCycle(context.Background()))
	require.Len(t, sink.orders, 1)

	// A 30% drop breaches the 25% guard; flip the regime so a transition
	// entry would fire if trading were still allowed.
	market.equity = 7000
	market.plusDI, market.minusD = 11, 24
	require.NoError(t, eng.RunCycle(context.Background()))

	assert.Len(t, sink.orders, 1, "no entries while the drawdown guard is locked")
}

func TestRunCycle_ForwardsBreakevenToSink(t *testing.T) {
	market := trendingMarket()
	sink := newRecordingSink()
	eng := newTestEngine(t, market, sink)

	require.NoError(t, eng.RunCycle(context.Background()))
	require.Len(t, sink.orders, 1)

	// One ATR of profit arms breakeven; the new stop sits a buffer above
	// the entry.
	market.price = 102
	require.NoError(t, eng.RunCycle(context.Background()))

	positions := eng.View().Positions
	require.Len(t, positions, 1)
	require.Len(t, sink.stops, 1)
	assert.InDelta(t, 100.0+0.1*1.4, sink.stops[positions[0].ID], 1e-9)
	assert.Empty(t, sink.partials)
}

func TestRunCycle_ForwardsPartialCloseToSink(t *testing.T) {
	market := trendingMarket()
	sink := newRecordingSink()
	eng := newTestEngine(t, market, sink)

	require.NoError(t, eng.RunCycle(context.Background()))
	require.Len(t, sink.orders, 1)
	opened := sink.orders[0].Size

	// Two ATRs of profit triggers the partial close.
	market.price = 103
	require.NoError(t, eng.RunCycle(context.Background()))

	require.Len(t, sink.partials, 1)
	for _, size := range sink.partials {
		assert.InDelta(t, opened/2, size, opened*0.02)
	}
}

func TestBuildSignals_Order(t *testing.T) {
	snap := regime.Snapshot{Regime: regime.RegimeRanging, Confidence: 0.5}
	lvls := []levels.KeyLevel{
		{Price: 98, Kind: levels.Support},
		{Price: 103, Kind: levels.Resistance},
	}
	tri := pattern.Triangle{Active: true, Kind: pattern.KindAscending}

	signals := buildSignals(snap, lvls, tri)
	require.Len(t, signals, 4)
	assert.Equal(t, SignalRegime, signals[0].Kind)
	assert.Equal(t, SignalLevel, signals[1].Kind)
	assert.Equal(t, SignalLevel, signals[2].Kind)
	assert.Equal(t, SignalTriangle, signals[3].Kind)

	inactive := buildSignals(snap, nil, pattern.Triangle{})
	require.Len(t, inactive, 1)
	assert.Equal(t, SignalRegime, inactive[0].Kind)
}

func TestSession_WarnOnce(t *testing.T) {
	s := NewSession(zerolog.Nop())
	assert.NotEmpty(t, s.ID())
	s.WarnOnce("k", "first")
	s.WarnOnce("k", "suppressed")
	assert.False(t, s.Started().IsZero())
}
