package feed

import (
	"context"
	"errors"

	"github.com/quantframe/decision-engine/pkg/types"
)

// ErrNotReady signals that a feed cannot serve values yet. It is a
// recoverable condition, never a hard failure: callers skip the cycle or
// back off.
var ErrNotReady = errors.New("feed: not ready")

// IndicatorFeed supplies already-computed indicator values per timeframe.
// The host platform owns the indicator primitives; the engine only consumes
// final readings.
type IndicatorFeed interface {
	// Ready reports whether at least minBars bars have been calculated for
	// the timeframe.
	Ready(tf types.Timeframe, minBars int) bool
	// TrendStrength returns the ADX-style trend strength reading.
	TrendStrength(tf types.Timeframe) (float64, error)
	// Directional returns the +DI/-DI pair.
	Directional(tf types.Timeframe) (plusDI, minusDI float64, err error)
	// Volatility returns the current ATR and its rolling mean.
	Volatility(tf types.Timeframe) (atr, avgATR float64, err error)
}

// BarFeed supplies OHLCV history. Bars are indexed newest-first, matching
// the host platform convention; use types.Reversed for chronological work.
type BarFeed interface {
	Bars(tf types.Timeframe, count int) ([]types.OHLCV, error)
}

// AccountFeed supplies equity and balance each cycle.
type AccountFeed interface {
	Snapshot() (types.AccountSnapshot, error)
}

// Order is a sized trade instruction handed to the host for routing. Tag
// carries opaque regime/pattern context for downstream attribution.
type Order struct {
	Side   string // "BUY" or "SELL"
	Size   float64
	Stop   float64
	Target float64
	Tag    string
}

// OrderSink accepts trade instructions and position adjustments. It is a
// sink only; detectors never consume from it.
type OrderSink interface {
	Submit(ctx context.Context, order Order) error
	ModifyStop(ctx context.Context, positionID string, stop float64) error
	ClosePartial(ctx context.Context, positionID string, size float64) error
}
