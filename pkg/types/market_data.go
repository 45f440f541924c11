package types

import "time"

type OHLCV struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}

// AccountSnapshot is the account state supplied by the host each cycle.
type AccountSnapshot struct {
	Equity    float64
	Balance   float64
	Timestamp time.Time
}

// Reversed returns a copy of bars in the opposite order. The host bar feed
// delivers series newest-first; the detectors work on chronological slices.
func Reversed(bars []OHLCV) []OHLCV {
	out := make([]OHLCV, len(bars))
	for i, b := range bars {
		out[len(bars)-1-i] = b
	}
	return out
}
