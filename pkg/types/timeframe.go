package types

import (
	"fmt"
	"time"
)

// Timeframe identifies a bar aggregation period.
type Timeframe int

const (
	TimeframeM5 Timeframe = iota
	TimeframeM15
	TimeframeH1
	TimeframeH4
	TimeframeD1
)

func (tf Timeframe) String() string {
	switch tf {
	case TimeframeM5:
		return "M5"
	case TimeframeM15:
		return "M15"
	case TimeframeH1:
		return "H1"
	case TimeframeH4:
		return "H4"
	case TimeframeD1:
		return "D1"
	default:
		return "UNKNOWN"
	}
}

// Duration returns the bar period length.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TimeframeM5:
		return 5 * time.Minute
	case TimeframeM15:
		return 15 * time.Minute
	case TimeframeH1:
		return time.Hour
	case TimeframeH4:
		return 4 * time.Hour
	case TimeframeD1:
		return 24 * time.Hour
	default:
		return time.Hour
	}
}

// ParseTimeframe converts a config string like "H1" to a Timeframe.
func ParseTimeframe(s string) (Timeframe, error) {
	switch s {
	case "M5":
		return TimeframeM5, nil
	case "M15":
		return TimeframeM15, nil
	case "H1":
		return TimeframeH1, nil
	case "H4":
		return TimeframeH4, nil
	case "D1":
		return TimeframeD1, nil
	default:
		return TimeframeH1, fmt.Errorf("unknown timeframe %q", s)
	}
}
