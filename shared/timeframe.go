package shared

import (
	"fmt"
	"time"
)

const (
	// DateLayout is the format layout for parsing dates.
	DateLayout = "2006-01-02 15:04:05"
)

// Timeframe represents the market data time period, expressed in minutes.
type Timeframe int

const (
	OneMinute        Timeframe = 1
	FiveMinute       Timeframe = 5
	FifteenMinute    Timeframe = 15
	ThirtyMinute     Timeframe = 30
	SixtyMinute      Timeframe = 60
	SixtyOneMinute   Timeframe = 61
	TwoHourPrime     Timeframe = 121
	FourHour         Timeframe = 240
	OneDay           Timeframe = 1440
)

// MultiplexTimeframes is the fixed set of timeframes evaluated by the
// multiplex engine. The 61 and 121 minute frames are deliberately prime-like
// to reduce overlap with common algorithmic patterns.
func MultiplexTimeframes() []Timeframe {
	return []Timeframe{OneMinute, FiveMinute, FifteenMinute, ThirtyMinute,
		SixtyMinute, SixtyOneMinute, TwoHourPrime, FourHour, OneDay}
}

// String stringifies the provided timeframe.
func (t Timeframe) String() string {
	switch {
	case t == OneDay:
		return "1d"
	case t == FourHour:
		return "4h"
	case t%60 == 0:
		return fmt.Sprintf("%dh", t/60)
	default:
		return fmt.Sprintf("%dm", t)
	}
}

// Duration returns the wall clock duration of the timeframe.
func (t Timeframe) Duration() time.Duration {
	return time.Duration(t) * time.Minute
}

// Truncate aligns the provided time to the open of the timeframe bucket
// containing it.
func (t Timeframe) Truncate(at time.Time) time.Time {
	return at.Truncate(t.Duration())
}
