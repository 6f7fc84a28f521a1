package phasesync

import (
	"fmt"
	"time"
)

// DefaultWarningThreshold is the remaining time below which the clock turns to a warning
const DefaultWarningThreshold = time.Minute

// Countdown derives the clock display from a deadline and the wall clock
type Countdown struct {
	Deadline         time.Time
	WarningThreshold time.Duration
}

// Remaining returns the whole seconds left, never negative
func (c Countdown) Remaining(now time.Time) time.Duration {
	if c.Deadline.IsZero() {
		return 0
	}
	left := c.Deadline.Sub(now).Truncate(time.Second)
	if left < 0 {
		return 0
	}
	return left
}

// Format renders the remaining time as m:ss
func (c Countdown) Format(now time.Time) string {
	return FormatRemaining(c.Remaining(now))
}

// Warning reports whether less than the warning threshold is left
func (c Countdown) Warning(now time.Time) bool {
	threshold := c.WarningThreshold
	if threshold <= 0 {
		threshold = DefaultWarningThreshold
	}
	return c.Remaining(now) < threshold
}

// FormatRemaining renders a duration as minutes and zero-padded seconds
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
