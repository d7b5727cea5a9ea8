// Package window aligns UTC instants to fixed-duration time buckets.
// Both market-data bucketing and the sweeper's age-in-bars arithmetic
// depend on the flooring here being deterministic.
package window

import "time"

// Floor returns the start of the window containing t for the given
// window size in minutes. Inputs are normalized to UTC; the result is a
// UTC instant on an exact window boundary.
func Floor(t time.Time, minutes int) time.Time {
	windowSeconds := int64(minutes) * 60
	sec := t.Unix()
	// Floor division, correct for instants before the epoch.
	start := sec - ((sec%windowSeconds)+windowSeconds)%windowSeconds
	return time.Unix(start, 0).UTC()
}

// Bounds returns the start and end of the window containing t.
func Bounds(t time.Time, minutes int) (time.Time, time.Time) {
	start := Floor(t, minutes)
	return start, start.Add(time.Duration(minutes) * time.Minute)
}

// SecondsFromStart returns how many seconds of the window containing t
// have elapsed.
func SecondsFromStart(t time.Time, minutes int) int64 {
	start := Floor(t, minutes)
	return t.Unix() - start.Unix()
}

// SecondsToEnd returns how many seconds remain until the window
// containing t ends.
func SecondsToEnd(t time.Time, minutes int) int64 {
	_, end := Bounds(t, minutes)
	return end.Unix() - t.Unix()
}

// BarsElapsed converts an age into whole bars of the given size,
// flooring. A 30 minute age with 15 minute bars is 2 bars.
func BarsElapsed(age time.Duration, minutes int) int {
	if minutes <= 0 {
		return 0
	}
	bar := time.Duration(minutes) * time.Minute
	if age < 0 {
		return 0
	}
	return int(age / bar)
}
