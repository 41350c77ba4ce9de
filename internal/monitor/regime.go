package monitor

import (
	"time"

	"github.com/KimpiegamesYT1/vissstick/internal/models"
)

// InNightWindow reports whether hour lies in [start, end). The window wraps
// across midnight when start > end; start == end disables it.
func InNightWindow(hour, start, end int) bool {
	switch {
	case start == end:
		return false
	case start < end:
		return hour >= start && hour < end
	default:
		return hour >= start || hour < end
	}
}

// SelectInterval returns the polling interval for the given local hour and
// state, and whether the night window applied. The night interval overrides
// the open/closed choice.
func SelectInterval(params models.PredictionParameters, hour int, open bool) (time.Duration, bool) {
	if InNightWindow(hour, params.NightStartHour, params.NightEndHour) {
		return params.NightInterval(), true
	}
	if open {
		return params.OpenInterval(), false
	}
	return params.ClosedInterval(), false
}

// UntilNightBoundary returns the time from now until the next full hour at
// which the night window starts or ends. ok is false when the window is
// disabled.
func UntilNightBoundary(now time.Time, start, end int) (time.Duration, bool) {
	if start == end {
		return 0, false
	}

	next := nextHour(now, start)
	if e := nextHour(now, end); e.Before(next) {
		next = e
	}
	return next.Sub(now), true
}

// nextHour returns the first instant strictly after now at which the local
// clock reads hour:00.
func nextHour(now time.Time, hour int) time.Time {
	t := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !t.After(now) {
		t = time.Date(now.Year(), now.Month(), now.Day()+1, hour, 0, 0, 0, now.Location())
	}
	return t
}
