// Package models defines the core domain entities for the vissstick monitor.
// These models represent recorded open/close transitions, the sessions derived
// from them, the tunable prediction parameters and prediction results.
// Models that cross a persistence or API boundary carry built-in validation.
//
// Terminology:
//   - Transition event: the minute at which the monitored room flipped state.
//   - Session: the merged open-to-close interval of one calendar day.
package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the layout of a date key, e.g. "2024-01-08".
const DateLayout = "2006-01-02"

// TimeLayout is the layout of a time of day with minute resolution, e.g. "09:00".
const TimeLayout = "15:04"

// ErrValidation is wrapped by every validation failure in this package.
var ErrValidation = errors.New("validation failed")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// TransitionEvent is a recorded state flip of the monitored room.
// The weekday is always derived from DateKey and never stored.
type TransitionEvent struct {
	ID        string    `json:"id"`
	DateKey   string    `json:"date"`      // Local calendar date, YYYY-MM-DD
	TimeOfDay string    `json:"time"`      // Local time, HH:MM
	IsOpening bool      `json:"isOpening"` // true = opened, false = closed
	CreatedAt time.Time `json:"createdAt"`
}

// NewTransitionEvent builds an event for the local minute of at.
func NewTransitionEvent(at time.Time, isOpening bool) TransitionEvent {
	return TransitionEvent{
		ID:        uuid.New().String(),
		DateKey:   DateKeyOf(at),
		TimeOfDay: at.Format(TimeLayout),
		IsOpening: isOpening,
		CreatedAt: at,
	}
}

// Validate checks that all event fields are valid
func (e *TransitionEvent) Validate() error {
	if e.ID == "" {
		return invalid("event ID must not be empty")
	}
	if _, err := ParseDateKey(e.DateKey); err != nil {
		return err
	}
	if _, err := ParseTimeOfDay(e.TimeOfDay); err != nil {
		return err
	}
	return nil
}

// Minutes returns the event time as minutes since midnight.
func (e *TransitionEvent) Minutes() (int, error) {
	return ParseTimeOfDay(e.TimeOfDay)
}

// Weekday derives the weekday from the event's date key.
func (e *TransitionEvent) Weekday() (time.Weekday, error) {
	return WeekdayOf(e.DateKey)
}

// Direction returns "open" or "close".
func (e *TransitionEvent) Direction() string {
	if e.IsOpening {
		return "open"
	}
	return "close"
}

// DateKeyOf returns the date key of t in t's own location.
func DateKeyOf(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDateKey parses a YYYY-MM-DD date key as a UTC calendar date.
func ParseDateKey(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, invalid("date %q must be YYYY-MM-DD", s)
	}
	return d, nil
}

// WeekdayOf returns the weekday of a date key. Parsing as a plain calendar
// date keeps the result independent of time zone and locale.
func WeekdayOf(dateKey string) (time.Weekday, error) {
	d, err := ParseDateKey(dateKey)
	if err != nil {
		return 0, err
	}
	return d.Weekday(), nil
}

// ParseTimeOfDay converts "HH:MM" into minutes since midnight. Both fields
// must be zero-padded so that stored times sort as text.
func ParseTimeOfDay(s string) (int, error) {
	if len(s) != len(TimeLayout) || s[2] != ':' {
		return 0, invalid("time %q must be HH:MM", s)
	}
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return 0, invalid("time %q must be HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatMinutes renders minutes since midnight as "HH:MM".
func FormatMinutes(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
