package models

import "time"

// Session is one reconstructed open-to-close interval for a calendar day.
// Multiple real cycles on the same day are merged into a single session.
type Session struct {
	Date            string       `json:"date"`
	Weekday         time.Weekday `json:"weekday"`
	OpenMinutes     int          `json:"openMinutes"`
	CloseMinutes    int          `json:"closeMinutes"`
	DurationMinutes int          `json:"durationMinutes"`
}

// Prediction holds the expected open and close time for a weekday.
// DataPoints is the number of sessions that contributed; zero means no data
// and the minute fields carry no meaning.
type Prediction struct {
	Weekday      time.Weekday `json:"weekday"`
	OpenMinutes  int          `json:"openMinutes"`
	CloseMinutes int          `json:"closeMinutes"`
	DataPoints   int          `json:"dataPoints"`
}

// HasData reports whether any session contributed to the prediction.
func (p Prediction) HasData() bool {
	return p.DataPoints > 0
}

// LogStats aggregates the event log.
type LogStats struct {
	TotalEvents  int    `json:"totalEvents"`
	EarliestDate string `json:"earliestDate,omitempty"`
	LatestDate   string `json:"latestDate,omitempty"`
}
