package predictor

import (
	"github.com/KimpiegamesYT1/vissstick/internal/models"
)

// Reconstruct builds at most one session from one day's events, which must
// be in chronological order.
//
// Only the most recent unmatched opening is tracked. A closing pairs with it
// and the pair is valid when it lasts at least minDuration minutes. The
// session opens at the first valid pair's opening and closes at the last
// valid pair's closing, so several cycles in one day merge into one session.
// Unpaired openings and closings contribute nothing.
func Reconstruct(date string, events []models.TransitionEvent, minDuration int) (models.Session, bool) {
	weekday, err := models.WeekdayOf(date)
	if err != nil {
		return models.Session{}, false
	}

	openTime := -1
	firstValidOpen := -1
	lastValidClose := -1

	for i := range events {
		minutes, err := events[i].Minutes()
		if err != nil {
			continue
		}

		if events[i].IsOpening {
			openTime = minutes
			continue
		}

		if openTime < 0 {
			continue
		}
		if minutes-openTime >= minDuration {
			if firstValidOpen < 0 {
				firstValidOpen = openTime
			}
			lastValidClose = minutes
		}
		openTime = -1
	}

	if firstValidOpen < 0 {
		return models.Session{}, false
	}

	return models.Session{
		Date:            date,
		Weekday:         weekday,
		OpenMinutes:     firstValidOpen,
		CloseMinutes:    lastValidClose,
		DurationMinutes: lastValidClose - firstValidOpen,
	}, true
}

// ReconstructAll groups a chronological event list by date and reconstructs
// each day. Days without a valid session are absent from the result.
func ReconstructAll(events []models.TransitionEvent, minDuration int) map[string]models.Session {
	byDate := make(map[string][]models.TransitionEvent)
	var dates []string
	for _, e := range events {
		if _, seen := byDate[e.DateKey]; !seen {
			dates = append(dates, e.DateKey)
		}
		byDate[e.DateKey] = append(byDate[e.DateKey], e)
	}

	sessions := make(map[string]models.Session, len(dates))
	for _, date := range dates {
		if s, ok := Reconstruct(date, byDate[date], minDuration); ok {
			sessions[date] = s
		}
	}
	return sessions
}
