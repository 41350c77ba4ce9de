// Package predictor reconstructs daily sessions from the transition event log
// and predicts typical opening and closing times per weekday.
//
// For a target weekday every session inside the lookback window is weighted
// by its age in whole calendar months:
//
//	weight = weightByMonthOffset[min(monthsAgo, 3)]
//
// The predicted open and close times are independent weighted medians over
// the sessions' open and close minutes.
//
// Nothing is cached: sessions and predictions are re-derived from the stores
// on every call, so parameter and log writes are visible immediately.
package predictor

import (
	"fmt"
	"math"
	"time"

	"github.com/KimpiegamesYT1/vissstick/internal/models"
)

// EventSource reads the transition event log.
type EventSource interface {
	GetEventsSince(dateKey string) ([]models.TransitionEvent, error)
}

// ParameterSource reads the current prediction parameters.
type ParameterSource interface {
	GetParameters() (models.PredictionParameters, error)
}

// Predictor derives sessions and weekday predictions on demand
type Predictor struct {
	events EventSource
	params ParameterSource
	now    func() time.Time
}

// New creates a Predictor. A nil clock defaults to time.Now.
func New(events EventSource, params ParameterSource, now func() time.Time) *Predictor {
	if now == nil {
		now = time.Now
	}
	return &Predictor{
		events: events,
		params: params,
		now:    now,
	}
}

// Predict returns the prediction for one weekday.
func (p *Predictor) Predict(weekday time.Weekday) (models.Prediction, error) {
	week, err := p.PredictWeek()
	if err != nil {
		return models.Prediction{}, err
	}
	return week[weekday], nil
}

// PredictWeek returns predictions for all seven weekdays, indexed by
// time.Weekday, from a single read of the stores.
func (p *Predictor) PredictWeek() ([7]models.Prediction, error) {
	var week [7]models.Prediction

	params, err := p.params.GetParameters()
	if err != nil {
		return week, fmt.Errorf("failed to load parameters: %w", err)
	}

	now := p.now()
	cutoff := models.DateKeyOf(now.AddDate(0, -params.LookbackMonths, 0))
	events, err := p.events.GetEventsSince(cutoff)
	if err != nil {
		return week, fmt.Errorf("failed to load events: %w", err)
	}

	sessions := ReconstructAll(events, params.MinSessionDurationMinutes)
	for d := time.Sunday; d <= time.Saturday; d++ {
		week[d] = predictWeekday(sessions, d, params.WeightByMonthOffset, now)
	}
	return week, nil
}

// Sessions returns the sessions of the last days calendar days (today
// included), reconstructed with the given minimum duration. days <= 0 covers
// the whole log.
func (p *Predictor) Sessions(days, minDuration int) (map[string]models.Session, error) {
	since := ""
	if days > 0 {
		since = models.DateKeyOf(p.now().AddDate(0, 0, -(days - 1)))
	}
	events, err := p.events.GetEventsSince(since)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	return ReconstructAll(events, minDuration), nil
}

func predictWeekday(sessions map[string]models.Session, weekday time.Weekday, weights models.MonthWeights, now time.Time) models.Prediction {
	var opens, closes []Sample
	for _, s := range sessions {
		if s.Weekday != weekday {
			continue
		}
		date, err := models.ParseDateKey(s.Date)
		if err != nil {
			continue
		}
		w := weights.Weight(MonthOffset(now, date))
		opens = append(opens, Sample{Value: float64(s.OpenMinutes), Weight: w})
		closes = append(closes, Sample{Value: float64(s.CloseMinutes), Weight: w})
	}

	prediction := models.Prediction{Weekday: weekday}
	open, ok := WeightedMedian(opens)
	if !ok {
		return prediction
	}
	closeAt, _ := WeightedMedian(closes)

	prediction.OpenMinutes = int(math.Round(open))
	prediction.CloseMinutes = int(math.Round(closeAt))
	prediction.DataPoints = len(opens)
	return prediction
}
