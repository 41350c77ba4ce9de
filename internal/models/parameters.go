package models

import "time"

// MonthWeights maps the whole-calendar-month age of a session to its weight
// in the weighted median. Sessions three or more months old share one weight.
type MonthWeights struct {
	Current   float64 `json:"0"`
	OneMonth  float64 `json:"1"`
	TwoMonths float64 `json:"2"`
	Older     float64 `json:"3+"`
}

// Weight returns the decay weight for a month offset.
func (w MonthWeights) Weight(offset int) float64 {
	switch {
	case offset <= 0:
		return w.Current
	case offset == 1:
		return w.OneMonth
	case offset == 2:
		return w.TwoMonths
	default:
		return w.Older
	}
}

// PredictionParameters is the singleton record of tunables shared by the
// scheduler and the predictor.
type PredictionParameters struct {
	PollIntervalOpenMs        int64        `json:"pollIntervalOpenMs"`
	PollIntervalClosedMs      int64        `json:"pollIntervalClosedMs"`
	PollIntervalNightMs       int64        `json:"pollIntervalNightMs"`
	NightStartHour            int          `json:"nightStartHour"`
	NightEndHour              int          `json:"nightEndHour"`
	HistoryLimitDays          int          `json:"historyLimitDays"`
	MinSessionDurationMinutes int          `json:"minSessionDurationMinutes"`
	LookbackMonths            int          `json:"lookbackMonths"`
	WeightByMonthOffset       MonthWeights `json:"weightByMonthOffset"`
}

// minPollIntervalMs keeps a misconfigured dashboard from hammering the status API.
const minPollIntervalMs = 1000

// maxPollIntervalMs caps intervals at one day, well below time.Duration overflow.
const maxPollIntervalMs = int64(24 * time.Hour / time.Millisecond)

// DefaultParameters returns the parameters used when nothing is stored yet.
func DefaultParameters() PredictionParameters {
	return PredictionParameters{
		PollIntervalOpenMs:        60_000,
		PollIntervalClosedMs:      30_000,
		PollIntervalNightMs:       600_000,
		NightStartHour:            22,
		NightEndHour:              6,
		HistoryLimitDays:          365,
		MinSessionDurationMinutes: 30,
		LookbackMonths:            6,
		WeightByMonthOffset: MonthWeights{
			Current:   1.0,
			OneMonth:  0.75,
			TwoMonths: 0.5,
			Older:     0.25,
		},
	}
}

// Validate checks that all parameter fields are valid
func (p *PredictionParameters) Validate() error {
	if p.PollIntervalOpenMs < minPollIntervalMs || p.PollIntervalOpenMs > maxPollIntervalMs {
		return invalid("pollIntervalOpenMs must be between %d and %d", minPollIntervalMs, maxPollIntervalMs)
	}
	if p.PollIntervalClosedMs < minPollIntervalMs || p.PollIntervalClosedMs > maxPollIntervalMs {
		return invalid("pollIntervalClosedMs must be between %d and %d", minPollIntervalMs, maxPollIntervalMs)
	}
	if p.PollIntervalNightMs < minPollIntervalMs || p.PollIntervalNightMs > maxPollIntervalMs {
		return invalid("pollIntervalNightMs must be between %d and %d", minPollIntervalMs, maxPollIntervalMs)
	}
	if p.NightStartHour < 0 || p.NightStartHour > 23 {
		return invalid("nightStartHour must be between 0 and 23")
	}
	if p.NightEndHour < 0 || p.NightEndHour > 23 {
		return invalid("nightEndHour must be between 0 and 23")
	}
	if p.HistoryLimitDays < 1 {
		return invalid("historyLimitDays must be at least 1")
	}
	if p.MinSessionDurationMinutes < 0 {
		return invalid("minSessionDurationMinutes must not be negative")
	}
	if p.LookbackMonths < 1 {
		return invalid("lookbackMonths must be at least 1")
	}

	w := p.WeightByMonthOffset
	if w.Current < 0 || w.OneMonth < 0 || w.TwoMonths < 0 || w.Older < 0 {
		return invalid("weightByMonthOffset values must not be negative")
	}
	if w.Current+w.OneMonth+w.TwoMonths+w.Older == 0 {
		return invalid("weightByMonthOffset must contain at least one positive weight")
	}
	return nil
}

// OpenInterval returns the polling interval while the room is open.
func (p *PredictionParameters) OpenInterval() time.Duration {
	return time.Duration(p.PollIntervalOpenMs) * time.Millisecond
}

// ClosedInterval returns the polling interval while the room is closed.
func (p *PredictionParameters) ClosedInterval() time.Duration {
	return time.Duration(p.PollIntervalClosedMs) * time.Millisecond
}

// NightInterval returns the polling interval inside the night window.
func (p *PredictionParameters) NightInterval() time.Duration {
	return time.Duration(p.PollIntervalNightMs) * time.Millisecond
}

// ParametersPatch is a partial parameter update. Nil fields keep their
// stored value.
type ParametersPatch struct {
	PollIntervalOpenMs        *int64             `json:"pollIntervalOpenMs"`
	PollIntervalClosedMs      *int64             `json:"pollIntervalClosedMs"`
	PollIntervalNightMs       *int64             `json:"pollIntervalNightMs"`
	NightStartHour            *int               `json:"nightStartHour"`
	NightEndHour              *int               `json:"nightEndHour"`
	HistoryLimitDays          *int               `json:"historyLimitDays"`
	MinSessionDurationMinutes *int               `json:"minSessionDurationMinutes"`
	LookbackMonths            *int               `json:"lookbackMonths"`
	WeightByMonthOffset       *MonthWeightsPatch `json:"weightByMonthOffset"`
}

// MonthWeightsPatch is a partial update of MonthWeights.
type MonthWeightsPatch struct {
	Current   *float64 `json:"0"`
	OneMonth  *float64 `json:"1"`
	TwoMonths *float64 `json:"2"`
	Older     *float64 `json:"3+"`
}

// Apply returns p with the patch's non-nil fields applied. The result is
// not validated.
func (patch ParametersPatch) Apply(p PredictionParameters) PredictionParameters {
	setInt64(&p.PollIntervalOpenMs, patch.PollIntervalOpenMs)
	setInt64(&p.PollIntervalClosedMs, patch.PollIntervalClosedMs)
	setInt64(&p.PollIntervalNightMs, patch.PollIntervalNightMs)
	setInt(&p.NightStartHour, patch.NightStartHour)
	setInt(&p.NightEndHour, patch.NightEndHour)
	setInt(&p.HistoryLimitDays, patch.HistoryLimitDays)
	setInt(&p.MinSessionDurationMinutes, patch.MinSessionDurationMinutes)
	setInt(&p.LookbackMonths, patch.LookbackMonths)

	if w := patch.WeightByMonthOffset; w != nil {
		setFloat(&p.WeightByMonthOffset.Current, w.Current)
		setFloat(&p.WeightByMonthOffset.OneMonth, w.OneMonth)
		setFloat(&p.WeightByMonthOffset.TwoMonths, w.TwoMonths)
		setFloat(&p.WeightByMonthOffset.Older, w.Older)
	}
	return p
}

func setInt64(dst *int64, v *int64) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
