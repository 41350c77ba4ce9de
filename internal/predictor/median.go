package predictor

import (
	"math"
	"sort"
	"time"
)

// boundaryEpsilon is the tolerance for deciding that the cumulative weight
// lands exactly on the halfway point.
const boundaryEpsilon = 1e-9

// Sample is one weighted observation.
type Sample struct {
	Value  float64
	Weight float64
}

// WeightedMedian returns the weighted median of samples and false when there
// are none.
//
// Samples are sorted by value and walked in order, accumulating weight. The
// median is the value at which the cumulative weight first reaches half of
// the total. When it lands exactly on the halfway point the value is averaged
// with the next weighted value. If every weight is zero the samples count
// equally.
func WeightedMedian(samples []Sample) (float64, bool) {
	if len(samples) == 0 {
		return 0, false
	}

	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Value < sorted[j].Value
	})

	var total float64
	for _, s := range sorted {
		total += s.Weight
	}
	if total <= boundaryEpsilon {
		for i := range sorted {
			sorted[i].Weight = 1
		}
		total = float64(len(sorted))
	}

	half := total / 2
	var cumulative float64
	for i, s := range sorted {
		cumulative += s.Weight
		if cumulative < half-boundaryEpsilon {
			continue
		}
		if math.Abs(cumulative-half) <= boundaryEpsilon {
			if next, ok := nextWeighted(sorted, i+1); ok {
				return (s.Value + next) / 2, true
			}
		}
		return s.Value, true
	}

	// Unreachable with non-negative weights; guards against rounding.
	return sorted[len(sorted)-1].Value, true
}

func nextWeighted(sorted []Sample, from int) (float64, bool) {
	for j := from; j < len(sorted); j++ {
		if sorted[j].Weight > 0 {
			return sorted[j].Value, true
		}
	}
	return 0, false
}

// MonthOffset returns the whole-calendar-month distance from date to now.
// Dates in the same calendar month as now, or later, have offset 0.
func MonthOffset(now, date time.Time) int {
	offset := (now.Year()*12 + int(now.Month())) - (date.Year()*12 + int(date.Month()))
	if offset < 0 {
		return 0
	}
	return offset
}
