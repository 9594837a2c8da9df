package hrrcore

import (
	"math"
	"sort"
)

// ScoreConfidence combines magnitude, normalized recovery fraction, fit
// quality, and window completeness into one [0,1] weight for the interval's
// chosen HRR value. The weight scales how much the interval influences the
// long-run trend, so low-quality intervals contribute proportionally instead
// of being admitted or rejected outright. Missing sub-scores fall back to a
// neutral 0.5. The result is rounded to 3 decimals.
func ScoreConfidence(iv *DetectedInterval, cfg ConfidenceConfig) float64 {
	magnitude := 0.5
	if iv.PeakMinusRest != nil {
		magnitude = math.Min(1, *iv.PeakMinusRest/cfg.ActionableBPM)
	}

	fraction := 0.5
	if iv.HRR60Abs != nil && iv.PeakMinusRest != nil && *iv.PeakMinusRest > 0 {
		frac := *iv.HRR60Abs / *iv.PeakMinusRest
		fraction = math.Min(1, frac/cfg.ActionableFraction)
	}

	fit := 0.5
	if iv.TauFitR2 != nil {
		fit = clampTo(*iv.TauFitR2, 0, 1)
	}

	window := windowScore(iv.RunEndIndex - iv.PeakIndex)

	total := cfg.MagnitudeWeight + cfg.FractionWeight + cfg.FitWeight + cfg.WindowWeight
	score := (cfg.MagnitudeWeight*magnitude +
		cfg.FractionWeight*fraction +
		cfg.FitWeight*fit +
		cfg.WindowWeight*window) / total

	return clampTo(math.Round(score*1000)/1000, 0, 1)
}

// windowScore grades how much of the 60s HRR window was captured.
func windowScore(capturedSec int) float64 {
	switch {
	case capturedSec >= 60:
		return 1.0
	case capturedSec >= 45:
		return 0.7
	case capturedSec >= 30:
		return 0.5
	default:
		return 0.2
	}
}

// BuildObservations converts gate-passing intervals into the weighted
// observation stream consumed by the trend monitor, ordered by peak time.
// Intervals with neither HRR60 nor HRR30 captured contribute nothing.
func BuildObservations(intervals []DetectedInterval) []WeightedObservation {
	out := make([]WeightedObservation, 0, len(intervals))
	for i := range intervals {
		iv := &intervals[i]
		if !iv.PassedGates {
			continue
		}
		value, ok := iv.ChosenValue()
		if !ok {
			continue
		}
		out = append(out, WeightedObservation{
			Timestamp:     iv.PeakTime,
			SessionID:     iv.SessionID,
			RawValue:      value,
			Weight:        iv.Confidence,
			WeightedValue: value * iv.Confidence,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
