package hrrcore

import "fmt"

// AnalyzeSession runs the full detection pass over one session: smoothing,
// interval detection, feature extraction, and confidence scoring. The only
// error it returns is an invalid configuration; a session without qualifying
// recovery segments yields an empty slice.
func AnalyzeSession(sess Session, cfg Config) ([]DetectedInterval, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detection config: %w", err)
	}

	hr := make([]float64, len(sess.Samples))
	for i, s := range sess.Samples {
		hr[i] = s.HRBPM
	}
	smoothed := SmoothSignal(hr, cfg)

	intervals := DetectIntervals(smoothed, cfg)
	for i := range intervals {
		iv := &intervals[i]
		iv.SessionID = sess.ID
		if iv.PeakIndex < len(sess.Samples) {
			iv.PeakTime = sess.Samples[iv.PeakIndex].Timestamp
		}
		ComputeFeatures(iv, smoothed, cfg)
		iv.Confidence = ScoreConfidence(iv, cfg.Confidence)
	}
	return intervals, nil
}

// DetectIntervals scans a smoothed per-second HR trace for recovery segments.
// A segment is a non-rising run: a contiguous span where the per-second
// derivative stays at or below the uptick tolerance for at least the minimum
// run duration. The run start lags the real peak because of smoothing lag, so
// the true local maximum is found by backtracking up to the configured
// lookback before the run start.
//
// Every qualifying run produces one gate-evaluated DetectedInterval, rejected
// candidates included. Intervals never overlap; scanning resumes after a
// consumed run's end. The caller is expected to have validated cfg.
func DetectIntervals(smoothed []float64, cfg Config) []DetectedInterval {
	if len(smoothed) < cfg.MinRunSec+cfg.LookbackPeakSec {
		return nil
	}

	var out []DetectedInterval
	i := 1
	for i < len(smoothed) {
		if smoothed[i]-smoothed[i-1] > cfg.UptickTolerance {
			i++
			continue
		}
		runStart := i - 1
		j := i
		for j < len(smoothed) && smoothed[j]-smoothed[j-1] <= cfg.UptickTolerance {
			j++
		}
		runEnd := j - 1
		if runEnd-runStart < cfg.MinRunSec {
			i = j
			continue
		}
		out = append(out, buildCandidate(smoothed, runStart, runEnd, cfg))
		i = runEnd + 1
	}
	return out
}

func buildCandidate(smoothed []float64, runStart, runEnd int, cfg Config) DetectedInterval {
	peak := backtrackPeak(smoothed, runStart, cfg.LookbackPeakSec)

	nadir := runStart
	for k := runStart; k <= runEnd; k++ {
		if smoothed[k] < smoothed[nadir] {
			nadir = k
		}
	}

	iv := DetectedInterval{
		PeakIndex:       peak,
		RunStartIndex:   runStart,
		RunEndIndex:     runEnd,
		NadirIndex:      nadir,
		HRPeak:          smoothed[peak],
		HRNadir:         smoothed[nadir],
		HREnd:           smoothed[runEnd],
		DurationSeconds: float64(runEnd - peak),
	}
	iv.TotalDrop = iv.HRPeak - iv.HRNadir

	if rest, ok := localRestEstimate(smoothed, peak, cfg); ok {
		iv.LocalRestEstimate = &rest
		diff := iv.HRPeak - rest
		iv.PeakMinusRest = &diff
	}

	applyGates(&iv, cfg)
	return iv
}

// backtrackPeak finds the true local maximum shortly before the run start.
// Ties resolve to the latest index so the recovery window starts as close to
// the actual effort end as possible.
func backtrackPeak(smoothed []float64, runStart, lookback int) int {
	from := runStart - lookback
	if from < 0 {
		from = 0
	}
	peak := from
	for k := from; k <= runStart; k++ {
		if smoothed[k] >= smoothed[peak] {
			peak = k
		}
	}
	return peak
}

// localRestEstimate medians the pre-effort window before the peak. The window
// ends well before the peak so the tail of a prior effort bout does not
// inflate the rest estimate.
func localRestEstimate(smoothed []float64, peak int, cfg Config) (float64, bool) {
	from := peak - cfg.RestWindowStartSec
	to := peak - cfg.RestWindowEndSec
	if from < 0 {
		from = 0
	}
	if to <= from {
		return 0, false
	}
	window := make([]float64, 0, to-from)
	for k := from; k < to; k++ {
		window = append(window, smoothed[k])
	}
	if len(window) < cfg.RestMinSamples {
		return 0, false
	}
	return medianOf(window), true
}

// applyGates evaluates all three gates independently so a rejected candidate
// reports every reason, not just the first. The effort gate is skipped, not
// failed, when no rest estimate is available.
func applyGates(iv *DetectedInterval, cfg Config) {
	if iv.RunEndIndex-iv.PeakIndex < cfg.MinRunSec {
		iv.GateFailureReasons = append(iv.GateFailureReasons, GateFailDuration)
	}
	if iv.TotalDrop < cfg.MinTotalDrop {
		iv.GateFailureReasons = append(iv.GateFailureReasons, GateFailTotalDrop)
	}
	if iv.PeakMinusRest != nil && *iv.PeakMinusRest < cfg.MinPeakMinusRest {
		iv.GateFailureReasons = append(iv.GateFailureReasons, GateFailPeakMinusRest)
	}
	iv.PassedGates = len(iv.GateFailureReasons) == 0
}
