package hrrcore

import (
	"math"

	"gonum.org/v1/gonum/optimize"
)

// HRR offsets in seconds after the peak.
var hrrOffsets = [...]int{30, 60, 120}

// Box bounds for the exponential decay fit HR(t) = A*exp(-t/tau) + HRInf.
const (
	fitAMin, fitAMax     = 0.0, 200.0
	fitTauMin, fitTauMax = 1.0, 300.0
	fitInfMin, fitInfMax = 30.0, 200.0
)

// ComputeFeatures fills in HRR-at-offset values and the exponential decay fit
// for one detected interval. A feature whose window extends past the session
// end stays nil; a failed or underdetermined fit leaves tau and R-squared nil.
// Nil means "shape unknown", never "no recovery" — the interval itself stays
// valid either way.
func ComputeFeatures(iv *DetectedInterval, smoothed []float64, cfg Config) {
	for _, offset := range hrrOffsets {
		idx := iv.PeakIndex + offset
		if idx >= len(smoothed) {
			continue
		}
		drop := iv.HRPeak - smoothed[idx]
		switch offset {
		case 30:
			iv.HRR30Abs = &drop
		case 60:
			iv.HRR60Abs = &drop
		case 120:
			iv.HRR120Abs = &drop
		}
	}

	end := iv.PeakIndex + cfg.FitWindowSec
	if end >= len(smoothed) {
		end = len(smoothed) - 1
	}
	window := smoothed[iv.PeakIndex : end+1]
	if tau, r2, ok := fitRecoveryDecay(window, cfg.FitMinSamples); ok {
		iv.TauSeconds = &tau
		iv.TauFitR2 = &r2
	}
}

// fitRecoveryDecay fits HR(t) = A*exp(-t/tau) + HRInf over the post-peak
// window via box-constrained nonlinear least squares. t is in seconds
// relative to the peak; window[0] is the peak sample.
func fitRecoveryDecay(window []float64, minSamples int) (tau, r2 float64, ok bool) {
	if len(window) < minSamples {
		return 0, 0, false
	}

	lo, hi := window[0], window[0]
	for _, v := range window[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			a, t, inf := clampFitParams(x[0], x[1], x[2])
			sse := 0.0
			for i, v := range window {
				r := v - (a*math.Exp(-float64(i)/t) + inf)
				sse += r * r
			}
			return sse
		},
	}
	x0 := []float64{
		clampTo(hi-lo, fitAMin, fitAMax),
		40,
		clampTo(lo, fitInfMin, fitInfMax),
	}

	result, err := optimize.Minimize(problem, x0, nil, &optimize.NelderMead{})
	if err != nil || result == nil {
		return 0, 0, false
	}
	a, t, inf := clampFitParams(result.X[0], result.X[1], result.X[2])

	ssRes, ssTot := 0.0, 0.0
	mean := 0.0
	for _, v := range window {
		mean += v
	}
	mean /= float64(len(window))
	for i, v := range window {
		r := v - (a*math.Exp(-float64(i)/t) + inf)
		ssRes += r * r
		d := v - mean
		ssTot += d * d
	}
	if ssTot == 0 || !isFinite(ssRes) {
		return 0, 0, false
	}
	r2 = 1 - ssRes/ssTot
	if !isFinite(r2) {
		return 0, 0, false
	}
	return t, r2, true
}

func clampFitParams(a, tau, inf float64) (float64, float64, float64) {
	return clampTo(a, fitAMin, fitAMax),
		clampTo(tau, fitTauMin, fitTauMax),
		clampTo(inf, fitInfMin, fitInfMax)
}

func clampTo(v, lo, hi float64) float64 {
	if !isFinite(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
