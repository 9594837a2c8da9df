package hrrcore

import (
	"math"
	"reflect"
	"testing"
	"time"
)

// risingFallingSignal climbs 150->180 over 20s then declines strictly to 110
// over 90s with no upticks.
func risingFallingSignal() []float64 {
	s := make([]float64, 0, 111)
	for i := 0; i <= 20; i++ {
		s = append(s, 150+1.5*float64(i))
	}
	for i := 1; i <= 90; i++ {
		s = append(s, 180-70.0/90.0*float64(i))
	}
	return s
}

func TestDetectIntervalsSingleRecovery(t *testing.T) {
	cfg := DefaultConfig()
	sig := risingFallingSignal()

	intervals := DetectIntervals(sig, cfg)
	if len(intervals) != 1 {
		t.Fatalf("expected exactly one interval, got %d", len(intervals))
	}
	iv := intervals[0]
	if iv.PeakIndex != 20 {
		t.Errorf("peak index: got %d want 20", iv.PeakIndex)
	}
	if iv.HRPeak != 180 {
		t.Errorf("hr_peak: got %g want 180", iv.HRPeak)
	}
	if iv.NadirIndex != len(sig)-1 {
		t.Errorf("nadir index: got %d want %d", iv.NadirIndex, len(sig)-1)
	}
	if math.Abs(iv.HRNadir-110) > 1e-9 {
		t.Errorf("hr_nadir: got %g want 110", iv.HRNadir)
	}
	if iv.RunEndIndex <= iv.PeakIndex {
		t.Errorf("run_end_index %d must exceed peak_index %d", iv.RunEndIndex, iv.PeakIndex)
	}
	if iv.DurationSeconds < float64(cfg.MinRunSec) {
		t.Errorf("duration %g below minimum %d", iv.DurationSeconds, cfg.MinRunSec)
	}
	if !iv.PassedGates {
		t.Errorf("expected gates to pass, failures: %v", iv.GateFailureReasons)
	}

	ComputeFeatures(&iv, sig, cfg)
	wantHRR60 := 180 - sig[iv.PeakIndex+60]
	if iv.HRR60Abs == nil || math.Abs(*iv.HRR60Abs-wantHRR60) > 1e-9 {
		t.Errorf("hrr60_abs: got %v want %g", iv.HRR60Abs, wantHRR60)
	}
}

func TestDetectIntervalsToleratedUptickDoesNotBreakRun(t *testing.T) {
	cfg := DefaultConfig()
	sig := make([]float64, 0, 101)
	for i := 0; i <= 10; i++ {
		sig = append(sig, 164+1.6*float64(i))
	}
	v := sig[len(sig)-1]
	for i := 1; i <= 90; i++ {
		if i >= 40 && i < 55 {
			v += 1.0 / 15 // transient uptick, within the per-second tolerance
		} else {
			v -= 0.8
		}
		sig = append(sig, v)
	}

	intervals := DetectIntervals(sig, cfg)
	if len(intervals) != 1 {
		t.Fatalf("expected one interval spanning the full decline, got %d", len(intervals))
	}
	if got := intervals[0].RunEndIndex; got != len(sig)-1 {
		t.Errorf("run should span to the session end: got %d want %d", got, len(sig)-1)
	}
}

func TestDetectIntervalsGateFailureRetained(t *testing.T) {
	cfg := DefaultConfig()
	sig := make([]float64, 0, 340)
	for i := 0; i < 240; i++ {
		sig = append(sig, 80)
	}
	for i := 1; i <= 20; i++ {
		sig = append(sig, 80+3.5*float64(i))
	}
	for i := 1; i <= 70; i++ {
		sig = append(sig, 150-3.0/70*float64(i)) // only 3 bpm of total drop
	}

	intervals := DetectIntervals(sig, cfg)
	if len(intervals) != 2 {
		t.Fatalf("expected rest plateau and shallow decline candidates, got %d", len(intervals))
	}

	shallow := intervals[1]
	if shallow.PassedGates {
		t.Fatal("shallow decline must not pass the magnitude gate")
	}
	if !reflect.DeepEqual(shallow.GateFailureReasons, []string{GateFailTotalDrop}) {
		t.Errorf("unexpected failure reasons: %v", shallow.GateFailureReasons)
	}
	if shallow.LocalRestEstimate == nil || math.Abs(*shallow.LocalRestEstimate-80) > 1e-9 {
		t.Errorf("local rest estimate: got %v want 80", shallow.LocalRestEstimate)
	}
	if shallow.PeakMinusRest == nil || math.Abs(*shallow.PeakMinusRest-70) > 1e-9 {
		t.Errorf("peak_minus_rest: got %v want 70", shallow.PeakMinusRest)
	}
}

func TestDetectIntervalsRestEstimateNullWhenHistoryShort(t *testing.T) {
	cfg := DefaultConfig()
	sig := risingFallingSignal() // only 20s before the peak

	intervals := DetectIntervals(sig, cfg)
	if len(intervals) != 1 {
		t.Fatalf("expected one interval, got %d", len(intervals))
	}
	if intervals[0].LocalRestEstimate != nil || intervals[0].PeakMinusRest != nil {
		t.Error("rest estimate must be null with insufficient pre-peak history")
	}
	// The effort gate is skipped, not failed.
	if !intervals[0].PassedGates {
		t.Errorf("expected gates to pass, failures: %v", intervals[0].GateFailureReasons)
	}
}

func TestDetectIntervalsShortSessionYieldsNothing(t *testing.T) {
	cfg := DefaultConfig()
	sig := make([]float64, cfg.MinRunSec+cfg.LookbackPeakSec-1)
	for i := range sig {
		sig[i] = 160 - float64(i)
	}
	if got := DetectIntervals(sig, cfg); len(got) != 0 {
		t.Fatalf("short session must yield no intervals, got %d", len(got))
	}
}

func TestDetectIntervalsIdempotent(t *testing.T) {
	cfg := DefaultConfig()
	sig := risingFallingSignal()

	first := DetectIntervals(sig, cfg)
	second := DetectIntervals(sig, cfg)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("detection is not idempotent over an identical smoothed array")
	}
}

func TestAnalyzeSessionRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MedianWindow = 4 // even

	_, err := AnalyzeSession(Session{ID: "s1"}, cfg)
	if err == nil {
		t.Fatal("expected configuration error")
	}
}

func TestAnalyzeSessionEndToEnd(t *testing.T) {
	cfg := DefaultConfig()
	start := time.Date(2026, 3, 12, 8, 0, 0, 0, time.UTC)

	sig := risingFallingSignal()
	samples := make([]RawSample, len(sig))
	for i, v := range sig {
		samples[i] = RawSample{Timestamp: start.Add(time.Duration(i) * time.Second), HRBPM: v}
	}

	intervals, err := AnalyzeSession(Session{ID: "s1", Samples: samples}, cfg)
	if err != nil {
		t.Fatalf("AnalyzeSession error: %v", err)
	}
	if len(intervals) != 1 {
		t.Fatalf("expected one interval, got %d", len(intervals))
	}
	iv := intervals[0]
	if iv.SessionID != "s1" {
		t.Errorf("session id: got %q", iv.SessionID)
	}
	if want := samples[iv.PeakIndex].Timestamp; !iv.PeakTime.Equal(want) {
		t.Errorf("peak time: got %v want %v", iv.PeakTime, want)
	}
	if iv.Confidence < 0 || iv.Confidence > 1 {
		t.Errorf("confidence out of range: %g", iv.Confidence)
	}

	obs := BuildObservations(intervals)
	if len(obs) != 1 {
		t.Fatalf("expected one observation, got %d", len(obs))
	}
	if obs[0].WeightedValue != obs[0].RawValue*obs[0].Weight {
		t.Errorf("weighted value mismatch: %g != %g*%g", obs[0].WeightedValue, obs[0].RawValue, obs[0].Weight)
	}
}
