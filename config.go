package hrrcore

import "fmt"

// Config holds every tunable of the detection core. The thresholds are
// empirically calibrated, not derived, so callers recalibrate them through
// configuration rather than relying on the defaults being correct.
type Config struct {
	MedianWindow    int     `mapstructure:"median_window" json:"median_window"`
	AvgWindow       int     `mapstructure:"avg_window" json:"avg_window"`
	UptickTolerance float64 `mapstructure:"uptick_tolerance_bpm_s" json:"uptick_tolerance_bpm_s"`
	MinRunSec       int     `mapstructure:"min_run_duration_sec" json:"min_run_duration_sec"`
	LookbackPeakSec int     `mapstructure:"lookback_peak_sec" json:"lookback_peak_sec"`

	RestWindowStartSec int `mapstructure:"rest_window_start_sec" json:"rest_window_start_sec"`
	RestWindowEndSec   int `mapstructure:"rest_window_end_sec" json:"rest_window_end_sec"`
	RestMinSamples     int `mapstructure:"rest_min_samples" json:"rest_min_samples"`

	MinTotalDrop     float64 `mapstructure:"min_total_drop_bpm" json:"min_total_drop_bpm"`
	MinPeakMinusRest float64 `mapstructure:"min_peak_minus_rest_bpm" json:"min_peak_minus_rest_bpm"`

	FitWindowSec  int `mapstructure:"fit_window_sec" json:"fit_window_sec"`
	FitMinSamples int `mapstructure:"fit_min_samples" json:"fit_min_samples"`

	Confidence ConfidenceConfig `mapstructure:"confidence" json:"confidence"`
}

// ConfidenceConfig weights the sub-scores of the confidence scorer.
type ConfidenceConfig struct {
	MagnitudeWeight float64 `mapstructure:"magnitude_weight" json:"magnitude_weight"`
	FractionWeight  float64 `mapstructure:"fraction_weight" json:"fraction_weight"`
	FitWeight       float64 `mapstructure:"fit_weight" json:"fit_weight"`
	WindowWeight    float64 `mapstructure:"window_weight" json:"window_weight"`

	ActionableBPM      float64 `mapstructure:"single_event_actionable_bpm" json:"single_event_actionable_bpm"`
	ActionableFraction float64 `mapstructure:"hrr_frac_actionable" json:"hrr_frac_actionable"`
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		MedianWindow:       5,
		AvgWindow:          5,
		UptickTolerance:    0.2,
		MinRunSec:          60,
		LookbackPeakSec:    20,
		RestWindowStartSec: 180,
		RestWindowEndSec:   60,
		RestMinSamples:     10,
		MinTotalDrop:       5,
		MinPeakMinusRest:   20,
		FitWindowSec:       120,
		FitMinSamples:      10,
		Confidence: ConfidenceConfig{
			MagnitudeWeight:    0.4,
			FractionWeight:     0.25,
			FitWeight:          0.25,
			WindowWeight:       0.1,
			ActionableBPM:      13,
			ActionableFraction: 0.3,
		},
	}
}

// Validate rejects invalid parameter combinations before any per-session
// processing starts. This is the only hard-failure class in the core.
func (c Config) Validate() error {
	if c.MedianWindow < 1 || c.MedianWindow%2 == 0 {
		return fmt.Errorf("median_window must be a positive odd number, got %d", c.MedianWindow)
	}
	if c.AvgWindow < 1 {
		return fmt.Errorf("avg_window must be positive, got %d", c.AvgWindow)
	}
	if c.UptickTolerance < 0 {
		return fmt.Errorf("uptick_tolerance_bpm_s must be non-negative, got %g", c.UptickTolerance)
	}
	if c.MinRunSec < 1 {
		return fmt.Errorf("min_run_duration_sec must be positive, got %d", c.MinRunSec)
	}
	if c.LookbackPeakSec < 0 {
		return fmt.Errorf("lookback_peak_sec must be non-negative, got %d", c.LookbackPeakSec)
	}
	if c.RestWindowStartSec <= c.RestWindowEndSec {
		return fmt.Errorf("rest window start (%ds before peak) must precede its end (%ds before peak)", c.RestWindowStartSec, c.RestWindowEndSec)
	}
	if c.RestMinSamples < 1 {
		return fmt.Errorf("rest_min_samples must be positive, got %d", c.RestMinSamples)
	}
	if c.MinTotalDrop < 0 {
		return fmt.Errorf("min_total_drop_bpm must be non-negative, got %g", c.MinTotalDrop)
	}
	if c.MinPeakMinusRest < 0 {
		return fmt.Errorf("min_peak_minus_rest_bpm must be non-negative, got %g", c.MinPeakMinusRest)
	}
	if c.FitWindowSec < 1 {
		return fmt.Errorf("fit_window_sec must be positive, got %d", c.FitWindowSec)
	}
	if c.FitMinSamples < 3 {
		return fmt.Errorf("fit_min_samples must be at least 3, got %d", c.FitMinSamples)
	}
	return c.Confidence.validate()
}

func (c ConfidenceConfig) validate() error {
	weights := []struct {
		name  string
		value float64
	}{
		{"magnitude_weight", c.MagnitudeWeight},
		{"fraction_weight", c.FractionWeight},
		{"fit_weight", c.FitWeight},
		{"window_weight", c.WindowWeight},
	}
	total := 0.0
	for _, w := range weights {
		if w.value < 0 {
			return fmt.Errorf("confidence %s must be non-negative, got %g", w.name, w.value)
		}
		total += w.value
	}
	if total <= 0 {
		return fmt.Errorf("confidence weights must not all be zero")
	}
	if c.ActionableBPM <= 0 {
		return fmt.Errorf("single_event_actionable_bpm must be positive, got %g", c.ActionableBPM)
	}
	if c.ActionableFraction <= 0 {
		return fmt.Errorf("hrr_frac_actionable must be positive, got %g", c.ActionableFraction)
	}
	return nil
}
