package hrrcore

import "time"

// RawSample is one heart-rate reading as delivered by ingestion.
type RawSample struct {
	Timestamp time.Time `json:"timestamp"`
	HRBPM     float64   `json:"hr_bpm"`
}

// Session is one contiguous activity bout of ordered per-second samples.
type Session struct {
	ID      string      `json:"session_id"`
	Samples []RawSample `json:"samples"`
}

// Gate failure reasons recorded on rejected interval candidates.
const (
	GateFailDuration      = "duration_below_min"
	GateFailTotalDrop     = "total_drop_below_min"
	GateFailPeakMinusRest = "peak_minus_rest_below_min"
)

// DetectedInterval is one peak-to-recovery segment with features and gate
// results. Rejected candidates are kept with their failure reasons so QC
// tooling can show both accepted and rejected intervals.
type DetectedInterval struct {
	SessionID          string     `json:"session_id,omitempty"`
	PeakIndex          int        `json:"peak_index"`
	RunStartIndex      int        `json:"run_start_index"`
	RunEndIndex        int        `json:"run_end_index"`
	NadirIndex         int        `json:"nadir_index"`
	PeakTime           time.Time  `json:"peak_time,omitempty"`
	HRPeak             float64    `json:"hr_peak"`
	HRNadir            float64    `json:"hr_nadir"`
	HREnd              float64    `json:"hr_end"`
	TotalDrop          float64    `json:"total_drop"`
	DurationSeconds    float64    `json:"duration_seconds"`
	LocalRestEstimate  *float64   `json:"local_rest_estimate,omitempty"`
	PeakMinusRest      *float64   `json:"peak_minus_rest,omitempty"`
	HRR30Abs           *float64   `json:"hrr30_abs,omitempty"`
	HRR60Abs           *float64   `json:"hrr60_abs,omitempty"`
	HRR120Abs          *float64   `json:"hrr120_abs,omitempty"`
	TauSeconds         *float64   `json:"tau_seconds,omitempty"`
	TauFitR2           *float64   `json:"tau_fit_r2,omitempty"`
	Confidence         float64    `json:"confidence"`
	PassedGates        bool       `json:"passed_gates"`
	GateFailureReasons []string   `json:"gate_failure_reasons,omitempty"`
}

// WeightedObservation is the confidence-weighted HRR value of one
// gate-passing interval, consumed by the trend monitor in timestamp order.
type WeightedObservation struct {
	Timestamp     time.Time `json:"timestamp"`
	SessionID     string    `json:"session_id,omitempty"`
	RawValue      float64   `json:"raw_value"`
	Weight        float64   `json:"weight"`
	WeightedValue float64   `json:"weighted_value"`
}

// ChosenValue returns the HRR value an interval contributes to trend
// monitoring: HRR60 preferred, HRR30 as fallback. ok is false when neither
// offset was captured.
func (iv *DetectedInterval) ChosenValue() (v float64, ok bool) {
	if iv.HRR60Abs != nil {
		return *iv.HRR60Abs, true
	}
	if iv.HRR30Abs != nil {
		return *iv.HRR30Abs, true
	}
	return 0, false
}
