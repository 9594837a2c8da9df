// Package trend runs statistical process-control detectors over
// confidence-weighted HRR observation streams. EWMA gives a smooth,
// directly interpretable trend estimate; the one-sided downward CUSUM
// accumulates evidence and catches small persistent shifts faster. Both share
// one gap-aware reset contract so a single "new session" timing signal
// disciplines them identically, and both thread their accumulator state
// through the caller as an explicit value: the recurrences are
// order-dependent, so one state must never receive interleaved updates from
// multiple writers.
package trend

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Alert levels and detector names as they appear on AlertEvent records.
const (
	LevelWarning = "warning"
	LevelAction  = "action"

	DetectorEWMA  = "ewma"
	DetectorCUSUM = "cusum"
)

// Observation is one weighted value entering a detector, in timestamp order.
type Observation struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Baseline is the historical center and smallest detectable difference for
// one monitored metric. SDD is the unit of meaningful change for every
// threshold below.
type Baseline struct {
	Value float64 `json:"baseline"`
	SDD   float64 `json:"sdd"`
}

// AlertEvent records one threshold crossing with enough numeric context to
// render a notification without recomputation. Append-only.
type AlertEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Metric    string    `json:"metric,omitempty"`
	Value     float64   `json:"value"`
	Level     string    `json:"level"`
	Detector  string    `json:"detector"`
	Statistic float64   `json:"statistic"`
	Threshold float64   `json:"threshold"`
	Baseline  float64   `json:"baseline"`
	SDD       float64   `json:"sdd"`
}

// EWMAConfig tunes the exponentially weighted moving average detector.
type EWMAConfig struct {
	Lambda      float64 `mapstructure:"lambda" json:"lambda"`
	GapSeconds  float64 `mapstructure:"gap_seconds" json:"gap_seconds"`
	WarningMult float64 `mapstructure:"warning_mult" json:"warning_mult"`
	ActionMult  float64 `mapstructure:"action_mult" json:"action_mult"`
	MinEvents   int     `mapstructure:"min_events" json:"min_events"`
}

// DefaultEWMAConfig returns the calibrated defaults.
func DefaultEWMAConfig() EWMAConfig {
	return EWMAConfig{
		Lambda:      0.2,
		GapSeconds:  3600,
		WarningMult: 1.0,
		ActionMult:  2.0,
		MinEvents:   5,
	}
}

// Validate rejects invalid parameters before any observation is processed.
func (c EWMAConfig) Validate() error {
	if c.Lambda <= 0 || c.Lambda > 1 {
		return fmt.Errorf("ewma lambda must be in (0,1], got %g", c.Lambda)
	}
	if c.GapSeconds <= 0 {
		return fmt.Errorf("ewma gap_seconds must be positive, got %g", c.GapSeconds)
	}
	if c.WarningMult < 0 || c.ActionMult < c.WarningMult {
		return fmt.Errorf("ewma thresholds must satisfy 0 <= warning_mult <= action_mult, got %g/%g", c.WarningMult, c.ActionMult)
	}
	if c.MinEvents < 1 {
		return fmt.Errorf("ewma min_events must be positive, got %d", c.MinEvents)
	}
	return nil
}

// CUSUMConfig tunes the one-sided downward cumulative-sum detector.
type CUSUMConfig struct {
	KMult          float64 `mapstructure:"k_mult" json:"k_mult"`
	HMult          float64 `mapstructure:"h_mult" json:"h_mult"`
	GapSeconds     float64 `mapstructure:"gap_seconds" json:"gap_seconds"`
	RecoveryResetN int     `mapstructure:"reset_on_recovery_n" json:"reset_on_recovery_n"`
}

// DefaultCUSUMConfig returns the calibrated defaults.
func DefaultCUSUMConfig() CUSUMConfig {
	return CUSUMConfig{
		KMult:          0.5,
		HMult:          4.0,
		GapSeconds:     3600,
		RecoveryResetN: 3,
	}
}

// Validate rejects invalid parameters before any observation is processed.
func (c CUSUMConfig) Validate() error {
	if c.KMult < 0 {
		return fmt.Errorf("cusum k_mult must be non-negative, got %g", c.KMult)
	}
	if c.HMult <= 0 {
		return fmt.Errorf("cusum h_mult must be positive, got %g", c.HMult)
	}
	if c.GapSeconds <= 0 {
		return fmt.Errorf("cusum gap_seconds must be positive, got %g", c.GapSeconds)
	}
	if c.RecoveryResetN < 1 {
		return fmt.Errorf("cusum reset_on_recovery_n must be positive, got %d", c.RecoveryResetN)
	}
	return nil
}

// EWMAState is the per-metric accumulator. The zero value is not usable;
// start from NewEWMAState so the statistic begins at the baseline.
type EWMAState struct {
	LastTimestamp time.Time `json:"last_timestamp"`
	Value         float64   `json:"value"`
	EventsSince   int       `json:"events_since_reset"`
	Level         string    `json:"level,omitempty"`
}

// NewEWMAState returns a fresh accumulator seeded at the baseline.
func NewEWMAState(base Baseline) EWMAState {
	return EWMAState{Value: base.Value}
}

// StepEWMA folds one observation into the EWMA accumulator and returns the
// next state plus an alert if a threshold was newly crossed. A gap longer
// than GapSeconds since the previous observation reinitializes the
// accumulator to the baseline first, so stale state from one session never
// contaminates another. Alerts are armed only once MinEvents observations
// have occurred since the last reset, and fire on level escalation rather
// than on every update below a threshold.
func StepEWMA(state EWMAState, obs Observation, base Baseline, cfg EWMAConfig) (EWMAState, *AlertEvent) {
	if gapExceeded(state.LastTimestamp, obs.Timestamp, cfg.GapSeconds) {
		state = NewEWMAState(base)
	}

	state.Value = cfg.Lambda*obs.Value + (1-cfg.Lambda)*state.Value
	state.EventsSince++
	state.LastTimestamp = obs.Timestamp

	if state.EventsSince < cfg.MinEvents {
		return state, nil
	}

	warnAt := base.Value - cfg.WarningMult*base.SDD
	actionAt := base.Value - cfg.ActionMult*base.SDD

	level := ""
	threshold := 0.0
	switch {
	case state.Value <= actionAt:
		level, threshold = LevelAction, actionAt
	case state.Value <= warnAt:
		level, threshold = LevelWarning, warnAt
	}

	var alert *AlertEvent
	if levelRank(level) > levelRank(state.Level) {
		alert = &AlertEvent{
			ID:        uuid.NewString(),
			Timestamp: obs.Timestamp,
			Value:     obs.Value,
			Level:     level,
			Detector:  DetectorEWMA,
			Statistic: state.Value,
			Threshold: threshold,
			Baseline:  base.Value,
			SDD:       base.SDD,
		}
	}
	state.Level = level
	return state, alert
}

// RunEWMA folds an ordered observation stream from a fresh accumulator and
// returns every alert together with the final state.
func RunEWMA(observations []Observation, base Baseline, cfg EWMAConfig) ([]AlertEvent, EWMAState, error) {
	if err := cfg.Validate(); err != nil {
		return nil, EWMAState{}, err
	}
	state := NewEWMAState(base)
	var alerts []AlertEvent
	for _, obs := range observations {
		var alert *AlertEvent
		state, alert = StepEWMA(state, obs, base, cfg)
		if alert != nil {
			alerts = append(alerts, *alert)
		}
	}
	return alerts, state, nil
}

// CUSUMState is the per-metric accumulator for the downward CUSUM.
type CUSUMState struct {
	LastTimestamp  time.Time `json:"last_timestamp"`
	Sum            float64   `json:"sum"`
	RecoveryStreak int       `json:"recovery_streak"`
}

// StepCUSUM folds one observation into the CUSUM accumulator. The same
// gap-reset contract as EWMA applies. RecoveryResetN consecutive
// observations at or above baseline - 0.5*SDD zero the accumulator even
// without a timing gap, and the accumulator resets to zero immediately after
// an action alert fires so one sustained excursion cannot emit duplicates.
func StepCUSUM(state CUSUMState, obs Observation, base Baseline, cfg CUSUMConfig) (CUSUMState, *AlertEvent) {
	if gapExceeded(state.LastTimestamp, obs.Timestamp, cfg.GapSeconds) {
		state = CUSUMState{}
	}

	k := cfg.KMult * base.SDD
	h := cfg.HMult * base.SDD

	state.Sum += (base.Value - obs.Value) - k
	if state.Sum < 0 {
		state.Sum = 0
	}
	state.LastTimestamp = obs.Timestamp

	if obs.Value >= base.Value-0.5*base.SDD {
		state.RecoveryStreak++
	} else {
		state.RecoveryStreak = 0
	}
	if state.RecoveryStreak >= cfg.RecoveryResetN {
		state.Sum = 0
		state.RecoveryStreak = 0
		return state, nil
	}

	if state.Sum < h {
		return state, nil
	}
	alert := &AlertEvent{
		ID:        uuid.NewString(),
		Timestamp: obs.Timestamp,
		Value:     obs.Value,
		Level:     LevelAction,
		Detector:  DetectorCUSUM,
		Statistic: state.Sum,
		Threshold: h,
		Baseline:  base.Value,
		SDD:       base.SDD,
	}
	state.Sum = 0
	return state, alert
}

// RunCUSUM folds an ordered observation stream from a zero accumulator and
// returns every alert together with the final state.
func RunCUSUM(observations []Observation, base Baseline, cfg CUSUMConfig) ([]AlertEvent, CUSUMState, error) {
	if err := cfg.Validate(); err != nil {
		return nil, CUSUMState{}, err
	}
	var state CUSUMState
	var alerts []AlertEvent
	for _, obs := range observations {
		var alert *AlertEvent
		state, alert = StepCUSUM(state, obs, base, cfg)
		if alert != nil {
			alerts = append(alerts, *alert)
		}
	}
	return alerts, state, nil
}

func gapExceeded(last, next time.Time, gapSeconds float64) bool {
	if last.IsZero() {
		return false
	}
	return next.Sub(last).Seconds() > gapSeconds
}

func levelRank(level string) int {
	switch level {
	case LevelAction:
		return 2
	case LevelWarning:
		return 1
	default:
		return 0
	}
}
