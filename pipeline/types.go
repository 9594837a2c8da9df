package pipeline

import (
	hrrcore "github.com/lucasjlepore/hrr-monitor"
	"github.com/lucasjlepore/hrr-monitor/trend"
)

// Options configures one hrr_analyze run.
type Options struct {
	FitPaths   []string
	OutDir     string
	ConfigPath string

	Metric  string
	Stratum string

	// Baseline overrides. When zero, the baseline is looked up in the store.
	BaselineOverride float64
	SDDOverride      float64

	DBPath string
	Format string // parquet|csv
}

// Result returns generated output paths and counts.
type Result struct {
	OutputDir        string `json:"output_dir"`
	IntervalsPath    string `json:"intervals_path"`
	AlertsPath       string `json:"alerts_path"`
	ObservationsPath string `json:"observations_path"`

	SessionCount     int `json:"session_count"`
	IntervalCount    int `json:"interval_count"`
	PassedCount      int `json:"passed_count"`
	ObservationCount int `json:"observation_count"`
	AlertCount       int `json:"alert_count"`

	Warnings []string `json:"warnings,omitempty"`
}

// IntervalsFile is the per-run interval artifact, rejected candidates
// included so QC tooling can display both sides of every gate.
type IntervalsFile struct {
	Metric    string                     `json:"metric"`
	Stratum   string                     `json:"stratum,omitempty"`
	Intervals []hrrcore.DetectedInterval `json:"intervals"`
}

// AlertsFile is the per-run alert artifact.
type AlertsFile struct {
	Metric   string             `json:"metric"`
	Stratum  string             `json:"stratum,omitempty"`
	Baseline float64            `json:"baseline"`
	SDD      float64            `json:"sdd"`
	Alerts   []trend.AlertEvent `json:"alerts"`
}
