package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	hrrcore "github.com/lucasjlepore/hrr-monitor"
	"github.com/lucasjlepore/hrr-monitor/trend"
)

// Run executes the full hrr_analyze pipeline: decode sessions, detect
// recovery intervals, weight them by confidence, run the trend monitor, and
// write all artifacts. Per-session problems become warnings and never abort
// the batch; only an invalid configuration fails the run up front.
func Run(opts Options) (*Result, error) {
	if len(opts.FitPaths) == 0 {
		return nil, fmt.Errorf("at least one fit path is required")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "parquet"
	}
	if format != "parquet" && format != "csv" {
		return nil, fmt.Errorf("unsupported format %q (expected parquet|csv)", format)
	}
	metric := strings.TrimSpace(opts.Metric)
	if metric == "" {
		metric = "hrr60"
	}

	cfg, err := LoadRunConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	log := slog.Default().With("metric", metric)
	result := &Result{OutputDir: opts.OutDir}

	var store *Store
	if opts.DBPath != "" {
		store, err = OpenStore(opts.DBPath)
		if err != nil {
			return nil, err
		}
		defer store.Close()
	}

	var intervals []hrrcore.DetectedInterval
	for _, path := range opts.FitPaths {
		sessions, err := LoadSessions(path)
		if err != nil {
			log.Warn("session skipped", "path", path, "error", err)
			result.Warnings = append(result.Warnings, fmt.Sprintf("session skipped: %v", err))
			continue
		}
		if len(sessions) > 1 {
			log.Warn("recording split on sensor dropout", "path", path, "segments", len(sessions))
		}
		for _, sess := range sessions {
			found, err := hrrcore.AnalyzeSession(sess, cfg.Detector)
			if err != nil {
				// Config was validated above, so this cannot be a per-session issue.
				return nil, err
			}
			passed := 0
			for _, iv := range found {
				if iv.PassedGates {
					passed++
				}
			}
			log.Info("session analyzed", "session", sess.ID, "samples", len(sess.Samples), "intervals", len(found), "passed", passed)
			intervals = append(intervals, found...)
		}
		result.SessionCount++
	}

	observations := hrrcore.BuildObservations(intervals)
	result.IntervalCount = len(intervals)
	result.ObservationCount = len(observations)
	for _, iv := range intervals {
		if iv.PassedGates {
			result.PassedCount++
		}
	}

	base, haveBase, err := resolveBaseline(opts, store, metric)
	if err != nil {
		return nil, err
	}

	var alerts []trend.AlertEvent
	if haveBase {
		alerts, err = monitorObservations(observations, base, cfg)
		if err != nil {
			return nil, err
		}
		for i := range alerts {
			alerts[i].Metric = metric
		}
		result.AlertCount = len(alerts)
	} else {
		log.Warn("no baseline available, trend monitoring skipped")
		result.Warnings = append(result.Warnings, "no baseline available: trend monitoring skipped")
	}

	result.IntervalsPath = filepath.Join(opts.OutDir, "intervals.json")
	if err := writeJSON(result.IntervalsPath, IntervalsFile{Metric: metric, Stratum: opts.Stratum, Intervals: intervals}); err != nil {
		return nil, fmt.Errorf("write intervals.json: %w", err)
	}

	if haveBase {
		result.AlertsPath = filepath.Join(opts.OutDir, "alerts.json")
		alertsFile := AlertsFile{Metric: metric, Stratum: opts.Stratum, Baseline: base.Value, SDD: base.SDD, Alerts: alerts}
		if err := writeJSON(result.AlertsPath, alertsFile); err != nil {
			return nil, fmt.Errorf("write alerts.json: %w", err)
		}
	}

	result.ObservationsPath = filepath.Join(opts.OutDir, "observations."+format)
	switch format {
	case "csv":
		err = writeObservationsCSV(result.ObservationsPath, observations)
	case "parquet":
		err = writeObservationsParquet(result.ObservationsPath, observations)
	}
	if err != nil {
		return nil, fmt.Errorf("write observations.%s: %w", format, err)
	}

	if store != nil {
		if err := store.InsertObservations(metric, opts.Stratum, observations); err != nil {
			return nil, err
		}
		if err := store.InsertAlerts(metric, opts.Stratum, alerts); err != nil {
			return nil, err
		}
	}

	if result.AlertCount > 0 {
		log.Info("alerts emitted", "count", result.AlertCount)
	}
	return result, nil
}

// resolveBaseline prefers an explicit override, then the store.
func resolveBaseline(opts Options, store *Store, metric string) (trend.Baseline, bool, error) {
	if opts.SDDOverride > 0 {
		return trend.Baseline{Value: opts.BaselineOverride, SDD: opts.SDDOverride}, true, nil
	}
	if store == nil {
		return trend.Baseline{}, false, nil
	}
	return store.GetBaseline(metric, opts.Stratum)
}

// monitorObservations runs both detectors over the weighted stream and merges
// their alerts in timestamp order. The two accumulators are independent but
// fold over the same observations, so one gap signal disciplines both.
func monitorObservations(observations []hrrcore.WeightedObservation, base trend.Baseline, cfg RunConfig) ([]trend.AlertEvent, error) {
	stream := make([]trend.Observation, len(observations))
	for i, o := range observations {
		stream[i] = trend.Observation{Timestamp: o.Timestamp, Value: o.WeightedValue}
	}

	ewmaAlerts, _, err := trend.RunEWMA(stream, base, cfg.EWMA)
	if err != nil {
		return nil, err
	}
	cusumAlerts, _, err := trend.RunCUSUM(stream, base, cfg.CUSUM)
	if err != nil {
		return nil, err
	}

	alerts := append(ewmaAlerts, cusumAlerts...)
	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].Timestamp.Equal(alerts[j].Timestamp) {
			return alerts[i].Detector < alerts[j].Detector
		}
		return alerts[i].Timestamp.Before(alerts[j].Timestamp)
	})
	return alerts, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeObservationsCSV(path string, observations []hrrcore.WeightedObservation) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"ts_utc_iso", "session_id", "raw_value", "weight", "weighted_value"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, o := range observations {
		row := []string{
			o.Timestamp.UTC().Format(time.RFC3339),
			o.SessionID,
			formatFloat(o.RawValue),
			formatFloat(o.Weight),
			formatFloat(o.WeightedValue),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
