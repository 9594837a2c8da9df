package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasjlepore/hrr-monitor/pipeline"
)

func main() {
	var (
		fitList    = flag.String("fit", "", "Comma-separated paths to input .fit files")
		outDir     = flag.String("out", "", "Output directory")
		configPath = flag.String("config", "", "Optional YAML config with detector/trend thresholds")
		metric     = flag.String("metric", "hrr60", "Monitored metric name")
		stratum    = flag.String("stratum", "", "Optional baseline stratum")
		baseline   = flag.Float64("baseline", 0, "Baseline override")
		sdd        = flag.Float64("sdd", 0, "SDD override (enables the baseline override)")
		dbPath     = flag.String("db", "", "Optional SQLite history store")
		format     = flag.String("format", "parquet", "Observation table format: parquet|csv")
		verbose    = flag.Bool("v", false, "Debug logging")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s --fit a.fit,b.fit --out outdir [--baseline 17 --sdd 6.7] [--db history.db]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if strings.TrimSpace(*fitList) == "" || strings.TrimSpace(*outDir) == "" {
		flag.Usage()
		os.Exit(2)
	}
	var fitPaths []string
	for _, p := range strings.Split(*fitList, ",") {
		if p = strings.TrimSpace(p); p != "" {
			fitPaths = append(fitPaths, p)
		}
	}

	result, err := pipeline.Run(pipeline.Options{
		FitPaths:         fitPaths,
		OutDir:           *outDir,
		ConfigPath:       *configPath,
		Metric:           *metric,
		Stratum:          *stratum,
		BaselineOverride: *baseline,
		SDDOverride:      *sdd,
		DBPath:           *dbPath,
		Format:           *format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "hrr_analyze failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("hrr_analyze complete\n")
	fmt.Printf("Output dir:     %s\n", result.OutputDir)
	fmt.Printf("intervals:      %s (%d found, %d passed gates)\n", result.IntervalsPath, result.IntervalCount, result.PassedCount)
	fmt.Printf("observations:   %s (%d)\n", result.ObservationsPath, result.ObservationCount)
	if result.AlertsPath != "" {
		fmt.Printf("alerts:         %s (%d)\n", result.AlertsPath, result.AlertCount)
	}
	for _, w := range result.Warnings {
		fmt.Printf("warning:        %s\n", w)
	}
}
