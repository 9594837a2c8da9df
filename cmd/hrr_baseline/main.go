package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasjlepore/hrr-monitor/pipeline"
	"github.com/lucasjlepore/hrr-monitor/trend"
)

func main() {
	var (
		dbPath   = flag.String("db", "", "SQLite history store")
		metric   = flag.String("metric", "hrr60", "Metric name")
		stratum  = flag.String("stratum", "", "Optional stratum")
		baseline = flag.Float64("baseline", 0, "Baseline value to set")
		sdd      = flag.Float64("sdd", 0, "SDD to set")
		list     = flag.Bool("list", false, "List stored baselines instead of setting one")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s --db history.db [--list | --metric hrr60 --baseline 17 --sdd 6.7]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if strings.TrimSpace(*dbPath) == "" {
		flag.Usage()
		os.Exit(2)
	}

	store, err := pipeline.OpenStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hrr_baseline failed: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if *list {
		rows, err := store.ListBaselines()
		if err != nil {
			fmt.Fprintf(os.Stderr, "hrr_baseline failed: %v\n", err)
			os.Exit(1)
		}
		for _, r := range rows {
			fmt.Printf("%-12s %-10s baseline=%.2f sdd=%.2f\n", r.Metric, r.Stratum, r.Baseline.Value, r.Baseline.SDD)
		}
		return
	}

	if *sdd <= 0 {
		fmt.Fprintln(os.Stderr, "hrr_baseline: --sdd must be positive")
		os.Exit(2)
	}
	if err := store.UpsertBaseline(*metric, *stratum, trend.Baseline{Value: *baseline, SDD: *sdd}); err != nil {
		fmt.Fprintf(os.Stderr, "hrr_baseline failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("baseline set: %s/%s baseline=%.2f sdd=%.2f\n", *metric, *stratum, *baseline, *sdd)
}
