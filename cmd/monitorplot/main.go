package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/evalcfg"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/metricstore"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/report"
)

func main() {
	configPath := flag.String("config", "", "evaluation config YAML (defaults apply when empty)")
	input := flag.String("input", "", "monitoring CSV")
	outDir := flag.String("out", "", "plot output directory")
	flag.Parse()
	if flag.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "usage: monitorplot [flags]\n")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := evalcfg.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	set := evalcfg.ExplicitFlags(flag.CommandLine)
	evalcfg.Override(set, "input", &cfg.Inputs.Monitoring, *input)
	evalcfg.Override(set, "out", &cfg.Output.PlotsDir, *outDir)

	frame, err := metricstore.LoadFrame(cfg.Inputs.Monitoring)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load monitoring data failed: %v\n", err)
		os.Exit(1)
	}
	if err := frame.Require(cfg.Metrics...); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	path := filepath.Join(cfg.Output.PlotsDir, "monitoring_all_plots.png")
	if err := report.WriteTrends(path, frame, cfg.Metrics); err != nil {
		fmt.Fprintf(os.Stderr, "write trends failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("trends: %s (%d samples)\n", path, frame.Len())
}
