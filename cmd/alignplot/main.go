package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/accuracy"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/align"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/evalcfg"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/report"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/schema"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/telemetry"
)

const tool = "alignplot"

func main() {
	log.SetPrefix("alignplot: ")
	log.SetFlags(0)

	var (
		configPath      = flag.String("config", "", "evaluation config YAML (defaults apply when empty)")
		progressPath    = flag.String("progress", "", "execution order CSV")
		measurementsDir = flag.String("measurements", "", "per-function measurement CSV directory")
		predictionsDir  = flag.String("predictions", "", "per-function prediction CSV directory")
		outDir          = flag.String("out", "", "plot output directory")
		metricsTextfile = flag.String("metrics-textfile", "", "write run metrics in Prometheus textfile format")
	)
	flag.Parse()
	if flag.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "usage: alignplot [flags]\n")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := evalcfg.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	set := evalcfg.ExplicitFlags(flag.CommandLine)
	evalcfg.Override(set, "progress", &cfg.Inputs.Progress, *progressPath)
	evalcfg.Override(set, "measurements", &cfg.Inputs.MeasurementsDir, *measurementsDir)
	evalcfg.Override(set, "predictions", &cfg.Inputs.PredictionsDir, *predictionsDir)
	evalcfg.Override(set, "out", &cfg.Output.PlotsDir, *outDir)
	evalcfg.Override(set, "metrics-textfile", &cfg.Telemetry.MetricsTextfile, *metricsTextfile)

	res, err := align.AlignFiles(align.Inputs{
		OrderPath:       cfg.Inputs.Progress,
		OrderColumn:     cfg.Inputs.FunctionsColumn,
		MeasurementsDir: cfg.Inputs.MeasurementsDir,
		PredictionsDir:  cfg.Inputs.PredictionsDir,
	}, cfg.Metrics)
	if err != nil {
		fmt.Fprintf(os.Stderr, "align failed: %v\n", err)
		os.Exit(1)
	}
	if res.Coverage.Aligned < res.Coverage.Entries {
		log.Printf("warning: aligned %d of %d calls (%d unknown, %d exhausted)",
			res.Coverage.Aligned, res.Coverage.Entries, res.Coverage.SkippedUnknown, res.Coverage.SkippedExhausted)
	}

	plotsDir := cfg.Output.PlotsDir
	scatterPath := filepath.Join(plotsDir, "all_in_one.png")
	boxPath := filepath.Join(plotsDir, "box_plots.png")
	csvPath := filepath.Join(plotsDir, "aligned.csv")
	summaryPath := filepath.Join(plotsDir, "summary.json")

	if err := report.WriteAlignedScatter(scatterPath, res); err != nil {
		fmt.Fprintf(os.Stderr, "write scatter plot failed: %v\n", err)
		os.Exit(1)
	}
	if err := report.WriteErrorBoxes(boxPath, res.Metrics, res.Errors); err != nil {
		fmt.Fprintf(os.Stderr, "write box plots failed: %v\n", err)
		os.Exit(1)
	}
	if err := report.WriteAlignedCSV(csvPath, res); err != nil {
		fmt.Fprintf(os.Stderr, "write aligned csv failed: %v\n", err)
		os.Exit(1)
	}

	stats := accuracy.SummarizeAll(res.Errors)
	summary := report.NewSummary(tool, res.Metrics, stats)
	summary.Samples = res.Len()
	summary.Coverage = report.CoverageSummary(res.Coverage)
	summary.Artifacts = []string{scatterPath, boxPath, csvPath}
	gate := accuracy.GateResult{Pass: true}
	if len(cfg.Gate.MaxMeanAbsError) > 0 {
		gate = accuracy.EvaluateGate(stats, cfg.Gate.MaxMeanAbsError)
		summary.Gate = report.GateSummary(gate, cfg.Gate.MaxMeanAbsError)
	}
	if err := schema.ValidateEvalSummary(summary); err != nil {
		fmt.Fprintf(os.Stderr, "validate summary failed: %v\n", err)
		os.Exit(1)
	}
	if err := report.WriteJSON(summaryPath, summary); err != nil {
		fmt.Fprintf(os.Stderr, "write summary failed: %v\n", err)
		os.Exit(1)
	}

	if cfg.Telemetry.MetricsTextfile != "" {
		metrics := telemetry.NewMetrics()
		metrics.ObserveAlignment(res, stats)
		metrics.ObserveGate(gate)
		if err := metrics.WriteTextfile(cfg.Telemetry.MetricsTextfile); err != nil {
			log.Printf("warning: %v", err)
		}
	}

	fmt.Printf("aligned %d calls across %d metrics\n", res.Len(), len(res.Metrics))
	fmt.Printf("plots: %s, %s\n", scatterPath, boxPath)
	if !gate.Pass {
		fmt.Fprintln(os.Stderr, gate.Message)
		os.Exit(1)
	}
}
