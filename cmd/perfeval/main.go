package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/accuracy"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/align"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/backtest"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/evalcfg"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/metricstore"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/predictor"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/report"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/schema"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/semconv"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/telemetry"
)

const tool = "perfeval"

func usage() {
	fmt.Fprintf(os.Stderr, "usage: perfeval [flags] [poly|nn|gpr|svm]\n")
	flag.PrintDefaults()
}

func main() {
	log.SetPrefix("perfeval: ")
	log.SetFlags(0)

	var (
		configPath      = flag.String("config", "", "evaluation config YAML (defaults apply when empty)")
		progressPath    = flag.String("progress", "", "execution order and feature CSV")
		measurementsDir = flag.String("measurements", "", "per-function measurement CSV directory")
		predictionsDir  = flag.String("predictions", "", "per-function prediction CSV directory")
		outDir          = flag.String("out", "", "post-mortem output directory")
		workers         = flag.Int("workers", 0, "events backtested concurrently")
		polyDegree      = flag.Int("poly-degree", 0, "polynomial degree for the poly model")
		polyNNLS        = flag.Bool("poly-nnls", false, "constrain poly coefficients to be non-negative")
		showWarnings    = flag.Bool("warnings", false, "log solver warnings instead of suppressing them")
		skipFirst       = flag.Bool("skip-first-column", false, "drop the function identifier column from the features")
		metricsTextfile = flag.String("metrics-textfile", "", "write run metrics in Prometheus textfile format")
		traceEndpoint   = flag.String("trace-endpoint", "", "OTLP gRPC endpoint for run traces")
		traceStdout     = flag.Bool("trace-stdout", false, "print run traces to stderr")
	)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() > 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := evalcfg.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}

	kind := cfg.Predictor.Kind
	if flag.NArg() == 1 {
		kind = flag.Arg(0)
		fmt.Printf("Using %s\n", kind)
	} else {
		fmt.Printf("Using default: %s\n", kind)
	}
	if _, err := predictor.ParseKind(kind); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	set := evalcfg.ExplicitFlags(flag.CommandLine)
	evalcfg.Override(set, "progress", &cfg.Inputs.Progress, *progressPath)
	evalcfg.Override(set, "measurements", &cfg.Inputs.MeasurementsDir, *measurementsDir)
	evalcfg.Override(set, "predictions", &cfg.Inputs.PredictionsDir, *predictionsDir)
	evalcfg.Override(set, "out", &cfg.Output.PostMortemDir, *outDir)
	evalcfg.Override(set, "metrics-textfile", &cfg.Telemetry.MetricsTextfile, *metricsTextfile)
	evalcfg.Override(set, "trace-endpoint", &cfg.Telemetry.TraceEndpoint, *traceEndpoint)
	if set["workers"] && *workers > 0 {
		cfg.Backtest.Workers = *workers
	}
	if set["poly-degree"] && *polyDegree > 0 {
		cfg.Predictor.PolyDegree = *polyDegree
	}
	if set["poly-nnls"] {
		cfg.Predictor.PolyNNLS = *polyNNLS
	}
	if set["warnings"] {
		suppress := !*showWarnings
		cfg.Predictor.SuppressWarnings = &suppress
	}
	if set["skip-first-column"] {
		cfg.Backtest.SkipFirstFeatureColumn = *skipFirst
	}
	if set["trace-stdout"] {
		cfg.Telemetry.TraceStdout = *traceStdout
	}

	shutdown, err := telemetry.SetupTracerProvider(tool, cfg.Telemetry.TraceEndpoint, cfg.Telemetry.TraceStdout)
	if err != nil {
		log.Printf("warning: tracing disabled: %v", err)
		shutdown = func(context.Context) error { return nil }
	}

	pass, err := run(context.Background(), cfg, kind)
	if shutdownErr := shutdown(context.Background()); shutdownErr != nil {
		log.Printf("warning: trace shutdown: %v", shutdownErr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "perfeval failed: %v\n", err)
		os.Exit(1)
	}
	if !pass {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg evalcfg.Config, kind string) (bool, error) {
	ctx, span := otel.Tracer(tool).Start(ctx, "perfeval.run",
		trace.WithAttributes(attribute.String(semconv.AttrPredictorKind, kind)))
	defer span.End()

	res, err := align.AlignFiles(align.Inputs{
		OrderPath:       cfg.Inputs.Progress,
		OrderColumn:     cfg.Inputs.FunctionsColumn,
		MeasurementsDir: cfg.Inputs.MeasurementsDir,
		PredictionsDir:  cfg.Inputs.PredictionsDir,
	}, cfg.Metrics)
	if err != nil {
		return false, err
	}
	if res.Len() == 0 {
		return false, errors.New("no function calls could be aligned")
	}
	span.SetAttributes(
		attribute.Int(semconv.AttrAlignedCalls, res.Len()),
		attribute.Float64(semconv.AttrCoverageRatio, res.Coverage.Ratio),
	)

	features, err := metricstore.LoadFeatureMatrix(cfg.Inputs.Progress, cfg.Backtest.SkipFirstFeatureColumn)
	if err != nil {
		return false, err
	}
	rows, err := features.Select(res.Positions)
	if err != nil {
		return false, fmt.Errorf("select feature rows: %w", err)
	}
	if rows.Width() == 0 {
		return false, fmt.Errorf("%s has no feature columns", cfg.Inputs.Progress)
	}
	fmt.Printf("features: %d rows x %d columns\n", rows.Len(), rows.Width())

	btCfg := backtest.Config{
		Kind: kind,
		Options: predictor.Options{
			Seed:       cfg.Predictor.Seed,
			PolyDegree: cfg.Predictor.PolyDegree,
			PolyNNLS:   cfg.Predictor.PolyNNLS,
		},
		TestFraction:     cfg.Backtest.TestFraction,
		Seed:             cfg.Backtest.Seed,
		Workers:          cfg.Backtest.Workers,
		SuppressWarnings: cfg.SuppressWarnings(),
		Events:           res.Metrics,
	}
	rep, err := backtest.Run(ctx, btCfg, rows.Rows, res.MeasuredByMetric())
	if err != nil {
		return false, err
	}

	outDir := cfg.Output.PostMortemDir
	scatterPath := filepath.Join(outDir, "scatters.png")
	boxPath := filepath.Join(outDir, "box_plots.png")
	predictionsPath := filepath.Join(outDir, "predictions.csv")
	summaryPath := filepath.Join(outDir, "summary.json")
	reportPath := filepath.Join(outDir, "report.md")

	if err := report.WriteBacktestScatter(scatterPath, rep); err != nil {
		return false, fmt.Errorf("write scatter plot: %w", err)
	}
	if err := report.WriteErrorBoxes(boxPath, res.Metrics, rep.Errors()); err != nil {
		return false, fmt.Errorf("write box plots: %w", err)
	}
	if err := report.WritePredictionsCSV(predictionsPath, rep); err != nil {
		return false, fmt.Errorf("write predictions: %w", err)
	}

	stats := accuracy.SummarizeAll(rep.Errors())
	summary := report.NewSummary(tool, res.Metrics, stats)
	summary.Model = string(rep.Kind)
	summary.Samples = len(rows.Rows)
	summary.Coverage = report.CoverageSummary(res.Coverage)
	summary.Artifacts = []string{scatterPath, boxPath, predictionsPath, reportPath}
	for _, o := range rep.Events {
		summary.Warnings += o.Warnings
	}

	gate := accuracy.GateResult{Pass: true, Message: "no accuracy gate configured"}
	if len(cfg.Gate.MaxMeanAbsError) > 0 {
		gate = accuracy.EvaluateGate(stats, cfg.Gate.MaxMeanAbsError)
		summary.Gate = report.GateSummary(gate, cfg.Gate.MaxMeanAbsError)
	}

	if err := schema.ValidateEvalSummary(summary); err != nil {
		return false, fmt.Errorf("validate summary: %w", err)
	}
	if err := report.WriteJSON(summaryPath, summary); err != nil {
		return false, err
	}
	var gateRef *accuracy.GateResult
	if summary.Gate != nil {
		gateRef = &gate
	}
	title := fmt.Sprintf("Backtest of %s predictor", rep.Kind)
	if err := report.WriteMarkdown(reportPath, title, res.Metrics, stats, gateRef); err != nil {
		return false, err
	}

	if cfg.Telemetry.MetricsTextfile != "" {
		metrics := telemetry.NewMetrics()
		metrics.ObserveAlignment(res, accuracy.SummarizeAll(res.Errors))
		metrics.ObserveBacktest(rep, stats)
		metrics.ObserveGate(gate)
		if err := metrics.WriteTextfile(cfg.Telemetry.MetricsTextfile); err != nil {
			log.Printf("warning: %v", err)
		}
	}

	for _, metric := range res.Metrics {
		s := stats[metric]
		held := 0
		if o, ok := rep.Outcome(metric); ok {
			held = len(o.TestIndices)
		}
		fmt.Printf("%s: mean_abs_error=%.4g median=%.4g p95=%.4g held_out=%d\n", metric, s.Mean, s.Median, s.P95, held)
	}
	fmt.Printf("coverage: %d/%d calls aligned (%.1f%%)\n", res.Coverage.Aligned, res.Coverage.Entries, 100*res.Coverage.Ratio)
	fmt.Printf("summary: %s\n", summaryPath)
	if !gate.Pass {
		fmt.Fprintln(os.Stderr, gate.Message)
	}
	return gate.Pass, nil
}
