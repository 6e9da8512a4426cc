// Package telemetry records run metrics for the evaluation tools and wires
// OpenTelemetry tracing.
package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/accuracy"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/align"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/backtest"
)

// Metrics holds the gauges and histograms for one tool invocation.
type Metrics struct {
	registry *prometheus.Registry

	lastRun       prometheus.Gauge
	alignedCalls  prometheus.Gauge
	coverageRatio prometheus.Gauge
	skippedCalls  *prometheus.GaugeVec

	meanAbsError *prometheus.GaugeVec
	p95AbsError  *prometheus.GaugeVec
	fitDuration  *prometheus.HistogramVec
	fitWarnings  *prometheus.CounterVec
	gatePass     prometheus.Gauge
}

// NewMetrics registers the run metrics on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "perfeval_last_run_timestamp_seconds",
			Help: "Unix timestamp of the latest evaluation run.",
		}),
		alignedCalls: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "perfeval_aligned_calls",
			Help: "Function calls aligned with both a measurement and a prediction.",
		}),
		coverageRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "perfeval_alignment_coverage_ratio",
			Help: "Share of execution-order entries that were aligned.",
		}),
		skippedCalls: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "perfeval_skipped_calls",
			Help: "Execution-order entries skipped during alignment by reason.",
		}, []string{"reason"}),
		meanAbsError: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "perfeval_mean_abs_error",
			Help: "Mean absolute prediction error by stage and metric.",
		}, []string{"stage", "metric"}),
		p95AbsError: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "perfeval_p95_abs_error",
			Help: "95th percentile absolute prediction error by stage and metric.",
		}, []string{"stage", "metric"}),
		fitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "perfeval_fit_duration_seconds",
			Help:    "Model fit wall time by model kind.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"model"}),
		fitWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "perfeval_fit_warnings_total",
			Help: "Solver warnings reported during fits by model kind.",
		}, []string{"model"}),
		gatePass: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "perfeval_gate_pass",
			Help: "1 when the accuracy gate passed, 0 otherwise.",
		}),
	}

	registry.MustRegister(
		m.lastRun,
		m.alignedCalls,
		m.coverageRatio,
		m.skippedCalls,
		m.meanAbsError,
		m.p95AbsError,
		m.fitDuration,
		m.fitWarnings,
		m.gatePass,
	)
	m.lastRun.Set(float64(time.Now().UTC().Unix()))
	return m
}

// ObserveAlignment records coverage and aligned error statistics.
func (m *Metrics) ObserveAlignment(res align.Result, stats map[string]accuracy.Stats) {
	m.alignedCalls.Set(float64(res.Coverage.Aligned))
	m.coverageRatio.Set(res.Coverage.Ratio)
	m.skippedCalls.WithLabelValues("unknown_function").Set(float64(res.Coverage.SkippedUnknown))
	m.skippedCalls.WithLabelValues("exhausted").Set(float64(res.Coverage.SkippedExhausted))
	m.observeStats("aligned", stats)
}

// ObserveBacktest records fit timings, warning counts and held-out error
// statistics.
func (m *Metrics) ObserveBacktest(rep backtest.Report, stats map[string]accuracy.Stats) {
	model := string(rep.Kind)
	for _, o := range rep.Events {
		m.fitDuration.WithLabelValues(model).Observe(o.FitDuration.Seconds())
		m.fitWarnings.WithLabelValues(model).Add(float64(o.Warnings))
	}
	m.observeStats("backtest", stats)
}

// ObserveGate records the gate verdict.
func (m *Metrics) ObserveGate(gate accuracy.GateResult) {
	if gate.Pass {
		m.gatePass.Set(1)
		return
	}
	m.gatePass.Set(0)
}

func (m *Metrics) observeStats(stage string, stats map[string]accuracy.Stats) {
	for metric, s := range stats {
		m.meanAbsError.WithLabelValues(stage, metric).Set(s.Mean)
		m.p95AbsError.WithLabelValues(stage, metric).Set(s.P95)
	}
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
