package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/accuracy"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/align"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/backtest"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/predictor"
)

func TestObserveAlignment(t *testing.T) {
	m := NewMetrics()
	res := align.Result{Coverage: align.Coverage{Entries: 4, Aligned: 3, SkippedUnknown: 1, Ratio: 0.75}}
	m.ObserveAlignment(res, map[string]accuracy.Stats{"Energy": {Count: 3, Mean: 2.5, P95: 4}})

	if got := testutil.ToFloat64(m.coverageRatio); got != 0.75 {
		t.Fatalf("expected coverage 0.75, got %f", got)
	}
	if got := testutil.ToFloat64(m.skippedCalls.WithLabelValues("unknown_function")); got != 1 {
		t.Fatalf("expected 1 unknown skip, got %f", got)
	}
	if got := testutil.ToFloat64(m.meanAbsError.WithLabelValues("aligned", "Energy")); got != 2.5 {
		t.Fatalf("expected mean 2.5, got %f", got)
	}
}

func TestObserveBacktestAndGate(t *testing.T) {
	m := NewMetrics()
	rep := backtest.Report{
		Kind: predictor.KindPoly,
		Events: []backtest.Outcome{
			{Event: "Energy", Warnings: 2, FitDuration: 20 * time.Millisecond},
			{Event: "Instructions", Warnings: 1, FitDuration: 5 * time.Millisecond},
		},
	}
	m.ObserveBacktest(rep, nil)
	m.ObserveGate(accuracy.GateResult{Pass: true})

	if got := testutil.ToFloat64(m.fitWarnings.WithLabelValues("poly")); got != 3 {
		t.Fatalf("expected 3 warnings, got %f", got)
	}
	if got := testutil.CollectAndCount(m.fitDuration); got != 1 {
		t.Fatalf("expected one histogram series, got %d", got)
	}
	if got := testutil.ToFloat64(m.gatePass); got != 1 {
		t.Fatalf("expected gate pass gauge 1, got %f", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.ObserveGate(accuracy.GateResult{Pass: false})
	path := filepath.Join(t.TempDir(), "metrics", "perfeval.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("write textfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), "perfeval_gate_pass 0") {
		t.Fatalf("missing gate metric:\n%s", data)
	}
}

func TestSetupTracerProviderDisabled(t *testing.T) {
	shutdown, err := SetupTracerProvider("perfeval", "", false)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
