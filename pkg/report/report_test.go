package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/accuracy"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/align"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/backtest"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/metricstore"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/predictor"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/schema"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func sampleResult() align.Result {
	return align.Result{
		Metrics: []string{"Energy", "Instructions"},
		Aligned: map[string]align.Series{
			"Energy":       {{Measured: 10, Predicted: 12}, {Measured: 20, Predicted: 15}, {Measured: 30, Predicted: 31}},
			"Instructions": {{Measured: 1e6, Predicted: 1.1e6}, {Measured: 2e6, Predicted: 2e6}, {Measured: 3e6, Predicted: 2.5e6}},
		},
		Errors: map[string][]float64{
			"Energy":       {2, 5, 1},
			"Instructions": {1e5, 0, 5e5},
		},
		Positions: []int{0, 2, 3},
		Functions: []int{1, 1, 2},
	}
}

func sampleReport() backtest.Report {
	return backtest.Report{
		Kind: predictor.KindGPR,
		Events: []backtest.Outcome{{
			Event:       "Energy",
			TestIndices: []int{4, 1},
			Truth:       []float64{10, 20},
			Predicted:   []float64{11, 18},
			AbsErrors:   []float64{1, 2},
		}},
	}
}

func assertPNG(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if !bytes.HasPrefix(data, pngMagic) {
		t.Fatalf("%s is not a PNG", path)
	}
}

func TestWriteAlignedScatterCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "plots", "all_in_one.png")
	if err := WriteAlignedScatter(path, sampleResult()); err != nil {
		t.Fatalf("write: %v", err)
	}
	assertPNG(t, path)
}

func TestWriteErrorBoxes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "box_plots.png")
	res := sampleResult()
	errs := res.Errors
	errs["Cache_Misses"] = nil
	if err := WriteErrorBoxes(path, []string{"Cache_Misses", "Energy", "Instructions"}, errs); err != nil {
		t.Fatalf("write: %v", err)
	}
	assertPNG(t, path)
}

func TestWriteBacktestScatter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scatters.png")
	if err := WriteBacktestScatter(path, sampleReport()); err != nil {
		t.Fatalf("write: %v", err)
	}
	assertPNG(t, path)
}

func TestWriteComparisonAndTrends(t *testing.T) {
	dir := t.TempDir()
	frame := metricstore.Frame{
		Path:    "a.csv",
		Columns: []string{"Energy"},
		Values:  map[string][]float64{"Energy": {1, 2, 3}},
	}
	other := metricstore.Frame{
		Path:    "b.csv",
		Columns: []string{"Energy"},
		Values:  map[string][]float64{"Energy": {1.5, 2.5}},
	}
	cmp := filepath.Join(dir, "scatter_plot_03.png")
	if err := WriteComparison(cmp, frame, other, []string{"Energy"}); err != nil {
		t.Fatalf("comparison: %v", err)
	}
	assertPNG(t, cmp)

	trends := filepath.Join(dir, "monitoring_all_plots.png")
	if err := WriteTrends(trends, frame, []string{"Energy"}); err != nil {
		t.Fatalf("trends: %v", err)
	}
	assertPNG(t, trends)
}

func TestComparisonFileName(t *testing.T) {
	cases := map[string]string{
		"0":  "scatter_plot_00.png",
		"7":  "scatter_plot_07.png",
		"12": "scatter_plot_12.png",
	}
	for label, want := range cases {
		got, err := ComparisonFileName(label)
		if err != nil {
			t.Fatalf("label %s: %v", label, err)
		}
		if got != want {
			t.Fatalf("label %s: expected %s got %s", label, want, got)
		}
	}
	for _, bad := range []string{"", "x", "-1"} {
		if _, err := ComparisonFileName(bad); err == nil {
			t.Fatalf("expected error for label %q", bad)
		}
	}
}

func TestWriteAlignedCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aligned.csv")
	if err := WriteAlignedCSV(path, sampleResult()); err != nil {
		t.Fatalf("write: %v", err)
	}
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d", len(rows))
	}
	if rows[0][3] != "Energy_measured" || rows[2][1] != "2" || rows[2][4] != "15" {
		t.Fatalf("unexpected content: %v", rows)
	}
}

func TestWritePredictionsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.csv")
	if err := WritePredictionsCSV(path, sampleReport()); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[1] != "Energy,gpr,0,4,10,11,1" {
		t.Fatalf("unexpected row %q", lines[1])
	}
}

func TestWriteJSONAndMarkdown(t *testing.T) {
	dir := t.TempDir()
	stats := accuracy.SummarizeAll(sampleResult().Errors)

	jsonPath := filepath.Join(dir, "out", "summary.json")
	if err := WriteJSON(jsonPath, stats); err != nil {
		t.Fatalf("write json: %v", err)
	}
	var decoded map[string]accuracy.Stats
	data, _ := os.ReadFile(jsonPath)
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["Energy"].Count != 3 {
		t.Fatalf("unexpected decoded stats: %+v", decoded)
	}

	gate := accuracy.EvaluateGate(stats, map[string]float64{"Energy": 1})
	mdPath := filepath.Join(dir, "report.md")
	if err := WriteMarkdown(mdPath, "Aligned prediction error", []string{"Energy"}, stats, &gate); err != nil {
		t.Fatalf("write markdown: %v", err)
	}
	md, _ := os.ReadFile(mdPath)
	if !strings.Contains(string(md), "| Energy | 3 |") || !strings.Contains(string(md), "FAIL") {
		t.Fatalf("unexpected markdown:\n%s", md)
	}
}

func TestNewSummaryPassesSchema(t *testing.T) {
	res := sampleResult()
	res.Coverage = align.Coverage{Entries: 4, Aligned: 3, SkippedUnknown: 1, Ratio: 0.75}
	stats := accuracy.SummarizeAll(res.Errors)

	summary := NewSummary("alignplot", res.Metrics, stats)
	summary.Samples = res.Len()
	summary.Coverage = CoverageSummary(res.Coverage)
	thresholds := map[string]float64{"Energy": 5}
	summary.Gate = GateSummary(accuracy.EvaluateGate(stats, thresholds), thresholds)

	if len(summary.Errors) != 2 || summary.Errors[0].Metric != "Energy" {
		t.Fatalf("unexpected errors: %+v", summary.Errors)
	}
	if err := schema.ValidateEvalSummary(summary); err != nil {
		t.Fatalf("summary failed schema: %v", err)
	}
}
