package accuracy

import (
	"math"
	"strings"
	"testing"
)

func TestSummarize(t *testing.T) {
	stats := Summarize([]float64{4, 1, 3, 2})
	if stats.Count != 4 {
		t.Fatalf("expected count 4, got %d", stats.Count)
	}
	if stats.Mean != 2.5 {
		t.Fatalf("expected mean 2.5, got %f", stats.Mean)
	}
	if stats.Median != 2 {
		t.Fatalf("expected empirical median 2, got %f", stats.Median)
	}
	if stats.P95 != 4 || stats.Max != 4 {
		t.Fatalf("unexpected tail stats: %+v", stats)
	}
	if math.Abs(stats.StdDev-math.Sqrt(5.0/3.0)) > 1e-12 {
		t.Fatalf("unexpected std dev: %f", stats.StdDev)
	}
}

func TestSummarizeEmptyAndSingle(t *testing.T) {
	if got := Summarize(nil); got != (Stats{}) {
		t.Fatalf("expected zero stats, got %+v", got)
	}
	one := Summarize([]float64{7})
	if one.Count != 1 || one.Mean != 7 || one.StdDev != 0 {
		t.Fatalf("unexpected single-sample stats: %+v", one)
	}
}

func TestSummarizeDoesNotReorderInput(t *testing.T) {
	errs := []float64{3, 1, 2}
	Summarize(errs)
	if errs[0] != 3 || errs[1] != 1 || errs[2] != 2 {
		t.Fatalf("input was modified: %v", errs)
	}
}

func TestEvaluateGate(t *testing.T) {
	stats := SummarizeAll(map[string][]float64{
		"Energy":       {0.1, 0.2},
		"Instructions": {10, 30},
	})

	gate := EvaluateGate(stats, map[string]float64{"Energy": 0.2, "Instructions": 25})
	if !gate.Pass {
		t.Fatalf("expected pass, got: %s", gate.Message)
	}

	fail := EvaluateGate(stats, map[string]float64{"Instructions": 15})
	if fail.Pass {
		t.Fatal("expected instructions gate fail")
	}
	if !strings.Contains(fail.Message, "Instructions") {
		t.Fatalf("message should name the metric: %s", fail.Message)
	}

	missing := EvaluateGate(stats, map[string]float64{"Cache_Misses": 1})
	if missing.Pass {
		t.Fatal("expected fail for metric without errors")
	}
}
