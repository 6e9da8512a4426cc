package backtest

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/predictor"
)

func linearFixture(n int) ([][]float64, map[string][]float64) {
	features := make([][]float64, n)
	energy := make([]float64, n)
	instructions := make([]float64, n)
	for i := 0; i < n; i++ {
		a := float64(i)
		b := float64((i * 5) % 9)
		features[i] = []float64{a, b}
		energy[i] = 2*a + b
		instructions[i] = 100 + 3*a
	}
	return features, map[string][]float64{"Energy": energy, "Instructions": instructions}
}

func TestTrainTestSplit(t *testing.T) {
	train, test, err := TrainTestSplit(10, 0.2, 42)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(test) != 2 || len(train) != 8 {
		t.Fatalf("unexpected sizes train=%d test=%d", len(train), len(test))
	}
	all := append(append([]int(nil), train...), test...)
	sort.Ints(all)
	for i, v := range all {
		if v != i {
			t.Fatalf("split is not a partition: %v", all)
		}
	}

	again, testAgain, _ := TrainTestSplit(10, 0.2, 42)
	for i := range test {
		if test[i] != testAgain[i] {
			t.Fatalf("split not deterministic: %v vs %v", test, testAgain)
		}
	}
	if len(again) != len(train) {
		t.Fatal("split not deterministic")
	}
}

func TestTrainTestSplitRoundsTestSizeUp(t *testing.T) {
	train, test, err := TrainTestSplit(11, 0.2, 1)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(test) != 3 || len(train) != 8 {
		t.Fatalf("expected 8/3, got %d/%d", len(train), len(test))
	}
}

func TestTrainTestSplitRejectsTinyInputs(t *testing.T) {
	if _, _, err := TrainTestSplit(1, 0.2, 42); err == nil {
		t.Fatal("expected error for a single sample")
	}
	if _, _, err := TrainTestSplit(10, 1.5, 42); err == nil {
		t.Fatal("expected error for invalid fraction")
	}
}

func TestRunProducesOutcomePerEvent(t *testing.T) {
	features, targets := linearFixture(40)
	cfg := DefaultConfig("poly")
	cfg.Options.PolyDegree = 1

	report, err := Run(context.Background(), cfg, features, targets)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Kind != predictor.KindPoly {
		t.Fatalf("unexpected kind %s", report.Kind)
	}
	if len(report.Events) != 2 || report.Events[0].Event != "Energy" || report.Events[1].Event != "Instructions" {
		t.Fatalf("unexpected events: %+v", report.Events)
	}
	for _, o := range report.Events {
		if len(o.TestIndices) != 8 || len(o.Predicted) != 8 || len(o.AbsErrors) != 8 {
			t.Fatalf("event %s: unexpected sizes %+v", o.Event, o)
		}
		for i, idx := range o.TestIndices {
			if o.Truth[i] != targets[o.Event][idx] {
				t.Fatalf("event %s: truth %d does not match target row %d", o.Event, i, idx)
			}
			if o.AbsErrors[i] > 1e-6 {
				t.Fatalf("event %s: linear data should fit exactly, error %g", o.Event, o.AbsErrors[i])
			}
		}
	}
	if len(report.Errors()["Energy"]) != 8 {
		t.Fatal("Errors() lost the energy series")
	}
}

func TestRunIsIndependentOfWorkerCount(t *testing.T) {
	features, targets := linearFixture(30)
	cfg := DefaultConfig("svm")

	sequential, err := Run(context.Background(), cfg, features, targets)
	if err != nil {
		t.Fatalf("sequential run: %v", err)
	}
	cfg.Workers = 4
	parallel, err := Run(context.Background(), cfg, features, targets)
	if err != nil {
		t.Fatalf("parallel run: %v", err)
	}
	for i := range sequential.Events {
		a, b := sequential.Events[i], parallel.Events[i]
		if a.Event != b.Event {
			t.Fatalf("event order changed: %s vs %s", a.Event, b.Event)
		}
		for j := range a.Predicted {
			if a.Predicted[j] != b.Predicted[j] {
				t.Fatalf("event %s prediction %d differs", a.Event, j)
			}
		}
	}
}

func TestRunHonorsEventOrder(t *testing.T) {
	features, targets := linearFixture(20)
	cfg := DefaultConfig("poly")
	cfg.Events = []string{"Instructions", "Energy"}
	report, err := Run(context.Background(), cfg, features, targets)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Events[0].Event != "Instructions" {
		t.Fatalf("expected configured order, got %s first", report.Events[0].Event)
	}
	if _, ok := report.Outcome("Energy"); !ok {
		t.Fatal("expected Energy outcome")
	}
}

func TestRunRejectsBadInputs(t *testing.T) {
	features, targets := linearFixture(20)

	_, err := Run(context.Background(), DefaultConfig("bogus"), features, targets)
	if !errors.Is(err, predictor.ErrUnsupportedKind) {
		t.Fatalf("expected ErrUnsupportedKind, got %v", err)
	}

	targets["Energy"] = targets["Energy"][:10]
	if _, err := Run(context.Background(), DefaultConfig("poly"), features, targets); err == nil {
		t.Fatal("expected length mismatch error")
	}

	cfg := DefaultConfig("poly")
	cfg.Events = []string{"Cache_Misses"}
	if _, err := Run(context.Background(), cfg, features, targets); err == nil {
		t.Fatal("expected missing event error")
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	features, targets := linearFixture(20)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, DefaultConfig("poly"), features, targets); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
