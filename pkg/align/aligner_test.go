package align

import (
	"math"
	"math/rand"
	"testing"

	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/metricstore"
)

func record(cm, e, i float64) metricstore.Record {
	return metricstore.Record{
		metricstore.CacheMisses:  cm,
		metricstore.Energy:       e,
		metricstore.Instructions: i,
	}
}

func table(rows ...metricstore.Record) metricstore.Table {
	return metricstore.Table{Columns: metricstore.DefaultMetrics, Rows: rows}
}

func TestAlignEndToEnd(t *testing.T) {
	measurements := metricstore.Store{
		"01": table(record(10, 1, 100), record(20, 2, 200)),
		"02": table(record(5, 0.5, 50)),
	}
	predictions := metricstore.Store{
		"01": table(record(11, 1, 101), record(19, 2, 199)),
		"02": table(record(6, 0.6, 60)),
	}

	result, err := Align([]int{1, 1, 2}, measurements, predictions, nil)
	if err != nil {
		t.Fatalf("align: %v", err)
	}

	wantPairs := Series{{10, 11}, {20, 19}, {5, 6}}
	got := result.Aligned[metricstore.CacheMisses]
	if len(got) != len(wantPairs) {
		t.Fatalf("expected %d pairs, got %d", len(wantPairs), len(got))
	}
	for i := range wantPairs {
		if got[i] != wantPairs[i] {
			t.Fatalf("pair %d: expected %+v got %+v", i, wantPairs[i], got[i])
		}
	}
	for i, e := range result.Errors[metricstore.CacheMisses] {
		if e != 1 {
			t.Fatalf("error %d: expected 1 got %f", i, e)
		}
	}
	if math.Abs(result.Errors[metricstore.Energy][2]-0.1) > 1e-12 {
		t.Fatalf("unexpected energy error: %f", result.Errors[metricstore.Energy][2])
	}
	if result.Coverage.Aligned != 3 || result.Coverage.Ratio != 1 {
		t.Fatalf("unexpected coverage: %+v", result.Coverage)
	}
	if result.Positions[2] != 2 || result.Functions[2] != 2 {
		t.Fatalf("unexpected provenance: %v %v", result.Positions, result.Functions)
	}
}

func TestAlignSkipsUnknownFunction(t *testing.T) {
	measurements := metricstore.Store{"01": table(record(10, 1, 100))}
	predictions := metricstore.Store{"01": table(record(11, 1, 101))}

	result, err := Align([]int{7, 1, 7}, measurements, predictions, nil)
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	for _, metric := range metricstore.DefaultMetrics {
		if len(result.Aligned[metric]) != 1 {
			t.Fatalf("%s: expected 1 aligned pair, got %d", metric, len(result.Aligned[metric]))
		}
	}
	if result.Coverage.SkippedUnknown != 2 {
		t.Fatalf("unexpected coverage: %+v", result.Coverage)
	}
	if result.Positions[0] != 1 {
		t.Fatalf("expected position 1, got %d", result.Positions[0])
	}
}

func TestAlignSkipsWhenOnlyOneSideExists(t *testing.T) {
	measurements := metricstore.Store{"03": table(record(1, 1, 1))}
	predictions := metricstore.Store{}

	result, err := Align([]int{3}, measurements, predictions, nil)
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if result.Len() != 0 {
		t.Fatalf("expected no aligned calls, got %d", result.Len())
	}
}

func TestAlignToleratesExhaustedTables(t *testing.T) {
	measurements := metricstore.Store{"01": table(record(10, 1, 100), record(20, 2, 200))}
	predictions := metricstore.Store{"01": table(record(11, 1, 101))}

	result, err := Align([]int{1, 1, 1}, measurements, predictions, nil)
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if result.Len() != 1 {
		t.Fatalf("expected 1 aligned call, got %d", result.Len())
	}
	if result.Coverage.SkippedExhausted != 2 {
		t.Fatalf("unexpected coverage: %+v", result.Coverage)
	}
}

func TestAlignDoesNotMutateTables(t *testing.T) {
	measurements := metricstore.Store{"01": table(record(10, 1, 100), record(20, 2, 200))}
	predictions := metricstore.Store{"01": table(record(11, 1, 101), record(19, 2, 199))}

	if _, err := Align([]int{1, 1}, measurements, predictions, nil); err != nil {
		t.Fatalf("align: %v", err)
	}
	second, err := Align([]int{1}, measurements, predictions, nil)
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if second.Aligned[metricstore.CacheMisses][0].Measured != 10 {
		t.Fatalf("tables were consumed in place: %+v", second.Aligned[metricstore.CacheMisses])
	}
}

func TestAlignMissingMetricColumn(t *testing.T) {
	measurements := metricstore.Store{"01": {Columns: []string{metricstore.CacheMisses}, Rows: []metricstore.Record{{metricstore.CacheMisses: 1}}}}
	predictions := metricstore.Store{"01": table(record(1, 1, 1))}

	if _, err := Align([]int{1}, measurements, predictions, nil); err == nil {
		t.Fatal("expected missing column error")
	}
}

func TestAlignFIFOAndBoundsRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		measurements := metricstore.Store{}
		predictions := metricstore.Store{}
		for id := 1; id <= 4; id++ {
			key := metricstore.FunctionKey(id)
			nm := rng.Intn(4)
			np := rng.Intn(4)
			m := table()
			p := table()
			for r := 0; r < nm; r++ {
				m.Rows = append(m.Rows, record(float64(id*100+r), 0, 0))
			}
			for r := 0; r < np; r++ {
				p.Rows = append(p.Rows, record(float64(id*100+r)+0.5, 0, 0))
			}
			if rng.Intn(5) > 0 {
				measurements[key] = m
				predictions[key] = p
			}
		}
		order := make([]int, rng.Intn(12))
		for i := range order {
			order[i] = 1 + rng.Intn(5)
		}

		result, err := Align(order, measurements, predictions, nil)
		if err != nil {
			t.Fatalf("align: %v", err)
		}

		bound := 0
		for key, m := range measurements {
			p := predictions[key]
			bound += min(m.Len(), p.Len())
		}
		series := result.Aligned[metricstore.CacheMisses]
		if len(series) > len(order) || len(series) > bound {
			t.Fatalf("trial %d: %d aligned exceeds bounds (order %d, rows %d)", trial, len(series), len(order), bound)
		}

		seen := make(map[int]int)
		for i, pair := range series {
			id := result.Functions[i]
			want := float64(id*100 + seen[id])
			if pair.Measured != want || pair.Predicted != want+0.5 {
				t.Fatalf("trial %d: occurrence %d of %d consumed %+v", trial, seen[id], id, pair)
			}
			seen[id]++
			if e := result.Errors[metricstore.CacheMisses][i]; e != 0.5 {
				t.Fatalf("trial %d: unexpected error %f", trial, e)
			}
		}
	}
}

func TestAbsoluteErrors(t *testing.T) {
	got := AbsoluteErrors([]float64{1, 5, -2}, []float64{3, 5, 2})
	want := []float64{2, 0, 4}
	for i := range want {
		if got[i] != want[i] || got[i] < 0 {
			t.Fatalf("index %d: expected %f got %f", i, want[i], got[i])
		}
	}
}

func TestAbsoluteErrorsLengthMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on length mismatch")
		}
	}()
	AbsoluteErrors([]float64{1}, []float64{1, 2})
}
