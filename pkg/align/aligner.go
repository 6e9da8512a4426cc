// Package align replays a recorded execution order against per-function
// measurement and prediction tables.
package align

import (
	"fmt"

	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/metricstore"
)

// Pair is one aligned (measured, predicted) observation.
type Pair struct {
	Measured  float64 `json:"measured"`
	Predicted float64 `json:"predicted"`
}

// Series is the aligned sequence for one metric.
type Series []Pair

// Measured returns the measured values in order.
func (s Series) Measured() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Measured
	}
	return out
}

// Predicted returns the predicted values in order.
func (s Series) Predicted() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Predicted
	}
	return out
}

// Coverage counts how much of the execution order could be aligned.
type Coverage struct {
	Entries          int     `json:"entries"`
	Aligned          int     `json:"aligned"`
	SkippedUnknown   int     `json:"skipped_unknown"`
	SkippedExhausted int     `json:"skipped_exhausted"`
	Ratio            float64 `json:"ratio"`
}

// Result holds the aligned and error series per metric.
type Result struct {
	Metrics []string
	Aligned map[string]Series
	Errors  map[string][]float64
	// Positions[i] is the execution-order index that produced aligned index i.
	Positions []int
	// Functions[i] is the function identifier of aligned index i.
	Functions []int
	Coverage  Coverage
}

// Len returns the number of aligned calls.
func (r Result) Len() int {
	return len(r.Positions)
}

// MeasuredByMetric returns the measured series keyed by metric.
func (r Result) MeasuredByMetric() map[string][]float64 {
	out := make(map[string][]float64, len(r.Metrics))
	for _, metric := range r.Metrics {
		out[metric] = r.Aligned[metric].Measured()
	}
	return out
}

// Align walks order and, for each function identifier that has both a
// measurement and a prediction table with rows left, consumes the next row
// of each. Unknown identifiers and exhausted tables are skipped.
func Align(
	order []int,
	measurements metricstore.Store,
	predictions metricstore.Store,
	metrics []string,
) (Result, error) {
	if len(metrics) == 0 {
		metrics = metricstore.DefaultMetrics
	}

	result := Result{
		Metrics:   append([]string(nil), metrics...),
		Aligned:   make(map[string]Series, len(metrics)),
		Errors:    make(map[string][]float64, len(metrics)),
		Positions: make([]int, 0, len(order)),
		Functions: make([]int, 0, len(order)),
	}
	for _, metric := range metrics {
		result.Aligned[metric] = make(Series, 0, len(order))
		result.Errors[metric] = make([]float64, 0, len(order))
	}

	cursors := make(map[string]int)
	checked := make(map[string]bool)
	for pos, id := range order {
		result.Coverage.Entries++
		key := metricstore.FunctionKey(id)
		measured, okM := measurements[key]
		predicted, okP := predictions[key]
		if !okM || !okP {
			result.Coverage.SkippedUnknown++
			continue
		}
		if !checked[key] {
			if err := requireMetrics(key, measured, predicted, metrics); err != nil {
				return Result{}, err
			}
			checked[key] = true
		}

		cur := cursors[key]
		if cur >= measured.Len() || cur >= predicted.Len() {
			result.Coverage.SkippedExhausted++
			continue
		}
		m := measured.Rows[cur]
		p := predicted.Rows[cur]
		cursors[key] = cur + 1

		for _, metric := range metrics {
			result.Aligned[metric] = append(result.Aligned[metric], Pair{
				Measured:  m[metric],
				Predicted: p[metric],
			})
			result.Errors[metric] = append(result.Errors[metric], absDiff(m[metric], p[metric]))
		}
		result.Positions = append(result.Positions, pos)
		result.Functions = append(result.Functions, id)
		result.Coverage.Aligned++
	}

	if result.Coverage.Entries > 0 {
		result.Coverage.Ratio = float64(result.Coverage.Aligned) / float64(result.Coverage.Entries)
	}
	return result, nil
}

func requireMetrics(key string, measured, predicted metricstore.Table, metrics []string) error {
	for _, metric := range metrics {
		if !measured.Has(metric) {
			return fmt.Errorf("measurement table %s has no %s column", key, metric)
		}
		if !predicted.Has(metric) {
			return fmt.Errorf("prediction table %s has no %s column", key, metric)
		}
	}
	return nil
}
