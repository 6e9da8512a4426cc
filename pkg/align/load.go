package align

import (
	"fmt"
	"log"
	"sort"

	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/metricstore"
)

// Inputs locates the files an alignment run reads.
type Inputs struct {
	OrderPath       string
	OrderColumn     string
	MeasurementsDir string
	PredictionsDir  string
}

// AlignFiles loads the execution order and both table stores, then aligns
// them.
func AlignFiles(in Inputs, metrics []string) (Result, error) {
	order, err := metricstore.LoadExecutionOrder(in.OrderPath, in.OrderColumn)
	if err != nil {
		return Result{}, err
	}
	measurements, err := metricstore.LoadStore(in.MeasurementsDir)
	if err != nil {
		return Result{}, fmt.Errorf("load measurements: %w", err)
	}
	predictions, err := metricstore.LoadStore(in.PredictionsDir)
	if err != nil {
		return Result{}, fmt.Errorf("load predictions: %w", err)
	}
	for _, key := range unpairedKeys(measurements, predictions) {
		log.Printf("warning: function %s has only one of measurements or predictions; its calls will be skipped", key)
	}
	return Align(order, measurements, predictions, metrics)
}

// unpairedKeys lists, in sorted order, the keys present in exactly one of
// the stores.
func unpairedKeys(a, b metricstore.Store) []string {
	var out []string
	for _, key := range a.Keys() {
		if _, ok := b[key]; !ok {
			out = append(out, key)
		}
	}
	for _, key := range b.Keys() {
		if _, ok := a[key]; !ok {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}
