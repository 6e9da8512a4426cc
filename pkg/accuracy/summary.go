// Package accuracy summarizes absolute prediction errors per metric and
// checks them against configured thresholds.
package accuracy

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats describes one absolute error series.
type Stats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P95    float64 `json:"p95"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"std_dev"`
}

// GateResult captures gate verdict and details.
type GateResult struct {
	Pass    bool
	Message string
}

// Summarize computes descriptive statistics for errs. An empty series
// yields a zero Stats.
func Summarize(errs []float64) Stats {
	if len(errs) == 0 {
		return Stats{}
	}
	sorted := append([]float64(nil), errs...)
	sort.Float64s(sorted)

	out := Stats{
		Count:  len(sorted),
		Mean:   stat.Mean(sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P95:    stat.Quantile(0.95, stat.Empirical, sorted, nil),
		Max:    floats.Max(sorted),
	}
	if len(sorted) > 1 {
		out.StdDev = stat.StdDev(sorted, nil)
	}
	return out
}

// SummarizeAll applies Summarize to every series in byMetric.
func SummarizeAll(byMetric map[string][]float64) map[string]Stats {
	out := make(map[string]Stats, len(byMetric))
	for metric, errs := range byMetric {
		out[metric] = Summarize(errs)
	}
	return out
}

// EvaluateGate checks each metric's mean absolute error against maxMean.
// Metrics without a threshold are not gated; a threshold for a metric with
// no statistics fails.
func EvaluateGate(stats map[string]Stats, maxMean map[string]float64) GateResult {
	metrics := make([]string, 0, len(maxMean))
	for metric := range maxMean {
		metrics = append(metrics, metric)
	}
	sort.Strings(metrics)

	for _, metric := range metrics {
		limit := maxMean[metric]
		s, ok := stats[metric]
		if !ok || s.Count == 0 {
			return GateResult{
				Pass:    false,
				Message: fmt.Sprintf("accuracy gate failed: no errors recorded for %s", metric),
			}
		}
		if math.IsNaN(s.Mean) || s.Mean > limit {
			return GateResult{
				Pass:    false,
				Message: fmt.Sprintf("accuracy gate failed: %s mean abs error %.4f exceeds %.4f", metric, s.Mean, limit),
			}
		}
	}
	return GateResult{Pass: true, Message: "accuracy gate passed"}
}
