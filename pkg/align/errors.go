package align

import (
	"fmt"
	"math"
)

// AbsoluteErrors returns |measured[i] - predicted[i]| for every index.
// The inputs must have equal length.
func AbsoluteErrors(measured, predicted []float64) []float64 {
	if len(measured) != len(predicted) {
		panic(fmt.Sprintf("align: series length mismatch: %d measured, %d predicted", len(measured), len(predicted)))
	}
	out := make([]float64, len(measured))
	for i := range measured {
		out[i] = absDiff(measured[i], predicted[i])
	}
	return out
}

func absDiff(a, b float64) float64 {
	return math.Abs(a - b)
}
