package schema

import (
	"time"

	"github.com/google/uuid"
)

// EvalSummary is the JSON envelope written by every evaluation run.
type EvalSummary struct {
	RunID       string           `json:"run_id"`
	Tool        string           `json:"tool"`
	GeneratedAt time.Time        `json:"generated_at"`
	Model       string           `json:"model,omitempty"`
	Samples     int              `json:"samples"`
	Warnings    int              `json:"warnings"`
	Coverage    *CoverageSummary `json:"coverage,omitempty"`
	Errors      []MetricErrors   `json:"errors"`
	Gate        *GateSummary     `json:"gate,omitempty"`
	Artifacts   []string         `json:"artifacts,omitempty"`
}

// CoverageSummary reports how much of the execution order was aligned.
type CoverageSummary struct {
	Entries          int     `json:"entries"`
	Aligned          int     `json:"aligned"`
	SkippedUnknown   int     `json:"skipped_unknown"`
	SkippedExhausted int     `json:"skipped_exhausted"`
	Ratio            float64 `json:"ratio"`
}

// MetricErrors holds absolute error statistics for one metric.
type MetricErrors struct {
	Metric string  `json:"metric"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P95    float64 `json:"p95"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"std_dev"`
}

// GateSummary records the accuracy gate verdict.
type GateSummary struct {
	Pass       bool               `json:"pass"`
	Message    string             `json:"message"`
	Thresholds map[string]float64 `json:"thresholds"`
}

// NewEvalSummary stamps a summary with a fresh run id and UTC time.
func NewEvalSummary(tool string) EvalSummary {
	return EvalSummary{
		RunID:       uuid.NewString(),
		Tool:        tool,
		GeneratedAt: time.Now().UTC(),
		Errors:      []MetricErrors{},
	}
}
