package schema

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validSummary() EvalSummary {
	summary := NewEvalSummary("perfeval")
	summary.Model = "gpr"
	summary.Samples = 40
	summary.Coverage = &CoverageSummary{Entries: 50, Aligned: 40, SkippedUnknown: 10, Ratio: 0.8}
	summary.Errors = []MetricErrors{{Metric: "Energy", Count: 8, Mean: 1.2, Median: 1, P95: 3, Max: 3.5, StdDev: 0.9}}
	summary.Gate = &GateSummary{Pass: true, Message: "accuracy gate passed", Thresholds: map[string]float64{"Energy": 2}}
	return summary
}

func TestValidateEvalSummary(t *testing.T) {
	if err := ValidateEvalSummary(validSummary()); err != nil {
		t.Fatalf("schema validation failed: %v", err)
	}
}

func TestValidateEvalSummaryRejectsBadPayloads(t *testing.T) {
	badModel := validSummary()
	badModel.Model = "bogus"
	if err := ValidateEvalSummary(badModel); err == nil {
		t.Fatal("expected unknown model to fail")
	}

	badRatio := validSummary()
	badRatio.Coverage.Ratio = 1.5
	if err := ValidateEvalSummary(badRatio); err == nil {
		t.Fatal("expected coverage ratio above 1 to fail")
	}

	badID := validSummary()
	badID.RunID = "run-1"
	err := ValidateEvalSummary(badID)
	if err == nil || !strings.Contains(err.Error(), "run_id") {
		t.Fatalf("expected run_id failure, got %v", err)
	}
}

func TestValidateEvalSummaryFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "summary.json")
	if err := os.WriteFile(path, []byte(`{"tool":"perfeval"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateEvalSummaryFile(path); err == nil {
		t.Fatal("expected missing fields to fail")
	}
}

func TestValidateAgainstSchemaFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "eval-summary.schema.json")
	if err := os.WriteFile(path, EvalSummarySchema(), 0o644); err != nil {
		t.Fatalf("write schema: %v", err)
	}
	if err := ValidateAgainstSchema(path, validSummary()); err != nil {
		t.Fatalf("schema validation failed: %v", err)
	}
	if err := ValidateAgainstSchema(filepath.Join(dir, "missing.json"), validSummary()); err == nil {
		t.Fatal("expected missing schema error")
	}
}
