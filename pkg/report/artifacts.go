package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/accuracy"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/align"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/backtest"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/schema"
)

// NewSummary builds an eval summary for tool with one error
// entry per metric, in metric order.
func NewSummary(tool string, metrics []string, stats map[string]accuracy.Stats) schema.EvalSummary {
	summary := schema.NewEvalSummary(tool)
	for _, metric := range metrics {
		s := stats[metric]
		summary.Errors = append(summary.Errors, schema.MetricErrors{
			Metric: metric,
			Count:  s.Count,
			Mean:   s.Mean,
			Median: s.Median,
			P95:    s.P95,
			Max:    s.Max,
			StdDev: s.StdDev,
		})
	}
	return summary
}

// CoverageSummary converts an alignment coverage report.
func CoverageSummary(c align.Coverage) *schema.CoverageSummary {
	return &schema.CoverageSummary{
		Entries:          c.Entries,
		Aligned:          c.Aligned,
		SkippedUnknown:   c.SkippedUnknown,
		SkippedExhausted: c.SkippedExhausted,
		Ratio:            c.Ratio,
	}
}

// GateSummary converts a gate verdict and its thresholds.
func GateSummary(gate accuracy.GateResult, thresholds map[string]float64) *schema.GateSummary {
	return &schema.GateSummary{Pass: gate.Pass, Message: gate.Message, Thresholds: thresholds}
}

// WriteJSON writes payload as indented JSON, creating parent directories.
func WriteJSON(path string, payload interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	bytes, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	if err := os.WriteFile(path, bytes, 0o644); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return nil
}

// WriteAlignedCSV exports the aligned series, one row per aligned
// invocation with measured, predicted and absolute error per metric.
func WriteAlignedCSV(path string, res align.Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create aligned csv: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	headers := []string{"index", "position", "function"}
	for _, metric := range res.Metrics {
		headers = append(headers, metric+"_measured", metric+"_predicted", metric+"_abs_error")
	}
	if err := writer.Write(headers); err != nil {
		return err
	}
	for i := 0; i < res.Len(); i++ {
		row := []string{
			strconv.Itoa(i),
			strconv.Itoa(res.Positions[i]),
			strconv.Itoa(res.Functions[i]),
		}
		for _, metric := range res.Metrics {
			pair := res.Aligned[metric][i]
			row = append(row,
				formatFloat(pair.Measured),
				formatFloat(pair.Predicted),
				formatFloat(res.Errors[metric][i]),
			)
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WritePredictionsCSV exports every held-out prediction of a backtest.
func WritePredictionsCSV(path string, rep backtest.Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create predictions csv: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{
		"event",
		"model",
		"test_index",
		"sample_index",
		"measured",
		"predicted",
		"abs_error",
	}); err != nil {
		return err
	}
	for _, o := range rep.Events {
		for i := range o.Truth {
			if err := writer.Write([]string{
				o.Event,
				string(rep.Kind),
				strconv.Itoa(i),
				strconv.Itoa(o.TestIndices[i]),
				formatFloat(o.Truth[i]),
				formatFloat(o.Predicted[i]),
				formatFloat(o.AbsErrors[i]),
			}); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteMarkdown writes a short human-readable summary of error statistics.
func WriteMarkdown(path string, title string, metrics []string, stats map[string]accuracy.Stats, gate *accuracy.GateResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	content := fmt.Sprintf("# %s\n\n", title)
	content += "| Metric | Count | Mean | Median | P95 | Max | Std dev |\n"
	content += "| --- | --- | --- | --- | --- | --- | --- |\n"
	for _, metric := range metrics {
		s := stats[metric]
		content += fmt.Sprintf(
			"| %s | %d | %.4g | %.4g | %.4g | %.4g | %.4g |\n",
			metric, s.Count, s.Mean, s.Median, s.P95, s.Max, s.StdDev,
		)
	}
	if gate != nil {
		content += fmt.Sprintf("\nGate: `%s` (%s)\n", boolWord(gate.Pass), gate.Message)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write report markdown: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func boolWord(v bool) string {
	if v {
		return "PASS"
	}
	return "FAIL"
}
