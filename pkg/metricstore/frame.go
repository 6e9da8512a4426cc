package metricstore

import (
	"fmt"
	"strings"
)

// FeatureMatrix holds the system-metric observations that feed the
// regression backtest, one row per historical sample.
type FeatureMatrix struct {
	Rows [][]float64
}

// Len returns the number of samples.
func (m FeatureMatrix) Len() int {
	return len(m.Rows)
}

// Width returns the number of feature columns.
func (m FeatureMatrix) Width() int {
	if len(m.Rows) == 0 {
		return 0
	}
	return len(m.Rows[0])
}

// Select returns the rows at positions, in order.
func (m FeatureMatrix) Select(positions []int) (FeatureMatrix, error) {
	out := FeatureMatrix{Rows: make([][]float64, 0, len(positions))}
	for _, pos := range positions {
		if pos < 0 || pos >= len(m.Rows) {
			return FeatureMatrix{}, fmt.Errorf("feature row %d out of range (have %d)", pos, len(m.Rows))
		}
		out.Rows = append(out.Rows, m.Rows[pos])
	}
	return out, nil
}

// LoadFeatureMatrix reads every numeric field of progress.csv after the
// header. The first column carries the function identifier and is dropped
// when skipFirstColumn is set.
func LoadFeatureMatrix(path string, skipFirstColumn bool) (FeatureMatrix, error) {
	_, rows, err := readCSV(path)
	if err != nil {
		return FeatureMatrix{}, err
	}
	if len(rows) == 0 {
		return FeatureMatrix{}, fmt.Errorf("no feature rows in %s", path)
	}

	matrix := FeatureMatrix{Rows: make([][]float64, 0, len(rows))}
	width := -1
	for line, row := range rows {
		if skipFirstColumn {
			row = row[1:]
		}
		if width < 0 {
			width = len(row)
		}
		if len(row) != width {
			return FeatureMatrix{}, fmt.Errorf("row %d of %s has %d features, want %d", line+2, path, len(row), width)
		}
		values := make([]float64, len(row))
		for i, raw := range row {
			v, err := parseFloat(raw)
			if err != nil {
				return FeatureMatrix{}, fmt.Errorf("parse feature %d in %s row %d: %w", i, path, line+2, err)
			}
			values[i] = v
		}
		matrix.Rows = append(matrix.Rows, values)
	}
	if width == 0 {
		return FeatureMatrix{}, fmt.Errorf("no feature columns in %s", path)
	}
	return matrix, nil
}

// Frame is a column-oriented view of a metric CSV such as monitoring.csv.
type Frame struct {
	Path    string
	Columns []string
	Values  map[string][]float64
}

// Len returns the number of rows.
func (f Frame) Len() int {
	for _, col := range f.Columns {
		return len(f.Values[col])
	}
	return 0
}

// Column returns the values of name, or nil when absent.
func (f Frame) Column(name string) []float64 {
	return f.Values[name]
}

// Require fails when any of columns is missing from the frame.
func (f Frame) Require(columns ...string) error {
	missing := make([]string, 0)
	for _, col := range columns {
		if _, ok := f.Values[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s must contain columns %s (missing %s)",
			f.Path, strings.Join(columns, ", "), strings.Join(missing, ", "))
	}
	return nil
}

// SameColumns fails unless a and b share the same column structure.
func SameColumns(a, b Frame) error {
	if len(a.Columns) != len(b.Columns) {
		return fmt.Errorf("%s and %s must have the same column structure", a.Path, b.Path)
	}
	for i := range a.Columns {
		if a.Columns[i] != b.Columns[i] {
			return fmt.Errorf("%s and %s must have the same column structure (%q vs %q)",
				a.Path, b.Path, a.Columns[i], b.Columns[i])
		}
	}
	return nil
}

// LoadFrame reads a metric CSV into named columns.
func LoadFrame(path string) (Frame, error) {
	table, err := LoadTable(path)
	if err != nil {
		return Frame{}, err
	}
	frame := Frame{
		Path:    path,
		Columns: table.Columns,
		Values:  make(map[string][]float64, len(table.Columns)),
	}
	for _, col := range table.Columns {
		values := make([]float64, 0, len(table.Rows))
		for _, row := range table.Rows {
			values = append(values, row[col])
		}
		frame.Values[col] = values
	}
	return frame, nil
}
