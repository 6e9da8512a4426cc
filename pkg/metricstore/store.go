package metricstore

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Default metric columns written by the instrumented runtime.
const (
	CacheMisses  = "Cache_Misses"
	Energy       = "Energy"
	Instructions = "Instructions"

	// FunctionsColumn is the execution-order column of progress.csv.
	FunctionsColumn = "Functions"
)

// DefaultMetrics lists the tracked events in report order.
var DefaultMetrics = []string{CacheMisses, Energy, Instructions}

// Record is one metric snapshot keyed by column name.
type Record map[string]float64

// Table holds the records of one function in invocation order.
type Table struct {
	Columns []string
	Rows    []Record
}

// Len returns the number of records.
func (t Table) Len() int {
	return len(t.Rows)
}

// Has reports whether the table header contains column.
func (t Table) Has(column string) bool {
	return indexOf(t.Columns, column) >= 0
}

// Store maps canonical function keys to their tables.
type Store map[string]Table

// Keys returns the store keys in sorted order.
func (s Store) Keys() []string {
	keys := make([]string, 0, len(s))
	for key := range s {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// FunctionKey formats a function identifier the way per-function CSV files
// are named.
func FunctionKey(id int) string {
	return fmt.Sprintf("%02d", id)
}

// LoadExecutionOrder reads the function identifiers of column in file order.
func LoadExecutionOrder(path string, column string) ([]int, error) {
	if column == "" {
		column = FunctionsColumn
	}
	header, rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	idx := indexOf(header, column)
	if idx < 0 {
		return nil, fmt.Errorf("%s column missing in %s", column, path)
	}

	order := make([]int, 0, len(rows))
	for line, row := range rows {
		if idx >= len(row) {
			return nil, fmt.Errorf("row %d of %s has no %s value", line+2, path, column)
		}
		id, err := parseID(row[idx])
		if err != nil {
			return nil, fmt.Errorf("parse %s in %s row %d: %w", column, path, line+2, err)
		}
		order = append(order, id)
	}
	return order, nil
}

// LoadTable reads one per-function measurement or prediction CSV.
func LoadTable(path string) (Table, error) {
	header, rows, err := readCSV(path)
	if err != nil {
		return Table{}, err
	}

	table := Table{Rows: make([]Record, 0, len(rows))}
	named := make([]int, 0, len(header))
	for i, name := range header {
		if name == "" {
			continue
		}
		table.Columns = append(table.Columns, name)
		named = append(named, i)
	}
	if len(table.Columns) == 0 {
		return Table{}, fmt.Errorf("no named columns in %s", path)
	}

	for line, row := range rows {
		record := make(Record, len(named))
		for _, i := range named {
			if i >= len(row) {
				return Table{}, fmt.Errorf("row %d of %s is missing %s", line+2, path, header[i])
			}
			value, err := parseFloat(row[i])
			if err != nil {
				return Table{}, fmt.Errorf("parse %s in %s row %d: %w", header[i], path, line+2, err)
			}
			record[header[i]] = value
		}
		table.Rows = append(table.Rows, record)
	}
	return table, nil
}

// LoadStore loads every *.csv file in dir keyed by its basename.
func LoadStore(dir string) (Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read table directory %s: %w", dir, err)
	}

	store := make(Store)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".csv" {
			continue
		}
		key := strings.TrimSuffix(entry.Name(), ".csv")
		table, err := LoadTable(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		store[key] = table
	}
	return store, nil
}

func readCSV(path string) ([]string, [][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open csv %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	// Rows written by the runtime end with a trailing comma, and progress.csv
	// has a short header, so widths vary.
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("csv %s is empty", path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read csv header %s: %w", path, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	rows := make([][]string, 0)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read csv %s: %w", path, err)
		}
		row = trimTrailingEmpty(row)
		if len(row) == 0 {
			continue
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

func trimTrailingEmpty(row []string) []string {
	for len(row) > 0 && strings.TrimSpace(row[len(row)-1]) == "" {
		row = row[:len(row)-1]
	}
	return row
}

func parseFloat(raw string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(raw), 64)
}

func parseID(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if id, err := strconv.Atoi(raw); err == nil {
		return id, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if value != float64(int(value)) {
		return 0, fmt.Errorf("function identifier %q is not an integer", raw)
	}
	return int(value), nil
}

func indexOf(items []string, target string) int {
	for i, item := range items {
		if item == target {
			return i
		}
	}
	return -1
}
