package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/metricstore"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/report"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: comparecsv [flags] <file1.csv> <file2.csv> <label>\n")
	flag.PrintDefaults()
}

func main() {
	outDir := flag.String("out", "plots", "plot output directory")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 3 {
		usage()
		os.Exit(2)
	}
	name, err := report.ComparisonFileName(flag.Arg(2))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		usage()
		os.Exit(2)
	}

	first, err := metricstore.LoadFrame(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load %s failed: %v\n", flag.Arg(0), err)
		os.Exit(1)
	}
	second, err := metricstore.LoadFrame(flag.Arg(1))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load %s failed: %v\n", flag.Arg(1), err)
		os.Exit(1)
	}
	if err := metricstore.SameColumns(first, second); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := first.Require(metricstore.DefaultMetrics...); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	path := filepath.Join(*outDir, name)
	if err := report.WriteComparison(path, first, second, metricstore.DefaultMetrics); err != nil {
		fmt.Fprintf(os.Stderr, "write comparison failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("comparison: %s\n", path)
}
