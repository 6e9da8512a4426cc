package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/accuracy"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/evalcfg"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/report"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/schema"
)

type check struct {
	name string
	run  func(root string) error
}

var version = "dev"

func main() {
	if len(os.Args) == 2 && (os.Args[1] == "--version" || os.Args[1] == "version") {
		fmt.Println(version)
		return
	}
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: schemavalidate [summary.json ...]\n")
	}
	flag.Parse()

	root := projectRoot()
	checks := []check{
		{name: "summary schema document", run: validateSummarySchemaDocument},
		{name: "summary sample payload", run: validateSummarySample},
		{name: "eval config schema", run: validateConfigAgainstSchema},
		{name: "eval config loader", run: validateConfigLoader},
	}
	for _, path := range flag.Args() {
		path := path
		checks = append(checks, check{
			name: "summary " + path,
			run: func(string) error {
				return schema.ValidateEvalSummaryFile(path)
			},
		})
	}

	for _, c := range checks {
		if err := c.run(root); err != nil {
			fmt.Fprintf(os.Stderr, "schema validation failed (%s): %v\n", c.name, err)
			os.Exit(1)
		}
		fmt.Printf("ok: %s\n", c.name)
	}
}

func validateSummarySchemaDocument(string) error {
	data := schema.EvalSummarySchema()
	var payload interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse summary schema json: %w", err)
	}
	if _, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data)); err != nil {
		return fmt.Errorf("compile summary schema: %w", err)
	}
	return nil
}

func validateSummarySample(string) error {
	errs := map[string][]float64{
		"Cache_Misses": {120, 80, 40},
		"Energy":       {0.4, 0.1},
		"Instructions": {1500, 900},
	}
	metrics := []string{"Cache_Misses", "Energy", "Instructions"}
	stats := accuracy.SummarizeAll(errs)
	summary := report.NewSummary("perfeval", metrics, stats)
	summary.Model = "gpr"
	summary.Samples = 3
	thresholds := map[string]float64{"Energy": 1}
	summary.Gate = report.GateSummary(accuracy.EvaluateGate(stats, thresholds), thresholds)
	return schema.ValidateEvalSummary(summary)
}

func validateConfigAgainstSchema(root string) error {
	schemaPath := filepath.Join(root, "config", "perfeval.schema.json")
	configPath := filepath.Join(root, "config", "perfeval.yaml")

	payloadBytes, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("read eval config %s: %w", configPath, err)
	}

	var yamlPayload interface{}
	if err := yaml.Unmarshal(payloadBytes, &yamlPayload); err != nil {
		return fmt.Errorf("parse eval yaml %s: %w", configPath, err)
	}

	return schema.ValidateAgainstSchema(schemaPath, normalizeYAML(yamlPayload))
}

func validateConfigLoader(root string) error {
	configPath := filepath.Join(root, "config", "perfeval.yaml")
	_, err := evalcfg.Load(configPath)
	if err != nil {
		return fmt.Errorf("load eval config %s: %w", configPath, err)
	}
	return nil
}

func normalizeYAML(v interface{}) interface{} {
	switch x := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, value := range x {
			out[k] = normalizeYAML(value)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, value := range x {
			out[fmt.Sprint(k)] = normalizeYAML(value)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(x))
		for i := range x {
			out[i] = normalizeYAML(x[i])
		}
		return out
	default:
		return x
	}
}

func projectRoot() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "."
	}
	return filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
}
