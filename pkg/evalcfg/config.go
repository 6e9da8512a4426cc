// Package evalcfg loads the YAML configuration shared by the evaluation
// tools.
package evalcfg

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/metricstore"
)

// Config mirrors config/perfeval.yaml.
type Config struct {
	APIVersion string          `yaml:"apiVersion"`
	Kind       string          `yaml:"kind"`
	Inputs     InputsConfig    `yaml:"inputs"`
	Metrics    []string        `yaml:"metrics"`
	Predictor  PredictorConfig `yaml:"predictor"`
	Backtest   BacktestConfig  `yaml:"backtest"`
	Output     OutputConfig    `yaml:"output"`
	Gate       GateConfig      `yaml:"gate"`
	Telemetry  TelemetryConfig `yaml:"telemetry"`
}

// InputsConfig locates the CSV inputs.
type InputsConfig struct {
	Progress        string `yaml:"progress"`
	MeasurementsDir string `yaml:"measurements_dir"`
	PredictionsDir  string `yaml:"predictions_dir"`
	Monitoring      string `yaml:"monitoring"`
	FunctionsColumn string `yaml:"functions_column"`
}

// PredictorConfig selects and tunes the regression model.
type PredictorConfig struct {
	Kind             string `yaml:"kind"`
	Seed             int64  `yaml:"seed"`
	PolyDegree       int    `yaml:"poly_degree"`
	PolyNNLS         bool   `yaml:"poly_nnls"`
	SuppressWarnings *bool  `yaml:"suppress_warnings"`
}

// BacktestConfig controls the held-out evaluation.
type BacktestConfig struct {
	TestFraction           float64 `yaml:"test_fraction"`
	Seed                   int64   `yaml:"seed"`
	Workers                int     `yaml:"workers"`
	SkipFirstFeatureColumn bool    `yaml:"skip_first_feature_column"`
}

// OutputConfig names the artifact directories.
type OutputConfig struct {
	PostMortemDir string `yaml:"post_mortem_dir"`
	PlotsDir      string `yaml:"plots_dir"`
}

// GateConfig holds optional per-metric mean absolute error ceilings.
type GateConfig struct {
	MaxMeanAbsError map[string]float64 `yaml:"max_mean_abs_error"`
}

// TelemetryConfig configures run metrics and tracing. Empty values
// disable the corresponding output.
type TelemetryConfig struct {
	MetricsTextfile string `yaml:"metrics_textfile"`
	TraceEndpoint   string `yaml:"trace_endpoint"`
	TraceStdout     bool   `yaml:"trace_stdout"`
}

// Default returns v1alpha1 defaults matching the csvs/ layout.
func Default() Config {
	suppress := true
	return Config{
		APIVersion: "perfeval.dev/v1alpha1",
		Kind:       "EvalConfig",
		Inputs: InputsConfig{
			Progress:        filepath.Join("csvs", "progress.csv"),
			MeasurementsDir: filepath.Join("csvs", "measurements"),
			PredictionsDir:  filepath.Join("csvs", "predictions"),
			Monitoring:      filepath.Join("csvs", "monitoring.csv"),
			FunctionsColumn: metricstore.FunctionsColumn,
		},
		Metrics: append([]string(nil), metricstore.DefaultMetrics...),
		Predictor: PredictorConfig{
			Kind:             "gpr",
			Seed:             42,
			PolyDegree:       2,
			SuppressWarnings: &suppress,
		},
		Backtest: BacktestConfig{
			TestFraction: 0.2,
			Seed:         42,
			Workers:      1,
		},
		Output: OutputConfig{
			PostMortemDir: "post_mortem",
			PlotsDir:      "plots",
		},
	}
}

// Load parses and normalizes an evaluation config file.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	normalize(&cfg)
	return cfg, nil
}

// LoadOrDefault loads path when set and returns defaults otherwise.
func LoadOrDefault(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// SuppressWarnings reports whether solver warnings are discarded.
func (c Config) SuppressWarnings() bool {
	return c.Predictor.SuppressWarnings == nil || *c.Predictor.SuppressWarnings
}

func normalize(cfg *Config) {
	def := Default()
	if cfg.Inputs.Progress == "" {
		cfg.Inputs.Progress = def.Inputs.Progress
	}
	if cfg.Inputs.MeasurementsDir == "" {
		cfg.Inputs.MeasurementsDir = def.Inputs.MeasurementsDir
	}
	if cfg.Inputs.PredictionsDir == "" {
		cfg.Inputs.PredictionsDir = def.Inputs.PredictionsDir
	}
	if cfg.Inputs.Monitoring == "" {
		cfg.Inputs.Monitoring = def.Inputs.Monitoring
	}
	if cfg.Inputs.FunctionsColumn == "" {
		cfg.Inputs.FunctionsColumn = def.Inputs.FunctionsColumn
	}
	if len(cfg.Metrics) == 0 {
		cfg.Metrics = def.Metrics
	}
	if cfg.Predictor.Kind == "" {
		cfg.Predictor.Kind = def.Predictor.Kind
	}
	if cfg.Predictor.PolyDegree <= 0 {
		cfg.Predictor.PolyDegree = def.Predictor.PolyDegree
	}
	if cfg.Predictor.SuppressWarnings == nil {
		cfg.Predictor.SuppressWarnings = def.Predictor.SuppressWarnings
	}
	if cfg.Backtest.TestFraction <= 0 || cfg.Backtest.TestFraction >= 1 {
		cfg.Backtest.TestFraction = def.Backtest.TestFraction
	}
	if cfg.Backtest.Workers <= 0 {
		cfg.Backtest.Workers = def.Backtest.Workers
	}
	if cfg.Output.PostMortemDir == "" {
		cfg.Output.PostMortemDir = def.Output.PostMortemDir
	}
	if cfg.Output.PlotsDir == "" {
		cfg.Output.PlotsDir = def.Output.PlotsDir
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = def.APIVersion
	}
	if cfg.Kind == "" {
		cfg.Kind = def.Kind
	}
}
