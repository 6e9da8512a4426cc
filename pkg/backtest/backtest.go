// Package backtest evaluates a predictor kind against measured metric
// series by fitting a fresh model per event on a shuffled training split
// and scoring it on the held-out rows.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/align"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/predictor"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/semconv"
)

const (
	DefaultTestFraction = 0.2
	DefaultSeed         = 42
)

// Config controls one backtest run.
type Config struct {
	Kind             string
	Options          predictor.Options
	TestFraction     float64
	Seed             int64
	Workers          int
	SuppressWarnings bool
	// Events fixes the evaluation order. Empty means every target, sorted.
	Events []string
}

// DefaultConfig returns a sequential run with a 20% test split seeded
// with 42 and solver warnings suppressed.
func DefaultConfig(kind string) Config {
	return Config{
		Kind:             kind,
		Options:          predictor.DefaultOptions(),
		TestFraction:     DefaultTestFraction,
		Seed:             DefaultSeed,
		Workers:          1,
		SuppressWarnings: true,
	}
}

// Outcome is the held-out result for one event.
type Outcome struct {
	Event       string        `json:"event"`
	TestIndices []int         `json:"test_indices"`
	Truth       []float64     `json:"truth"`
	Predicted   []float64     `json:"predicted"`
	AbsErrors   []float64     `json:"abs_errors"`
	Warnings    int           `json:"warnings"`
	FitDuration time.Duration `json:"fit_duration_ns"`
}

// Report holds one Outcome per event in evaluation order.
type Report struct {
	Kind   predictor.Kind `json:"kind"`
	Events []Outcome      `json:"events"`
}

// Errors returns the absolute errors keyed by event.
func (r Report) Errors() map[string][]float64 {
	out := make(map[string][]float64, len(r.Events))
	for _, o := range r.Events {
		out[o.Event] = o.AbsErrors
	}
	return out
}

// Outcome returns the result for event, if present.
func (r Report) Outcome(event string) (Outcome, bool) {
	for _, o := range r.Events {
		if o.Event == event {
			return o, true
		}
	}
	return Outcome{}, false
}

// TrainTestSplit shuffles the indices 0..n-1 with seed and returns the
// training and test partitions. The test partition holds ceil(fraction*n)
// indices.
func TrainTestSplit(n int, fraction float64, seed int64) ([]int, []int, error) {
	if fraction <= 0 || fraction >= 1 {
		return nil, nil, fmt.Errorf("test fraction %.3f must be in (0, 1)", fraction)
	}
	testSize := int(math.Ceil(fraction * float64(n)))
	if n < 2 || testSize >= n {
		return nil, nil, fmt.Errorf("cannot split %d samples with test fraction %.3f: training set would be empty", n, fraction)
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return perm[testSize:], perm[:testSize], nil
}

// Run backtests every event in targets against the shared feature rows.
// Each event gets its own model, so events may run concurrently up to
// cfg.Workers.
func Run(ctx context.Context, cfg Config, features [][]float64, targets map[string][]float64) (Report, error) {
	kind, err := predictor.ParseKind(cfg.Kind)
	if err != nil {
		return Report{}, err
	}
	normalize(&cfg)

	events := cfg.Events
	if len(events) == 0 {
		for event := range targets {
			events = append(events, event)
		}
		sort.Strings(events)
	}
	for _, event := range events {
		series, ok := targets[event]
		if !ok {
			return Report{}, fmt.Errorf("no targets for event %s", event)
		}
		if len(series) != len(features) {
			return Report{}, fmt.Errorf("event %s: %d targets but %d feature rows", event, len(series), len(features))
		}
	}

	ctx, span := otel.Tracer("perfeval/backtest").Start(ctx, "backtest.run")
	defer span.End()
	span.SetAttributes(
		attribute.String(semconv.AttrPredictorKind, string(kind)),
		attribute.Int(semconv.AttrBacktestEvents, len(events)),
		attribute.Int(semconv.AttrBacktestSamples, len(features)),
	)

	outcomes := make([]Outcome, len(events))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, event := range events {
		i, event := i, event
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcome, err := runEvent(gctx, cfg, event, features, targets[event])
			if err != nil {
				return fmt.Errorf("event %s: %w", event, err)
			}
			outcomes[i] = outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return Report{}, err
	}
	return Report{Kind: kind, Events: outcomes}, nil
}

func runEvent(ctx context.Context, cfg Config, event string, features [][]float64, series []float64) (Outcome, error) {
	_, span := otel.Tracer("perfeval/backtest").Start(ctx, "backtest.event")
	defer span.End()
	span.SetAttributes(attribute.String(semconv.AttrBacktestEvent, event))

	train, test, err := TrainTestSplit(len(features), cfg.TestFraction, cfg.Seed)
	if err != nil {
		return Outcome{}, err
	}
	model, err := predictor.Create(cfg.Kind, cfg.Options)
	if err != nil {
		return Outcome{}, err
	}

	span.SetAttributes(attribute.Int(semconv.AttrBacktestTestSize, len(test)))

	xTrain, yTrain := pick(features, series, train)
	xTest, truth := pick(features, series, test)

	started := time.Now()
	warnings, err := predictor.Fit(model, xTrain, yTrain, cfg.SuppressWarnings)
	elapsed := time.Since(started)
	if err != nil {
		return Outcome{}, err
	}
	predicted, err := predictor.Predict(model, xTest)
	if err != nil {
		return Outcome{}, err
	}
	if len(predicted) != len(truth) {
		return Outcome{}, errors.New("predictor returned a different number of rows than requested")
	}
	span.SetAttributes(attribute.Int(semconv.AttrPredictorWarnings, len(warnings)))

	return Outcome{
		Event:       event,
		TestIndices: test,
		Truth:       truth,
		Predicted:   predicted,
		AbsErrors:   align.AbsoluteErrors(truth, predicted),
		Warnings:    len(warnings),
		FitDuration: elapsed,
	}, nil
}

func pick(features [][]float64, series []float64, idx []int) ([][]float64, []float64) {
	x := make([][]float64, len(idx))
	y := make([]float64, len(idx))
	for k, i := range idx {
		x[k] = features[i]
		y[k] = series[i]
	}
	return x, y
}

func normalize(cfg *Config) {
	if cfg.TestFraction <= 0 {
		cfg.TestFraction = DefaultTestFraction
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
}
