// Package predictor creates, fits and queries the regression models used to
// backtest metric predictions. Every model trains on a bounded trailing
// window of the history it is given.
package predictor

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Kind selects a model family.
type Kind string

const (
	KindPoly Kind = "poly"
	KindNN   Kind = "nn"
	KindGPR  Kind = "gpr"
	KindSVM  Kind = "svm"
)

// Kinds lists the supported model families.
var Kinds = []Kind{KindPoly, KindNN, KindGPR, KindSVM}

// Window is the number of most recent samples a fit uses.
const Window = 30

// ErrUnsupportedKind is returned by Create for unknown model kinds.
var ErrUnsupportedKind = errors.New("unsupported model type")

// Options carries the hyperparameters that Create exposes.
type Options struct {
	Seed       int64
	PolyDegree int
	PolyNNLS   bool
}

// DefaultOptions returns seed 42, degree 2 and unconstrained least squares.
func DefaultOptions() Options {
	return Options{Seed: 42, PolyDegree: 2}
}

// Model is a fitted or unfitted regression model. Values are created by
// Create and are not safe for concurrent use.
type Model interface {
	Kind() Kind
	isFitted() bool
	train(x *mat.Dense, y []float64) ([]Warning, error)
	predict(x *mat.Dense) ([]float64, error)
}

// ParseKind validates a model kind string.
func ParseKind(raw string) (Kind, error) {
	k := Kind(strings.TrimSpace(raw))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w %q: choose 'poly', 'nn', 'gpr', or 'svm'", ErrUnsupportedKind, raw)
}

// Create returns an unfitted model of the requested kind.
func Create(kind string, opts Options) (Model, error) {
	k, err := ParseKind(kind)
	if err != nil {
		return nil, err
	}
	if opts.PolyDegree <= 0 {
		opts.PolyDegree = DefaultOptions().PolyDegree
	}

	switch k {
	case KindPoly:
		return newPolyModel(opts.PolyDegree, opts.PolyNNLS), nil
	case KindGPR:
		return newGPRModel(opts.Seed), nil
	case KindNN:
		return newMLPModel(opts.Seed), nil
	default:
		return newSVRModel(), nil
	}
}

// Fit trains m on the last Window rows of inputs and targets. Numerical
// warnings raised by the solver are dropped when suppressWarnings is set,
// otherwise they are logged and returned. Warnings never affect the fitted
// state.
func Fit(m Model, inputs [][]float64, targets []float64, suppressWarnings bool) ([]Warning, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("fit %s: no training samples", m.Kind())
	}
	if len(inputs) != len(targets) {
		return nil, fmt.Errorf("fit %s: %d input rows but %d targets", m.Kind(), len(inputs), len(targets))
	}
	if len(inputs) > Window {
		inputs = inputs[len(inputs)-Window:]
		targets = targets[len(targets)-Window:]
	}

	x, err := toDense(inputs)
	if err != nil {
		return nil, fmt.Errorf("fit %s: %w", m.Kind(), err)
	}
	y := append([]float64(nil), targets...)

	warnings, err := m.train(x, y)
	if err != nil {
		return nil, fmt.Errorf("fit %s: %w", m.Kind(), err)
	}
	if suppressWarnings {
		return nil, nil
	}
	for _, w := range warnings {
		log.Printf("warning: %s", w)
	}
	return warnings, nil
}

// Predict returns one value per input row, in input order.
func Predict(m Model, inputs [][]float64) ([]float64, error) {
	if !m.isFitted() {
		return nil, fmt.Errorf("predict %s: %w", m.Kind(), errNotFitted)
	}
	if len(inputs) == 0 {
		return []float64{}, nil
	}
	x, err := toDense(inputs)
	if err != nil {
		return nil, fmt.Errorf("predict %s: %w", m.Kind(), err)
	}
	out, err := m.predict(x)
	if err != nil {
		return nil, fmt.Errorf("predict %s: %w", m.Kind(), err)
	}
	return out, nil
}

var errNotFitted = errors.New("model is not fitted")

func toDense(rows [][]float64) (*mat.Dense, error) {
	width := len(rows[0])
	if width == 0 {
		return nil, errors.New("input rows have no features")
	}
	data := make([]float64, 0, len(rows)*width)
	for i, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has %d features, want %d", i, len(row), width)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), width, data), nil
}

func checkWidth(x *mat.Dense, want int) error {
	_, c := x.Dims()
	if c != want {
		return fmt.Errorf("inputs have %d features, model was fitted on %d", c, want)
	}
	return nil
}
