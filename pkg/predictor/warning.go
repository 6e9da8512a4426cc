package predictor

import "fmt"

// WarningKind classifies a numerical condition reported by a solver.
type WarningKind string

const (
	// ConvergenceWarning marks an optimizer that stopped before converging.
	ConvergenceWarning WarningKind = "convergence"
	// IllConditionedWarning marks a near-singular linear system.
	IllConditionedWarning WarningKind = "ill_conditioned"
)

// Warning is a non-fatal solver diagnostic.
type Warning struct {
	Kind    WarningKind
	Model   Kind
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s %s: %s", w.Model, w.Kind, w.Message)
}

type warnings struct {
	model Kind
	list  []Warning
}

func (w *warnings) convergence(format string, args ...interface{}) {
	w.list = append(w.list, Warning{Kind: ConvergenceWarning, Model: w.model, Message: fmt.Sprintf(format, args...)})
}

func (w *warnings) illConditioned(format string, args ...interface{}) {
	w.list = append(w.list, Warning{Kind: IllConditionedWarning, Model: w.model, Message: fmt.Sprintf(format, args...)})
}
