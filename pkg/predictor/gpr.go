package predictor

import (
	"errors"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// Kernel C(1.0) * RBF(1.0) with fixed hyperparameter bounds.
var (
	gprConstantBounds = [2]float64{1e-5, 1e8}
	gprLengthBounds   = [2]float64{1e-6, 1e2}
)

const (
	gprNoise         = 1e-10
	gprRestarts      = 10
	gprMaxIterations = 15000
)

var gprJitter = []float64{0, 1e-12, 1e-10, 1e-8, 1e-6, 1e-4, 1e-2}

var errNotPositiveDefinite = errors.New("kernel matrix is not positive definite")

type gprModel struct {
	seed     int64
	restarts int

	constant float64
	length   float64
	xTrain   *mat.Dense
	dual     *mat.VecDense
	width    int
	fitted   bool
}

func newGPRModel(seed int64) *gprModel {
	return &gprModel{seed: seed, restarts: gprRestarts}
}

func (m *gprModel) Kind() Kind { return KindGPR }

func (m *gprModel) isFitted() bool { return m.fitted }

func (m *gprModel) train(x *mat.Dense, y []float64) ([]Warning, error) {
	diag := warnings{model: KindGPR}
	obj := newGPRObjective(x, y)

	rng := rand.New(rand.NewSource(m.seed))
	starts := [][2]float64{{0, 0}}
	for i := 0; i < m.restarts; i++ {
		starts = append(starts, [2]float64{
			obj.lo[0] + rng.Float64()*(obj.hi[0]-obj.lo[0]),
			obj.lo[1] + rng.Float64()*(obj.hi[1]-obj.lo[1]),
		})
	}

	problem := optimize.Problem{
		Func: func(u []float64) float64 {
			nll, _ := obj.eval(u, nil)
			return nll
		},
		Grad: func(grad, u []float64) {
			obj.eval(u, grad)
		},
	}
	settings := &optimize.Settings{MajorIterations: gprMaxIterations, GradientThreshold: 1e-5}

	bestF := math.Inf(1)
	best := starts[0]
	notConverged := 0
	for _, start := range starts {
		res, err := optimize.Minimize(problem, obj.toU(start), settings, &optimize.LBFGS{})
		if res == nil {
			notConverged++
			continue
		}
		if err != nil || res.Status == optimize.IterationLimit || res.Status == optimize.FunctionEvaluationLimit {
			notConverged++
		}
		if res.F < bestF && !math.IsNaN(res.F) {
			bestF = res.F
			best = obj.theta(res.X)
		}
	}
	if notConverged > 0 {
		diag.convergence("lbfgs failed to converge in %d of %d optimizer runs", notConverged, len(starts))
	}

	m.constant = math.Exp(best[0])
	m.length = math.Exp(best[1])
	k := rbf(obj.d2, m.constant, 1/(2*m.length*m.length))
	chol, jitter, err := factorize(k, m.constant)
	if err != nil {
		return nil, err
	}
	if jitter > 0 {
		diag.illConditioned("kernel matrix needed %.1e jitter on the diagonal", jitter)
	}
	var dual mat.VecDense
	if err := chol.SolveVecTo(&dual, obj.y); err != nil {
		diag.illConditioned("kernel solve: %v", err)
	}

	m.xTrain = mat.DenseCopyOf(x)
	m.dual = &dual
	_, m.width = x.Dims()
	m.fitted = true
	return diag.list, nil
}

func (m *gprModel) predict(x *mat.Dense) ([]float64, error) {
	if !m.fitted {
		return nil, errNotFitted
	}
	if err := checkWidth(x, m.width); err != nil {
		return nil, err
	}
	ks := rbf(sqDistances(x, m.xTrain), m.constant, 1/(2*m.length*m.length))
	var mu mat.VecDense
	mu.MulVec(ks, m.dual)
	return append([]float64(nil), mu.RawVector().Data...), nil
}

// gprObjective is the negative log marginal likelihood over the
// unconstrained parameters u, mapped into the log-space bounds through a
// logistic transform.
type gprObjective struct {
	d2     *mat.Dense
	y      *mat.VecDense
	n      int
	lo, hi [2]float64
}

func newGPRObjective(x *mat.Dense, y []float64) *gprObjective {
	n, _ := x.Dims()
	return &gprObjective{
		d2: sqDistances(x, x),
		y:  mat.NewVecDense(n, append([]float64(nil), y...)),
		n:  n,
		lo: [2]float64{math.Log(gprConstantBounds[0]), math.Log(gprLengthBounds[0])},
		hi: [2]float64{math.Log(gprConstantBounds[1]), math.Log(gprLengthBounds[1])},
	}
}

func (o *gprObjective) theta(u []float64) [2]float64 {
	var t [2]float64
	for i := range t {
		t[i] = o.lo[i] + (o.hi[i]-o.lo[i])*sigmoid(u[i])
	}
	return t
}

func (o *gprObjective) toU(theta [2]float64) []float64 {
	u := make([]float64, 2)
	for i := range u {
		p := (theta[i] - o.lo[i]) / (o.hi[i] - o.lo[i])
		p = math.Min(math.Max(p, 1e-9), 1-1e-9)
		u[i] = math.Log(p / (1 - p))
	}
	return u
}

// eval returns the objective at u and, when grad is non-nil, writes its
// gradient with respect to u.
func (o *gprObjective) eval(u []float64, grad []float64) (float64, error) {
	theta := o.theta(u)
	c := math.Exp(theta[0])
	l := math.Exp(theta[1])
	k0 := rbf(o.d2, c, 1/(2*l*l))

	chol, _, err := factorize(k0, c)
	if err != nil {
		if grad != nil {
			grad[0], grad[1] = 0, 0
		}
		return 1e300, err
	}
	var alpha mat.VecDense
	if err := chol.SolveVecTo(&alpha, o.y); err != nil {
		if grad != nil {
			grad[0], grad[1] = 0, 0
		}
		return 1e300, err
	}
	nll := 0.5*mat.Dot(o.y, &alpha) + 0.5*chol.LogDet() + 0.5*float64(o.n)*math.Log(2*math.Pi)
	if grad == nil {
		return nll, nil
	}

	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		grad[0], grad[1] = 0, 0
		return nll, err
	}
	a := alpha.RawVector().Data
	var dC, dL float64
	for i := 0; i < o.n; i++ {
		for j := 0; j < o.n; j++ {
			w := a[i]*a[j] - inv.At(i, j)
			kij := k0.At(i, j)
			dC += w * kij
			dL += w * kij * o.d2.At(i, j) / (l * l)
		}
	}
	dTheta := [2]float64{-0.5 * dC, -0.5 * dL}
	for i := range dTheta {
		s := sigmoid(u[i])
		grad[i] = dTheta[i] * (o.hi[i] - o.lo[i]) * s * (1 - s)
	}
	return nll, nil
}

// factorize adds the noise term plus the smallest jitter that makes k
// positive definite, returning the jitter used beyond the noise term.
func factorize(k *mat.Dense, scale float64) (*mat.Cholesky, float64, error) {
	n, _ := k.Dims()
	base := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			base.SetSym(i, j, k.At(i, j))
		}
	}
	for _, jitter := range gprJitter {
		sym := mat.NewSymDense(n, nil)
		sym.CopySym(base)
		extra := gprNoise + jitter*math.Max(scale, 1)
		for i := 0; i < n; i++ {
			sym.SetSym(i, i, sym.At(i, i)+extra)
		}
		var chol mat.Cholesky
		if chol.Factorize(sym) {
			return &chol, jitter * math.Max(scale, 1), nil
		}
	}
	return nil, 0, errNotPositiveDefinite
}

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}
