package predictor

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	svrC       = 1e3
	svrEpsilon = 0.1
	svrSweeps  = 1000
	svrTol     = 1e-10
)

// svrModel is epsilon-insensitive support vector regression with an RBF
// kernel. The dual is solved with exact pairwise updates that keep the
// coefficient sum at zero.
type svrModel struct {
	c       float64
	epsilon float64

	gamma  float64
	xTrain *mat.Dense
	beta   []float64
	bias   float64
	width  int
	fitted bool
}

func newSVRModel() *svrModel {
	return &svrModel{c: svrC, epsilon: svrEpsilon}
}

func (m *svrModel) Kind() Kind { return KindSVM }

func (m *svrModel) isFitted() bool { return m.fitted }

func (m *svrModel) train(x *mat.Dense, y []float64) ([]Warning, error) {
	diag := warnings{model: KindSVM}
	n, width := x.Dims()

	variance := stat.PopVariance(x.RawMatrix().Data, nil)
	gamma := 1.0
	if variance > 0 {
		gamma = 1 / (float64(width) * variance)
	}
	k := rbf(sqDistances(x, x), 1, gamma)

	beta := make([]float64, n)
	// g = K*beta - y
	g := make([]float64, n)
	for i := range g {
		g[i] = -y[i]
	}

	converged := n < 2
	for sweep := 0; sweep < svrSweeps && !converged; sweep++ {
		gain := 0.0
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				t, delta := m.pairStep(k, beta, g, i, j)
				if t == 0 {
					continue
				}
				beta[i] += t
				beta[j] -= t
				for r := 0; r < n; r++ {
					g[r] += t * (k.At(r, i) - k.At(r, j))
				}
				gain -= delta
			}
		}
		if gain <= svrTol*math.Max(1, math.Abs(m.objective(beta, g, y))) {
			converged = true
		}
	}
	if !converged {
		diag.convergence("dual solver stopped after %d sweeps", svrSweeps)
	}

	m.gamma = gamma
	m.xTrain = mat.DenseCopyOf(x)
	m.beta = beta
	m.bias = m.intercept(beta, g)
	m.width = width
	m.fitted = true
	return diag.list, nil
}

// pairStep minimizes the dual along beta_i += t, beta_j -= t and returns the
// step and the change in objective.
func (m *svrModel) pairStep(k *mat.Dense, beta, g []float64, i, j int) (float64, float64) {
	bi, bj := beta[i], beta[j]
	eta := k.At(i, i) + k.At(j, j) - 2*k.At(i, j)
	lin := g[i] - g[j]
	lo := math.Max(-m.c-bi, bj-m.c)
	hi := math.Min(m.c-bi, bj+m.c)

	phi := func(t float64) float64 {
		return t*lin + 0.5*eta*t*t + m.epsilon*(math.Abs(bi+t)+math.Abs(bj-t)-math.Abs(bi)-math.Abs(bj))
	}
	clip := func(t float64) float64 {
		return math.Min(math.Max(t, lo), hi)
	}

	candidates := []float64{0, lo, hi, clip(-bi), clip(bj)}
	if eta > 1e-12 {
		for _, si := range []float64{-1, 1} {
			for _, sj := range []float64{-1, 1} {
				candidates = append(candidates, clip(-(lin+m.epsilon*(si-sj))/eta))
			}
		}
	}

	best, bestF := 0.0, 0.0
	for _, t := range candidates {
		if f := phi(t); f < bestF-1e-15 {
			best, bestF = t, f
		}
	}
	return best, bestF
}

func (m *svrModel) objective(beta, g, y []float64) float64 {
	// 0.5*b'Kb - y'b = 0.5*b'(g + y) - y'b
	f := 0.0
	for i := range beta {
		f += 0.5*beta[i]*(g[i]+y[i]) - y[i]*beta[i] + m.epsilon*math.Abs(beta[i])
	}
	return f
}

// intercept recovers the bias from the KKT conditions, averaging over free
// support vectors and falling back to the middle of the feasible interval.
func (m *svrModel) intercept(beta, g []float64) float64 {
	const margin = 1e-8
	sum, free := 0.0, 0
	lower, upper := math.Inf(-1), math.Inf(1)
	for i, b := range beta {
		r := -g[i]
		switch {
		case math.Abs(b) <= margin:
			lower = math.Max(lower, r-m.epsilon)
			upper = math.Min(upper, r+m.epsilon)
		case b >= m.c-margin:
			upper = math.Min(upper, r-m.epsilon)
		case b <= -m.c+margin:
			lower = math.Max(lower, r+m.epsilon)
		case b > 0:
			sum += r - m.epsilon
			free++
		default:
			sum += r + m.epsilon
			free++
		}
	}
	if free > 0 {
		return sum / float64(free)
	}
	switch {
	case math.IsInf(lower, -1) && math.IsInf(upper, 1):
		return 0
	case math.IsInf(lower, -1):
		return upper
	case math.IsInf(upper, 1):
		return lower
	}
	return (lower + upper) / 2
}

func (m *svrModel) predict(x *mat.Dense) ([]float64, error) {
	if !m.fitted {
		return nil, errNotFitted
	}
	if err := checkWidth(x, m.width); err != nil {
		return nil, err
	}
	ks := rbf(sqDistances(x, m.xTrain), 1, m.gamma)
	var out mat.VecDense
	out.MulVec(ks, mat.NewVecDense(len(m.beta), m.beta))
	res := out.RawVector().Data
	preds := make([]float64, len(res))
	for i, v := range res {
		preds[i] = v + m.bias
	}
	return preds, nil
}
