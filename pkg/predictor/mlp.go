package predictor

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// MLP hyperparameters. The learning rate only drives stochastic solvers;
// L-BFGS ignores it.
var mlpHidden = []int{100, 50}

const (
	mlpLearningRate = 0.01
	mlpMaxIter      = 1000
	mlpMaxFun       = 15000
	mlpL2           = 1e-4
	mlpTolerance    = 1e-4
)

// mlpModel is a feed-forward network with logistic hidden layers and an
// identity output, trained on squared loss with L-BFGS.
type mlpModel struct {
	seed         int64
	hidden       []int
	learningRate float64
	maxIter      int

	layers []int
	params []float64
	fitted bool
}

func newMLPModel(seed int64) *mlpModel {
	return &mlpModel{
		seed:         seed,
		hidden:       mlpHidden,
		learningRate: mlpLearningRate,
		maxIter:      mlpMaxIter,
	}
}

func (m *mlpModel) Kind() Kind { return KindNN }

func (m *mlpModel) isFitted() bool { return m.fitted }

func (m *mlpModel) train(x *mat.Dense, y []float64) ([]Warning, error) {
	diag := warnings{model: KindNN}
	_, width := x.Dims()
	layers := append(append([]int{width}, m.hidden...), 1)
	init := glorotInit(layers, rand.New(rand.NewSource(m.seed)))

	net := &mlpNet{layers: layers, x: x, y: y}
	problem := optimize.Problem{
		Func: func(p []float64) float64 {
			return net.lossAndGrad(p, nil)
		},
		Grad: func(grad, p []float64) {
			net.lossAndGrad(p, grad)
		},
	}
	settings := &optimize.Settings{
		MajorIterations:   m.maxIter,
		FuncEvaluations:   mlpMaxFun,
		GradientThreshold: mlpTolerance,
	}
	res, err := optimize.Minimize(problem, init, settings, &optimize.LBFGS{})

	params := init
	if res != nil && !math.IsNaN(res.F) {
		params = res.X
	}
	switch {
	case res == nil:
		diag.convergence("lbfgs failed: %v", err)
	case res.Status == optimize.IterationLimit || res.Status == optimize.FunctionEvaluationLimit:
		diag.convergence("lbfgs failed to converge after %d iterations; increase the iteration limit", res.MajorIterations)
	case err != nil:
		diag.convergence("lbfgs stopped early: %v", err)
	}

	m.layers = layers
	m.params = append([]float64(nil), params...)
	m.fitted = true
	return diag.list, nil
}

func (m *mlpModel) predict(x *mat.Dense) ([]float64, error) {
	if !m.fitted {
		return nil, errNotFitted
	}
	if err := checkWidth(x, m.layers[0]); err != nil {
		return nil, err
	}
	net := &mlpNet{layers: m.layers}
	acts := net.forward(m.params, x)
	return mat.Col(nil, 0, acts[len(acts)-1]), nil
}

// glorotInit draws weights and biases uniformly within the logistic
// Glorot bound for each layer.
func glorotInit(layers []int, rng *rand.Rand) []float64 {
	params := make([]float64, 0, paramCount(layers))
	for l := 0; l < len(layers)-1; l++ {
		in, out := layers[l], layers[l+1]
		bound := math.Sqrt(2 / float64(in+out))
		for i := 0; i < in*out+out; i++ {
			params = append(params, (2*rng.Float64()-1)*bound)
		}
	}
	return params
}

func paramCount(layers []int) int {
	n := 0
	for l := 0; l < len(layers)-1; l++ {
		n += layers[l]*layers[l+1] + layers[l+1]
	}
	return n
}

type mlpNet struct {
	layers []int
	x      *mat.Dense
	y      []float64
}

// views slices params into per-layer weight and bias views sharing the
// same backing array.
func (n *mlpNet) views(params []float64) ([]*mat.Dense, [][]float64) {
	weights := make([]*mat.Dense, 0, len(n.layers)-1)
	biases := make([][]float64, 0, len(n.layers)-1)
	off := 0
	for l := 0; l < len(n.layers)-1; l++ {
		in, out := n.layers[l], n.layers[l+1]
		weights = append(weights, mat.NewDense(in, out, params[off:off+in*out]))
		off += in * out
		biases = append(biases, params[off:off+out])
		off += out
	}
	return weights, biases
}

func (n *mlpNet) forward(params []float64, x *mat.Dense) []*mat.Dense {
	weights, biases := n.views(params)
	acts := []*mat.Dense{x}
	for l, w := range weights {
		var z mat.Dense
		z.Mul(acts[l], w)
		last := l == len(weights)-1
		b := biases[l]
		z.Apply(func(i, j int, v float64) float64 {
			v += b[j]
			if last {
				return v
			}
			return sigmoid(v)
		}, &z)
		acts = append(acts, &z)
	}
	return acts
}

// lossAndGrad returns half the mean squared error plus the L2 penalty and,
// when grad is non-nil, fills it with the backpropagated gradient.
func (n *mlpNet) lossAndGrad(params []float64, grad []float64) float64 {
	rows, _ := n.x.Dims()
	samples := float64(rows)
	weights, _ := n.views(params)
	acts := n.forward(params, n.x)
	out := acts[len(acts)-1]

	loss := 0.0
	delta := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		d := out.At(i, 0) - n.y[i]
		loss += d * d
		delta.Set(i, 0, d/samples)
	}
	loss /= 2 * samples
	penalty := 0.0
	for _, w := range weights {
		penalty += mat.Dot(vecOf(w), vecOf(w))
	}
	loss += 0.5 * mlpL2 * penalty / samples

	if grad == nil {
		return loss
	}
	gw, gb := n.views(grad)
	for l := len(weights) - 1; l >= 0; l-- {
		gw[l].Mul(acts[l].T(), delta)
		gw[l].Apply(func(i, j int, v float64) float64 {
			return v + mlpL2*weights[l].At(i, j)/samples
		}, gw[l])
		for j := range gb[l] {
			gb[l][j] = 0
		}
		dr, dc := delta.Dims()
		for i := 0; i < dr; i++ {
			for j := 0; j < dc; j++ {
				gb[l][j] += delta.At(i, j)
			}
		}
		if l == 0 {
			break
		}
		var prev mat.Dense
		prev.Mul(delta, weights[l].T())
		a := acts[l]
		prev.Apply(func(i, j int, v float64) float64 {
			s := a.At(i, j)
			return v * s * (1 - s)
		}, &prev)
		delta = &prev
	}
	return loss
}

func vecOf(m *mat.Dense) *mat.VecDense {
	r, c := m.Dims()
	return mat.NewVecDense(r*c, m.RawMatrix().Data)
}
