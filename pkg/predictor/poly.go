package predictor

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// polyModel expands inputs into every monomial up to degree and fits a
// linear model with a free intercept. With nnls set the monomial
// coefficients are constrained to be non-negative.
type polyModel struct {
	degree int
	nnls   bool

	width     int
	terms     [][]int
	coef      []float64
	intercept float64
	fitted    bool
}

func newPolyModel(degree int, nnls bool) *polyModel {
	return &polyModel{degree: degree, nnls: nnls}
}

func (m *polyModel) Kind() Kind { return KindPoly }

func (m *polyModel) isFitted() bool { return m.fitted }

func (m *polyModel) train(x *mat.Dense, y []float64) ([]Warning, error) {
	diag := warnings{model: KindPoly}
	rows, width := x.Dims()
	terms := monomials(width, m.degree)
	phi := expand(x, terms)

	means := make([]float64, len(terms))
	for j := range terms {
		means[j] = mean(mat.Col(nil, j, phi))
	}
	yMean := mean(y)
	for i := 0; i < rows; i++ {
		for j := range terms {
			phi.Set(i, j, phi.At(i, j)-means[j])
		}
	}
	yc := make([]float64, rows)
	for i, v := range y {
		yc[i] = v - yMean
	}

	var coef []float64
	if m.nnls {
		var converged bool
		coef, converged = nnls(phi, yc, 3*len(terms))
		if !converged {
			diag.convergence("non-negative least squares hit the iteration limit")
		}
	} else {
		var rank int
		coef, rank = leastSquares(phi, yc)
		if rank < len(terms) {
			diag.illConditioned("design matrix is rank deficient (rank %d of %d terms)", rank, len(terms))
		}
	}

	m.width = width
	m.terms = terms
	m.coef = coef
	m.intercept = yMean - floats.Dot(means, coef)
	m.fitted = true
	return diag.list, nil
}

func (m *polyModel) predict(x *mat.Dense) ([]float64, error) {
	if !m.fitted {
		return nil, errNotFitted
	}
	if err := checkWidth(x, m.width); err != nil {
		return nil, err
	}
	phi := expand(x, m.terms)
	rows, _ := phi.Dims()
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		out[i] = m.intercept + floats.Dot(phi.RawRowView(i), m.coef)
	}
	return out, nil
}

// monomials enumerates feature-index multisets of size 1..degree.
func monomials(width, degree int) [][]int {
	var out [][]int
	var walk func(start int, combo []int)
	walk = func(start int, combo []int) {
		if len(combo) > 0 {
			out = append(out, append([]int(nil), combo...))
		}
		if len(combo) == degree {
			return
		}
		for i := start; i < width; i++ {
			walk(i, append(combo, i))
		}
	}
	walk(0, nil)
	return out
}

func expand(x *mat.Dense, terms [][]int) *mat.Dense {
	rows, _ := x.Dims()
	phi := mat.NewDense(rows, len(terms), nil)
	for i := 0; i < rows; i++ {
		row := x.RawRowView(i)
		for j, term := range terms {
			v := 1.0
			for _, f := range term {
				v *= row[f]
			}
			phi.Set(i, j, v)
		}
	}
	return phi
}

// leastSquares returns the minimum-norm solution of a*coef = b and the
// numerical rank of a.
func leastSquares(a *mat.Dense, b []float64) ([]float64, int) {
	_, cols := a.Dims()
	coef := make([]float64, cols)

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return coef, 0
	}
	rows, _ := a.Dims()
	rcond := float64(max(rows, cols)) * eps
	rank := svd.Rank(rcond)
	if rank == 0 {
		return coef, 0
	}
	dst := mat.NewVecDense(cols, coef)
	svd.SolveVecTo(dst, mat.NewVecDense(len(b), append([]float64(nil), b...)), rank)
	return append([]float64(nil), dst.RawVector().Data...), rank
}

// nnls solves min ||a*x - b|| subject to x >= 0 with the Lawson-Hanson
// active set method.
func nnls(a *mat.Dense, b []float64, maxIter int) ([]float64, bool) {
	rows, cols := a.Dims()
	x := make([]float64, cols)
	passive := make([]bool, cols)
	tol := 10 * eps * mat.Norm(a, 1) * float64(max(rows, cols))
	bv := mat.NewVecDense(rows, append([]float64(nil), b...))

	gradient := func() []float64 {
		var ax, r mat.VecDense
		ax.MulVec(a, mat.NewVecDense(cols, x))
		r.SubVec(bv, &ax)
		var w mat.VecDense
		w.MulVec(a.T(), &r)
		return w.RawVector().Data
	}

	for iter := 0; ; iter++ {
		w := gradient()
		best, bestW := -1, tol
		for j := 0; j < cols; j++ {
			if !passive[j] && w[j] > bestW {
				best, bestW = j, w[j]
			}
		}
		if best < 0 {
			return x, true
		}
		if iter >= maxIter {
			return x, false
		}
		passive[best] = true

		for inner := 0; inner <= cols; inner++ {
			idx := activeColumns(passive)
			if len(idx) == 0 {
				break
			}
			z := solvePassive(a, b, idx)
			feasible := true
			for _, v := range z {
				if v <= tol {
					feasible = false
					break
				}
			}
			if feasible {
				for j := range x {
					x[j] = 0
				}
				for k, j := range idx {
					x[j] = z[k]
				}
				break
			}

			alpha := math.Inf(1)
			for k, j := range idx {
				if z[k] <= tol {
					step := 0.0
					if d := x[j] - z[k]; d > 0 {
						step = x[j] / d
					}
					if step < alpha {
						alpha = step
					}
				}
			}
			for k, j := range idx {
				x[j] += alpha * (z[k] - x[j])
			}
			for _, j := range idx {
				if x[j] <= tol {
					x[j] = 0
					passive[j] = false
				}
			}
		}
	}
}

func activeColumns(passive []bool) []int {
	idx := make([]int, 0, len(passive))
	for j, p := range passive {
		if p {
			idx = append(idx, j)
		}
	}
	return idx
}

func solvePassive(a *mat.Dense, b []float64, idx []int) []float64 {
	rows, _ := a.Dims()
	sub := mat.NewDense(rows, len(idx), nil)
	for k, j := range idx {
		for i := 0; i < rows; i++ {
			sub.Set(i, k, a.At(i, j))
		}
	}
	z, _ := leastSquares(sub, b)
	return z
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Sum(values) / float64(len(values))
}

const eps = 2.220446049250313e-16
