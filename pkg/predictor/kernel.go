package predictor

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// sqDistances returns the pairwise squared Euclidean distances between the
// rows of a and b.
func sqDistances(a, b *mat.Dense) *mat.Dense {
	ra, _ := a.Dims()
	rb, _ := b.Dims()
	out := mat.NewDense(ra, rb, nil)
	for i := 0; i < ra; i++ {
		ai := a.RawRowView(i)
		for j := 0; j < rb; j++ {
			bj := b.RawRowView(j)
			s := 0.0
			for k := range ai {
				d := ai[k] - bj[k]
				s += d * d
			}
			out.Set(i, j, s)
		}
	}
	return out
}

// rbf maps squared distances to scale * exp(-gamma * d2).
func rbf(d2 *mat.Dense, scale, gamma float64) *mat.Dense {
	r, c := d2.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, v float64) float64 {
		return scale * math.Exp(-gamma*v)
	}, d2)
	return out
}
