package rotation

import (
	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"
)

// Average returns the rotation maximizing the summed squared dot product
// with qs: the eigenvector of the largest eigenvalue of Σ q qᵀ. The result
// is independent of the sign of each input. An empty input yields the
// identity.
func Average(qs []mgl64.Quat) mgl64.Quat {
	if len(qs) == 0 {
		return Identity()
	}

	acc := mat.NewSymDense(4, nil)
	v := make([]float64, 4)
	for _, q := range qs {
		ToArray(q, v)
		acc.SymRankOne(acc, 1, mat.NewVecDense(4, v))
	}

	var eig mat.EigenSym
	if !eig.Factorize(acc, true) {
		return Canonical(Normalize(qs[0]))
	}
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// Eigenvalues are ascending, so the last column is the dominant one.
	best := mat.Col(nil, 3, &vectors)
	return Canonical(Normalize(FromArray(best)))
}
