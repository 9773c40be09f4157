package linops

import (
	"gonum.org/v1/gonum/mat"
)

// Orth returns a matrix whose columns form an orthonormal basis
// for the column space of a, computed by thin QR.
func Orth(a *mat.Dense) *mat.Dense {
	rows, cols := a.Dims()
	var qr mat.QR
	qr.Factorize(a)
	var q mat.Dense
	qr.QTo(&q)
	thin := q.Slice(0, rows, 0, cols)
	return mat.DenseCopyOf(thin)
}

// ApplyPinvOnRight computes target @ pinv(op) by least squares:
// the result X minimizes ||X @ op - target|| in the Frobenius norm.
// op must have full row rank.
func ApplyPinvOnRight(target, op mat.Matrix) (*mat.Dense, error) {
	var xt mat.Dense
	if err := xt.Solve(op.T(), target.T()); err != nil {
		return nil, err
	}
	return mat.DenseCopyOf(xt.T()), nil
}

// ApplyPinvOnLeft computes pinv(op) @ target by least squares:
// the result X minimizes ||op @ X - target|| in the Frobenius norm.
// op must have full column rank.
func ApplyPinvOnLeft(target, op mat.Matrix) (*mat.Dense, error) {
	var x mat.Dense
	if err := x.Solve(op, target); err != nil {
		return nil, err
	}
	return &x, nil
}
