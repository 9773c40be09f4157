package linops

import (
	"gonum.org/v1/gonum/mat"

	"github.com/rileyjmurray/randla/pkg/sparse"
)

// ApplyDense computes op @ s for a dense block s, one column at a time.
// Dense operands short-circuit to a single gemm.
func ApplyDense(op LinOp, s *mat.Dense) *mat.Dense {
	rows, cols := op.Dims()
	sRows, sCols := s.Dims()
	if cols != sRows {
		panic(sparse.ErrDimensionMismatch)
	}
	if d, ok := op.(DenseOp); ok {
		out := mat.NewDense(rows, sCols, nil)
		out.Mul(d.M, s)
		return out
	}
	out := mat.NewDense(rows, sCols, nil)
	src := make([]float64, sRows)
	dst := make([]float64, rows)
	for j := 0; j < sCols; j++ {
		mat.Col(src, j, s)
		op.Apply(dst, src)
		out.SetCol(j, dst)
	}
	return out
}

// ApplyTransDense computes op' @ s for a dense block s.
func ApplyTransDense(op LinOp, s *mat.Dense) *mat.Dense {
	rows, cols := op.Dims()
	sRows, sCols := s.Dims()
	if rows != sRows {
		panic(sparse.ErrDimensionMismatch)
	}
	if d, ok := op.(DenseOp); ok {
		out := mat.NewDense(cols, sCols, nil)
		out.Mul(d.M.T(), s)
		return out
	}
	out := mat.NewDense(cols, sCols, nil)
	src := make([]float64, sRows)
	dst := make([]float64, cols)
	for j := 0; j < sCols; j++ {
		mat.Col(src, j, s)
		op.ApplyTrans(dst, src)
		out.SetCol(j, dst)
	}
	return out
}
