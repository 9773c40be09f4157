// Package linops defines the linear-operator capability interface
// consumed by the randomized solvers, together with adapters for dense
// (gonum) and compressed-sparse matrices.  Solvers depend only on the
// LinOp contract, never on a concrete matrix representation.
package linops

import (
	"gonum.org/v1/gonum/mat"

	"github.com/rileyjmurray/randla/pkg/sparse"
)

// LinOp is anything that can act as a matrix:
// it knows its shape and can apply itself and its transpose
// to dense vectors.
//
// Apply and ApplyTrans panic with sparse.ErrDimensionMismatch
// when slice lengths disagree with Dims.
// dst must not alias src.
type LinOp interface {
	Dims() (rows, cols int)
	// Apply stores op @ src into dst.
	Apply(dst, src []float64)
	// ApplyTrans stores op' @ src into dst.
	ApplyTrans(dst, src []float64)
}

// DenseOp adapts a gonum dense matrix to the LinOp interface.
type DenseOp struct {
	M *mat.Dense
}

func (o DenseOp) Dims() (rows, cols int) { return o.M.Dims() }

func (o DenseOp) Apply(dst, src []float64) {
	rows, cols := o.M.Dims()
	if len(dst) != rows || len(src) != cols {
		panic(sparse.ErrDimensionMismatch)
	}
	v := mat.NewVecDense(rows, dst)
	v.MulVec(o.M, mat.NewVecDense(cols, src))
}

func (o DenseOp) ApplyTrans(dst, src []float64) {
	rows, cols := o.M.Dims()
	if len(dst) != cols || len(src) != rows {
		panic(sparse.ErrDimensionMismatch)
	}
	v := mat.NewVecDense(cols, dst)
	v.MulVec(o.M.T(), mat.NewVecDense(rows, src))
}

// SparseOp adapts a compressed sparse matrix to the LinOp interface.
type SparseOp struct {
	M *sparse.Matrix
}

func (o SparseOp) Dims() (rows, cols int) { return o.M.Dims() }

func (o SparseOp) Apply(dst, src []float64) {
	if err := o.M.MulVec(dst, src); err != nil {
		panic(err)
	}
}

func (o SparseOp) ApplyTrans(dst, src []float64) {
	if err := o.M.MulTransVec(dst, src); err != nil {
		panic(err)
	}
}

// Lift returns the row-augmented operator [op; sqrtDelta * I].
// When sqrtDelta is zero it returns op unchanged.
// The augmentation preserves op's action on the first rows exactly.
func Lift(op LinOp, sqrtDelta float64) LinOp {
	if sqrtDelta == 0 {
		return op
	}
	rows, cols := op.Dims()
	return &liftedOp{op: op, sqrtDelta: sqrtDelta, rows: rows, cols: cols}
}

type liftedOp struct {
	op        LinOp
	sqrtDelta float64
	rows, cols int
}

func (o *liftedOp) Dims() (rows, cols int) { return o.rows + o.cols, o.cols }

func (o *liftedOp) Apply(dst, src []float64) {
	if len(dst) != o.rows+o.cols || len(src) != o.cols {
		panic(sparse.ErrDimensionMismatch)
	}
	o.op.Apply(dst[:o.rows], src)
	for i, v := range src {
		dst[o.rows+i] = o.sqrtDelta * v
	}
}

func (o *liftedOp) ApplyTrans(dst, src []float64) {
	if len(dst) != o.cols || len(src) != o.rows+o.cols {
		panic(sparse.ErrDimensionMismatch)
	}
	o.op.ApplyTrans(dst, src[:o.rows])
	for i := range dst {
		dst[i] += o.sqrtDelta * src[o.rows+i]
	}
}

// Transpose returns a view of op with Apply and ApplyTrans swapped.
func Transpose(op LinOp) LinOp {
	if t, ok := op.(transposedOp); ok {
		return t.op
	}
	return transposedOp{op: op}
}

type transposedOp struct{ op LinOp }

func (o transposedOp) Dims() (rows, cols int) {
	rows, cols = o.op.Dims()
	return cols, rows
}

func (o transposedOp) Apply(dst, src []float64)      { o.op.ApplyTrans(dst, src) }
func (o transposedOp) ApplyTrans(dst, src []float64) { o.op.Apply(dst, src) }

// Compose returns the product operator a @ b.
// The returned operator owns a scratch buffer sized to the inner
// dimension, so it must not be shared across concurrent callers.
func Compose(a, b LinOp) LinOp {
	aRows, aCols := a.Dims()
	bRows, bCols := b.Dims()
	if aCols != bRows {
		panic(sparse.ErrDimensionMismatch)
	}
	return &composedOp{
		a: a, b: b,
		rows: aRows, cols: bCols,
		scratch: make([]float64, aCols),
	}
}

type composedOp struct {
	a, b       LinOp
	rows, cols int
	scratch    []float64
}

func (o *composedOp) Dims() (rows, cols int) { return o.rows, o.cols }

func (o *composedOp) Apply(dst, src []float64) {
	o.b.Apply(o.scratch, src)
	o.a.Apply(dst, o.scratch)
}

func (o *composedOp) ApplyTrans(dst, src []float64) {
	o.a.ApplyTrans(o.scratch, src)
	o.b.ApplyTrans(dst, o.scratch)
}
