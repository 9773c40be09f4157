// Package lowrank implements randomized low-rank factorizations:
// one-sided and two-sided interpolative decompositions (ID) and the CUR
// decomposition.  An ID expresses a matrix through a subset of its own
// rows or columns plus an interpolation coefficient matrix; CUR couples
// a column subset and a row subset through a small linking matrix.
package lowrank

import (
	"errors"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	lapackgonum "gonum.org/v1/gonum/lapack/gonum"
	"gonum.org/v1/gonum/mat"
)

// ErrRankTooLarge signals a requested rank exceeding what the sketch
// or the matrix dimensions can support.
var ErrRankTooLarge = errors.New("requested rank too large")

// qrcp runs column-pivoted QR on a copy of y and returns the R factor
// (in pivoted column order, overwritten form) and the pivot permutation:
// perm[j] is the original index of the column moved to position j.
func qrcp(y *mat.Dense) (r blas64.General, perm []int) {
	rows, cols := y.Dims()
	work := mat.DenseCopyOf(y)
	raw := work.RawMatrix()
	perm = make([]int, cols)
	for i := range perm {
		perm[i] = -1
	}
	tau := make([]float64, min(rows, cols))

	wk := make([]float64, 1)
	lapackgonum.Implementation{}.Dgeqp3(rows, cols, raw.Data, raw.Stride, perm, tau, wk, -1)
	wk = make([]float64, int(wk[0]))
	lapackgonum.Implementation{}.Dgeqp3(rows, cols, raw.Data, raw.Stride, perm, tau, wk, len(wk))
	return raw, perm
}

// qrcpOSIDColumns computes a rank-k column ID of y from its
// column-pivoted QR: y ~= y[:, js] @ z where z[:, js] is the k-by-k
// identity.
func qrcpOSIDColumns(y *mat.Dense, k int) (z *mat.Dense, js []int, err error) {
	rows, cols := y.Dims()
	if k > min(rows, cols) {
		return nil, nil, ErrRankTooLarge
	}
	r, perm := qrcp(y)

	// solve R[:k,:k] T = R[:k,k:] to interpolate the trailing columns
	t := blas64.General{
		Rows:   k,
		Cols:   cols - k,
		Stride: max(1, cols-k),
		Data:   make([]float64, k*(cols-k)),
	}
	for i := 0; i < k; i++ {
		copy(t.Data[i*t.Stride:i*t.Stride+cols-k], r.Data[i*r.Stride+k:i*r.Stride+cols])
	}
	r1 := blas64.Triangular{
		Uplo:   blas.Upper,
		Diag:   blas.NonUnit,
		N:      k,
		Data:   r.Data,
		Stride: r.Stride,
	}
	if cols > k {
		blas64.Trsm(blas.Left, blas.NoTrans, 1, r1, t)
	}

	z = mat.NewDense(k, cols, nil)
	for i := 0; i < k; i++ {
		z.Set(i, perm[i], 1)
	}
	for j := k; j < cols; j++ {
		for i := 0; i < k; i++ {
			z.Set(i, perm[j], t.Data[i*t.Stride+j-k])
		}
	}
	return z, append([]int(nil), perm[:k]...), nil
}

// qrcpOSIDRows computes a rank-k row ID of y: y ~= x @ y[is, :]
// where x[is, :] is the k-by-k identity.
func qrcpOSIDRows(y *mat.Dense, k int) (x *mat.Dense, is []int, err error) {
	zt, is, err := qrcpOSIDColumns(mat.DenseCopyOf(y.T()), k)
	if err != nil {
		return nil, nil, err
	}
	return mat.DenseCopyOf(zt.T()), is, nil
}

// pivotPrefix returns the first k column pivots of y under QRCP.
func pivotPrefix(y *mat.Dense, k int) []int {
	_, perm := qrcp(y)
	return append([]int(nil), perm[:k]...)
}

// selectRows gathers a[is, :] into a new matrix.
func selectRows(a *mat.Dense, is []int) *mat.Dense {
	_, cols := a.Dims()
	out := mat.NewDense(len(is), cols, nil)
	for i, idx := range is {
		out.SetRow(i, a.RawRowView(idx))
	}
	return out
}

// selectCols gathers a[:, js] into a new matrix.
func selectCols(a *mat.Dense, js []int) *mat.Dense {
	rows, _ := a.Dims()
	out := mat.NewDense(rows, len(js), nil)
	col := make([]float64, rows)
	for j, idx := range js {
		mat.Col(col, idx, a)
		out.SetCol(j, col)
	}
	return out
}
