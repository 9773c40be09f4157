package saddle

import (
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/mat"

	"github.com/rileyjmurray/randla/pkg/linops"
	"github.com/rileyjmurray/randla/pkg/sparse"
)

const machEps = 0x1p-52

// ALift returns the row-stack [a; sqrtDelta * I].
// When sqrtDelta is zero it returns a unchanged.
func ALift(a *mat.Dense, sqrtDelta float64) *mat.Dense {
	if sqrtDelta == 0 {
		return a
	}
	d, n := a.Dims()
	out := mat.NewDense(d+n, n, nil)
	out.Slice(0, d, 0, n).(*mat.Dense).Copy(a)
	for i := 0; i < n; i++ {
		out.Set(d+i, i, sqrtDelta)
	}
	return out
}

// SVDRightPrecond factors aSke = U diag(sigma) V' by thin SVD and
// builds the right preconditioner M = V diag(1/sigma), so that the
// preconditioned matrix A @ M has singular values clustered near 1.
//
// Singular values at or below sigma[0] * max(rows, cols) * machEps are
// treated as numerical zeros and dropped; M then has fewer columns than
// aSke and downstream solvers fall back to identity action outside the
// captured subspace.  U, sigma and V are truncated consistently.
func SVDRightPrecond(aSke *mat.Dense) (
	m, u *mat.Dense, sigma []float64, v *mat.Dense, err error,
) {
	rows, cols := aSke.Dims()
	var svd mat.SVD
	if !svd.Factorize(aSke, mat.SVDThin) {
		return nil, nil, nil, nil, ErrRankDeficientSketch
	}
	sigma = svd.Values(nil)
	var uFull, vFull mat.Dense
	svd.UTo(&uFull)
	svd.VTo(&vFull)

	cutoff := sigma[0] * float64(max(rows, cols)) * machEps
	rank := 0
	for rank < len(sigma) && sigma[rank] > cutoff {
		rank++
	}
	if rank == 0 {
		return nil, nil, nil, nil, ErrRankDeficientSketch
	}
	sigma = sigma[:rank]
	u = mat.DenseCopyOf(uFull.Slice(0, rows, 0, rank))
	v = mat.DenseCopyOf(vFull.Slice(0, cols, 0, rank))

	m = mat.NewDense(cols, rank, nil)
	for j := 0; j < rank; j++ {
		inv := 1 / sigma[j]
		for i := 0; i < cols; i++ {
			m.Set(i, j, inv*v.At(i, j))
		}
	}
	return m, u, sigma, v, nil
}

// ALiftPrecond combines the ridge lift of a with the preconditioner
// orientation and returns the preconditioned operator
// A_pc = [a; sqrt(delta) I] @ M together with the forward map
// (dst = M src) and adjoint map (dst = M' src).
//
// When upperTri is false the preconditioning map is M = r;
// when upperTri is true, r must be square upper-triangular and the
// map is M = r^{-1}, applied by triangular solves.
func ALiftPrecond(
	a linops.LinOp, delta float64, r *mat.Dense, upperTri bool,
) (aPc linops.LinOp, fwd, adj func(dst, src []float64)) {
	n, rank := r.Dims()
	if upperTri {
		if n != rank {
			panic(sparse.ErrDimensionMismatch)
		}
		raw := r.RawMatrix()
		tri := blas64.Triangular{
			Uplo:   blas.Upper,
			Diag:   blas.NonUnit,
			N:      n,
			Data:   raw.Data,
			Stride: raw.Stride,
		}
		fwd = func(dst, src []float64) {
			copy(dst, src)
			blas64.Trsv(blas.NoTrans, tri, blas64.Vector{
				N: n, Data: dst, Inc: 1,
			})
		}
		adj = func(dst, src []float64) {
			copy(dst, src)
			blas64.Trsv(blas.Trans, tri, blas64.Vector{
				N: n, Data: dst, Inc: 1,
			})
		}
	} else {
		fwd = func(dst, src []float64) { mulVec(dst, r, src) }
		adj = func(dst, src []float64) { mulTransVec(dst, r, src) }
	}
	mapCols := rank
	if upperTri {
		mapCols = n
	}
	mOp := &mapOp{rows: n, cols: mapCols, fwd: fwd, adj: adj}
	aPc = linops.Compose(linops.Lift(a, math.Sqrt(delta)), mOp)
	return aPc, fwd, adj
}

type mapOp struct {
	rows, cols int
	fwd, adj   func(dst, src []float64)
}

func (o *mapOp) Dims() (rows, cols int) { return o.rows, o.cols }

func (o *mapOp) Apply(dst, src []float64)      { o.fwd(dst, src) }
func (o *mapOp) ApplyTrans(dst, src []float64) { o.adj(dst, src) }

// mulVec stores a @ src into dst.
func mulVec(dst []float64, a *mat.Dense, src []float64) {
	rows, cols := a.Dims()
	if len(dst) != rows || len(src) != cols {
		panic(sparse.ErrDimensionMismatch)
	}
	v := mat.NewVecDense(rows, dst)
	v.MulVec(a, mat.NewVecDense(cols, src))
}

// mulTransVec stores a' @ src into dst.
func mulTransVec(dst []float64, a *mat.Dense, src []float64) {
	rows, cols := a.Dims()
	if len(dst) != cols || len(src) != rows {
		panic(sparse.ErrDimensionMismatch)
	}
	v := mat.NewVecDense(cols, dst)
	v.MulVec(a.T(), mat.NewVecDense(rows, src))
}
