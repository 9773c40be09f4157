package saddle

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/rileyjmurray/randla/pkg/linops"
	"github.com/rileyjmurray/randla/pkg/sparse"
)

// MinTolerance is the smallest tolerance PcSS3 will honor.
// Requests below it are clamped, with a warning naming the substitute.
const MinTolerance = 32 * machEps

// Solver approximately solves the block system
//
//	[  I   |     A   ] [y] = [b]
//	[  A'  | -delta*I] [x]   [c]
//
// given the preconditioner R.  The x block is characterized by the
// normal equations (A'A + delta*I) x = A'b - c.
//
// If upperTri is true the preconditioning map is M = R^{-1},
// otherwise M = R.  z0, when non-nil, warm-starts the iteration with
// x0 derived from the pair (R, z0).
//
// The returned trace holds one error value per iteration taken; its
// metric differs per algorithm, see ErrorMetric.  Solve leaves all of
// its arguments unmodified.
type Solver interface {
	Solve(
		a linops.LinOp, b, c []float64, delta, tol float64, iterLim int,
		r *mat.Dense, upperTri bool, z0 []float64,
	) (x, y, trace []float64, code int, err error)

	// ErrorMetric describes the meaning of the trace entries.
	ErrorMetric() string
}

// PcSS1 solves the normal equations by conjugate gradients
// preconditioned with M M' (identity outside the sketch-captured
// subspace when R has fewer than n columns).
//
// Restrictions: upperTri is not supported.
type PcSS1 struct{}

// NewPcSS1 returns a PCG-based saddle solver.
func NewPcSS1() *PcSS1 { return &PcSS1{} }

func (*PcSS1) ErrorMetric() string {
	return "2-norm of the residual from the preconditioned normal equations"
}

func (*PcSS1) Solve(
	a linops.LinOp, b, c []float64, delta, tol float64, iterLim int,
	r *mat.Dense, upperTri bool, z0 []float64,
) (x, y, trace []float64, code int, err error) {
	m, n := a.Dims()
	if upperTri {
		return nil, nil, nil, 0, ErrNotImplemented
	}
	if b == nil {
		b = make([]float64, m)
	}

	nRows, rank := r.Dims()
	if nRows != n {
		return nil, nil, nil, 0, sparse.ErrDimensionMismatch
	}
	fullRank := rank == n

	// work is R with delta folded in; vBasis holds the column-normalized
	// copy used for the identity-complement term of the preconditioner.
	work := mat.DenseCopyOf(r)
	var vBasis *mat.Dense
	if delta > 0 || !fullRank {
		vBasis = mat.NewDense(n, rank, nil)
		singVals := make([]float64, rank)
		col := make([]float64, n)
		for j := 0; j < rank; j++ {
			mat.Col(col, j, r)
			nrm := sparse.Norm2(col)
			if nrm == 0 {
				singVals[j] = 0
				continue
			}
			// R = V diag(1/sigma), so the column norm recovers sigma
			singVals[j] = 1 / nrm
			for i := 0; i < n; i++ {
				vBasis.Set(i, j, col[i]/nrm)
			}
		}
		if delta > 0 {
			// fold delta into the singular values; hypot avoids the
			// overflow/underflow of the naive square-add-sqrt form
			sqrtDelta := math.Sqrt(delta)
			folded := make([]float64, rank)
			for j := range folded {
				folded[j] = math.Hypot(singVals[j], sqrtDelta)
			}
			last := folded[rank-1]
			for j := 0; j < rank; j++ {
				if folded[j] == 0 {
					continue
				}
				scale := last / folded[j]
				for i := 0; i < n; i++ {
					work.Set(i, j, vBasis.At(i, j)*scale)
				}
			}
		}
	}

	work1 := make([]float64, rank)
	work2 := make([]float64, m)
	work3 := make([]float64, n)

	// the preconditioner is R R' + (I - V V')
	mvPre := func(dst, src []float64) {
		mulTransVec(work1, work, src)
		mulVec(dst, work, work1)
		if !fullRank {
			floats.Add(dst, src)
			mulTransVec(work1, vBasis, src)
			mulVec(work3, vBasis, work1)
			floats.AddScaled(dst, -1, work3)
		}
	}
	mvGram := func(dst, src []float64) {
		a.Apply(work2, src)
		a.ApplyTrans(dst, work2)
		if delta > 0 {
			floats.AddScaled(dst, delta, src)
		}
	}

	rhs := make([]float64, n)
	a.ApplyTrans(rhs, b)
	if c != nil {
		floats.AddScaled(rhs, -1, c)
	}

	x = make([]float64, n)
	if z0 != nil && fullRank {
		mulVec(x, work, z0)
	}

	trace = pcg(mvGram, mvPre, rhs, iterLim, tol, x)

	y = make([]float64, m)
	a.Apply(y, x)
	for i := range y {
		y[i] = b[i] - y[i]
	}
	return x, y, trace, 0, nil
}

// PcSS2 transforms the saddle system into an equivalent least-squares
// problem via the preconditioner maps and delegates to LSQR.
// Exactly one of b, c may be nonzero.
type PcSS2 struct {
	// AllowConsistentTerm honors LSQR's consistent-system stopping
	// test.  Disable it when the transformed system is known to be
	// inconsistent.
	AllowConsistentTerm bool
	// OrigXNorm uses the norm of the accumulated solution in LSQR's
	// stopping tests when warm-started, rather than the norm of the
	// correction.
	OrigXNorm bool
	// CondLim bounds LSQR's condition-number estimate; zero means the
	// LSQR default of 1e8.
	CondLim float64
}

// NewPcSS2 returns an LSQR-based saddle solver with default stopping
// behavior.
func NewPcSS2() *PcSS2 {
	return &PcSS2{AllowConsistentTerm: true, OrigXNorm: true}
}

func (*PcSS2) ErrorMetric() string {
	return "2-norm of the residual from the preconditioned normal equations"
}

func (s *PcSS2) Solve(
	a linops.LinOp, b, c []float64, delta, tol float64, iterLim int,
	r *mat.Dense, upperTri bool, z0 []float64,
) (x, y, trace []float64, code int, err error) {
	m, n := a.Dims()
	aPc, fwd, adj := ALiftPrecond(a, delta, r, upperTri)
	_, rank := aPc.Dims()

	condLim := s.CondLim
	if condLim == 0 {
		condLim = 1e8
	}
	params := lsqrParams{
		atol:            tol,
		btol:            tol,
		conlim:          condLim,
		iterLim:         iterLim,
		origXNorm:       s.OrigXNorm,
		allowConsistent: s.AllowConsistentTerm,
	}

	switch {
	case c == nil || sparse.Norm2(c) == 0:
		// overdetermined least squares
		if b == nil {
			b = make([]float64, m)
		}
		bAug := make([]float64, m, m+n)
		copy(bAug, b)
		if delta > 0 {
			bAug = bAug[:m+n]
		}
		params.x0 = z0
		res := lsqrSolve(aPc, bAug, params)

		x = make([]float64, n)
		fwd(x, res.x)
		y = make([]float64, m)
		a.Apply(y, x)
		for i := range y {
			y[i] = b[i] - y[i]
		}
		return x, y, res.arnorms, res.istop, nil

	case b == nil || sparse.Norm2(b) == 0:
		// underdetermined least squares: solve the adjoint system for y
		cPc := make([]float64, rank)
		adj(cPc, c)
		res := lsqrSolve(linops.Transpose(aPc), cPc, params)

		y = res.x[:m]
		x = make([]float64, n)
		if delta > 0 {
			a.ApplyTrans(x, y)
			for i := range x {
				x[i] = (x[i] - c[i]) / delta
			}
		} else {
			// x is undefined without regularization; keep the NaN
			// sentinel rather than inventing a value
			for i := range x {
				x[i] = math.NaN()
			}
		}
		return x, y, res.arnorms, res.istop, nil

	default:
		return nil, nil, nil, 0, ErrBothBlocksNonzero
	}
}

// PcSS3 is a no-refresh Newton-sketch style refinement scheme:
// M M' approximates (A'A)^{-1} and every step applies the correction
// dx = M M' rhs with an exact line search.  Matrix-free: nothing is
// ever re-factored.
//
// Restrictions: c must be absent, delta must be zero, upperTri is not
// supported.
type PcSS3 struct {
	// AllowConsistentTerm terminates on the consistency-style metric
	// ||y|| / (||b|| + sqrt(n)||x||) in addition to the
	// normal-equation metric.
	AllowConsistentTerm bool
}

// NewPcSS3 returns a Newton-sketch-style saddle solver with both
// termination metrics enabled.
func NewPcSS3() *PcSS3 {
	return &PcSS3{AllowConsistentTerm: true}
}

func (*PcSS3) ErrorMetric() string {
	return "2-norm of the residual from the preconditioned normal equations"
}

func (s *PcSS3) Solve(
	a linops.LinOp, b, c []float64, delta, tol float64, iterLim int,
	r *mat.Dense, upperTri bool, z0 []float64,
) (x, y, trace []float64, code int, err error) {
	m, n := a.Dims()
	if c != nil || delta > 0 || upperTri {
		return nil, nil, nil, 0, ErrNotImplemented
	}
	if b == nil {
		return nil, nil, nil, 0, ErrZeroRHS
	}
	if len(b) != m {
		return nil, nil, nil, 0, sparse.ErrDimensionMismatch
	}
	if tol < MinTolerance {
		logger.Warn().
			Float64("tol", tol).
			Float64("floor", MinTolerance).
			Msg("tolerance below floor; clamping")
		tol = MinTolerance
	}
	if hardCap := 5 * n; iterLim > hardCap {
		logger.Warn().
			Int("iterLim", iterLim).
			Int("cap", hardCap).
			Msg("iteration limit above cap; clamping")
		iterLim = hardCap
	}

	_, rank := r.Dims()
	workRhs1 := make([]float64, rank)
	workRhs2 := make([]float64, n)
	workAx1 := make([]float64, m)
	workAx2 := make([]float64, m)
	x = make([]float64, n)
	dx := make([]float64, n)
	y = append([]float64(nil), b...)
	rhs := make([]float64, n)
	a.ApplyTrans(rhs, b)
	mulTransVec(workRhs1, r, rhs)
	errVal := sparse.Norm2(workRhs1)
	nrmB := sparse.Norm2(b)
	sqrtN := math.Sqrt(float64(n))

	// exact line search along dx; degenerate denominators fall back to
	// a projection step, then to NaN (a reportable stall)
	stepSize := func() float64 {
		a.Apply(workAx1, dx)
		den := sparse.Norm2(workAx1)
		if den > 0 {
			floats.Scale(1/den, workAx1)
			a.Apply(workAx2, x)
			floats.AddScaled(workAx2, -1, b) // workAx2 = A x - b
			negNum := floats.Dot(workAx1, workAx2)
			return -negNum / den
		}
		nrmDx := sparse.Norm2(dx)
		if nrmDx > 0 {
			return floats.Dot(x, dx) / (nrmDx * nrmDx)
		}
		return math.NaN()
	}

	takeStep := func(alpha float64) {
		floats.Scale(alpha, dx)
		floats.Add(x, dx)
		a.Apply(workAx1, dx)
		floats.AddScaled(y, -1, workAx1)
		a.ApplyTrans(workRhs2, workAx1)
	}

	trace = make([]float64, 0, iterLim+2)
	var nrmY, metric1, metric2 float64

	// first step: warm start if provided, then compute the error
	if z0 != nil && sparse.Norm2(z0) > 0 {
		mulVec(dx, r, z0)
		alpha := stepSize()
		takeStep(alpha)
		floats.AddScaled(rhs, -1, workRhs2)
		mulTransVec(workRhs1, r, rhs)
		errVal = sparse.Norm2(workRhs1)
		trace = append(trace, errVal)
		nrmY = sparse.Norm2(y)
		metric1 = nrmY / (nrmB + sqrtN*sparse.Norm2(x))
		metric2 = errVal / (sqrtN * nrmY)
	} else {
		nrmY = nrmB
		metric1 = 1.0
		metric2 = errVal / (sqrtN * nrmY)
	}

	converged := func() bool {
		if s.AllowConsistentTerm {
			return math.Min(metric1, metric2) <= tol
		}
		return metric2 <= tol
	}

	for it := 1; it <= iterLim && !converged(); it++ {
		mulVec(dx, r, workRhs1) // dx = M M' rhs
		alpha := stepSize()
		if math.IsNaN(alpha) || alpha == 0 {
			// line search stalled; record the last error and stop
			trace = append(trace, errVal)
			break
		}
		takeStep(alpha)
		if it%50 == 0 {
			// periodic recompute of rhs = A'(b - A x) from scratch
			// bounds drift from the incremental updates
			a.Apply(workAx1, x)
			for i := range workAx1 {
				workAx1[i] = b[i] - workAx1[i]
			}
			a.ApplyTrans(rhs, workAx1)
		} else {
			floats.AddScaled(rhs, -1, workRhs2)
		}
		mulTransVec(workRhs1, r, rhs)
		errVal = sparse.Norm2(workRhs1)
		trace = append(trace, errVal)
		nrmY = sparse.Norm2(y)
		metric1 = nrmY / (nrmB + sqrtN*sparse.Norm2(x))
		metric2 = errVal / (sqrtN * nrmY)
	}

	switch {
	case s.AllowConsistentTerm && metric1 <= tol:
		code = 1
	case metric2 <= tol:
		code = 2
	default:
		code = 7
	}

	a.Apply(y, x)
	for i := range y {
		y[i] = b[i] - y[i]
	}
	return x, y, trace, code, nil
}
