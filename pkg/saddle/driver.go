package saddle

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/rileyjmurray/randla/pkg/linops"
	"github.com/rileyjmurray/randla/pkg/sketch"
	"github.com/rileyjmurray/randla/pkg/sparse"
	"github.com/rileyjmurray/randla/pkg/util"
)

// Driver orchestrates a full sketch-and-precondition solve of the
// saddle-point system defined by (A, b, c, delta).
type Driver interface {
	Solve(
		ctx context.Context, a linops.LinOp, b, c []float64,
		delta, tol float64, iterLim int, rng *rand.Rand,
	) (x, y []float64, log *SketchAndPrecondLog, err error)
}

// sketchDim validates the shape of a and derives the sketch row count
// from the oversampling factor, clamping to the row dimension.
func sketchDim(samplingFactor float64, m, n int) (int, error) {
	if m < n {
		return 0, fmt.Errorf("matrix must be tall: %d rows < %d columns", m, n)
	}
	d := int(samplingFactor * float64(n))
	if d > m {
		logger.Warn().
			Int("d", d).
			Int("m", m).
			Msg("sketch dimension exceeds row count; clamping")
		d = m
	}
	if d < 1 {
		d = 1
	}
	return d, nil
}

// SPS1 is SVD-based sketch-and-precondition: it factors a sketch of A
// by SVD, presolves with the factor alone, and refines with an
// iterative saddle solver (PCG by default) running on A itself.
type SPS1 struct {
	SketchOpGen     sketch.Generator
	SamplingFactor  float64
	IterativeSolver Solver
}

// NewSPS1 returns an SPS1 driver; a nil solver selects PcSS1.
func NewSPS1(gen sketch.Generator, samplingFactor float64, solver Solver) *SPS1 {
	if solver == nil {
		solver = NewPcSS1()
	}
	return &SPS1{
		SketchOpGen:     gen,
		SamplingFactor:  samplingFactor,
		IterativeSolver: solver,
	}
}

func (s *SPS1) Solve(
	ctx context.Context, a linops.LinOp, b, c []float64,
	delta, tol float64, iterLim int, rng *rand.Rand,
) (x, y []float64, log *SketchAndPrecondLog, err error) {
	m, n := a.Dims()
	if b == nil && c == nil {
		return nil, nil, nil, ErrZeroRHS
	}
	d, err := sketchDim(s.SamplingFactor, m, n)
	if err != nil {
		return nil, nil, nil, err
	}
	if b == nil {
		b = make([]float64, m)
	}
	sqrtDelta := math.Sqrt(delta)
	lg := loggerFromCtx(ctx)
	tl := util.NewWallTimeLogger(lg)
	log = &SketchAndPrecondLog{}

	// sketch the data matrix
	skOp := s.SketchOpGen.Generate(d, m, rng)
	aSke := ALift(sketch.SketchDense(skOp, a), sqrtDelta)
	log.TimeSketch = tl.Lap("sketch")

	// factor the sketch
	pre, _, sigma, v, err := SVDRightPrecond(aSke)
	if err != nil {
		return nil, nil, nil, err
	}
	log.TimeFactor = tl.Lap("factor")
	if err = ctx.Err(); err != nil {
		return nil, nil, nil, err
	}

	// presolve: x_ske = M z_ske with z_ske = diag(1/sigma) V'(A'b - c);
	// keep it as a warm start only if it beats the trivial baseline
	rank := len(sigma)
	rhs := make([]float64, n)
	a.ApplyTrans(rhs, b)
	if c != nil {
		floats.AddScaled(rhs, -1, c)
	}
	zSke := make([]float64, rank)
	mulTransVec(zSke, v, rhs)
	for i := range zSke {
		zSke[i] /= sigma[i]
	}
	xSke := make([]float64, n)
	mulVec(xSke, pre, zSke)
	rhsPc := make([]float64, rank)
	mulTransVec(rhsPc, pre, rhs)
	lhsSkePc := make([]float64, rank)
	workM := make([]float64, m)
	workN := make([]float64, n)
	a.Apply(workM, xSke)
	a.ApplyTrans(workN, workM)
	if delta > 0 {
		floats.AddScaled(workN, delta, xSke)
	}
	mulTransVec(lhsSkePc, pre, workN)
	floats.AddScaled(lhsSkePc, -1, rhsPc)
	if sparse.Norm2(lhsSkePc) >= sparse.Norm2(rhsPc) {
		zSke = nil
	}
	log.TimePresolve = tl.Lap("presolve")
	if err = ctx.Err(); err != nil {
		return nil, nil, nil, err
	}

	// main iterative phase
	x, y, trace, _, err := s.IterativeSolver.Solve(
		a, b, c, delta, tol, iterLim, pre, false, zSke)
	if err != nil {
		return nil, nil, nil, err
	}
	log.TimeIterate = tl.Lap("iterate")

	log.WrapUp(trace, sparse.Norm2(rhs))
	log.ErrorDesc = s.IterativeSolver.ErrorMetric()
	log.Emit(lg)
	return x, y, log, nil
}

// SPS2 sketches, reduces the saddle system to an overdetermined
// least-squares problem in preconditioned coordinates, and solves that
// problem with LSQR.
type SPS2 struct {
	SketchOpGen     sketch.Generator
	SamplingFactor  float64
	IterativeSolver Solver
}

// NewSPS2 returns an SPS2 driver; a nil solver selects PcSS2.
func NewSPS2(gen sketch.Generator, samplingFactor float64, solver Solver) *SPS2 {
	if solver == nil {
		solver = NewPcSS2()
	}
	return &SPS2{
		SketchOpGen:     gen,
		SamplingFactor:  samplingFactor,
		IterativeSolver: solver,
	}
}

func (s *SPS2) Solve(
	ctx context.Context, a linops.LinOp, b, c []float64,
	delta, tol float64, iterLim int, rng *rand.Rand,
) (x, y []float64, log *SketchAndPrecondLog, err error) {
	m, n := a.Dims()
	if b == nil && c == nil {
		return nil, nil, nil, ErrZeroRHS
	}
	d, err := sketchDim(s.SamplingFactor, m, n)
	if err != nil {
		return nil, nil, nil, err
	}
	if b == nil {
		b = make([]float64, m)
	}
	sqrtDelta := math.Sqrt(delta)
	lg := loggerFromCtx(ctx)
	tl := util.NewWallTimeLogger(lg)
	log = &SketchAndPrecondLog{}

	// sketch the data matrix
	skOp := s.SketchOpGen.Generate(d, m, rng)
	aSke := ALift(sketch.SketchDense(skOp, a), sqrtDelta)
	log.TimeSketch = tl.Lap("sketch")

	// factor the sketch
	pre, u, sigma, v, err := SVDRightPrecond(aSke)
	if err != nil {
		return nil, nil, nil, err
	}
	rank := len(sigma)
	log.TimeFactor = tl.Lap("factor")
	if err = ctx.Err(); err != nil {
		return nil, nil, nil, err
	}

	// convert to overdetermined least squares:
	// fold a nonzero c into the long right-hand side
	aAug := linops.Lift(a, sqrtDelta)
	augRows, _ := aAug.Dims()
	bAug := make([]float64, augRows)
	copy(bAug, b)
	if c != nil && sparse.Norm2(c) > 0 {
		// v_c = U diag(1/sigma) V' c lives in sketch coordinates
		tmp := make([]float64, rank)
		mulTransVec(tmp, v, c)
		for i := range tmp {
			tmp[i] /= sigma[i]
		}
		vc := make([]float64, d+strideDelta(delta, n))
		mulVec(vc, u, tmp)
		skBack := make([]float64, m)
		skOp.ApplyTrans(skBack, vc[:d])
		floats.AddScaled(bAug[:m], -1, skBack)
		if delta > 0 {
			floats.AddScaled(bAug[m:], -1, vc[d:])
		}
	}
	log.TimeConvert = tl.Lap("convert")

	// presolve in preconditioned coordinates:
	// z_ske = U' [S b_aug_top; b_aug_bottom]
	zSke := make([]float64, rank)
	sb := make([]float64, d)
	skOp.Apply(sb, bAug[:m])
	uTop := u.Slice(0, d, 0, rank).(*mat.Dense)
	mulTransVec(zSke, uTop, sb)
	if delta > 0 {
		uBot := u.Slice(d, d+n, 0, rank).(*mat.Dense)
		tmp := make([]float64, rank)
		mulTransVec(tmp, uBot, bAug[m:])
		floats.Add(zSke, tmp)
	}
	xSke := make([]float64, n)
	mulVec(xSke, pre, zSke)
	residAug := make([]float64, augRows)
	aAug.Apply(residAug, xSke)
	floats.Sub(residAug, bAug)
	if sparse.Norm2(residAug) >= sparse.Norm2(bAug) {
		zSke = nil
	}
	log.TimePresolve = tl.Lap("presolve")
	if err = ctx.Err(); err != nil {
		return nil, nil, nil, err
	}

	// main iterative phase on the lifted, unregularized problem
	x, _, trace, _, err := s.IterativeSolver.Solve(
		aAug, bAug, nil, 0.0, tol, iterLim, pre, false, zSke)
	if err != nil {
		return nil, nil, nil, err
	}
	log.TimeIterate = tl.Lap("iterate")

	// the solver's y block lives in transformed coordinates;
	// recompute it for the original system
	y = make([]float64, m)
	a.Apply(y, x)
	for i := range y {
		y[i] = b[i] - y[i]
	}

	ar0 := make([]float64, n)
	aAug.ApplyTrans(ar0, bAug)
	ar0Pc := make([]float64, rank)
	mulTransVec(ar0Pc, pre, ar0)
	log.WrapUp(trace, sparse.Norm2(ar0Pc))
	log.ErrorDesc = s.IterativeSolver.ErrorMetric() +
		" (computed w.r.t. a transformed problem)"
	log.Emit(lg)
	return x, y, log, nil
}

func strideDelta(delta float64, n int) int {
	if delta > 0 {
		return n
	}
	return 0
}

func loggerFromCtx(ctx context.Context) zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return *l
	}
	return logger
}

// SPS solves the saddle system with a sparse-sign sketch and the PCG
// ("pcg"), LSQR ("lsqr"), or Newton-sketch refinement ("newton")
// method.  The newton method inherits PcSS3's restrictions: b only,
// no regularization.
func SPS(
	ctx context.Context, a linops.LinOp, b, c []float64,
	delta, tol float64, iterLim int, rng *rand.Rand,
	samplingFactor float64, vecNNZ int, method string,
) (x, y []float64, log *SketchAndPrecondLog, err error) {
	gen := sketch.SparseSignGen{VecNNZ: vecNNZ}
	switch method {
	case "pcg":
		return NewSPS1(gen, samplingFactor, nil).Solve(
			ctx, a, b, c, delta, tol, iterLim, rng)
	case "lsqr":
		return NewSPS2(gen, samplingFactor, nil).Solve(
			ctx, a, b, c, delta, tol, iterLim, rng)
	case "newton":
		return NewSPS1(gen, samplingFactor, NewPcSS3()).Solve(
			ctx, a, b, c, delta, tol, iterLim, rng)
	default:
		return nil, nil, nil, fmt.Errorf(
			`method %#v not recognized; use "pcg", "lsqr" or "newton"`, method)
	}
}
