package saddle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/rileyjmurray/randla/pkg/linops"
	"github.com/rileyjmurray/randla/pkg/sketch"
)

func ridgeRef(t *testing.T, a *mat.Dense, b, c []float64, delta float64) []float64 {
	t.Helper()
	_, n := a.Dims()
	var gram mat.Dense
	gram.Mul(a.T(), a)
	for i := 0; i < n; i++ {
		gram.Set(i, i, gram.At(i, i)+delta)
	}
	rhs := make([]float64, n)
	mulTransVec(rhs, a, b)
	if c != nil {
		for i := range rhs {
			rhs[i] -= c[i]
		}
	}
	var x mat.Dense
	require.NoError(t, x.Solve(&gram, mat.NewVecDense(n, rhs)))
	out := make([]float64, n)
	mat.NewVecDense(n, out).CopyVec(x.ColView(0))
	return out
}

func driverProblem(t *testing.T, seed uint64) (*mat.Dense, linops.LinOp, []float64) {
	t.Helper()
	const m, n = 200, 10
	a := randTall(m, n, seed)
	rng := sketch.NewRNG(seed + 1)
	xTrue := make([]float64, n)
	for i := range xTrue {
		xTrue[i] = rng.NormFloat64()
	}
	b := make([]float64, m)
	mulVec(b, a, xTrue)
	for i := range b {
		b[i] += 1e-3 * rng.NormFloat64()
	}
	return a, linops.DenseOp{M: a}, b
}

func TestSPS1EndToEnd(t *testing.T) {
	a, aOp, b := driverProblem(t, 211)
	want := lstsqRef(t, a, b)

	drv := NewSPS1(sketch.GaussianGen{}, 3.0, nil)
	x, y, log, err := drv.Solve(
		context.Background(), aOp, b, nil, 0.0, 1e-10, 50, sketch.NewRNG(212),
	)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, x, 1e-7)
	assert.NotEmpty(t, log.Errors)
	assert.NotEmpty(t, log.ErrorDesc)
	assert.Greater(t, log.RefNorm, 0.0)
	for i := range y {
		ax := 0.0
		for j, xj := range x {
			ax += a.At(i, j) * xj
		}
		assert.InDelta(t, b[i]-ax, y[i], 1e-9)
	}
}

func TestSPS1Ridge(t *testing.T) {
	a, aOp, b := driverProblem(t, 223)
	delta := 2.0
	want := ridgeRef(t, a, b, nil, delta)

	drv := NewSPS1(sketch.SparseSignGen{VecNNZ: 8}, 4.0, nil)
	x, _, _, err := drv.Solve(
		context.Background(), aOp, b, nil, delta, 1e-10, 50, sketch.NewRNG(224),
	)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, x, 1e-7)
}

func TestSPS2EndToEnd(t *testing.T) {
	a, aOp, b := driverProblem(t, 227)
	want := lstsqRef(t, a, b)

	drv := NewSPS2(sketch.SparseSignGen{}, 3.0, nil)
	x, y, log, err := drv.Solve(
		context.Background(), aOp, b, nil, 0.0, 1e-10, 50, sketch.NewRNG(228),
	)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, x, 1e-7)
	assert.NotEmpty(t, log.Errors)
	for i := range y {
		ax := 0.0
		for j, xj := range x {
			ax += a.At(i, j) * xj
		}
		assert.InDelta(t, b[i]-ax, y[i], 1e-9)
	}
}

func TestSPS2FoldsGradientTerm(t *testing.T) {
	// a nonzero c is folded into the long right-hand side exactly,
	// because the sketch factor pseudo-inverts A on the relevant range
	a, aOp, b := driverProblem(t, 229)
	_, n := a.Dims()
	rng := sketch.NewRNG(230)
	c := make([]float64, n)
	for i := range c {
		c[i] = rng.NormFloat64()
	}
	delta := 0.5
	want := ridgeRef(t, a, b, c, delta)

	drv := NewSPS2(sketch.GaussianGen{}, 4.0, nil)
	x, _, _, err := drv.Solve(
		context.Background(), aOp, b, c, delta, 1e-12, 80, sketch.NewRNG(231),
	)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, x, 1e-6)
}

func TestSPSMethodDispatch(t *testing.T) {
	a, aOp, b := driverProblem(t, 233)
	want := lstsqRef(t, a, b)

	for _, method := range []string{"pcg", "lsqr", "newton"} {
		t.Run(method, func(t *testing.T) {
			x, _, _, err := SPS(
				context.Background(), aOp, b, nil, 0.0, 1e-10, 50,
				sketch.NewRNG(234), 3.0, 8, method,
			)
			require.NoError(t, err)
			assert.InDeltaSlice(t, want, x, 1e-7)
		})
	}

	_, _, _, err := SPS(
		context.Background(), aOp, b, nil, 0.0, 1e-10, 50,
		sketch.NewRNG(235), 3.0, 8, "qr",
	)
	assert.ErrorContains(t, err, "not recognized")
}

func TestDriverRejectsWideMatrix(t *testing.T) {
	a := randTall(5, 10, 239)
	b := make([]float64, 5)
	b[0] = 1
	_, _, _, err := NewSPS1(sketch.GaussianGen{}, 3.0, nil).Solve(
		context.Background(), linops.DenseOp{M: a}, b, nil, 0.0, 1e-10, 10,
		sketch.NewRNG(240),
	)
	assert.ErrorContains(t, err, "must be tall")
}

func TestDriverRejectsEmptyRHS(t *testing.T) {
	_, aOp, _ := driverProblem(t, 241)
	_, _, _, err := NewSPS1(sketch.GaussianGen{}, 3.0, nil).Solve(
		context.Background(), aOp, nil, nil, 0.0, 1e-10, 10, sketch.NewRNG(242),
	)
	assert.ErrorIs(t, err, ErrZeroRHS)

	_, _, _, err = NewSPS2(sketch.GaussianGen{}, 3.0, nil).Solve(
		context.Background(), aOp, nil, nil, 0.0, 1e-10, 10, sketch.NewRNG(243),
	)
	assert.ErrorIs(t, err, ErrZeroRHS)
}

func TestDriverClampsSketchDimension(t *testing.T) {
	a, aOp, b := driverProblem(t, 251)
	want := lstsqRef(t, a, b)

	// 50x oversampling would exceed the row count; the driver clamps and
	// the sketch degenerates to a square mixing matrix
	x, _, _, err := NewSPS1(sketch.GaussianGen{}, 50.0, nil).Solve(
		context.Background(), aOp, b, nil, 0.0, 1e-10, 50, sketch.NewRNG(252),
	)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, x, 1e-7)
}

func TestDriverHonorsContextCancellation(t *testing.T) {
	_, aOp, b := driverProblem(t, 257)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, _, err := NewSPS1(sketch.GaussianGen{}, 3.0, nil).Solve(
		ctx, aOp, b, nil, 0.0, 1e-10, 50, sketch.NewRNG(258),
	)
	assert.ErrorIs(t, err, context.Canceled)
}
