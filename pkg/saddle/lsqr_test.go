package saddle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/rileyjmurray/randla/pkg/linops"
	"github.com/rileyjmurray/randla/pkg/sketch"
	"github.com/rileyjmurray/randla/pkg/sparse"
)

func lstsqRef(t *testing.T, a *mat.Dense, b []float64) []float64 {
	t.Helper()
	rows, cols := a.Dims()
	var x mat.Dense
	require.NoError(t, x.Solve(a, mat.NewVecDense(rows, b)))
	out := make([]float64, cols)
	mat.NewVecDense(cols, out).CopyVec(x.ColView(0))
	return out
}

func defaultLSQRParams() lsqrParams {
	return lsqrParams{
		atol:            1e-12,
		btol:            1e-12,
		conlim:          1e8,
		iterLim:         100,
		origXNorm:       true,
		allowConsistent: true,
	}
}

func TestLSQRInconsistentSystem(t *testing.T) {
	a := randTall(30, 6, 21)
	rng := sketch.NewRNG(22)
	b := make([]float64, 30)
	for i := range b {
		b[i] = rng.NormFloat64()
	}
	want := lstsqRef(t, a, b)

	res := lsqrSolve(linops.DenseOp{M: a}, b, defaultLSQRParams())
	assert.Equal(t, 2, res.istop)
	assert.InDeltaSlice(t, want, res.x, 1e-9)
	assert.Len(t, res.arnorms, res.itn+1)
	assert.Greater(t, res.anorm, 0.0)
	assert.Greater(t, res.acond, 0.0)
}

func TestLSQRConsistentSystem(t *testing.T) {
	a := randTall(30, 6, 23)
	xTrue := []float64{1, -1, 2, 0.5, -3, 1.25}
	b := make([]float64, 30)
	mulVec(b, a, xTrue)

	res := lsqrSolve(linops.DenseOp{M: a}, b, defaultLSQRParams())
	assert.Contains(t, []int{1, 2}, res.istop)
	assert.InDeltaSlice(t, xTrue, res.x, 1e-9)
	assert.Less(t, res.rnorm, 1e-8)
}

func TestLSQRConsistentTestDisabled(t *testing.T) {
	a := randTall(30, 6, 23)
	xTrue := []float64{1, -1, 2, 0.5, -3, 1.25}
	b := make([]float64, 30)
	mulVec(b, a, xTrue)

	p := defaultLSQRParams()
	p.allowConsistent = false
	res := lsqrSolve(linops.DenseOp{M: a}, b, p)
	assert.NotEqual(t, 1, res.istop)
	assert.NotEqual(t, 4, res.istop)
	assert.InDeltaSlice(t, xTrue, res.x, 1e-9)
}

func TestLSQRWarmStartExact(t *testing.T) {
	a := randTall(30, 6, 29)
	rng := sketch.NewRNG(30)
	b := make([]float64, 30)
	for i := range b {
		b[i] = rng.NormFloat64()
	}
	xHat := lstsqRef(t, a, b)

	p := defaultLSQRParams()
	p.x0 = xHat
	res := lsqrSolve(linops.DenseOp{M: a}, b, p)
	// either the entry check or the first stopping test fires at once
	assert.LessOrEqual(t, res.itn, 1)
	assert.InDeltaSlice(t, xHat, res.x, 1e-9)
}

func TestLSQRWarmStartRough(t *testing.T) {
	a := randTall(30, 6, 31)
	rng := sketch.NewRNG(32)
	b := make([]float64, 30)
	for i := range b {
		b[i] = rng.NormFloat64()
	}
	want := lstsqRef(t, a, b)

	x0 := make([]float64, 6)
	copy(x0, want)
	x0[0] += 0.5
	x0[3] -= 0.25
	p := defaultLSQRParams()
	p.x0 = x0
	res := lsqrSolve(linops.DenseOp{M: a}, b, p)
	assert.InDeltaSlice(t, want, res.x, 1e-9)
	assert.Equal(t, 0.5, x0[0]-want[0], "x0 must not be mutated")
}

func TestLSQRIterationLimit(t *testing.T) {
	a := randTall(30, 6, 37)
	rng := sketch.NewRNG(38)
	b := make([]float64, 30)
	for i := range b {
		b[i] = rng.NormFloat64()
	}
	p := defaultLSQRParams()
	p.iterLim = 2
	res := lsqrSolve(linops.DenseOp{M: a}, b, p)
	assert.Equal(t, 7, res.istop)
	assert.Equal(t, 2, res.itn)
}

func TestLSQRZeroRHS(t *testing.T) {
	a := randTall(10, 3, 41)
	b := make([]float64, 10)

	res := lsqrSolve(linops.DenseOp{M: a}, b, defaultLSQRParams())
	assert.Equal(t, 0, res.itn)
	assert.Equal(t, 0.0, sparse.Norm2(res.x))
}
