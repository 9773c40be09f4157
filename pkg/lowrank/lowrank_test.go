package lowrank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/rileyjmurray/randla/pkg/sketch"
)

// lowRankMatrix builds an exactly rank-k matrix, so a rank-k
// decomposition must reconstruct it to roundoff.
func lowRankMatrix(rows, cols, k int, seed uint64) *mat.Dense {
	rng := sketch.NewRNG(seed)
	l := mat.NewDense(rows, k, nil)
	r := mat.NewDense(k, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < k; j++ {
			l.Set(i, j, rng.NormFloat64())
		}
	}
	for i := 0; i < k; i++ {
		for j := 0; j < cols; j++ {
			r.Set(i, j, rng.NormFloat64())
		}
	}
	var a mat.Dense
	a.Mul(l, r)
	return &a
}

func relErr(a, b mat.Matrix) float64 {
	var diff mat.Dense
	diff.Sub(a, b)
	return mat.Norm(&diff, 2) / mat.Norm(a, 2)
}

func assertValidIndexSet(t *testing.T, idx []int, k, bound int) {
	t.Helper()
	require.Len(t, idx, k)
	seen := make(map[int]bool, k)
	for _, i := range idx {
		assert.GreaterOrEqual(t, i, 0)
		assert.Less(t, i, bound)
		assert.False(t, seen[i], "duplicate index %d", i)
		seen[i] = true
	}
}

func osidDrivers() map[string]OneSidedID {
	return map[string]OneSidedID{
		"qrcp":  NewQRCPOneSidedID(2),
		"lstsq": NewLstsqOneSidedID(2),
	}
}

func TestRowID(t *testing.T) {
	const rows, cols, k = 60, 30, 7
	a := lowRankMatrix(rows, cols, k, 301)

	for name, d := range osidDrivers() {
		t.Run(name, func(t *testing.T) {
			x, is, err := d.RowID(a, k, 4, sketch.NewRNG(302))
			require.NoError(t, err)
			assertValidIndexSet(t, is, k, rows)

			xr, xc := x.Dims()
			assert.Equal(t, rows, xr)
			assert.Equal(t, k, xc)

			// X restricted to the skeleton rows is the identity
			for j, i := range is {
				for jj := 0; jj < k; jj++ {
					want := 0.0
					if jj == j {
						want = 1.0
					}
					assert.InDelta(t, want, x.At(i, jj), 1e-10)
				}
			}

			var approx mat.Dense
			approx.Mul(x, selectRows(a, is))
			assert.Less(t, relErr(a, &approx), 1e-9)
		})
	}
}

func TestColumnID(t *testing.T) {
	const rows, cols, k = 30, 60, 7
	a := lowRankMatrix(rows, cols, k, 307)

	for name, d := range osidDrivers() {
		t.Run(name, func(t *testing.T) {
			z, js, err := d.ColumnID(a, k, 4, sketch.NewRNG(308))
			require.NoError(t, err)
			assertValidIndexSet(t, js, k, cols)

			zr, zc := z.Dims()
			assert.Equal(t, k, zr)
			assert.Equal(t, cols, zc)

			for j, col := range js {
				for ii := 0; ii < k; ii++ {
					want := 0.0
					if ii == j {
						want = 1.0
					}
					assert.InDelta(t, want, z.At(ii, col), 1e-10)
				}
			}

			var approx mat.Dense
			approx.Mul(selectCols(a, js), z)
			assert.Less(t, relErr(a, &approx), 1e-9)
		})
	}
}

func TestOneSidedIDNearLowRank(t *testing.T) {
	// perturb an exactly low-rank matrix; the ID error must track the
	// perturbation scale rather than blow up
	const rows, cols, k = 80, 40, 6
	a := lowRankMatrix(rows, cols, k, 311)
	rng := sketch.NewRNG(312)
	noise := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			noise.Set(i, j, 1e-8*rng.NormFloat64())
		}
	}
	var pert mat.Dense
	pert.Add(a, noise)

	x, is, err := NewQRCPOneSidedID(3).RowID(&pert, k, 5, sketch.NewRNG(313))
	require.NoError(t, err)
	var approx mat.Dense
	approx.Mul(x, selectRows(&pert, is))
	assert.Less(t, relErr(&pert, &approx), 1e-5)
}

func TestOneSidedIDRankTooLarge(t *testing.T) {
	a := lowRankMatrix(10, 8, 3, 317)
	_, _, err := NewQRCPOneSidedID(2).RowID(a, 11, 0, sketch.NewRNG(318))
	assert.ErrorIs(t, err, ErrRankTooLarge)
}

func TestTwoSidedID(t *testing.T) {
	const k = 5
	for name, dims := range map[string][2]int{
		"tall": {50, 24},
		"wide": {24, 50},
	} {
		t.Run(name, func(t *testing.T) {
			a := lowRankMatrix(dims[0], dims[1], k, 331)
			x, is, z, js, err := NewTwoSidedID(2).Factor(a, k, 4, sketch.NewRNG(332))
			require.NoError(t, err)
			assertValidIndexSet(t, is, k, dims[0])
			assertValidIndexSet(t, js, k, dims[1])

			core := selectCols(selectRows(a, is), js)
			var tmp, approx mat.Dense
			tmp.Mul(x, core)
			approx.Mul(&tmp, z)
			assert.Less(t, relErr(a, &approx), 1e-8)
		})
	}
}

func TestCUR(t *testing.T) {
	const k = 5
	for name, dims := range map[string][2]int{
		"tall": {50, 24},
		"wide": {24, 50},
	} {
		t.Run(name, func(t *testing.T) {
			a := lowRankMatrix(dims[0], dims[1], k, 337)
			js, u, is, err := NewCUR(2).Factor(a, k, 4, sketch.NewRNG(338))
			require.NoError(t, err)
			assertValidIndexSet(t, is, k, dims[0])
			assertValidIndexSet(t, js, k, dims[1])

			ur, uc := u.Dims()
			assert.Equal(t, k, ur)
			assert.Equal(t, k, uc)

			var tmp, approx mat.Dense
			tmp.Mul(selectCols(a, js), u)
			approx.Mul(&tmp, selectRows(a, is))
			assert.Less(t, relErr(a, &approx), 1e-8)
		})
	}
}

func TestSelectHelpers(t *testing.T) {
	a := mat.NewDense(3, 2, []float64{
		1, 2,
		3, 4,
		5, 6,
	})
	rows := selectRows(a, []int{2, 0})
	assert.Equal(t, 5.0, rows.At(0, 0))
	assert.Equal(t, 2.0, rows.At(1, 1))

	cols := selectCols(a, []int{1})
	r, c := cols.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 1, c)
	assert.Equal(t, 4.0, cols.At(1, 0))
}
