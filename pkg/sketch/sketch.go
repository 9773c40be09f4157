// Package sketch generates random sketching operators:
// lower-dimensional random linear projections used to cheaply
// approximate the spectral properties of a large matrix.
//
// All randomness flows through an explicit *rand.Rand, constructed by
// NewRNG from a caller-supplied seed; nothing reads global random state,
// so independent callers with independent generators are reproducible
// and safe to run concurrently.
package sketch

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/rileyjmurray/randla/pkg/linops"
	"github.com/rileyjmurray/randla/pkg/sparse"
)

// NewRNG returns an owned random generator seeded with the given value.
func NewRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// Operator is a realized sketching map: a short-and-wide linear operator
// S with Dims() = (sketchDim, sourceDim), usable as S @ A and A @ S'.
type Operator interface {
	linops.LinOp
}

// Generator draws sketching operators of a requested shape.
// Implementations must take all randomness from rng.
type Generator interface {
	Generate(rowsNeeded, sourceDim int, rng *rand.Rand) Operator
}

// GaussianGen generates dense Gaussian sketching operators with
// entries drawn i.i.d. from N(0, 1/rowsNeeded).
type GaussianGen struct{}

func (GaussianGen) Generate(rowsNeeded, sourceDim int, rng *rand.Rand) Operator {
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}
	scale := 1 / math.Sqrt(float64(rowsNeeded))
	data := make([]float64, rowsNeeded*sourceDim)
	for i := range data {
		data[i] = scale * normal.Rand()
	}
	return linops.DenseOp{M: mat.NewDense(rowsNeeded, sourceDim, data)}
}

// SparseSignGen generates sparse sign ("sparse Johnson-Lindenstrauss")
// operators: each source column receives VecNNZ entries of value
// +-1/sqrt(VecNNZ) at uniformly chosen sketch rows.
type SparseSignGen struct {
	// VecNNZ is the number of nonzeros per source column.
	VecNNZ int
}

func (g SparseSignGen) Generate(rowsNeeded, sourceDim int, rng *rand.Rand) Operator {
	nnz := g.VecNNZ
	if nnz <= 0 {
		nnz = 8
	}
	if nnz > rowsNeeded {
		nnz = rowsNeeded
	}
	value := 1 / math.Sqrt(float64(nnz))
	entries := make([]sparse.CooEntry, 0, nnz*sourceDim)
	rows := make([]int, rowsNeeded)
	for i := range rows {
		rows[i] = i
	}
	for col := 0; col < sourceDim; col++ {
		// partial Fisher-Yates: the first nnz slots become the
		// chosen sketch rows, sampled without replacement
		for i := 0; i < nnz; i++ {
			j := i + rng.Intn(rowsNeeded-i)
			rows[i], rows[j] = rows[j], rows[i]
			v := value
			if rng.Intn(2) == 0 {
				v = -value
			}
			entries = append(entries, sparse.CooEntry{
				Row:    rows[i],
				Column: col,
				Value:  v,
			})
		}
	}
	m, err := sparse.NewMatrixFromEntries(rowsNeeded, sourceDim, entries)
	if err != nil {
		panic(err) // entries are in bounds by construction
	}
	return linops.SparseOp{M: m}
}

// DenseForm realizes a sketching operator as a dense matrix.
func DenseForm(s Operator) *mat.Dense {
	rows, cols := s.Dims()
	switch ss := s.(type) {
	case linops.DenseOp:
		return ss.M
	case linops.SparseOp:
		buf := make([]float64, rows*cols)
		if err := ss.M.Dense(buf); err != nil {
			panic(err)
		}
		return mat.NewDense(rows, cols, buf)
	}
	out := mat.NewDense(rows, cols, nil)
	ei := make([]float64, cols)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		ei[j] = 1
		s.Apply(col, ei)
		ei[j] = 0
		out.SetCol(j, col)
	}
	return out
}

// SketchDense computes S @ A as a dense matrix.
// Sparse sketching operators multiply row-by-row against dense data;
// opaque operators fall back to one adjoint pass of A per sketch row.
func SketchDense(s Operator, a linops.LinOp) *mat.Dense {
	d, srcDim := s.Dims()
	aRows, n := a.Dims()
	if srcDim != aRows {
		panic(sparse.ErrDimensionMismatch)
	}
	if ad, ok := a.(linops.DenseOp); ok {
		switch ss := s.(type) {
		case linops.DenseOp:
			out := mat.NewDense(d, n, nil)
			out.Mul(ss.M, ad.M)
			return out
		case linops.SparseOp:
			out := mat.NewDense(d, n, nil)
			for row, span := range ss.M.Rows {
				dst := out.RawRowView(row)
				for _, e := range span {
					src := ad.M.RawRowView(e.Index)
					for j := range dst {
						dst[j] += e.Value * src[j]
					}
				}
			}
			return out
		}
	}
	// (S A)' column i is A' applied to row i of S.
	out := mat.NewDense(d, n, nil)
	ei := make([]float64, d)
	sRow := make([]float64, srcDim)
	col := make([]float64, n)
	for i := 0; i < d; i++ {
		ei[i] = 1
		s.ApplyTrans(sRow, ei)
		ei[i] = 0
		a.ApplyTrans(col, sRow)
		out.SetRow(i, col)
	}
	return out
}
