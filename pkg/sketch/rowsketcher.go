package sketch

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/rileyjmurray/randla/pkg/linops"
)

// RowSketcher produces data-aware sketching blocks S (cols(A)-by-k)
// so that A @ S captures the dominant row space of A.
type RowSketcher interface {
	Sketch(a linops.LinOp, k int, rng *rand.Rand) *mat.Dense
}

// PowerSketcher refines an oblivious sketch with power iterations:
// S <- A'(A S), re-orthonormalizing every PassesPerStab products
// to keep the columns from collapsing onto the top singular direction.
type PowerSketcher struct {
	Gen Generator
	// NumPass is the number of extra multiplications with A or A'
	// after the initial A @ S product the caller will perform.
	NumPass int
	// PassesPerStab controls how many products run between
	// orthonormalizations.  Values below 1 behave as 1.
	PassesPerStab int
}

// NewPowerSketcher returns a PowerSketcher with a Gaussian base sketch.
func NewPowerSketcher(numPass int) *PowerSketcher {
	return &PowerSketcher{
		Gen:           GaussianGen{},
		NumPass:       numPass,
		PassesPerStab: 1,
	}
}

func (ps *PowerSketcher) Sketch(a linops.LinOp, k int, rng *rand.Rand) *mat.Dense {
	_, n := a.Dims()
	op := ps.Gen.Generate(k, n, rng)
	s := mat.DenseCopyOf(DenseForm(op).T())

	passesPerStab := ps.PassesPerStab
	if passesPerStab < 1 {
		passesPerStab = 1
	}
	sinceStab := 0
	passes := 0
	for passes+2 <= ps.NumPass {
		y := linops.ApplyDense(a, s)
		s = linops.ApplyTransDense(a, y)
		passes += 2
		sinceStab += 2
		if sinceStab >= passesPerStab && passes+2 <= ps.NumPass {
			s = linops.Orth(s)
			sinceStab = 0
		}
	}
	return s
}
