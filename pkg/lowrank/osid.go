package lowrank

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/rileyjmurray/randla/pkg/linops"
	"github.com/rileyjmurray/randla/pkg/sketch"
)

// OneSidedID computes rank-k row or column interpolative decompositions.
//
// A RowID is a pair (X, Is) with A ~= X @ A[Is, :] and X[Is, :] the k-by-k
// identity.  A ColumnID is a pair (Z, Js) with A ~= A[:, Js] @ Z and
// Z[:, Js] the k-by-k identity.  over is the sketch oversampling amount.
type OneSidedID interface {
	RowID(a *mat.Dense, k, over int, rng *rand.Rand) (x *mat.Dense, is []int, err error)
	ColumnID(a *mat.Dense, k, over int, rng *rand.Rand) (z *mat.Dense, js []int, err error)
}

// QRCPOneSidedID is the sketch + QRCP approach to ID
// (Voronin & Martinsson, 2016, Section 5.1).
type QRCPOneSidedID struct {
	Sketcher sketch.RowSketcher
}

// NewQRCPOneSidedID builds a QRCP-based ID driver doing numPasses
// passes over the data during sketching.
func NewQRCPOneSidedID(numPasses int) *QRCPOneSidedID {
	return &QRCPOneSidedID{Sketcher: sketch.NewPowerSketcher(numPasses - 1)}
}

func (d *QRCPOneSidedID) RowID(
	a *mat.Dense, k, over int, rng *rand.Rand,
) (x *mat.Dense, is []int, err error) {
	sk := d.Sketcher.Sketch(linops.DenseOp{M: a}, k+over, rng)
	var y mat.Dense
	y.Mul(a, sk)
	return qrcpOSIDRows(&y, k)
}

func (d *QRCPOneSidedID) ColumnID(
	a *mat.Dense, k, over int, rng *rand.Rand,
) (z *mat.Dense, js []int, err error) {
	at := linops.Transpose(linops.DenseOp{M: a})
	sk := d.Sketcher.Sketch(at, k+over, rng)
	// y = sk' @ a sketches the column space of a
	y := linops.ApplyTransDense(linops.DenseOp{M: sk}, a)
	return qrcpOSIDColumns(y, k)
}

// LstsqOneSidedID is the sketch + QRCP-skeleton + least-squares
// approach to ID (Dong & Martinsson, 2021): the skeleton indices come
// from pivoted QR of the sketch, and the coefficient matrix solves a
// least-squares problem against the full data.
type LstsqOneSidedID struct {
	Sketcher sketch.RowSketcher
}

// NewLstsqOneSidedID builds a least-squares ID driver doing numPasses
// passes over the data during sketching.
func NewLstsqOneSidedID(numPasses int) *LstsqOneSidedID {
	return &LstsqOneSidedID{Sketcher: sketch.NewPowerSketcher(numPasses - 1)}
}

func (d *LstsqOneSidedID) RowID(
	a *mat.Dense, k, over int, rng *rand.Rand,
) (x *mat.Dense, is []int, err error) {
	sk := d.Sketcher.Sketch(linops.DenseOp{M: a}, k+over, rng)
	var y mat.Dense
	y.Mul(a, sk)
	is = pivotPrefix(mat.DenseCopyOf(y.T()), k)
	x, err = linops.ApplyPinvOnRight(a, selectRows(a, is))
	if err != nil {
		return nil, nil, err
	}
	return x, is, nil
}

func (d *LstsqOneSidedID) ColumnID(
	a *mat.Dense, k, over int, rng *rand.Rand,
) (z *mat.Dense, js []int, err error) {
	at := linops.Transpose(linops.DenseOp{M: a})
	sk := d.Sketcher.Sketch(at, k+over, rng)
	y := linops.ApplyTransDense(linops.DenseOp{M: sk}, a)
	js = pivotPrefix(y, k)
	z, err = linops.ApplyPinvOnLeft(a, selectCols(a, js))
	if err != nil {
		return nil, nil, err
	}
	return z, js, nil
}
