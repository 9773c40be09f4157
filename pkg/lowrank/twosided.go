package lowrank

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/rileyjmurray/randla/pkg/linops"
)

// TwoSidedID computes a rank-k double interpolative decomposition
//
//	A ~= X @ A[Is, Js] @ Z
//
// by running a one-sided ID along the shorter axis, then extending it
// deterministically along the other (Voronin & Martinsson, 2016,
// Sections 2.4 and 4).
type TwoSidedID struct {
	OSID OneSidedID
}

// NewTwoSidedID builds a two-sided ID driver on top of the QRCP
// one-sided ID with numPasses data passes.
func NewTwoSidedID(numPasses int) *TwoSidedID {
	return &TwoSidedID{OSID: NewQRCPOneSidedID(numPasses)}
}

// Factor returns (X, Is, Z, Js) with X of shape rows(A)-by-k,
// Z of shape k-by-cols(A), and Is, Js index vectors of length k.
func (d *TwoSidedID) Factor(
	a *mat.Dense, k, over int, rng *rand.Rand,
) (x *mat.Dense, is []int, z *mat.Dense, js []int, err error) {
	rows, cols := a.Dims()
	if rows > cols {
		z, js, err = d.OSID.ColumnID(a, k, over, rng)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		x, is, err = qrcpOSIDRows(selectCols(a, js), k)
	} else {
		x, is, err = d.OSID.RowID(a, k, over, rng)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		z, js, err = qrcpOSIDColumns(selectRows(a, is), k)
	}
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return x, is, z, js, nil
}

// CUR computes a rank-k CUR decomposition
//
//	A ~= A[:, Js] @ U @ A[Is, :]
//
// from a one-sided ID plus a pivoted-QR row/column selection.
type CUR struct {
	OSID OneSidedID
}

// NewCUR builds a CUR driver on top of the QRCP one-sided ID with
// numPasses data passes.
func NewCUR(numPasses int) *CUR {
	return &CUR{OSID: NewQRCPOneSidedID(numPasses)}
}

// Factor returns (Js, U, Is) so that selectCols(A, Js) @ U @
// selectRows(A, Is) approximates A.
func (d *CUR) Factor(
	a *mat.Dense, k, over int, rng *rand.Rand,
) (js []int, u *mat.Dense, is []int, err error) {
	rows, cols := a.Dims()
	if rows > cols {
		var z *mat.Dense
		z, js, err = d.OSID.ColumnID(a, k, over, rng)
		if err != nil {
			return nil, nil, nil, err
		}
		// A ~= A[:, Js] @ Z; pick rows from the selected columns
		is = pivotPrefix(mat.DenseCopyOf(selectCols(a, js).T()), k)
		u, err = linops.ApplyPinvOnRight(z, selectRows(a, is))
		if err != nil {
			return nil, nil, nil, err
		}
		return js, u, is, nil
	}
	var x *mat.Dense
	x, is, err = d.OSID.RowID(a, k, over, rng)
	if err != nil {
		return nil, nil, nil, err
	}
	// A ~= X @ A[Is, :]; pick columns from the selected rows
	js = pivotPrefix(selectRows(a, is), k)
	u, err = linops.ApplyPinvOnLeft(x, selectCols(a, js))
	if err != nil {
		return nil, nil, nil, err
	}
	return js, u, is, nil
}
