// Package sparse implements compressed sparse matrices
// with the dense-slice products needed by the randomized solvers:
// sketching operators are applied to dense data,
// so products map sparse-by-dense-vector to dense-vector.
package sparse

import (
	"sort"
)

// Matrix is a compressed sparse row (CSR) matrix.
//
// (Shallow-)copying Matrix is lightweight.
type Matrix struct {
	RowDim, ColDim int

	// Rows[i] holds row i's entries, sorted by column index.
	Rows [][]Entry
}

// NewMatrixFromEntries creates a new CSR matrix
// of the given dimensions from coordinate-format entries.
// Zero-valued entries are dropped; duplicate coordinates are summed.
func NewMatrixFromEntries(
	rows, cols int, entries []CooEntry,
) (*Matrix, error) {
	m := &Matrix{
		RowDim: rows,
		ColDim: cols,
		Rows:   make([][]Entry, rows),
	}
	for _, e := range entries {
		if e.Row < 0 || e.Row >= rows {
			return nil, IndexOutOfBoundsError{Index: e.Row, Bound: rows}
		}
		if e.Column < 0 || e.Column >= cols {
			return nil, IndexOutOfBoundsError{Index: e.Column, Bound: cols}
		}
		if e.Value == 0 {
			continue
		}
		m.Rows[e.Row] = append(m.Rows[e.Row], Entry{
			Index: e.Column,
			Value: e.Value,
		})
	}
	for i, span := range m.Rows {
		sort.Sort(EntriesByIndex(span))
		m.Rows[i] = coalesce(span)
	}
	return m, nil
}

// coalesce sums runs of entries sharing an index; span must be sorted.
func coalesce(span []Entry) []Entry {
	out := span[:0]
	for _, e := range span {
		if len(out) > 0 && out[len(out)-1].Index == e.Index {
			out[len(out)-1].Value += e.Value
			continue
		}
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Dims returns the row and column dimensions.
func (m *Matrix) Dims() (rows, cols int) { return m.RowDim, m.ColDim }

// NNZ returns the number of nonzero entries.
func (m *Matrix) NNZ() int {
	nnz := 0
	for _, span := range m.Rows {
		nnz += len(span)
	}
	return nnz
}

// Transpose returns the transpose as a new CSR matrix.
func (m *Matrix) Transpose() *Matrix {
	t := &Matrix{
		RowDim: m.ColDim,
		ColDim: m.RowDim,
		Rows:   make([][]Entry, m.ColDim),
	}
	for row, span := range m.Rows {
		for _, e := range span {
			t.Rows[e.Index] = append(t.Rows[e.Index], Entry{
				Index: row,
				Value: e.Value,
			})
		}
	}
	// Row-major traversal of m emits each transposed row
	// in increasing column (= original row) order already.
	return t
}

// MulVec stores m @ src into dst.  dst must have length m.RowDim
// and src length m.ColDim; dst and src must not alias.
func (m *Matrix) MulVec(dst, src []float64) error {
	if len(src) != m.ColDim || len(dst) != m.RowDim {
		return ErrDimensionMismatch
	}
	for row, span := range m.Rows {
		var summer KBNSummer
		for _, e := range span {
			summer.Add(e.Value * src[e.Index])
		}
		dst[row] = summer.Sum()
	}
	return nil
}

// MulTransVec stores m' @ src into dst.  dst must have length m.ColDim
// and src length m.RowDim; dst and src must not alias.
func (m *Matrix) MulTransVec(dst, src []float64) error {
	if len(src) != m.RowDim || len(dst) != m.ColDim {
		return ErrDimensionMismatch
	}
	for i := range dst {
		dst[i] = 0
	}
	for row, span := range m.Rows {
		s := src[row]
		if s == 0 {
			continue
		}
		for _, e := range span {
			dst[e.Index] += e.Value * s
		}
	}
	return nil
}

// Dense writes the dense form of m into the given row-major buffer,
// which must have length RowDim*ColDim.
func (m *Matrix) Dense(buf []float64) error {
	if len(buf) != m.RowDim*m.ColDim {
		return ErrDimensionMismatch
	}
	for i := range buf {
		buf[i] = 0
	}
	for row, span := range m.Rows {
		base := row * m.ColDim
		for _, e := range span {
			buf[base+e.Index] = e.Value
		}
	}
	return nil
}
