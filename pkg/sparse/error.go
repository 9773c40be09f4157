package sparse

import (
	"errors"
	"fmt"
)

// ErrDimensionMismatch signals a dimension mismatch
// between related data structures,
// ex: a matrix and the vector it multiplies.
var ErrDimensionMismatch = errors.New("dimension mismatch")

// IndexOutOfBoundsError signals an entry index outside the matrix dimensions.
type IndexOutOfBoundsError struct {
	Index, Bound int
}

func (e IndexOutOfBoundsError) Error() string {
	return fmt.Sprintf("index %d out of bounds [0..%d)", e.Index, e.Bound)
}
