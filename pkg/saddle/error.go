package saddle

import "errors"

// ErrNotImplemented signals an unsupported solver configuration,
// ex: upper-triangular preconditioner orientation in PcSS1.
// It is raised before any computation starts.
var ErrNotImplemented = errors.New("configuration not implemented")

// ErrBothBlocksNonzero signals that both right-hand-side blocks b and c
// were nonzero where exactly one is allowed.
var ErrBothBlocksNonzero = errors.New(`one of "b" or "c" must be zero`)

// ErrZeroRHS signals that both right-hand-side blocks are absent.
var ErrZeroRHS = errors.New(`at least one of "b" or "c" must be nonzero`)

// ErrRankDeficientSketch signals that the sketch factorization
// found no singular values above the numerical-rank cutoff.
var ErrRankDeficientSketch = errors.New("sketch is numerically rank-zero")
