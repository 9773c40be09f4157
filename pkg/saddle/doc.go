// Package saddle implements sketch-and-precondition solvers for
// regularized saddle-point systems
//
//	[  I   |     A   ] [y] = [b]
//	[  A'  | -delta*I] [x]   [c]
//
// with A tall (m >= n) and delta >= 0.  The x block of a solution is
// characterized by the normal equations
//
//	(A'A + delta*I) x = A'b - c.
//
// The package has two layers.  The iterative refinement solvers
// (PcSS1, PcSS2, PcSS3) consume a preconditioner R derived from a
// random sketch of A and drive the residual of the normal equations
// below a tolerance.  The drivers (SPS1, SPS2) build that sketch,
// factor it, attempt a direct presolve, and hand off to an iterative
// solver, timing every stage.
package saddle
