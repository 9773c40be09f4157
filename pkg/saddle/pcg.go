package saddle

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// pcg runs preconditioned conjugate gradients on gram @ x = rhs,
// where gram applies a symmetric positive (semi-)definite operator and
// pre applies the preconditioner.  x holds the initial iterate on entry
// and the final iterate on return.
//
// The returned trace records, per iteration, the 2-norm of the
// preconditioned residual sqrt(r'z) with z = pre(r); iteration stops
// when it falls below tol relative to the preconditioned right-hand
// side, or at iterLim.
func pcg(
	gram, pre func(dst, src []float64),
	rhs []float64, iterLim int, tol float64, x []float64,
) []float64 {
	n := len(rhs)
	r := make([]float64, n)
	z := make([]float64, n)
	p := make([]float64, n)
	gp := make([]float64, n)

	pre(z, rhs)
	refNorm := sqrtNonNeg(floats.Dot(rhs, z))
	threshold := tol * refNorm

	// r = rhs - gram(x)
	gram(gp, x)
	copy(r, rhs)
	floats.AddScaled(r, -1, gp)
	pre(z, r)
	copy(p, z)
	rho := floats.Dot(r, z)

	trace := make([]float64, 0, iterLim+1)
	trace = append(trace, sqrtNonNeg(rho))
	if trace[0] <= threshold {
		return trace
	}

	for it := 0; it < iterLim; it++ {
		gram(gp, p)
		den := floats.Dot(p, gp)
		if den <= 0 {
			// loss of positive definiteness; return the best iterate
			break
		}
		alpha := rho / den
		floats.AddScaled(x, alpha, p)
		floats.AddScaled(r, -alpha, gp)
		pre(z, r)
		rhoNext := floats.Dot(r, z)
		err := sqrtNonNeg(rhoNext)
		trace = append(trace, err)
		if err <= threshold {
			break
		}
		beta := rhoNext / rho
		for i := range p {
			p[i] = z[i] + beta*p[i]
		}
		rho = rhoNext
	}
	return trace
}

func sqrtNonNeg(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}
