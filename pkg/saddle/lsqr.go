package saddle

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/rileyjmurray/randla/pkg/linops"
	"github.com/rileyjmurray/randla/pkg/sparse"
)

// lsqrParams collects the termination controls for lsqrSolve.
type lsqrParams struct {
	atol, btol float64
	conlim     float64
	iterLim    int
	// x0, when non-nil, warm-starts the solve: the bidiagonalization
	// runs on the shifted residual b - A x0 and x accumulates on top
	// of x0.
	x0 []float64
	// origXNorm selects the norm of the accumulated solution (true)
	// rather than the recurrence estimate for the shifted solution
	// (false) in the stopping tests.
	origXNorm bool
	// allowConsistent enables the consistent-system stopping test
	// (istop 1 and 4).  Disable it when the system is known to be
	// inconsistent, ex: regularized least squares.
	allowConsistent bool
}

// lsqrResult is the outcome of lsqrSolve.
//
// Istop follows the LSQR convention:
//
//	1  the system is consistent and x solves it to within btol
//	2  x solves the least-squares problem to within atol
//	3  the condition-number estimate exceeded conlim
//	4  the system is consistent and x solves it to machine precision
//	5  the least-squares problem is solved to machine precision
//	6  the condition-number estimate exceeded machine precision limits
//	7  the iteration limit was reached
type lsqrResult struct {
	x       []float64
	istop   int
	itn     int
	rnorm   float64
	anorm   float64
	acond   float64
	arnorm  float64
	xnorm   float64
	arnorms []float64
}

// lsqrSolve runs the Golub-Kahan bidiagonalization method LSQR
// on min ||a @ x - b||, damp-free.
// The arnorms trace records ||a' r|| at entry and after each iteration.
func lsqrSolve(a linops.LinOp, b []float64, p lsqrParams) lsqrResult {
	rows, cols := a.Dims()
	if len(b) != rows {
		panic(sparse.ErrDimensionMismatch)
	}

	ctol := 0.0
	if p.conlim > 0 {
		ctol = 1 / p.conlim
	}

	u := make([]float64, rows)
	v := make([]float64, cols)
	x := make([]float64, cols)
	w := make([]float64, cols)
	scratchRows := make([]float64, rows)
	scratchCols := make([]float64, cols)

	copy(u, b)
	bnorm := sparse.Norm2(b)
	if p.x0 != nil {
		copy(x, p.x0)
		a.Apply(scratchRows, x)
		floats.AddScaled(u, -1, scratchRows)
	}
	beta := sparse.Norm2(u)

	var alfa float64
	if beta > 0 {
		floats.Scale(1/beta, u)
		a.ApplyTrans(v, u)
		alfa = sparse.Norm2(v)
	} else {
		copy(v, x)
		alfa = 0
	}
	if alfa > 0 {
		floats.Scale(1/alfa, v)
	}
	copy(w, v)

	rhobar := alfa
	phibar := beta
	rnorm := beta
	arnorm := alfa * beta
	res := lsqrResult{
		x:       x,
		rnorm:   rnorm,
		arnorm:  arnorm,
		xnorm:   sparse.Norm2(x),
		arnorms: []float64{arnorm},
	}
	if arnorm == 0 {
		// x is already an exact solution of the normal equations
		return res
	}

	var (
		anorm, acond, ddnorm, xxnorm, z float64
		cs2                             = -1.0
		sn2                             float64
		istop, itn                      int
		xnorm                           float64
	)

	for itn < p.iterLim {
		itn++

		// continue the bidiagonalization:
		// u = a v - alfa u, v = a' u - beta v
		a.Apply(scratchRows, v)
		for i := range u {
			u[i] = scratchRows[i] - alfa*u[i]
		}
		beta = sparse.Norm2(u)
		if beta > 0 {
			floats.Scale(1/beta, u)
			anorm = math.Sqrt(anorm*anorm + alfa*alfa + beta*beta)
			a.ApplyTrans(scratchCols, u)
			for i := range v {
				v[i] = scratchCols[i] - beta*v[i]
			}
			alfa = sparse.Norm2(v)
			if alfa > 0 {
				floats.Scale(1/alfa, v)
			}
		}

		// plane rotation eliminating the subdiagonal element beta
		rho := math.Hypot(rhobar, beta)
		cs := rhobar / rho
		sn := beta / rho
		theta := sn * alfa
		rhobar = -cs * alfa
		phi := cs * phibar
		phibar = sn * phibar
		tau := sn * phi

		t1 := phi / rho
		t2 := -theta / rho
		for i := range x {
			ddnorm += (w[i] / rho) * (w[i] / rho)
			x[i] += t1 * w[i]
			w[i] = v[i] + t2*w[i]
		}

		// estimate the norm of the (shifted) solution
		delta := sn2 * rho
		gambar := -cs2 * rho
		rhs := phi - delta*z
		zbar := rhs / gambar
		xnorm = math.Sqrt(xxnorm + zbar*zbar)
		gamma := math.Hypot(gambar, theta)
		cs2 = gambar / gamma
		sn2 = theta / gamma
		z = rhs / gamma
		xxnorm += z * z
		if p.origXNorm {
			xnorm = sparse.Norm2(x)
		}

		acond = anorm * math.Sqrt(ddnorm)
		rnorm = phibar
		arnorm = alfa * math.Abs(tau)
		res.arnorms = append(res.arnorms, arnorm)

		test1 := rnorm / bnorm
		test2 := 0.0
		if anorm*rnorm > 0 {
			test2 = arnorm / (anorm * rnorm)
		}
		test3 := 1 / acond
		t := test1 / (1 + anorm*xnorm/bnorm)
		rtol := p.btol + p.atol*anorm*xnorm/bnorm

		// machine-precision tests first, then the user tolerances;
		// later assignments win, matching the LSQR priority order
		if itn >= p.iterLim {
			istop = 7
		}
		if 1+test3 <= 1 {
			istop = 6
		}
		if 1+test2 <= 1 {
			istop = 5
		}
		if p.allowConsistent && 1+t <= 1 {
			istop = 4
		}
		if test3 <= ctol {
			istop = 3
		}
		if test2 <= p.atol {
			istop = 2
		}
		if p.allowConsistent && test1 <= rtol {
			istop = 1
		}
		if istop != 0 {
			break
		}
	}

	res.istop = istop
	res.itn = itn
	res.rnorm = rnorm
	res.anorm = anorm
	res.acond = acond
	res.arnorm = arnorm
	res.xnorm = sparse.Norm2(x)
	return res
}
