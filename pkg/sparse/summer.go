package sparse

import "math"

// KBNSummer is the Kahan-Babushka-Neumaier compensated summation algorithm.
type KBNSummer struct {
	sum, compensation float64
}

func (s *KBNSummer) Add(value float64) {
	moreSig, lessSig := s.sum, value
	if math.Abs(moreSig) < math.Abs(lessSig) {
		moreSig, lessSig = lessSig, moreSig
	}
	s.sum += value
	// Recover the low-order bits of lessSig that were truncated when its
	// exponent was brought up to moreSig's, and fold them back in.
	truncatedLessSig := s.sum - moreSig
	s.compensation += lessSig - truncatedLessSig
}

func (s *KBNSummer) Sum() float64 {
	return s.sum + s.compensation
}

// Dot computes the dot product of two equal-length dense slices
// with compensated summation.
func Dot(x, y []float64) float64 {
	var summer KBNSummer
	for i := range x {
		summer.Add(x[i] * y[i])
	}
	return summer.Sum()
}

// Norm2 returns the 2-norm of a dense slice with compensated summation.
func Norm2(x []float64) float64 {
	var summer KBNSummer
	for _, v := range x {
		summer.Add(v * v)
	}
	return math.Sqrt(summer.Sum())
}
