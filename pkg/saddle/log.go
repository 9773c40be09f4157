package saddle

import (
	"time"

	"github.com/rs/zerolog"
)

// SketchAndPrecondLog collects stage timings and the error trace of one
// sketch-and-precondition solve.  It is a pure data sink: the drivers
// write it, nothing in the solve path reads it back.
type SketchAndPrecondLog struct {
	TimeSketch   time.Duration
	TimeFactor   time.Duration
	TimeConvert  time.Duration
	TimePresolve time.Duration
	TimeIterate  time.Duration

	// Errors is the per-iteration error trace of the iterative phase;
	// ErrorDesc documents the metric it records, which differs per
	// algorithm.  RefNorm is the reference norm the trace can be
	// normalized against.
	Errors    []float64
	ErrorDesc string
	RefNorm   float64
}

// WrapUp stores the error trace and its reference norm.
func (l *SketchAndPrecondLog) WrapUp(errs []float64, refNorm float64) {
	l.Errors = errs
	l.RefNorm = refNorm
}

// Emit writes a summary event to the given logger.
func (l *SketchAndPrecondLog) Emit(logger zerolog.Logger) {
	ev := logger.Debug().
		Dur("durSketch", l.TimeSketch).
		Dur("durFactor", l.TimeFactor).
		Dur("durConvert", l.TimeConvert).
		Dur("durPresolve", l.TimePresolve).
		Dur("durIterate", l.TimeIterate).
		Int("iterations", len(l.Errors))
	if len(l.Errors) > 0 && l.RefNorm > 0 {
		ev = ev.Float64("relativeError", l.Errors[len(l.Errors)-1]/l.RefNorm)
	}
	ev.Msg("finished")
}
