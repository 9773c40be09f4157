package cmd

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/rileyjmurray/randla/pkg/linops"
	"github.com/rileyjmurray/randla/pkg/saddle"
	"github.com/rileyjmurray/randla/pkg/sketch"
	"github.com/rileyjmurray/randla/pkg/util"
)

var (
	// solveCmd represents the solve command
	solveCmd = &cobra.Command{
		Use:   "solve",
		Short: "Solve a regularized least-squares problem.",
		Long: `Solve min ||Ax - b||^2 + delta ||x||^2 - 2 c'x with a
sketch-and-precondition method.  A is read from CSV (one matrix row per
record), b and c from single-column CSV files.`,
		Args: cobra.MatchAll(cobra.NoArgs),
		RunE: runSolve,
	}
	matrixFilename string
	bFilename      string
	cFilename      string
	outputFilename string
	method         string
	delta          float64
	tol            float64
	iterLim        int
	samplingFactor float64
	vecNNZ         int
	seed           uint64
)

func init() {
	rootCmd.AddCommand(solveCmd)
	solveCmd.Flags().StringVarP(&matrixFilename, "matrix", "A", "",
		"data matrix CSV file (required)")
	solveCmd.Flags().StringVarP(&bFilename, "rhs", "b", "",
		"right-hand side vector CSV file")
	solveCmd.Flags().StringVarP(&cFilename, "gradient", "c", "",
		"linear term vector CSV file")
	solveCmd.Flags().StringVarP(&outputFilename, "output", "o", "-",
		"output CSV file for x (- means stdout)")
	solveCmd.Flags().StringVarP(&method, "method", "m", "pcg",
		`iterative method: "pcg", "lsqr", or "newton"`)
	solveCmd.Flags().Float64VarP(&delta, "delta", "d", 0,
		"ridge regularization parameter (>= 0)")
	solveCmd.Flags().Float64VarP(&tol, "tol", "t", 1e-8,
		"relative error tolerance")
	solveCmd.Flags().IntVarP(&iterLim, "iter-lim", "i", 200,
		"iteration limit for the refinement phase")
	solveCmd.Flags().Float64Var(&samplingFactor, "sampling-factor", 3,
		"sketch size as a multiple of the column count")
	solveCmd.Flags().IntVar(&vecNNZ, "vec-nnz", 8,
		"nonzeros per column of the sparse-sign sketch")
	solveCmd.Flags().Uint64Var(&seed, "seed", 0,
		"random seed for the sketch operator")
	util.Must(0, solveCmd.MarkFlagRequired("matrix"))
}

func loadMatrixCSV(filename string) (*mat.Dense, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := util.ReadDenseCSV(csv.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %s", filename)
	}
	return m, nil
}

func loadVectorCSV(filename string) ([]float64, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	v, err := util.ReadVectorCSV(csv.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %s", filename)
	}
	return v, nil
}

func writeVectorCSV(filename string, v []float64) error {
	f := os.Stdout
	if filename != "-" {
		var err error
		f, err = os.Create(filename)
		if err != nil {
			return err
		}
		defer f.Close()
	}
	w := csv.NewWriter(f)
	for _, x := range v {
		if err := w.Write([]string{
			strconv.FormatFloat(x, 'g', -1, 64),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func runSolve(cmd *cobra.Command, args []string) error {
	a, err := loadMatrixCSV(matrixFilename)
	if err != nil {
		return err
	}
	m, n := a.Dims()
	logger.Info().
		Int("rows", m).
		Int("cols", n).
		Str("method", method).
		Msg("loaded data matrix")

	var b, c []float64
	if bFilename != "" {
		if b, err = loadVectorCSV(bFilename); err != nil {
			return err
		}
		if len(b) != m {
			return errors.Errorf("rhs has %d entries, want %d", len(b), m)
		}
	}
	if cFilename != "" {
		if c, err = loadVectorCSV(cFilename); err != nil {
			return err
		}
		if len(c) != n {
			return errors.Errorf("gradient has %d entries, want %d", len(c), n)
		}
	}
	if delta < 0 {
		return errors.Errorf("delta must be nonnegative, got %g", delta)
	}

	ctx := logger.WithContext(cmd.Context())
	x, _, log, err := saddle.SPS(
		ctx, linops.DenseOp{M: a}, b, c, delta, tol, iterLim,
		sketch.NewRNG(seed), samplingFactor, vecNNZ, method,
	)
	if err != nil {
		return err
	}
	logger.Info().
		Int("iterations", len(log.Errors)).
		Dur("durIterate", log.TimeIterate).
		Msg("solve finished")
	return writeVectorCSV(outputFilename, x)
}
