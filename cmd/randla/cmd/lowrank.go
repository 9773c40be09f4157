package cmd

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/rileyjmurray/randla/pkg/lowrank"
	"github.com/rileyjmurray/randla/pkg/sketch"
	"github.com/rileyjmurray/randla/pkg/util"
)

var (
	// lowrankCmd represents the lowrank command
	lowrankCmd = &cobra.Command{
		Use:   "lowrank",
		Short: "Compute a randomized interpolative or CUR decomposition.",
		Long: `Compute a rank-k factorization of a CSV matrix.  The kind
flag selects a row ID, column ID, two-sided ID, or CUR decomposition.
Skeleton indices go to stdout; the coefficient factors go to CSV files
named after the output prefix.`,
		Args: cobra.MatchAll(cobra.NoArgs),
		RunE: runLowrank,
	}
	lrMatrixFilename string
	lrKind           string
	lrOutputPrefix   string
	lrRank           int
	lrOver           int
	lrPasses         int
	lrSeed           uint64
)

func init() {
	rootCmd.AddCommand(lowrankCmd)
	lowrankCmd.Flags().StringVarP(&lrMatrixFilename, "matrix", "A", "",
		"data matrix CSV file (required)")
	lowrankCmd.Flags().StringVarP(&lrKind, "kind", "k", "cur",
		`decomposition kind: "rowid", "colid", "twosided", or "cur"`)
	lowrankCmd.Flags().StringVarP(&lrOutputPrefix, "output-prefix", "o",
		"factor",
		"prefix for the output CSV files")
	lowrankCmd.Flags().IntVarP(&lrRank, "rank", "r", 10,
		"target rank")
	lowrankCmd.Flags().IntVar(&lrOver, "oversample", 5,
		"sketch oversampling amount")
	lowrankCmd.Flags().IntVar(&lrPasses, "passes", 2,
		"data passes during sketching")
	lowrankCmd.Flags().Uint64Var(&lrSeed, "seed", 0,
		"random seed for the sketch operator")
	util.Must(0, lowrankCmd.MarkFlagRequired("matrix"))
}

func writeMatrixCSV(filename string, m *mat.Dense) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	rows, cols := m.Dims()
	record := make([]string, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			record[j] = strconv.FormatFloat(m.At(i, j), 'g', -1, 64)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeIndexCSV(filename string, idx []int) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	for _, i := range idx {
		if err := w.Write([]string{strconv.Itoa(i)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func runLowrank(cmd *cobra.Command, args []string) error {
	a, err := loadMatrixCSV(lrMatrixFilename)
	if err != nil {
		return err
	}
	rows, cols := a.Dims()
	logger.Info().
		Int("rows", rows).
		Int("cols", cols).
		Str("kind", lrKind).
		Int("rank", lrRank).
		Msg("loaded data matrix")
	rng := sketch.NewRNG(lrSeed)

	switch lrKind {
	case "rowid":
		x, is, err := lowrank.NewQRCPOneSidedID(lrPasses).
			RowID(a, lrRank, lrOver, rng)
		if err != nil {
			return err
		}
		if err = writeMatrixCSV(lrOutputPrefix+"_x.csv", x); err != nil {
			return err
		}
		return writeIndexCSV(lrOutputPrefix+"_is.csv", is)
	case "colid":
		z, js, err := lowrank.NewQRCPOneSidedID(lrPasses).
			ColumnID(a, lrRank, lrOver, rng)
		if err != nil {
			return err
		}
		if err = writeMatrixCSV(lrOutputPrefix+"_z.csv", z); err != nil {
			return err
		}
		return writeIndexCSV(lrOutputPrefix+"_js.csv", js)
	case "twosided":
		x, is, z, js, err := lowrank.NewTwoSidedID(lrPasses).
			Factor(a, lrRank, lrOver, rng)
		if err != nil {
			return err
		}
		if err = writeMatrixCSV(lrOutputPrefix+"_x.csv", x); err != nil {
			return err
		}
		if err = writeMatrixCSV(lrOutputPrefix+"_z.csv", z); err != nil {
			return err
		}
		if err = writeIndexCSV(lrOutputPrefix+"_is.csv", is); err != nil {
			return err
		}
		return writeIndexCSV(lrOutputPrefix+"_js.csv", js)
	case "cur":
		js, u, is, err := lowrank.NewCUR(lrPasses).
			Factor(a, lrRank, lrOver, rng)
		if err != nil {
			return err
		}
		if err = writeMatrixCSV(lrOutputPrefix+"_u.csv", u); err != nil {
			return err
		}
		if err = writeIndexCSV(lrOutputPrefix+"_is.csv", is); err != nil {
			return err
		}
		return writeIndexCSV(lrOutputPrefix+"_js.csv", js)
	default:
		return errors.Errorf("unknown decomposition kind %#v", lrKind)
	}
}
