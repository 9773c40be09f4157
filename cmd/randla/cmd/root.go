package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "randla",
		Short: "Randomized numerical linear algebra CLI",
		Long: `randla solves regularized least-squares and saddle-point
problems with sketch-and-precondition methods, and computes randomized
low-rank (ID/CUR) factorizations.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var logWriter io.Writer
			switch logFile {
			case "-":
				logWriter = os.Stdout
			case "":
				logWriter = zerolog.NewConsoleWriter(
					func(w *zerolog.ConsoleWriter) {
						w.Out = os.Stderr
						w.TimeFormat = "2006-01-02T15:04:05.000000000Z07:00"
					})
			default:
				w, err := os.OpenFile(logFile,
					os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o0777)
				if err != nil {
					return fmt.Errorf("cannot open log file: %w", err)
				}
				logWriter = w
			}
			logger = zerolog.New(logWriter).With().Timestamp().Logger()
			if verbose {
				logger = logger.Level(zerolog.TraceLevel)
			} else {
				logger = logger.Level(zerolog.InfoLevel)
			}
			zerolog.DefaultContextLogger = &logger
			return nil
		},
	}
	logFile string
	verbose bool
	logger  zerolog.Logger
)

func Execute() {
	zerolog.TimeFieldFormat = "2006-01-02T15:04:05.000000000Z07:00"
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"log file (- means stdout; default: colorized stderr)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable trace-level logging")
}
