package main

import (
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sanbench/internal/analyzer"
	"github.com/sanbench/internal/output"
)

var breakdownCmd = &cobra.Command{
	Use:   "breakdown <directory>",
	Short: "Splits sanitizer time into compile stages and execution",
	Long: `Reads one subdirectory per case, each holding compile.txt (per-stage
"took N seconds" lines) and execution.txt (kernel elapsed times), plus the
optional z3.txt and end_to_end.txt. Reports each stage as a share of the
compute-sanitizer end-to-end time next to the triton-sanitizer run.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return analyzeBreakdown(cmd.OutOrStdout(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(breakdownCmd)
}

func loadBreakdowns(dir string) ([]analyzer.Breakdown, error) {
	cases, err := analyzer.LoadBreakdowns(dir)
	if err != nil {
		return nil, err
	}
	if len(cases) == 0 {
		return nil, errors.Errorf("no case directories with %s and %s under %s", analyzer.CompileFile, analyzer.ExecutionFile, dir)
	}
	return cases, nil
}

func analyzeBreakdown(w io.Writer, dir string) error {
	cases, err := loadBreakdowns(dir)
	if err != nil {
		return err
	}
	output.WriteBreakdown(w, cases)
	return nil
}
