package main

import (
	"io"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sanbench/internal/analyzer"
	"github.com/sanbench/internal/output"
)

const defaultResultsCSV = "test_results.csv"

var overheadCmd = &cobra.Command{
	Use:   "overhead [csv]",
	Short: "Reports end-to-end sanitizer overhead per cache setting",
	Long: `Divides each sanitizer's wall time by the baseline wall time, row by row,
for the four compilation cache and allocator settings, and prints the
average, median and range of the ratios.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := readResults(args)
		if err != nil {
			return err
		}
		for _, s := range analyzer.EndToEndSettings {
			warnMissing(t, s.Baseline, s.Compute, s.Triton)
		}
		output.WriteEndToEnd(cmd.OutOrStdout(), analyzer.EndToEndOverhead(t))
		return nil
	},
}

var kernelOverheadCmd = &cobra.Command{
	Use:   "kernel-overhead [csv]",
	Short: "Reports kernel-only sanitizer overhead",
	Long: `Divides each sanitizer's kernel time by the baseline kernel time, row by
row, and prints the ratio statistics overall and per test suite.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := readResults(args)
		if err != nil {
			return err
		}
		warnMissing(t, analyzer.KernelBaselineCol, analyzer.KernelComputeCol, analyzer.KernelTritonCol)
		output.WriteKernelOverhead(cmd.OutOrStdout(), analyzer.KernelOnlyOverhead(t))
		return nil
	},
}

var speedupOutDir string

var speedupCmd = &cobra.Command{
	Use:   "speedup [csv]",
	Short: "Reports the speedup of each cache level over no caching",
	Long: `Divides the uncached ablation kernel time by each cached one, for rows
where all five ablation times are positive, and writes the per-test
speedups and their statistics as CSV files.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := readResults(args)
		if err != nil {
			return err
		}
		return analyzeSpeedup(cmd.OutOrStdout(), t, speedupOutDir)
	},
}

func init() {
	speedupCmd.Flags().StringVar(&speedupOutDir, "out-dir", ".", "directory for the details and summary CSVs")
	rootCmd.AddCommand(overheadCmd, kernelOverheadCmd, speedupCmd)
}

func analyzeSpeedup(w io.Writer, t *analyzer.Table, outDir string) error {
	cols := make([]string, len(analyzer.AblationConfigs))
	for i, cfg := range analyzer.AblationConfigs {
		cols[i] = analyzer.AblationColumn(cfg)
	}
	warnMissing(t, cols...)

	rep := analyzer.AblationSpeedup(t)
	output.WriteSpeedup(w, rep)

	details := filepath.Join(outDir, "ablation_speedup_details.csv")
	if err := writeCSVFile(details, func(f io.Writer) error {
		return output.WriteSpeedupDetails(f, rep)
	}); err != nil {
		return err
	}
	summary := filepath.Join(outDir, "ablation_speedup_summary.csv")
	if err := writeCSVFile(summary, func(f io.Writer) error {
		return output.WriteSpeedupSummary(f, rep)
	}); err != nil {
		return err
	}
	log.WithFields(log.Fields{"details": details, "summary": summary}).Info("speedup results saved")
	return nil
}

// readResults loads the results CSV named by args, or test_results.csv.
func readResults(args []string) (*analyzer.Table, error) {
	path := defaultResultsCSV
	if len(args) > 0 {
		path = args[0]
	}
	return analyzer.ReadTableFile(path)
}

func warnMissing(t *analyzer.Table, cols ...string) {
	for _, c := range cols {
		if !t.Has(c) {
			log.WithField("column", c).Warn("column not found in results")
		}
	}
}
