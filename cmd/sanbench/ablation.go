package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sanbench/internal/analyzer"
	"github.com/sanbench/internal/discover"
	"github.com/sanbench/internal/output"
	"github.com/sanbench/internal/parser"
)

type ablationOptions struct {
	CSV   string
	Parse parseFlags
}

var ablationOpts ablationOptions

var ablationCmd = &cobra.Command{
	Use:   "ablation <output_dir>",
	Short: "Compares kernel time across the cache ablation configs",
	Long: `Sums the triton-sanitizer execution time of every log file of the five
ablation configs, prints the speedup of each cache level over no caching,
and exports a per-file comparison CSV into output_dir.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return analyzeAblation(cmd.Context(), cmd.OutOrStdout(), args[0], ablationOpts)
	},
}

func init() {
	ablationCmd.Flags().StringVar(&ablationOpts.CSV, "csv", "ablation_kernel_timing_results.csv", "CSV file written into output_dir (empty disables)")
	ablationOpts.Parse.register(ablationCmd)
	rootCmd.AddCommand(ablationCmd)
}

func analyzeAblation(ctx context.Context, w io.Writer, dir string, o ablationOptions) error {
	if err := discover.CheckRoot(dir); err != nil {
		return err
	}
	output.WriteBanner(w, "Ablation Study Kernel Timing Analysis", dir)

	perConfig := make([][]analyzer.FileTotal, len(analyzer.AblationConfigs))
	var totals []output.AblationTotal
	for i, cfg := range analyzer.AblationConfigs {
		output.WriteSection(w, analyzer.AblationLabel(cfg))
		files, err := findLogs(dir, cfg, discover.AblationNamespaces)
		if err != nil {
			return err
		}
		output.WriteFound(w, len(files))
		results, err := parseLogs(ctx, files, parser.Kinds(parser.KindExecTime), o.Parse)
		if err != nil {
			return err
		}
		perConfig[i] = analyzer.FileTotals(results)
		output.WriteFileTotals(w, perConfig[i])
		fmt.Fprintln(w)

		if len(perConfig[i]) == 0 {
			continue
		}
		var ms float64
		for _, f := range perConfig[i] {
			ms += f.TotalMs
		}
		totals = append(totals, output.AblationTotal{Config: cfg, TotalMs: ms})
	}
	output.WriteAblationSummary(w, totals)

	if o.CSV == "" {
		return nil
	}
	rows := analyzer.CompareFiles(perConfig)
	if len(rows) == 0 {
		log.Warn("no test results to export")
		return nil
	}
	path := filepath.Join(dir, o.CSV)
	if err := writeCSVFile(path, func(f io.Writer) error {
		return output.WriteAblationCSV(f, rows)
	}); err != nil {
		return err
	}
	output.WriteExported(w, path, len(rows), "log files")
	return nil
}
