package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sanbench/internal/analyzer"
	"github.com/sanbench/internal/discover"
	"github.com/sanbench/internal/output"
	"github.com/sanbench/internal/parser"
	"github.com/sanbench/internal/worker"
)

// kernelConfig is one configuration compared by kernel-time.
type kernelConfig struct {
	Name   string
	Label  string
	Column string
	Kind   parser.Kind
}

var kernelConfigs = []kernelConfig{
	{Name: "baseline", Label: "Baseline", Column: "baseline_kernel_time", Kind: parser.KindGPUTime},
	{Name: "compute-sanitizer", Label: "Compute-Sanitizer", Column: "compute_sanitizer_kernel_time", Kind: parser.KindGPUTime},
	{Name: "triton-sanitizer", Label: "Triton-Sanitizer", Column: "triton_sanitizer_kernel_time", Kind: parser.KindExecTime},
}

type kernelTimeOptions struct {
	CSV    string
	Detail bool
	Format string
	Parse  parseFlags
}

var kernelTimeOpts kernelTimeOptions

var kernelTimeCmd = &cobra.Command{
	Use:   "kernel-time <output_dir>",
	Short: "Compares kernel time across baseline and sanitizer runs",
	Long: `Sums the per-test kernel time of the baseline, compute-sanitizer and
triton-sanitizer runs found under output_dir, prints a report per
configuration with the overhead of each sanitizer, and exports a per-test
comparison CSV into output_dir.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return analyzeKernelTime(cmd.Context(), cmd.OutOrStdout(), args[0], kernelTimeOpts)
	},
}

func init() {
	f := kernelTimeCmd.Flags()
	f.StringVar(&kernelTimeOpts.CSV, "csv", "kernel_timing_results.csv", "CSV file written into output_dir (empty disables)")
	f.BoolVar(&kernelTimeOpts.Detail, "detail", false, "list every kernel call under its test")
	f.StringVar(&kernelTimeOpts.Format, "format", "table", "output format: table or json")
	kernelTimeOpts.Parse.register(kernelTimeCmd)
	rootCmd.AddCommand(kernelTimeCmd)
}

func analyzeKernelTime(ctx context.Context, w io.Writer, dir string, o kernelTimeOptions) error {
	if o.Format != "table" && o.Format != "json" {
		return errors.Errorf("invalid --format %q: want table or json", o.Format)
	}
	if err := discover.CheckRoot(dir); err != nil {
		return err
	}
	asJSON := o.Format == "json"

	if !asJSON {
		output.WriteBanner(w, "Kernel Timing Analysis", dir)
	}

	all := make([]*analyzer.Totals, len(kernelConfigs))
	var reports []output.ConfigReport
	for i, kc := range kernelConfigs {
		files, err := findLogs(dir, kc.Name, discover.KernelTimeNamespaces)
		if err != nil {
			return err
		}
		results, err := parseLogs(ctx, files, parser.Kinds(kc.Kind), o.Parse)
		if err != nil {
			return err
		}
		records := worker.Records(results)
		all[i] = analyzer.Aggregate(records)

		log.WithFields(log.Fields{
			"config":  kc.Name,
			"files":   len(files),
			"records": len(records),
		}).Debug("parsed configuration")

		if asJSON {
			reports = append(reports, output.NewConfigReport(kc.Name, len(files), all[i]))
			continue
		}
		output.WriteSection(w, kc.Label)
		output.WriteFound(w, len(files))
		output.WriteTestTotals(w, all[i])
		if o.Detail {
			output.WriteDetail(w, records)
		}
		fmt.Fprintln(w)
	}

	rows := analyzer.Compare(all)
	columns := make([]string, len(kernelConfigs))
	for i, kc := range kernelConfigs {
		columns[i] = kc.Column
	}

	if asJSON {
		out := output.JSONOutput{Configs: reports, Comparison: output.NewComparison(columns, rows)}
		if err := output.WriteJSON(w, out); err != nil {
			return errors.Wrap(err, "write JSON")
		}
	} else {
		writeKernelSummary(w, all)
	}

	if o.CSV == "" {
		return nil
	}
	if len(rows) == 0 {
		log.Warn("no test results to export")
		return nil
	}
	path := filepath.Join(dir, o.CSV)
	if err := writeCSVFile(path, func(f io.Writer) error {
		return output.WriteComparisonCSV(f, columns, rows)
	}); err != nil {
		return err
	}
	if asJSON {
		log.WithFields(log.Fields{"path": path, "rows": len(rows)}).Info("CSV exported")
		return nil
	}
	output.WriteExported(w, path, len(rows), "test functions")
	if all[0].Len() > 0 {
		variants := 0
		agg := analyzer.AggregateByFunction(all[0])
		for _, k := range agg.Keys() {
			v, _ := agg.Get(k)
			variants += v.Variants
		}
		fmt.Fprintf(w, "  Aggregated %d parametrized test variants into %d functions\n", variants, len(rows))
	}
	return nil
}

// writeKernelSummary prints grand totals of the configurations that have
// results, with overhead against the baseline when it has results too.
func writeKernelSummary(w io.Writer, all []*analyzer.Totals) {
	var baseline *output.ConfigTotal
	var others []output.ConfigTotal
	for i, kc := range kernelConfigs {
		if all[i].Len() == 0 {
			continue
		}
		ms, _ := all[i].GrandTotal()
		ct := output.ConfigTotal{Label: kc.Label, TotalMs: ms}
		if i == 0 {
			baseline = &ct
			continue
		}
		others = append(others, ct)
	}
	if baseline == nil && len(others) == 0 {
		return
	}
	output.WriteKernelSummary(w, baseline, others)
}

// writeCSVFile creates path and hands it to write.
func writeCSVFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := write(f); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}
