package output

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/sanbench/internal/analyzer"
	"github.com/sanbench/internal/parser"
)

var (
	line      = strings.Repeat("=", 80)
	heavyLine = strings.Repeat("━", 80)
	thinLine  = strings.Repeat("─", 80)
)

// maxNameWidth is the widest test name shown before truncation.
const maxNameWidth = 60

// TruncateName shortens names wider than 60 runes to their first 57
// plus "...".
func TruncateName(name string) string {
	if utf8.RuneCountInString(name) <= maxNameWidth {
		return name
	}
	r := []rune(name)
	return string(r[:maxNameWidth-3]) + "..."
}

// WriteBanner writes the report title and the directory being analyzed.
func WriteBanner(w io.Writer, title, dir string) {
	fmt.Fprintf(w, "%s\n%s\n%s\n", line, title, line)
	fmt.Fprintf(w, "\nAnalyzing: %s\n\n", dir)
}

// WriteSection writes a heavy-ruled configuration heading.
func WriteSection(w io.Writer, title string) {
	fmt.Fprintf(w, "%s\n%s\n%s\n", heavyLine, strings.ToUpper(title), heavyLine)
}

// WriteFound reports how many log files a configuration has.
func WriteFound(w io.Writer, n int) {
	fmt.Fprintf(w, "  Found %d log file(s)\n", n)
}

// WriteTestTotals writes one configuration's totals sorted by test
// identifier, followed by the grand total, test count, kernel-call count and
// average per test.
func WriteTestTotals(w io.Writer, totals *analyzer.Totals) {
	if totals.Len() == 0 {
		fmt.Fprintln(w, "  No results to display")
		return
	}

	fmt.Fprintf(w, "\n  Results by test:\n  %s\n", thinLine)
	for _, name := range totals.SortedKeys() {
		v, _ := totals.Get(name)
		fmt.Fprintf(w, "    %s\n", TruncateName(name))
		fmt.Fprintf(w, "      Total: %10.3f ms  (from %d kernel calls)\n", v.TotalMs, v.Count)
	}

	grand, calls := totals.GrandTotal()
	fmt.Fprintf(w, "  %s\n", thinLine)
	fmt.Fprintf(w, "  Grand Total: %10.3f ms\n", grand)
	fmt.Fprintf(w, "  Total Tests: %d\n", totals.Len())
	fmt.Fprintf(w, "  Total Kernel Calls: %d\n", calls)
	fmt.Fprintf(w, "  Average per Test: %.3f ms\n", grand/float64(totals.Len()))
}

// WriteDetail lists every kernel measurement grouped by test, in the order
// the records were parsed.
func WriteDetail(w io.Writer, records []parser.Record) {
	if len(records) == 0 {
		return
	}
	byTest := make(map[string][]parser.Record)
	var order []string
	for _, r := range records {
		if _, ok := byTest[r.Test]; !ok {
			order = append(order, r.Test)
		}
		byTest[r.Test] = append(byTest[r.Test], r)
	}

	fmt.Fprintf(w, "\n  Kernel calls:\n  %s\n", thinLine)
	for _, test := range order {
		fmt.Fprintf(w, "    %s\n", TruncateName(test))
		for _, r := range byTest[test] {
			kernel := r.Kernel
			if kernel == "" {
				kernel = "-"
			}
			fmt.Fprintf(w, "      %-40s %10.3f ms  (%s:%d)\n", kernel, r.Value, r.SourceFile, r.LineNumber)
		}
	}
}

// WriteFileTotals writes per-file ablation totals in file-number order.
func WriteFileTotals(w io.Writer, files []analyzer.FileTotal) {
	if len(files) == 0 {
		fmt.Fprintln(w, "  No results to display")
		return
	}

	fmt.Fprintf(w, "\n  Results by file:\n  %s\n", thinLine)
	var grand float64
	var calls int
	for _, f := range files {
		grand += f.TotalMs
		calls += f.Count
		fmt.Fprintf(w, "    %s\n", TruncateName(fmt.Sprintf("%03d_%s", f.Number, f.Name)))
		fmt.Fprintf(w, "      Total: %10.3f ms  (from %d kernel calls)\n", f.TotalMs, f.Count)
	}
	fmt.Fprintf(w, "  %s\n", thinLine)
	fmt.Fprintf(w, "  Grand Total: %10.3f ms\n", grand)
	fmt.Fprintf(w, "  Total Files: %d\n", len(files))
	fmt.Fprintf(w, "  Total Kernel Calls: %d\n", calls)
	fmt.Fprintf(w, "  Average per File: %.3f ms\n", grand/float64(len(files)))
}

// ConfigTotal is the grand total of one configuration.
type ConfigTotal struct {
	Label   string
	TotalMs float64
}

// WriteKernelSummary writes each configuration's grand total. When a
// baseline is given, every other configuration also gets its overhead
// against it.
func WriteKernelSummary(w io.Writer, baseline *ConfigTotal, others []ConfigTotal) {
	fmt.Fprintf(w, "\nSUMMARY\n%s\n", line)
	if baseline != nil {
		fmt.Fprintf(w, "  %-26s%12.3f ms\n", baseline.Label+" Total:", baseline.TotalMs)
	}
	for _, c := range others {
		fmt.Fprintf(w, "  %-26s%12.3f ms\n", c.Label+" Total:", c.TotalMs)
		if baseline == nil {
			continue
		}
		if pct, ok := analyzer.Overhead(c.TotalMs, baseline.TotalMs); ok {
			fmt.Fprintf(w, "    %-24s%12.2f %%\n", "Overhead vs Baseline:", pct)
		} else {
			fmt.Fprintf(w, "    %-24s%12s\n", "Overhead vs Baseline:", "n/a")
		}
	}
	fmt.Fprintln(w, line)
}

// AblationTotal is the grand total of one ablation config.
type AblationTotal struct {
	Config  string
	TotalMs float64
}

// WriteAblationSummary writes each config's total and, when the uncached
// config is first, the speedup of every other config against it.
func WriteAblationSummary(w io.Writer, totals []AblationTotal) {
	fmt.Fprintf(w, "\nSUMMARY\n%s\n", line)
	for _, t := range totals {
		fmt.Fprintf(w, "  %-30s %12.3f ms\n", analyzer.AblationLabel(t.Config), t.TotalMs)
	}

	if len(totals) > 0 && totals[0].Config == analyzer.AblationConfigs[0] {
		base := totals[0].TotalMs
		fmt.Fprintf(w, "\n  Speedup vs No Cache:\n")
		for _, t := range totals[1:] {
			speedup, reduction, ok := analyzer.Speedup(base, t.TotalMs)
			if !ok {
				continue
			}
			fmt.Fprintf(w, "    %-28s %6.2fx  (%5.1f%% reduction)\n", analyzer.AblationLabel(t.Config), speedup, reduction)
		}
	}
	fmt.Fprintln(w, line)
}

// WriteExported reports where a CSV was written.
func WriteExported(w io.Writer, path string, rows int, what string) {
	fmt.Fprintf(w, "\n%s\nEXPORTING TO CSV\n%s\n", line, line)
	fmt.Fprintf(w, "\n✓ CSV exported to: %s\n", path)
	fmt.Fprintf(w, "  Total %s: %d\n", what, rows)
}
