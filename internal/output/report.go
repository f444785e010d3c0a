package output

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sanbench/internal/analyzer"
	"github.com/sanbench/internal/runner"
)

var wideLine = strings.Repeat("=", 100)

const notAvailable = "N/A"

// WriteRunSummary writes the pass/fail tally of each configuration that ran.
func WriteRunSummary(w io.Writer, sums []runner.Summary) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(w, "\n%s\nTEST SUMMARY\n%s\n", rule, rule)
	for _, s := range sums {
		total := s.Total()
		fmt.Fprintf(w, "\n%s:\n", s.Key)
		fmt.Fprintf(w, "  Total: %d\n", total)
		fmt.Fprintf(w, "  Passed: %d (%.1f%%)\n", s.Passed, float64(s.Passed)*100/float64(total))
		if s.Failed > 0 {
			fmt.Fprintf(w, "  Failed: %d\n", s.Failed)
		}
		if s.Timeout > 0 {
			fmt.Fprintf(w, "  Timeout: %d\n", s.Timeout)
		}
		if s.Errors > 0 {
			fmt.Fprintf(w, "  Error: %d\n", s.Errors)
		}
		fmt.Fprintf(w, "  Total Time: %.2fs\n", s.TotalTime.Seconds())
	}
}

func writeRatioStats(w io.Writer, s analyzer.Stats) {
	if !s.Valid() {
		for _, label := range []string{"avg:   ", "median:", "lower: ", "upper: "} {
			fmt.Fprintf(w, "  %s %s\n", label, notAvailable)
		}
		return
	}
	fmt.Fprintf(w, "  avg:    %.4fx\n", s.Avg)
	fmt.Fprintf(w, "  median: %.4fx\n", s.Median)
	fmt.Fprintf(w, "  lower:  %.4fx\n", s.Lower)
	fmt.Fprintf(w, "  upper:  %.4fx\n", s.Upper)
}

func statsCell(s analyzer.Stats) string {
	if !s.Valid() {
		return "avg: N/A  median: N/A  lower: N/A  upper: N/A"
	}
	return fmt.Sprintf("avg: %.2f  median: %.2f  lower: %.2f  upper: %.2f", s.Avg, s.Median, s.Lower, s.Upper)
}

// WriteEndToEnd writes the per-setting sanitizer overheads followed by the
// markdown summary table.
func WriteEndToEnd(w io.Writer, res []analyzer.SanitizerOverhead) {
	for _, r := range res {
		fmt.Fprintf(w, "\n%s\n%s\n", r.Name, line)
		fmt.Fprintf(w, "\nCompute-Sanitizer (n=%d valid samples):\n", r.Compute.N)
		writeRatioStats(w, r.Compute)
		fmt.Fprintf(w, "\nTriton-Sanitizer (n=%d valid samples):\n", r.Triton.N)
		writeRatioStats(w, r.Triton)
	}

	fmt.Fprintf(w, "\n\n%s\nSUMMARY TABLE\n%s\n\n", wideLine, wideLine)
	fmt.Fprintf(w, "| %-17s | %-28s | %-69s | %-69s |\n", "Compilation Cache", "Torch Cuda Caching Allocator", "Triton-Sanitizer", "Compute-Sanitizer")
	fmt.Fprintf(w, "|%s|%s|%s|%s|\n", strings.Repeat("-", 19), strings.Repeat("-", 30), strings.Repeat("-", 71), strings.Repeat("-", 71))
	for i, r := range res {
		compile, alloc := "", ""
		if i < len(analyzer.EndToEndSettings) {
			compile, alloc = analyzer.EndToEndSettings[i].Compile, analyzer.EndToEndSettings[i].Allocator
		}
		fmt.Fprintf(w, "| %-17s | %-28s | %-69s | %-69s |\n", compile, alloc, statsCell(r.Triton), statsCell(r.Compute))
	}
	fmt.Fprintln(w)
}

func kernelRow(w io.Writer, label string, s analyzer.Stats) {
	if !s.Valid() {
		fmt.Fprintf(w, "| %-17s | %7s | %7s | %7s | %7s | %7d |\n", label, notAvailable, notAvailable, notAvailable, notAvailable, s.N)
		return
	}
	fmt.Fprintf(w, "| %-17s | %7.2f | %7.2f | %7.2f | %7.2f | %7d |\n", label, s.Avg, s.Median, s.Lower, s.Upper, s.N)
}

func suiteStats(w io.Writer, label string, s analyzer.Stats) {
	fmt.Fprintf(w, "  %s (%d samples):\n", label, s.N)
	if !s.Valid() {
		fmt.Fprintln(w, "    No valid data")
		return
	}
	fmt.Fprintf(w, "    avg: %.2fx, median: %.2fx, range: [%.2f, %.2f]\n", s.Avg, s.Median, s.Lower, s.Upper)
}

// WriteKernelOverhead writes the kernel-only overhead, its summary table and
// the per-suite breakdown.
func WriteKernelOverhead(w io.Writer, res analyzer.KernelOverhead) {
	thin := strings.Repeat("-", 80)
	fmt.Fprintf(w, "\nCompute-Sanitizer Kernel-Only Overhead\n%s\n", thin)
	fmt.Fprintf(w, "Valid samples: %d\n", res.Overall.Compute.N)
	writeRatioStats(w, res.Overall.Compute)
	fmt.Fprintf(w, "\nTriton-Sanitizer Kernel-Only Overhead\n%s\n", thin)
	fmt.Fprintf(w, "Valid samples: %d\n", res.Overall.Triton.N)
	writeRatioStats(w, res.Overall.Triton)

	fmt.Fprintf(w, "\n%s\nSUMMARY TABLE - KERNEL-ONLY OVERHEAD\n%s\n\n", wideLine, wideLine)
	fmt.Fprintln(w, "| Sanitizer         | avg     | median  | lower   | upper   | samples |")
	fmt.Fprintln(w, "|-------------------|---------|---------|---------|---------|---------|")
	kernelRow(w, "Compute-Sanitizer", res.Overall.Compute)
	kernelRow(w, "Triton-Sanitizer", res.Overall.Triton)

	fmt.Fprintf(w, "\n%s\nBREAKDOWN BY TEST SUITE\n%s\n", wideLine, wideLine)
	for _, s := range res.Suites {
		fmt.Fprintf(w, "\n%s\n%s\n", s.Name, thin)
		suiteStats(w, "Compute-Sanitizer", s.Compute)
		suiteStats(w, "Triton-Sanitizer", s.Triton)
	}
	fmt.Fprintln(w)
}

// WriteSpeedup writes the ablation speedup statistics table.
func WriteSpeedup(w io.Writer, rep analyzer.SpeedupReport) {
	fmt.Fprintf(w, "%s\nAblation Kernel Time Speedup Statistics\n%s\n", line, line)
	fmt.Fprintf(w, "\nTotal tests: %d\n", rep.Total)
	fmt.Fprintf(w, "Valid samples: %d\n", rep.Valid)
	fmt.Fprintf(w, "Invalid samples: %d\n", rep.Total-rep.Valid)
	fmt.Fprintf(w, "\n%s\n\nSpeedup Statistics:\n%s\n", line, line)

	fmt.Fprintf(w, "%-26s %10s %10s %10s %10s %14s\n", "Speedup Metric", "Average", "Median", "Max", "Min", "Valid Samples")
	for _, m := range rep.Metrics {
		if !m.Stats.Valid() {
			fmt.Fprintf(w, "%-26s %10s %10s %10s %10s %14d\n", m.Name, notAvailable, notAvailable, notAvailable, notAvailable, 0)
			continue
		}
		fmt.Fprintf(w, "%-26s %10.6f %10.6f %10.6f %10.6f %14d\n", m.Name, m.Stats.Avg, m.Stats.Median, m.Stats.Upper, m.Stats.Lower, m.Stats.N)
	}
	fmt.Fprintf(w, "\n%s\n", line)
}

// WriteMemoryHeader titles the memory report for one log subdirectory.
func WriteMemoryHeader(w io.Writer, subdir, dir string) {
	title := cases.Title(language.English).String(strings.ReplaceAll(subdir, "_", " "))
	fmt.Fprintf(w, "%s\nMemory Usage Analysis - %s Logs\nDirectory: %s\n%s\n\n", line, title, dir, line)
}

// WriteMemoryCategory writes one category's peak RSS statistics.
func WriteMemoryCategory(w io.Writer, u analyzer.MemoryUsage) {
	p := message.NewPrinter(language.English)
	p.Fprintf(w, "Category: %s\n", u.Category)
	if u.Samples == 0 {
		p.Fprintf(w, "  No memory data found in %d log files\n\n", u.Files)
		return
	}
	p.Fprintf(w, "  Total log files: %d\n", u.Files)
	p.Fprintf(w, "  Files with memory data: %d\n", u.Samples)
	p.Fprintf(w, "  Average memory: %.2f kbytes (%.2f MB)\n", u.AvgKB, u.AvgKB/1024)
	p.Fprintf(w, "  Min memory: %d kbytes (%.2f MB)\n", int64(u.MinKB), u.MinKB/1024)
	p.Fprintf(w, "  Max memory: %d kbytes (%.2f MB)\n\n", int64(u.MaxKB), u.MaxKB/1024)
}

// WriteMemorySummary lists sampled categories by ascending average RSS.
func WriteMemorySummary(w io.Writer, usages []analyzer.MemoryUsage) {
	sorted := analyzer.SortByAverage(usages)
	if len(sorted) == 0 {
		return
	}
	p := message.NewPrinter(language.English)
	fmt.Fprintf(w, "%s\nSummary Comparison (Average Memory Usage)\n%s\n\n", line, line)
	for _, u := range sorted {
		p.Fprintf(w, "%-30s: %12.2f kbytes (%8.2f MB)\n", u.Category, u.AvgKB, u.AvgKB/1024)
	}
	fmt.Fprintf(w, "\n%s\n", line)
}

// WriteBreakdown writes each case's stage times and their share of the
// compute-sanitizer end-to-end time.
func WriteBreakdown(w io.Writer, cases []analyzer.Breakdown) {
	fmt.Fprintf(w, "%s\nTIME BREAKDOWN\n%s\n", line, line)
	for _, c := range cases {
		fmt.Fprintf(w, "\n%s (%s)\n", c.Label(), c.Source)
		fmt.Fprintf(w, "  Compute-Sanitizer: %.2fs end-to-end\n", c.EndToEnd())
		for _, s := range analyzer.Stages {
			v := c.Stages[s]
			fmt.Fprintf(w, "    %-12s %9.3fs  %5.1f%%\n", s+":", v, c.Percent(v))
		}
		fmt.Fprintf(w, "    %-12s %9.3fs  %5.1f%%\n", "Others:", c.Others(), c.Percent(c.Others()))
		if c.TritonSanitizer > 0 {
			fmt.Fprintf(w, "  Triton-Sanitizer:  %.2fs end-to-end, %.3fs in kernels (%.1fx faster)\n",
				c.TritonSanitizer, c.Z3, c.EndToEnd()/c.TritonSanitizer)
		} else {
			fmt.Fprintf(w, "  Triton-Sanitizer:  %s\n", notAvailable)
		}
	}
}
