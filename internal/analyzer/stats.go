package analyzer

import (
	"sort"
	"strconv"
	"strings"

	"github.com/montanaflynn/stats"
)

// Stats summarizes a set of ratios.
type Stats struct {
	Avg    float64 `json:"avg"`
	Median float64 `json:"median"`
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
	N      int     `json:"n"`
}

// Valid reports whether the summary was computed from at least one sample.
func (s Stats) Valid() bool {
	return s.N > 0
}

// Summarize computes mean, median, min and max. ok is false for no input.
func Summarize(values []float64) (Stats, bool) {
	if len(values) == 0 {
		return Stats{}, false
	}
	data := stats.Float64Data(values)
	avg, err := data.Mean()
	if err != nil {
		return Stats{}, false
	}
	median, err := data.Median()
	if err != nil {
		return Stats{}, false
	}
	lower, err := data.Min()
	if err != nil {
		return Stats{}, false
	}
	upper, err := data.Max()
	if err != nil {
		return Stats{}, false
	}
	return Stats{Avg: avg, Median: median, Lower: lower, Upper: upper, N: len(values)}, true
}

func summarize(values []float64) Stats {
	s, _ := Summarize(values)
	return s
}

// Overhead returns (other/baseline - 1) * 100. ok is false when the
// baseline is not positive.
func Overhead(other, baseline float64) (float64, bool) {
	r, ok := RatioOf(other, baseline)
	if !ok {
		return 0, false
	}
	return (r - 1) * 100, true
}

// CacheSetting names the results columns of one end-to-end cache setting.
type CacheSetting struct {
	Name      string
	Compile   string
	Allocator string
	Baseline  string
	Compute   string
	Triton    string
}

// EndToEndSettings are the four compilation-cache by allocator-cache runs.
var EndToEndSettings = []CacheSetting{
	{
		Name:      "Compilation Cache On, Torch Cuda Caching Allocator On",
		Compile:   "On",
		Allocator: "On",
		Baseline:  "baseline_compile_with_cache",
		Compute:   "compute_sanitizer_compile_with_cache",
		Triton:    "triton_sanitizer_compile_with_cache",
	},
	{
		Name:      "Compilation Cache On, Torch Cuda Caching Allocator Off",
		Compile:   "On",
		Allocator: "Off",
		Baseline:  "baseline_compile_no_cache",
		Compute:   "compute_sanitizer_compile_no_cache",
		Triton:    "triton_sanitizer_compile_no_cache",
	},
	{
		Name:      "Compilation Cache Off, Torch Cuda Caching Allocator On",
		Compile:   "Off",
		Allocator: "On",
		Baseline:  "baseline_no_compile_with_cache",
		Compute:   "compute_sanitizer_no_compile_with_cache",
		Triton:    "triton_sanitizer_no_compile_with_cache",
	},
	{
		Name:      "Compilation Cache Off, Torch Cuda Caching Allocator Off",
		Compile:   "Off",
		Allocator: "Off",
		Baseline:  "baseline_no_compile_no_cache",
		Compute:   "compute_sanitizer_no_compile_no_cache",
		Triton:    "triton_sanitizer_no_compile_no_cache",
	},
}

// SanitizerOverhead pairs compute-sanitizer and triton-sanitizer ratios.
type SanitizerOverhead struct {
	Name    string `json:"name"`
	Compute Stats  `json:"compute_sanitizer"`
	Triton  Stats  `json:"triton_sanitizer"`
}

// EndToEndOverhead computes sanitizer/baseline wall-time ratios for every
// cache setting.
func EndToEndOverhead(t *Table) []SanitizerOverhead {
	out := make([]SanitizerOverhead, 0, len(EndToEndSettings))
	for _, s := range EndToEndSettings {
		out = append(out, SanitizerOverhead{
			Name:    s.Name,
			Compute: summarize(ColumnRatios(t.Rows, s.Compute, s.Baseline)),
			Triton:  summarize(ColumnRatios(t.Rows, s.Triton, s.Baseline)),
		})
	}
	return out
}

// Kernel-only results columns.
const (
	KernelBaselineCol = "kernel_time_baseline (ms)"
	KernelComputeCol  = "kernel_time_compute_sanitizer (ms)"
	KernelTritonCol   = "kernel_time_triton_sanitizer (ms)"
)

// KernelOverhead is the kernel-only overhead overall and per suite.
type KernelOverhead struct {
	Overall SanitizerOverhead   `json:"overall"`
	Suites  []SanitizerOverhead `json:"suites"`
}

// KernelOnlyOverhead divides sanitizer kernel time by baseline kernel time.
// Suites are keyed by the Test_Name prefix before the first '/'.
func KernelOnlyOverhead(t *Table) KernelOverhead {
	res := KernelOverhead{
		Overall: SanitizerOverhead{
			Name:    "overall",
			Compute: summarize(ColumnRatios(t.Rows, KernelComputeCol, KernelBaselineCol)),
			Triton:  summarize(ColumnRatios(t.Rows, KernelTritonCol, KernelBaselineCol)),
		},
	}

	bySuite := make(map[string][]map[string]string)
	for _, row := range t.Rows {
		suite, _, _ := strings.Cut(row["Test_Name"], "/")
		bySuite[suite] = append(bySuite[suite], row)
	}
	suites := make([]string, 0, len(bySuite))
	for s := range bySuite {
		suites = append(suites, s)
	}
	sort.Strings(suites)

	for _, s := range suites {
		rows := bySuite[s]
		res.Suites = append(res.Suites, SanitizerOverhead{
			Name:    s,
			Compute: summarize(ColumnRatios(rows, KernelComputeCol, KernelBaselineCol)),
			Triton:  summarize(ColumnRatios(rows, KernelTritonCol, KernelBaselineCol)),
		})
	}
	return res
}

// AblationConfigs are the sanitizer cache ablations, least cached first.
var AblationConfigs = []string{"no_cache", "symbol_only", "symbol_loop", "symbol_loop_grid", "all_cache"}

var ablationLabels = map[string]string{
	"no_cache":         "No Cache (0,0,0,0)",
	"symbol_only":      "Symbol Only (1,0,0,0)",
	"symbol_loop":      "Symbol + Loop (1,1,0,0)",
	"symbol_loop_grid": "Symbol + Loop + Grid (1,1,1,0)",
	"all_cache":        "All Cache (1,1,1,1)",
}

// AblationLabel describes an ablation config by its symbol, loop, grid and
// kernel cache switches.
func AblationLabel(cfg string) string {
	if l, ok := ablationLabels[cfg]; ok {
		return l
	}
	return cfg
}

// AblationColumn is the comparison CSV column of an ablation config.
func AblationColumn(cfg string) string {
	return "ablation_kernel_time_" + cfg
}

// SpeedupDetail is one test's no_cache speedups over the other ablations.
type SpeedupDetail struct {
	Test     string
	Speedups []float64
	Times    []float64
}

// SpeedupMetric summarizes one no_cache/<config> speedup.
type SpeedupMetric struct {
	Name  string `json:"name"`
	Stats Stats  `json:"stats"`
}

// SpeedupReport is the outcome of AblationSpeedup.
type SpeedupReport struct {
	Total   int
	Valid   int
	Details []SpeedupDetail
	Metrics []SpeedupMetric
}

// AblationSpeedup computes no_cache/<config> for each cached config. A row
// counts only when all five times are positive.
func AblationSpeedup(t *Table) SpeedupReport {
	rep := SpeedupReport{Total: len(t.Rows)}
	per := make([][]float64, len(AblationConfigs)-1)

	for _, row := range t.Rows {
		times := make([]float64, len(AblationConfigs))
		valid := true
		for i, cfg := range AblationConfigs {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[AblationColumn(cfg)]), 64)
			if err != nil || v <= 0 {
				valid = false
				break
			}
			times[i] = v
		}
		if !valid {
			continue
		}

		d := SpeedupDetail{Test: row["Test_Name"], Times: times, Speedups: make([]float64, len(per))}
		for i := range per {
			d.Speedups[i] = times[0] / times[i+1]
			per[i] = append(per[i], d.Speedups[i])
		}
		rep.Details = append(rep.Details, d)
		rep.Valid++
	}

	for i, cfg := range AblationConfigs[1:] {
		rep.Metrics = append(rep.Metrics, SpeedupMetric{
			Name:  AblationConfigs[0] + "/" + cfg,
			Stats: summarize(per[i]),
		})
	}
	return rep
}

// Speedup returns baseline/total and the percentage reduction of total
// against baseline. ok is false when either is not positive.
func Speedup(baseline, total float64) (speedup, reduction float64, ok bool) {
	if total <= 0 || baseline <= 0 {
		return 0, 0, false
	}
	return baseline / total, (1 - total/baseline) * 100, true
}
