package analyzer

import (
	"strconv"
	"strings"
)

// AblationTotals sums each ablation config's column over every row.
// Failure markers and unparsable cells count as zero.
func AblationTotals(t *Table) []float64 {
	out := make([]float64, len(AblationConfigs))
	for _, row := range t.Rows {
		for i, cfg := range AblationConfigs {
			cell := row[AblationColumn(cfg)]
			if IsFailureMarker(cell) {
				continue
			}
			if v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64); err == nil {
				out[i] += v
			}
		}
	}
	return out
}

// ScatterPoint is one test's kernel times under the three configurations.
type ScatterPoint struct {
	Test     string
	Baseline float64
	Compute  float64
	Triton   float64
}

// Speedup is the compute-sanitizer time over the triton-sanitizer time.
func (p ScatterPoint) Speedup() float64 {
	return p.Compute / p.Triton
}

// KernelScatter collects the rows of a kernel-only results table whose three
// kernel times are all positive measurements.
func KernelScatter(t *Table) []ScatterPoint {
	var out []ScatterPoint
	for _, row := range t.Rows {
		var vals [3]float64
		ok := true
		for i, col := range []string{KernelBaselineCol, KernelComputeCol, KernelTritonCol} {
			cell := row[col]
			if IsFailureMarker(cell) {
				ok = false
				break
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil || v <= 0 {
				ok = false
				break
			}
			vals[i] = v
		}
		if ok {
			out = append(out, ScatterPoint{Test: row["Test_Name"], Baseline: vals[0], Compute: vals[1], Triton: vals[2]})
		}
	}
	return out
}
