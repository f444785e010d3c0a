package analyzer

import (
	"sort"

	"github.com/sanbench/internal/parser"
)

// MemoryCategories are the four cache settings of the memory runs.
var MemoryCategories = []string{
	"compile_no_cache",
	"compile_with_cache",
	"no_compile_no_cache",
	"no_compile_with_cache",
}

// MemoryUsage is the peak RSS summary of one category's logs.
type MemoryUsage struct {
	Category string  `json:"category"`
	Files    int     `json:"total_files"`
	Samples  int     `json:"count"`
	AvgKB    float64 `json:"average_kb"`
	MinKB    float64 `json:"min_kb"`
	MaxKB    float64 `json:"max_kb"`
}

// MeasureMemory reads the first "Maximum resident set size" of every log
// and summarizes them. Logs without one are counted but not sampled.
func MeasureMemory(category string, logs []string) MemoryUsage {
	u := MemoryUsage{Category: category, Files: len(logs)}
	var values []float64
	for _, path := range logs {
		if v, ok := parser.FirstMetricFile(path, parser.KindMemoryKB); ok {
			values = append(values, v)
		}
	}
	if s, ok := Summarize(values); ok {
		u.Samples = s.N
		u.AvgKB = s.Avg
		u.MinKB = s.Lower
		u.MaxKB = s.Upper
	}
	return u
}

// SortByAverage orders sampled categories by ascending average RSS.
func SortByAverage(usages []MemoryUsage) []MemoryUsage {
	out := make([]MemoryUsage, 0, len(usages))
	for _, u := range usages {
		if u.Samples > 0 {
			out = append(out, u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AvgKB < out[j].AvgKB
	})
	return out
}
