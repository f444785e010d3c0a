package analyzer

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	numberPrefixRe = regexp.MustCompile(`^(?:\d+_)+`)
	leadingNumRe   = regexp.MustCompile(`^(\d+)_`)
)

// NormalizeName strips pytest parametrization and the runner's numeric
// prefix: "01_suite/test[param]" becomes "suite/test".
func NormalizeName(name string) string {
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	return numberPrefixRe.ReplaceAllString(name, "")
}

// TestNumber returns the leading "<digits>_" of an identifier, or +Inf.
func TestNumber(name string) float64 {
	m := leadingNumRe.FindStringSubmatch(name)
	if m == nil {
		return math.Inf(1)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return math.Inf(1)
	}
	return float64(n)
}

// AggregateByFunction folds parametrized variants into one entry per
// normalized name, counting how many identifiers each absorbed.
func AggregateByFunction(t *Totals) *Totals {
	agg := NewTotals()
	for _, k := range t.Keys() {
		v, _ := t.Get(k)
		agg.AddTotal(NormalizeName(k), Total{TotalMs: v.TotalMs, Count: v.Count, Variants: 1})
	}
	return agg
}

// Row is one line of a comparison across configurations.
type Row struct {
	Test   string
	Values []float64
}

// Compare aggregates each configuration by function and lines them up.
// Rows follow the numeric prefix of the first original identifier seen for
// each normalized name; ties and unnumbered names fall back to name order.
// A test missing from a configuration gets 0.
func Compare(configs []*Totals) []Row {
	firstSeen := make(map[string]string)
	aggs := make([]*Totals, len(configs))
	for i, t := range configs {
		for _, k := range t.Keys() {
			n := NormalizeName(k)
			if _, ok := firstSeen[n]; !ok {
				firstSeen[n] = k
			}
		}
		aggs[i] = AggregateByFunction(t)
	}

	names := make([]string, 0, len(firstSeen))
	for n := range firstSeen {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		ni, nj := TestNumber(firstSeen[names[i]]), TestNumber(firstSeen[names[j]])
		if ni != nj {
			return ni < nj
		}
		return names[i] < names[j]
	})

	rows := make([]Row, len(names))
	for i, n := range names {
		rows[i] = Row{Test: n, Values: make([]float64, len(aggs))}
		for c, agg := range aggs {
			v, _ := agg.Get(n)
			rows[i].Values[c] = v.TotalMs
		}
	}
	return rows
}

var knownRepos = []string{"liger_kernel", "flag_gems", "tritonbench"}

// FormatTestName turns a runner log base name back into a slash-separated
// test name, splitting the file and function at the last "test_":
//
//	liger_kernel_test_fused_linear_jsd_test_correctness -> liger_kernel/test_fused_linear_jsd/test_correctness
//	tritonbench_softmax_optimize                       -> tritonbench/softmax_optimize
func FormatTestName(fileName string) string {
	var repo, rest string
	for _, r := range knownRepos {
		if strings.HasPrefix(fileName, r+"_") {
			repo, rest = r, fileName[len(r)+1:]
			break
		}
	}
	if repo == "" {
		return fileName
	}
	if repo == "tritonbench" {
		return repo + "/" + rest
	}

	var positions []int
	for i := 0; i < len(rest); {
		if strings.HasPrefix(rest[i:], "test_") {
			positions = append(positions, i)
			i += len("test_")
			continue
		}
		i++
	}
	if len(positions) < 2 {
		return repo + "/" + rest
	}
	split := positions[len(positions)-1]
	return repo + "/" + rest[:split-1] + "/" + rest[split:]
}

// AblationRow is one numbered log file across the ablation configurations.
type AblationRow struct {
	Number int
	Test   string
	Values []float64
}

// CompareFiles lines up per-file totals of several configurations by file
// number. The display name comes from the first configuration that has the
// file.
func CompareFiles(configs [][]FileTotal) []AblationRow {
	names := make(map[int]string)
	values := make([]map[int]float64, len(configs))
	for c, files := range configs {
		values[c] = make(map[int]float64, len(files))
		for _, f := range files {
			if _, ok := names[f.Number]; !ok {
				names[f.Number] = f.Name
			}
			values[c][f.Number] += f.TotalMs
		}
	}

	nums := make([]int, 0, len(names))
	for n := range names {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	rows := make([]AblationRow, len(nums))
	for i, n := range nums {
		rows[i] = AblationRow{Number: n, Test: FormatTestName(names[n]), Values: make([]float64, len(configs))}
		for c := range configs {
			rows[i].Values[c] = values[c][n]
		}
	}
	return rows
}
