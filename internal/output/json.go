package output

import (
	"io"

	"github.com/goccy/go-json"

	"github.com/sanbench/internal/analyzer"
)

// TestTotal is one test identifier's total in JSON form.
type TestTotal struct {
	Test    string  `json:"test"`
	TotalMs float64 `json:"total_ms"`
	Count   int     `json:"count"`
}

// ConfigReport is one configuration of a kernel-time report.
type ConfigReport struct {
	Config       string      `json:"config"`
	Files        int         `json:"files"`
	Tests        []TestTotal `json:"tests"`
	GrandTotalMs float64     `json:"grand_total_ms"`
	KernelCalls  int         `json:"kernel_calls"`
}

// ComparisonRow is one normalized test across configurations.
type ComparisonRow struct {
	Test   string             `json:"test"`
	Values map[string]float64 `json:"values"`
}

// JSONOutput is the top-level JSON structure.
type JSONOutput struct {
	Configs    []ConfigReport  `json:"configs"`
	Comparison []ComparisonRow `json:"comparison,omitempty"`
}

// NewConfigReport flattens totals in identifier order.
func NewConfigReport(config string, files int, totals *analyzer.Totals) ConfigReport {
	rep := ConfigReport{Config: config, Files: files, Tests: []TestTotal{}}
	for _, k := range totals.SortedKeys() {
		v, _ := totals.Get(k)
		rep.Tests = append(rep.Tests, TestTotal{Test: k, TotalMs: v.TotalMs, Count: v.Count})
	}
	rep.GrandTotalMs, rep.KernelCalls = totals.GrandTotal()
	return rep
}

// NewComparison keys each row's values by column name.
func NewComparison(columns []string, rows []analyzer.Row) []ComparisonRow {
	out := make([]ComparisonRow, len(rows))
	for i, r := range rows {
		vals := make(map[string]float64, len(columns))
		for c, col := range columns {
			if c < len(r.Values) {
				vals[col] = r.Values[c]
			}
		}
		out[i] = ComparisonRow{Test: r.Test, Values: vals}
	}
	return out
}

// WriteJSON writes out as indented JSON to w.
func WriteJSON(w io.Writer, out JSONOutput) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
