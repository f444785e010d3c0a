package runner

import (
	"fmt"
	"time"
)

// NotRun marks a cell whose test was never executed under that key.
const NotRun = "N/A"

// ReportRow is one test across every configuration that ran it.
type ReportRow struct {
	Number string
	Name   string
	Cells  map[string]Result
}

// Cell renders one result: elapsed seconds for a pass, the status word
// otherwise, N/A when the key did not run.
func (row ReportRow) Cell(key string) string {
	res, ok := row.Cells[key]
	if !ok {
		return NotRun
	}
	if res.Status == StatusPassed {
		return fmt.Sprintf("%.4f", res.Elapsed.Seconds())
	}
	return string(res.Status)
}

// Report collects results by test, in test order.
type Report struct {
	rows  []*ReportRow
	index map[string]*ReportRow
}

func newReport(tests []Test) *Report {
	rep := &Report{index: make(map[string]*ReportRow, len(tests))}
	for i, t := range tests {
		if _, dup := rep.index[t.Name]; dup {
			continue
		}
		row := &ReportRow{
			Number: PadNumber(i+1, len(tests)),
			Name:   t.Name,
			Cells:  make(map[string]Result),
		}
		rep.rows = append(rep.rows, row)
		rep.index[t.Name] = row
	}
	return rep
}

func (rep *Report) record(name, key string, res Result) {
	if row, ok := rep.index[name]; ok {
		row.Cells[key] = res
	}
}

// Rows returns the report rows in test order.
func (rep *Report) Rows() []ReportRow {
	out := make([]ReportRow, len(rep.rows))
	for i, r := range rep.rows {
		out[i] = *r
	}
	return out
}

// Summary is the per-configuration tally. TotalTime covers passed tests
// only.
type Summary struct {
	Key       string
	Passed    int
	Failed    int
	Timeout   int
	Errors    int
	TotalTime time.Duration
}

// Total is the number of tests that ran under the key.
func (s Summary) Total() int {
	return s.Passed + s.Failed + s.Timeout + s.Errors
}

// Summaries tallies each key in order. Keys that ran nothing are omitted.
func (rep *Report) Summaries(keys []string) []Summary {
	var out []Summary
	for _, key := range keys {
		s := Summary{Key: key}
		for _, row := range rep.rows {
			res, ok := row.Cells[key]
			if !ok {
				continue
			}
			switch res.Status {
			case StatusPassed:
				s.Passed++
				s.TotalTime += res.Elapsed
			case StatusFailed:
				s.Failed++
			case StatusTimeout:
				s.Timeout++
			default:
				s.Errors++
			}
		}
		if s.Total() > 0 {
			out = append(out, s)
		}
	}
	return out
}
