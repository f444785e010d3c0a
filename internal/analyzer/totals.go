package analyzer

import (
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/sanbench/internal/parser"
)

// Total is the accumulated time for one test identifier.
type Total struct {
	TotalMs float64 `json:"total_ms"`
	Count   int     `json:"count"`
	// Variants is the number of parametrized identifiers folded into this one.
	Variants int `json:"variants,omitempty"`
}

// Totals maps test identifiers to their Total, remembering the order in
// which identifiers were first seen.
type Totals struct {
	order []string
	byKey map[string]*Total
}

// NewTotals returns an empty Totals.
func NewTotals() *Totals {
	return &Totals{byKey: make(map[string]*Total)}
}

// Add folds a single measurement into key.
func (t *Totals) Add(key string, value float64) {
	t.AddTotal(key, Total{TotalMs: value, Count: 1})
}

// AddTotal folds an already accumulated total into key.
func (t *Totals) AddTotal(key string, v Total) {
	cur, ok := t.byKey[key]
	if !ok {
		cur = &Total{}
		t.byKey[key] = cur
		t.order = append(t.order, key)
	}
	cur.TotalMs += v.TotalMs
	cur.Count += v.Count
	cur.Variants += v.Variants
}

// Get returns the total for key.
func (t *Totals) Get(key string) (Total, bool) {
	if t == nil {
		return Total{}, false
	}
	v, ok := t.byKey[key]
	if !ok {
		return Total{}, false
	}
	return *v, true
}

// Keys returns identifiers in first-seen order.
func (t *Totals) Keys() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// SortedKeys returns identifiers in lexical order.
func (t *Totals) SortedKeys() []string {
	keys := t.Keys()
	sort.Strings(keys)
	return keys
}

// Len returns the number of distinct identifiers.
func (t *Totals) Len() int {
	if t == nil {
		return 0
	}
	return len(t.order)
}

// GrandTotal sums every identifier's time and count.
func (t *Totals) GrandTotal() (ms float64, count int) {
	if t == nil {
		return 0, 0
	}
	for _, k := range t.order {
		v := t.byKey[k]
		ms += v.TotalMs
		count += v.Count
	}
	return ms, count
}

// Aggregate folds records into per-test totals by plain summation.
// Identifiers seen in several files are summed, never overwritten.
func Aggregate(records []parser.Record) *Totals {
	t := NewTotals()
	for i := range records {
		t.Add(records[i].Test, records[i].Value)
	}
	return t
}

// Merge combines several Totals into one. Order follows the first
// appearance of each identifier across the arguments.
func Merge(all ...*Totals) *Totals {
	agg := NewTotals()
	for _, t := range all {
		if t == nil {
			continue
		}
		for _, k := range t.order {
			agg.AddTotal(k, *t.byKey[k])
		}
	}
	return agg
}

// FileTotal is the summed time of every record in one numbered log file.
type FileTotal struct {
	Number  int     `json:"number"`
	Name    string  `json:"name"`
	TotalMs float64 `json:"total_ms"`
	Count   int     `json:"count"`
}

var numberedLogRe = regexp.MustCompile(`^(\d+)_(.+)\.log$`)

// FileTotals sums each parsed file's records, keyed by the file's numeric
// prefix. Files whose base name is not "<digits>_<name>.log" are skipped;
// a numbered file with no records still gets a zero row. The result is
// sorted by number.
func FileTotals(results []parser.Result) []FileTotal {
	byNum := make(map[int]*FileTotal)
	for i := range results {
		n, name, ok := NumberedLogName(filepath.Base(results[i].Source))
		if !ok {
			continue
		}
		ft, seen := byNum[n]
		if !seen {
			ft = &FileTotal{Number: n, Name: name}
			byNum[n] = ft
		}
		for _, r := range results[i].Records {
			ft.TotalMs += r.Value
			ft.Count++
		}
	}

	out := make([]FileTotal, 0, len(byNum))
	for _, ft := range byNum {
		out = append(out, *ft)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Number < out[j].Number
	})
	return out
}

// NumberedLogName reports the numeric prefix and base name of a runner log
// file name such as "07_liger_kernel_test_jsd.log".
func NumberedLogName(fileName string) (int, string, bool) {
	m := numberedLogRe.FindStringSubmatch(fileName)
	if m == nil {
		return 0, "", false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return n, m[2], true
}
