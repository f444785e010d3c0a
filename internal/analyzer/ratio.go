package analyzer

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const blockTensorNotSupported = "Block Tensor Not Supported"

// IsFailureMarker reports whether a results cell records a failed run
// rather than a measurement.
func IsFailureMarker(s string) bool {
	s = strings.TrimSpace(s)
	switch s {
	case "", "FAILED", "TIMEOUT", "ERROR", "N/A":
		return true
	}
	return strings.Contains(s, blockTensorNotSupported)
}

// Ratio divides two results cells. ok is false when either cell is a
// failure marker or unparsable, or when the denominator is not positive.
func Ratio(num, den string) (float64, bool) {
	if IsFailureMarker(num) || IsFailureMarker(den) {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0, false
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(den), 64)
	if err != nil {
		return 0, false
	}
	return RatioOf(n, d)
}

// RatioOf is Ratio over numbers already parsed.
func RatioOf(num, den float64) (float64, bool) {
	if den <= 0 {
		return 0, false
	}
	return num / den, true
}

// Table is a header-keyed CSV held in memory.
type Table struct {
	Header []string
	Rows   []map[string]string
}

// Has reports whether the table has the named column.
func (t *Table) Has(col string) bool {
	for _, h := range t.Header {
		if h == col {
			return true
		}
	}
	return false
}

// ReadTable parses a CSV whose first record is the header.
func ReadTable(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "read csv")
	}
	if len(records) == 0 {
		return &Table{}, nil
	}

	t := &Table{Header: records[0]}
	for _, rec := range records[1:] {
		row := make(map[string]string, len(t.Header))
		for i, h := range t.Header {
			if i < len(rec) {
				row[h] = rec[i]
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// ReadTableFile opens path and reads it with ReadTable.
func ReadTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	t, err := ReadTable(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return t, nil
}

// ColumnRatios divides column num by column den row by row, keeping only
// the pairs Ratio accepts.
func ColumnRatios(rows []map[string]string, num, den string) []float64 {
	var out []float64
	for _, row := range rows {
		if v, ok := Ratio(row[num], row[den]); ok {
			out = append(out, v)
		}
	}
	return out
}
