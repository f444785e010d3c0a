package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/sanbench/internal/analyzer"
	"github.com/sanbench/internal/runner"
)

// WriteComparisonCSV writes one row per normalized test with a %.3f column
// per configuration. columns names those configuration columns.
func WriteComparisonCSV(w io.Writer, columns []string, rows []analyzer.Row) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(append([]string{"Test_Name"}, columns...)); err != nil {
		return err
	}
	for _, r := range rows {
		rec := make([]string, 0, len(columns)+1)
		rec = append(rec, r.Test)
		for i := range columns {
			var v float64
			if i < len(r.Values) {
				v = r.Values[i]
			}
			rec = append(rec, ms(v))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAblationCSV writes one row per numbered log file with a column per
// ablation config.
func WriteAblationCSV(w io.Writer, rows []analyzer.AblationRow) error {
	columns := make([]string, len(analyzer.AblationConfigs))
	for i, cfg := range analyzer.AblationConfigs {
		columns[i] = analyzer.AblationColumn(cfg)
	}
	flat := make([]analyzer.Row, len(rows))
	for i, r := range rows {
		flat[i] = analyzer.Row{Test: r.Test, Values: r.Values}
	}
	return WriteComparisonCSV(w, columns, flat)
}

// WriteResultsCSV writes the runner's per-test results across every
// registry key.
func WriteResultsCSV(w io.Writer, keys []string, rows []runner.ReportRow) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(append([]string{"Test_Number", "Test_Name"}, keys...)); err != nil {
		return err
	}
	for _, r := range rows {
		rec := make([]string, 0, len(keys)+2)
		rec = append(rec, r.Number, r.Name)
		for _, k := range keys {
			rec = append(rec, r.Cell(k))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSpeedupDetails writes per-test speedups followed by the raw times.
func WriteSpeedupDetails(w io.Writer, rep analyzer.SpeedupReport) error {
	cw := csv.NewWriter(w)

	header := []string{"Test_Name"}
	for _, cfg := range analyzer.AblationConfigs[1:] {
		header = append(header, "speedup_"+cfg)
	}
	header = append(header, "baseline_time_"+analyzer.AblationConfigs[0])
	for _, cfg := range analyzer.AblationConfigs[1:] {
		header = append(header, "time_"+cfg)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, d := range rep.Details {
		rec := []string{d.Test}
		for _, v := range d.Speedups {
			rec = append(rec, ftoa(v))
		}
		for _, v := range d.Times {
			rec = append(rec, ftoa(v))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSpeedupSummary writes one row per speedup metric.
func WriteSpeedupSummary(w io.Writer, rep analyzer.SpeedupReport) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"Speedup Metric", "Average", "Median", "Max", "Min", "Valid Samples"}); err != nil {
		return err
	}
	for _, m := range rep.Metrics {
		rec := []string{m.Name, "", "", "", "", itoa(m.Stats.N)}
		if m.Stats.Valid() {
			rec[1], rec[2] = ftoa(m.Stats.Avg), ftoa(m.Stats.Median)
			rec[3], rec[4] = ftoa(m.Stats.Upper), ftoa(m.Stats.Lower)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func ms(f float64) string {
	return fmt.Sprintf("%.3f", f)
}
