package export

import (
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/aaronvstory/ReadySearch/internal/model"
)

func writeXLSX(report *model.BatchReport, path string) error {
	f := xlsx.NewFile()

	results, err := f.AddSheet("Results")
	if err != nil {
		return eris.Wrap(err, "export: add results sheet")
	}
	addRow(results, resultHeader...)
	for _, r := range report.Results {
		addRow(results, resultRow(r)...)
	}

	summary, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}
	for _, kv := range summaryRows(report) {
		addRow(summary, kv[0], kv[1])
	}

	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func summaryRows(report *model.BatchReport) [][2]string {
	total := report.Total()
	rate := 0.0
	if total > 0 {
		rate = float64(report.Exact+report.Partial) / float64(total)
	}
	rows := [][2]string{
		{"run_id", report.RunID},
		{"started", report.Started.Format("2006-01-02 15:04:05")},
		{"finished", report.Finished.Format("2006-01-02 15:04:05")},
		{"duration", report.Finished.Sub(report.Started).Round(10 * time.Millisecond).String()},
		{"total", strconv.Itoa(total)},
		{"exact", strconv.Itoa(report.Exact)},
		{"partial", strconv.Itoa(report.Partial)},
		{"none", strconv.Itoa(report.None)},
		{"errors", strconv.Itoa(report.Errors)},
		{"match_rate", strconv.FormatFloat(rate, 'f', 2, 64)},
		{"chunks", strconv.Itoa(report.ChunksUsed)},
		{"peak_memory_pct", strconv.FormatFloat(report.PeakMemory*100, 'f', 1, 64)},
	}
	if report.Aborted {
		rows = append(rows, [2]string{"aborted", report.AbortReason})
	}
	return rows
}
