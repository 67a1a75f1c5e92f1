// Package export writes batch reports to JSON, CSV, and XLSX files.
package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/aaronvstory/ReadySearch/internal/model"
)

// resultHeader is the flat column set shared by the CSV and XLSX sinks.
var resultHeader = []string{
	"name", "birth_year", "status", "category", "confidence", "reason",
	"total_records", "top_match", "top_dob", "top_location", "error", "duration_ms",
}

// Write renders the report to path, dispatching on the file extension
// (.json, .csv, .xlsx).
func Write(report *model.BatchReport, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return writeJSON(report, path)
	case ".csv":
		return writeCSV(report, path)
	case ".xlsx":
		return writeXLSX(report, path)
	default:
		return eris.Errorf("export: unsupported file type %q", filepath.Ext(path))
	}
}

func writeJSON(report *model.BatchReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return eris.Wrap(err, "export: marshal report")
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}

// resultRow flattens one result into the shared column set.
func resultRow(r model.MatchResult) []string {
	row := []string{
		r.Query.Name,
		"",
		r.Status(),
		string(r.Category),
		strconv.FormatFloat(r.Confidence, 'f', 2, 64),
		r.Reason,
		strconv.Itoa(r.TotalRecords),
		"", "", "",
		r.Err,
		strconv.FormatInt(r.Duration.Milliseconds(), 10),
	}
	if r.Query.BirthYear > 0 {
		row[1] = strconv.Itoa(r.Query.BirthYear)
	}
	if top, ok := r.TopMatch(); ok {
		row[7] = top.Record.Name
		row[8] = top.Record.DateOfBirth
		row[9] = top.Record.Location
	}
	return row
}
