package extract

import (
	"strings"

	"github.com/aaronvstory/ReadySearch/internal/model"
)

// TableRecords parses the tabular results shape: rows carrying the
// date-of-birth label, either as one pipe-separated cell or as one field
// per cell. Rows without the label (headers, navigation) are skipped.
func TableRecords(s Surface) []model.PersonRecord {
	var recs []model.PersonRecord
	for _, table := range s.Tables {
		if tableTextLen(table) < 10 {
			continue
		}
		for _, row := range table {
			joined := strings.Join(row, " | ")
			if !hasDOBLabel(joined) {
				continue
			}
			if rec, ok := parseLabeledRow(row); ok {
				recs = append(recs, rec)
			}
		}
	}
	return recs
}

// parseLabeledRow classifies a row's fields into name, date of birth, and
// location. The name is the first alphabetic field that is not the labeled
// one; single-cell rows are split on the site's pipe separators first.
func parseLabeledRow(row []string) (model.PersonRecord, bool) {
	fields := row
	if len(row) == 1 {
		fields = strings.Split(row[0], "|")
	}

	var rec model.PersonRecord
	cleaned := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		cleaned = append(cleaned, f)

		switch {
		case hasDOBLabel(f):
			if rec.DateOfBirth == "" {
				rec.DateOfBirth = valueAfterLabel(f)
			}
		case rec.Name == "" && isNameLike(f):
			rec.Name = f
		case rec.DateOfBirth == "" && looksLikeDate(f):
			rec.DateOfBirth = f
		case rec.Location == "" && hasLocationToken(f):
			rec.Location = f
		}
	}

	if rec.Name == "" {
		return model.PersonRecord{}, false
	}
	rec.RawText = strings.Join(cleaned, " | ")
	return rec, true
}

func tableTextLen(table [][]string) int {
	n := 0
	for _, row := range table {
		for _, cell := range row {
			n += len(strings.TrimSpace(cell))
		}
	}
	return n
}
