package export

import (
	"encoding/csv"
	"os"

	"github.com/rotisserie/eris"

	"github.com/aaronvstory/ReadySearch/internal/model"
)

func writeCSV(report *model.BatchReport, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}

	w := csv.NewWriter(f)
	rows := make([][]string, 0, len(report.Results)+1)
	rows = append(rows, resultHeader)
	for _, r := range report.Results {
		rows = append(rows, resultRow(r))
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close() //nolint:errcheck
		return eris.Wrapf(err, "export: write csv %s", path)
	}
	return eris.Wrapf(f.Close(), "export: close %s", path)
}
