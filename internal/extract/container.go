package extract

import (
	"strings"

	"github.com/aaronvstory/ReadySearch/internal/model"
)

// ContainerRecords is the fallback for non-tabular layouts: one record per
// container, first line taken as the name, later lines contributing date
// of birth and location. Overlapping containers produce duplicates, so
// records are deduplicated on (name, date of birth).
func ContainerRecords(s Surface) []model.PersonRecord {
	seen := make(map[string]struct{})
	var recs []model.PersonRecord

	for _, text := range s.Containers {
		lines := nonBlankLines(text)
		if len(lines) == 0 {
			continue
		}
		// Containers have no labeled gate, so demand a two-token name to
		// keep navigation text out.
		name := lines[0]
		if !isNameLike(name) || len(strings.Fields(name)) < 2 {
			continue
		}

		rec := model.PersonRecord{Name: name}
		for _, line := range lines[1:] {
			switch {
			case rec.DateOfBirth == "" && hasDOBLabel(line):
				rec.DateOfBirth = valueAfterLabel(line)
			case rec.Location == "" && hasLocationToken(line):
				rec.Location = line
			}
		}
		rec.RawText = strings.Join(lines, " | ")

		key := strings.ToLower(name) + "|" + rec.DateOfBirth
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		recs = append(recs, rec)
	}
	return recs
}
