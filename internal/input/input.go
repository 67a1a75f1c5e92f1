// Package input loads search queries from CSV and text files or inline
// CLI arguments and cleans them before a run.
package input

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aaronvstory/ReadySearch/internal/model"
)

// maxNameRunes caps query names; the site's form rejects longer input.
const maxNameRunes = 100

// Load reads queries from a file, dispatching on the extension. CSV files
// may carry a "name[,birth_year]" header or be a headerless single column;
// text files hold one "Name" or "Name,YYYY" per line. Bad rows are logged
// and skipped.
func Load(path string) ([]model.SearchQuery, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return loadCSV(path)
	case ".txt", "":
		return loadText(path)
	default:
		return nil, eris.Errorf("input: unsupported file type %q", filepath.Ext(path))
	}
}

// ParseInline splits semicolon-separated CLI input ("a;b,1980;c") into
// cleaned queries.
func ParseInline(s string) []model.SearchQuery {
	var queries []model.SearchQuery
	for _, part := range strings.Split(s, ";") {
		queries = append(queries, model.ParseQuery(part))
	}
	return Clean(queries)
}

func loadCSV(path string) ([]model.SearchQuery, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "input: open %s", path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var queries []model.SearchQuery
	first := true
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			zap.L().Warn("skipping unreadable csv row",
				zap.String("file", path),
				zap.Int("line", line),
				zap.Error(err))
			continue
		}
		if first {
			first = false
			if isHeader(record) {
				continue
			}
		}
		queries = append(queries, rowToQuery(record, path, line))
	}
	return Clean(queries), nil
}

func loadText(path string) ([]model.SearchQuery, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "input: open %s", path)
	}
	defer f.Close()

	var queries []model.SearchQuery
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		queries = append(queries, model.ParseQuery(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "input: read %s", path)
	}
	return Clean(queries), nil
}

// isHeader detects a "name[,birth_year]" header row.
func isHeader(record []string) bool {
	if len(record) == 0 {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(record[0]), "name")
}

func rowToQuery(record []string, path string, line int) model.SearchQuery {
	name := ""
	if len(record) > 0 {
		name = strings.TrimSpace(record[0])
	}
	q := model.SearchQuery{Name: name}

	if len(record) > 1 {
		yearStr := strings.TrimSpace(record[1])
		if yearStr != "" {
			year, err := strconv.Atoi(yearStr)
			if err != nil || year < 1900 || year > 2100 {
				zap.L().Warn("ignoring invalid birth year",
					zap.String("file", path),
					zap.Int("line", line),
					zap.String("year", yearStr))
			} else {
				q.BirthYear = year
			}
		}
	}
	return q
}

// Clean trims, drops empty and single-character names, truncates oversized
// ones, and dedupes case-insensitively keeping the first occurrence.
func Clean(queries []model.SearchQuery) []model.SearchQuery {
	seen := make(map[string]struct{}, len(queries))
	cleaned := make([]model.SearchQuery, 0, len(queries))
	for _, q := range queries {
		q.Name = strings.TrimSpace(q.Name)
		runes := []rune(q.Name)
		if len(runes) < 2 {
			if q.Name != "" {
				zap.L().Warn("skipping too-short query name", zap.String("name", q.Name))
			}
			continue
		}
		if len(runes) > maxNameRunes {
			q.Name = strings.TrimSpace(string(runes[:maxNameRunes]))
		}

		key := strings.ToLower(q.String())
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		cleaned = append(cleaned, q)
	}
	return cleaned
}
