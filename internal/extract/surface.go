package extract

import (
	"regexp"
	"strings"
	"unicode"
)

// Surface is a one-shot snapshot of the rendered results view. Strategies
// are pure functions over it, so extraction is testable without a page.
type Surface struct {
	URL        string
	Tables     [][][]string // table -> row -> cell texts
	Containers []string     // texts of candidate result containers
	BodyText   string
}

// Empty reports whether the snapshot carries no content at all.
func (s Surface) Empty() bool {
	return len(s.Tables) == 0 && len(s.Containers) == 0 && strings.TrimSpace(s.BodyText) == ""
}

// dobLabel marks a person row on the results page.
const dobLabel = "date of birth:"

var dateShape = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{2,4}$`)

// locationTokens are matched against whole words of a field. State
// abbreviations stay token-level so "sa" never fires inside a word.
var locationTokens = map[string]struct{}{
	"street": {}, "road": {}, "avenue": {}, "drive": {}, "court": {},
	"place": {}, "lane": {}, "crescent": {},
	"nsw": {}, "vic": {}, "qld": {}, "sa": {}, "wa": {}, "nt": {},
	"act": {}, "tas": {},
	"sydney": {}, "melbourne": {}, "brisbane": {}, "perth": {},
	"adelaide": {}, "hobart": {}, "darwin": {}, "canberra": {},
}

func isNameLike(s string) bool {
	if len(s) <= 2 {
		return false
	}
	letters := 0
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			letters++
		case r == ' ' || r == '-' || r == '.' || r == '\'':
		default:
			return false
		}
	}
	return letters > 0
}

func hasDOBLabel(s string) bool {
	return strings.Contains(strings.ToLower(s), dobLabel)
}

// valueAfterLabel pulls the first token after "Date of Birth:".
func valueAfterLabel(s string) string {
	low := strings.ToLower(s)
	i := strings.Index(low, dobLabel)
	if i < 0 {
		return ""
	}
	fields := strings.Fields(s[i+len(dobLabel):])
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func looksLikeDate(s string) bool {
	return dateShape.MatchString(strings.TrimSpace(s))
}

func hasLocationToken(s string) bool {
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		tok = strings.TrimFunc(tok, unicode.IsPunct)
		if _, ok := locationTokens[tok]; ok {
			return true
		}
	}
	return false
}

func nonBlankLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
