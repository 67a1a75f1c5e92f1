package model

import (
	"strconv"
	"strings"
)

// SearchQuery is one name to look up, with an optional birth year used to
// narrow the site's year-of-birth range filter.
type SearchQuery struct {
	Name      string `json:"name"`
	BirthYear int    `json:"birth_year,omitempty"`
}

// ParseQuery parses "Name" or "Name,YYYY" input. The trailing year must be
// four digits in [1900, 2100]; anything else stays part of the name.
func ParseQuery(raw string) SearchQuery {
	raw = strings.TrimSpace(raw)
	if i := strings.LastIndex(raw, ","); i >= 0 {
		name := strings.TrimSpace(raw[:i])
		yearStr := strings.TrimSpace(raw[i+1:])
		if year, err := strconv.Atoi(yearStr); err == nil &&
			len(yearStr) == 4 && year >= 1900 && year <= 2100 && name != "" {
			return SearchQuery{Name: name, BirthYear: year}
		}
	}
	return SearchQuery{Name: raw}
}

func (q SearchQuery) String() string {
	if q.BirthYear > 0 {
		return q.Name + "," + strconv.Itoa(q.BirthYear)
	}
	return q.Name
}
