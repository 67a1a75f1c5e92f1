package extract

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aaronvstory/ReadySearch/internal/match"
	"github.com/aaronvstory/ReadySearch/internal/model"
	"github.com/aaronvstory/ReadySearch/internal/resilience"
)

// Strategy is one way of reading records out of a surface. Strategies are
// tried in order; the first one yielding records wins.
type Strategy struct {
	Name  string
	Parse func(Surface) []model.PersonRecord
}

// DefaultStrategies returns the ordered list: the labeled table shape the
// site normally renders, then the generic container fallback.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "table", Parse: TableRecords},
		{Name: "container", Parse: ContainerRecords},
	}
}

// defaultNoResults are the phrases the site uses for an empty result set.
var defaultNoResults = []string{
	"no records found",
	"no results found",
	"no results",
	"no matches found",
	"nothing found",
	"0 results",
}

// Extractor turns a results surface into person records.
type Extractor struct {
	strategies []Strategy
	noResults  []*regexp.Regexp
}

// NewExtractor builds an extractor; nil arguments select the defaults.
// No-result phrases are matched on word boundaries, so "0 results" will
// not fire inside "10 results".
func NewExtractor(strategies []Strategy, noResultPhrases []string) *Extractor {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	if len(noResultPhrases) == 0 {
		noResultPhrases = defaultNoResults
	}
	pats := make([]*regexp.Regexp, len(noResultPhrases))
	for i, phrase := range noResultPhrases {
		pats[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(phrase) + `\b`)
	}
	return &Extractor{strategies: strategies, noResults: pats}
}

// Extract runs the strategy list over the snapshot. An explicit no-results
// page and a page where nothing record-shaped exists both return an empty
// slice with no error; an error means the page held person rows that no
// strategy could parse, or no content at all.
func (e *Extractor) Extract(s Surface) ([]model.PersonRecord, error) {
	if s.Empty() {
		return nil, &resilience.ExtractionError{
			Strategies: e.names(),
			Err:        eris.New("extract: empty results surface"),
		}
	}
	if e.NoResults(s.BodyText) {
		zap.L().Debug("no-results marker on page", zap.String("url", s.URL))
		return nil, nil
	}

	for _, st := range e.strategies {
		recs := st.Parse(s)
		if len(recs) == 0 {
			continue
		}
		for i := range recs {
			recs[i].Normalized = match.Normalize(recs[i].Name)
		}
		zap.L().Debug("records extracted",
			zap.String("strategy", st.Name),
			zap.Int("count", len(recs)),
		)
		return recs, nil
	}

	if hasDOBLabel(s.BodyText) {
		return nil, &resilience.ExtractionError{
			Strategies: e.names(),
			Err:        eris.New("extract: person rows present but unparseable"),
		}
	}
	return nil, nil
}

// NoResults reports whether the body text carries an explicit empty-result
// marker.
func (e *Extractor) NoResults(body string) bool {
	if strings.TrimSpace(body) == "" {
		return false
	}
	for _, pat := range e.noResults {
		if pat.MatchString(body) {
			return true
		}
	}
	return false
}

func (e *Extractor) names() []string {
	names := make([]string, len(e.strategies))
	for i, st := range e.strategies {
		names[i] = st.Name
	}
	return names
}
