package match

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aaronvstory/ReadySearch/internal/model"
)

// Matcher decides verdicts for extracted records against a query name.
// Safe for concurrent use.
type Matcher struct {
	vars *Variations
}

// NewMatcher builds a Matcher over the given equivalence table, falling
// back to the built-in table when vars is nil.
func NewMatcher(vars *Variations) *Matcher {
	if vars == nil {
		vars = DefaultVariations()
	}
	return &Matcher{vars: vars}
}

// Match evaluates every candidate record against queryName. It reports
// whether at least one candidate reached EXACT or PARTIAL and returns the
// qualifying candidates sorted best first: EXACT before PARTIAL, then by
// confidence descending, ties kept in encounter order.
func (m *Matcher) Match(queryName string, records []model.PersonRecord, strictFirst bool) (bool, []model.Candidate) {
	qTokens := Tokens(queryName)

	matched := make([]model.Candidate, 0, len(records))
	for _, rec := range records {
		cat, conf, reason := m.evaluate(qTokens, recordTokens(rec), strictFirst)
		if cat == model.MatchNone {
			continue
		}
		matched = append(matched, model.Candidate{
			Record:     rec,
			Category:   cat,
			Confidence: conf,
			Reason:     reason,
		})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Category.Rank() != matched[j].Category.Rank() {
			return matched[i].Category.Rank() > matched[j].Category.Rank()
		}
		return matched[i].Confidence > matched[j].Confidence
	})

	return len(matched) > 0, matched
}

// Evaluate scores a single record against queryName. Exposed for callers
// re-scoring already-extracted records without a fresh search.
func (m *Matcher) Evaluate(queryName string, rec model.PersonRecord, strictFirst bool) model.Candidate {
	cat, conf, reason := m.evaluate(Tokens(queryName), recordTokens(rec), strictFirst)
	return model.Candidate{Record: rec, Category: cat, Confidence: conf, Reason: reason}
}

// Verdict builds the full MatchResult for a query over the extracted
// records. The overall category and confidence come from the best
// candidate.
func (m *Matcher) Verdict(q model.SearchQuery, records []model.PersonRecord, strictFirst bool) model.MatchResult {
	res := model.MatchResult{
		Query:        q,
		Category:     model.MatchNone,
		TotalRecords: len(records),
	}
	if strings.TrimSpace(q.Name) == "" {
		res.Reason = "empty name"
		return res
	}
	if len(records) == 0 {
		res.Reason = "no records found"
		return res
	}

	ok, candidates := m.Match(q.Name, records, strictFirst)
	if !ok {
		res.Reason = "no qualifying candidate"
		return res
	}
	res.Candidates = candidates
	res.Category = candidates[0].Category
	res.Confidence = candidates[0].Confidence
	res.Reason = candidates[0].Reason
	return res
}

// evaluate applies the decision rules to pre-tokenized names. The surname
// gate comes first: the final tokens must be exactly equal or the record is
// out, no matter how similar the rest is.
func (m *Matcher) evaluate(qTokens, rTokens []string, strictFirst bool) (model.MatchCategory, float64, string) {
	if len(qTokens) == 0 || len(rTokens) == 0 {
		return model.MatchNone, 0, "empty name"
	}

	qLast := qTokens[len(qTokens)-1]
	rLast := rTokens[len(rTokens)-1]
	if qLast != rLast {
		return model.MatchNone, 0, fmt.Sprintf("surname mismatch: %q vs %q", qLast, rLast)
	}

	if sameTokenSet(qTokens, rTokens) {
		return model.MatchExact, 1.0, "all name tokens match"
	}

	if strictFirst {
		return model.MatchNone, 0, "exact match required"
	}

	conf := jaccard(qTokens, rTokens)
	qRest := qTokens[:len(qTokens)-1]
	rRest := rTokens[:len(rTokens)-1]

	if subset(qRest, rRest) || subset(rRest, qRest) {
		return model.MatchPartial, conf, "middle name difference"
	}

	if len(qRest) > 0 && len(rRest) > 0 {
		linked := m.vars.Equivalent(qRest[0], rRest[0]) || substringLink(qRest[0], rRest[0])
		if linked && (subset(qRest[1:], rRest[1:]) || subset(rRest[1:], qRest[1:])) {
			return model.MatchPartial, conf,
				fmt.Sprintf("first name variation: %q ~ %q", qRest[0], rRest[0])
		}
	}

	return model.MatchNone, 0, "name tokens incompatible"
}

func recordTokens(rec model.PersonRecord) []string {
	norm := rec.Normalized
	if norm == "" {
		norm = Normalize(rec.Name)
	}
	if norm == "" {
		return nil
	}
	return strings.Split(norm, " ")
}

// sameTokenSet reports multiset equality, so token order never affects an
// EXACT verdict.
func sameTokenSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, t := range a {
		counts[t]++
	}
	for _, t := range b {
		counts[t]--
		if counts[t] < 0 {
			return false
		}
	}
	return true
}

// subset reports whether every token of a occurs in b, multiset-aware.
// The empty list is a subset of anything.
func subset(a, b []string) bool {
	if len(a) > len(b) {
		return false
	}
	counts := make(map[string]int, len(b))
	for _, t := range b {
		counts[t]++
	}
	for _, t := range a {
		counts[t]--
		if counts[t] < 0 {
			return false
		}
	}
	return true
}

// substringLink accepts truncation-style nicknames absent from the table
// ("will" within "william"). Shorter side must be at least 3 runes.
func substringLink(a, b string) bool {
	if a == b {
		return true
	}
	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) < 3 {
		return false
	}
	return strings.Contains(longer, shorter)
}

// jaccard computes |intersection| / |union| over distinct tokens. Used for
// ranking only, never to decide a category.
func jaccard(a, b []string) float64 {
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	inter := 0
	union := len(set)
	seen := make(map[string]struct{}, len(b))
	for _, t := range b {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := set[t]; ok {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
