package model

import "time"

// MatchCategory is the verdict for a query against the records found.
type MatchCategory string

const (
	MatchExact   MatchCategory = "EXACT"
	MatchPartial MatchCategory = "PARTIAL"
	MatchNone    MatchCategory = "NONE"
)

// Rank orders categories for picking the best verdict (higher is better).
func (c MatchCategory) Rank() int {
	switch c {
	case MatchExact:
		return 2
	case MatchPartial:
		return 1
	default:
		return 0
	}
}

// Candidate pairs an extracted record with its per-record verdict.
type Candidate struct {
	Record     PersonRecord  `json:"record"`
	Category   MatchCategory `json:"category"`
	Confidence float64       `json:"confidence"`
	Reason     string        `json:"reason,omitempty"`
}

// MatchResult is the outcome of one query: the overall verdict, the
// candidates that qualified (best first), and timing. Err is set when the
// search itself failed, in which case the verdict fields carry no meaning.
type MatchResult struct {
	Query        SearchQuery   `json:"query"`
	Category     MatchCategory `json:"category"`
	Candidates   []Candidate   `json:"candidates,omitempty"`
	TotalRecords int           `json:"total_records"`
	Confidence   float64       `json:"confidence"`
	Reason       string        `json:"reason,omitempty"`
	Err          string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Status renders the report-facing status string.
func (r MatchResult) Status() string {
	if r.Err != "" {
		return "Error"
	}
	switch r.Category {
	case MatchExact:
		return "Match"
	case MatchPartial:
		return "Partial Match"
	default:
		return "No Match"
	}
}

// TopMatch returns the best qualifying candidate, if any.
func (r MatchResult) TopMatch() (Candidate, bool) {
	if len(r.Candidates) == 0 {
		return Candidate{}, false
	}
	return r.Candidates[0], true
}
