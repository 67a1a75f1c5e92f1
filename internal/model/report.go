package model

import "time"

// BatchReport is the full outcome of a batch run. Results are ordered by
// input position regardless of completion order.
type BatchReport struct {
	RunID       string        `json:"run_id"`
	Started     time.Time     `json:"started"`
	Finished    time.Time     `json:"finished"`
	Results     []MatchResult `json:"results"`
	Exact       int           `json:"exact"`
	Partial     int           `json:"partial"`
	None        int           `json:"none"`
	Errors      int           `json:"errors"`
	ChunksUsed  int           `json:"chunks_used"`
	PeakMemory  float64       `json:"peak_memory_pct"`
	Aborted     bool          `json:"aborted,omitempty"`
	AbortReason string        `json:"abort_reason,omitempty"`
}

// Summarize recomputes the verdict counters from Results.
func (r *BatchReport) Summarize() {
	r.Exact, r.Partial, r.None, r.Errors = 0, 0, 0, 0
	for _, res := range r.Results {
		switch {
		case res.Err != "":
			r.Errors++
		case res.Category == MatchExact:
			r.Exact++
		case res.Category == MatchPartial:
			r.Partial++
		default:
			r.None++
		}
	}
}

// Total returns the number of results in the report.
func (r *BatchReport) Total() int { return len(r.Results) }
