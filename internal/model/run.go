package model

import "time"

// RunStatus tracks a batch run through its lifecycle.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
	RunStatusCanceled RunStatus = "canceled"
)

// Run is a persisted batch execution: the queries that went in and, once
// finished, the report that came out.
type Run struct {
	ID        string        `json:"id"`
	Queries   []SearchQuery `json:"queries"`
	Status    RunStatus     `json:"status"`
	Report    *BatchReport  `json:"report,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Terminal reports whether the run can no longer change.
func (r *Run) Terminal() bool {
	switch r.Status {
	case RunStatusComplete, RunStatusFailed, RunStatusCanceled:
		return true
	default:
		return false
	}
}
