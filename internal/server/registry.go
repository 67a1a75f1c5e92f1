package server

import (
	"context"
	"sync"

	"github.com/aaronvstory/ReadySearch/internal/batch"
	"github.com/aaronvstory/ReadySearch/internal/model"
)

// liveRun tracks one batch run started by this process, from accept to
// finish. The report stays nil while the run is in flight.
type liveRun struct {
	id     string
	total  int
	orch   *batch.Orchestrator
	cancel context.CancelFunc

	mu     sync.Mutex
	report *model.BatchReport
}

func (lr *liveRun) finish(report *model.BatchReport) {
	lr.mu.Lock()
	lr.report = report
	lr.mu.Unlock()
}

// snapshot returns the final report, or nil while the run is in flight.
func (lr *liveRun) snapshot() *model.BatchReport {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	return lr.report
}

// runRegistry holds every run started by this process. Finished runs stay
// registered so their reports remain queryable even without a store.
type runRegistry struct {
	mu   sync.Mutex
	runs map[string]*liveRun
}

func newRunRegistry() *runRegistry {
	return &runRegistry{runs: make(map[string]*liveRun)}
}

func (rr *runRegistry) add(lr *liveRun) {
	rr.mu.Lock()
	rr.runs[lr.id] = lr
	rr.mu.Unlock()
}

func (rr *runRegistry) get(id string) (*liveRun, bool) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	lr, ok := rr.runs[id]
	return lr, ok
}
