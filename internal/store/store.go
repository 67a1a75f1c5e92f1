package store

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/aaronvstory/ReadySearch/internal/model"
)

// ErrNotFound is returned when a run does not exist in the store.
var ErrNotFound = eris.New("run not found")

// IsNotFound reports whether err means the requested run is missing rather
// than the store failing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for batch runs and their results.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, queries []model.SearchQuery) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, report *model.BatchReport) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Results
	SaveResults(ctx context.Context, runID string, results []model.MatchResult) error
	GetResults(ctx context.Context, runID string) ([]model.MatchResult, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
