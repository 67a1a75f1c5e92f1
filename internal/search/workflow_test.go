package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aaronvstory/ReadySearch/internal/browser"
	"github.com/aaronvstory/ReadySearch/internal/dialog"
	"github.com/aaronvstory/ReadySearch/internal/extract"
	"github.com/aaronvstory/ReadySearch/internal/model"
	"github.com/aaronvstory/ReadySearch/internal/resilience"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// scriptedSession simulates the search site: operations are logged in
// order, selected calls can be made to fail, and Snapshot returns a canned
// surface.
type scriptedSession struct {
	mu  sync.Mutex
	log []string

	navErrs  []error
	navCalls int
	clickErr map[string]error
	surface  extract.Surface
	snapErr  error
	overlays map[string]bool
	dialogs  []browser.Dialog
}

func (s *scriptedSession) record(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, fmt.Sprintf(format, args...))
}

func (s *scriptedSession) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.log...)
}

func (s *scriptedSession) Navigate(_ context.Context, url string) error {
	s.mu.Lock()
	idx := s.navCalls
	s.navCalls++
	s.mu.Unlock()
	s.record("navigate:%s", url)
	if idx < len(s.navErrs) {
		return s.navErrs[idx]
	}
	return nil
}

func (s *scriptedSession) WaitVisible(_ context.Context, sel string) error {
	s.record("wait:%s", sel)
	return nil
}

func (s *scriptedSession) Fill(_ context.Context, sel, value string) error {
	s.record("fill:%s=%s", sel, value)
	return nil
}

func (s *scriptedSession) SelectOption(_ context.Context, sel, value string) error {
	s.record("select:%s=%s", sel, value)
	return nil
}

func (s *scriptedSession) Click(_ context.Context, sel string) error {
	if err := s.clickErr[sel]; err != nil {
		return err
	}
	s.record("click:%s", sel)
	return nil
}

func (s *scriptedSession) ClickAt(context.Context, float64, float64) error { return nil }
func (s *scriptedSession) SendEscape(context.Context) error                { return nil }

func (s *scriptedSession) Visible(_ context.Context, sel string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlays[sel], nil
}

func (s *scriptedSession) Enabled(context.Context, string) (bool, error) { return true, nil }
func (s *scriptedSession) Text(context.Context, string) (string, error)  { return "", nil }

func (s *scriptedSession) Snapshot(context.Context) (extract.Surface, error) {
	if s.snapErr != nil {
		return extract.Surface{}, s.snapErr
	}
	return s.surface, nil
}

func (s *scriptedSession) PendingDialog() (browser.Dialog, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.dialogs) == 0 {
		return browser.Dialog{}, false
	}
	d := s.dialogs[0]
	s.dialogs = s.dialogs[1:]
	return d, true
}

func (s *scriptedSession) Crashed() bool { return false }
func (s *scriptedSession) Close() error  { return nil }

func resultsSurface(rows ...string) extract.Surface {
	table := make([][]string, 0, len(rows))
	for _, r := range rows {
		table = append(table, []string{r})
	}
	return extract.Surface{
		URL:      "https://readysearch.com.au/products?person",
		Tables:   [][][]string{table},
		BodyText: strings.Join(rows, "\n"),
	}
}

func fastResolver() *dialog.Resolver {
	return dialog.NewResolver(dialog.Config{
		ProbeInterval: time.Millisecond,
		Deadline:      100 * time.Millisecond,
		MaxRounds:     1,
	})
}

func fastRetry(attempts int) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
	}
}

func newTestWorkflow(attempts int) *Workflow {
	cfg := DefaultConfig()
	cfg.Retry = fastRetry(attempts)
	return NewWorkflow(cfg, fastResolver(), nil, nil)
}

func TestRunExactMatch(t *testing.T) {
	t.Parallel()

	session := &scriptedSession{
		surface: resultsSurface("JOHN SMITH | Date of Birth: 15/03/1980 | Sydney NSW"),
	}
	w := newTestWorkflow(1)

	res, err := w.Run(context.Background(), session, model.SearchQuery{Name: "John Smith"})
	require.NoError(t, err)
	assert.Empty(t, res.Err)
	assert.Equal(t, model.MatchExact, res.Category)
	assert.Equal(t, 1, res.TotalRecords)
	assert.Equal(t, "John Smith", res.Query.Name)
	assert.Greater(t, res.Duration, time.Duration(0))

	calls := session.calls()
	assert.Contains(t, calls, "navigate:https://readysearch.com.au/products?person")
	assert.Contains(t, calls, `fill:input[name="search"]=John Smith`)
	assert.Contains(t, calls, "click:.sch_but")
}

func TestRunFillsYearRange(t *testing.T) {
	t.Parallel()

	session := &scriptedSession{
		surface: resultsSurface("JANE DOE | Date of Birth: 01/01/1980 | Melbourne VIC"),
	}
	w := newTestWorkflow(1)

	_, err := w.Run(context.Background(), session, model.SearchQuery{Name: "Jane Doe", BirthYear: 1980})
	require.NoError(t, err)

	calls := session.calls()
	assert.Contains(t, calls, `select:select[name="yobs"]=1978`)
	assert.Contains(t, calls, `select:select[name="yobe"]=1982`)
}

func TestRunNoResultsPage(t *testing.T) {
	t.Parallel()

	session := &scriptedSession{
		surface: extract.Surface{BodyText: "No records found for that name."},
	}
	w := newTestWorkflow(1)

	res, err := w.Run(context.Background(), session, model.SearchQuery{Name: "Zelda Quixote"})
	require.NoError(t, err)
	assert.Empty(t, res.Err)
	assert.Equal(t, model.MatchNone, res.Category)
	assert.Zero(t, res.TotalRecords)
	assert.Equal(t, "no records found", res.Reason)
}

func TestRunSubmitFallback(t *testing.T) {
	t.Parallel()

	session := &scriptedSession{
		clickErr: map[string]error{
			".sch_but": &resilience.ElementNotFoundError{Selector: ".sch_but"},
		},
		surface: resultsSurface("JOHN SMITH | Date of Birth: 15/03/1980 | Sydney NSW"),
	}
	w := newTestWorkflow(1)

	res, err := w.Run(context.Background(), session, model.SearchQuery{Name: "John Smith"})
	require.NoError(t, err)
	assert.Empty(t, res.Err)
	assert.Contains(t, session.calls(), `click:button[type="submit"]`)
}

func TestRunRetriesNavigation(t *testing.T) {
	t.Parallel()

	session := &scriptedSession{
		navErrs: []error{
			&resilience.NavigationError{URL: "x", Err: errors.New("timeout")},
		},
		surface: resultsSurface("JOHN SMITH | Date of Birth: 15/03/1980 | Sydney NSW"),
	}
	w := newTestWorkflow(3)

	res, err := w.Run(context.Background(), session, model.SearchQuery{Name: "John Smith"})
	require.NoError(t, err)
	assert.Empty(t, res.Err)
	assert.Equal(t, 2, session.navCalls, "second attempt should succeed")
}

func TestRunExhaustedRetriesReportsError(t *testing.T) {
	t.Parallel()

	navErr := &resilience.NavigationError{URL: "x", Err: errors.New("timeout")}
	session := &scriptedSession{
		navErrs: []error{navErr, navErr, navErr},
	}
	w := newTestWorkflow(2)

	res, err := w.Run(context.Background(), session, model.SearchQuery{Name: "John Smith"})
	require.NoError(t, err, "exhausted retries are reported in the result, not raised")
	assert.NotEmpty(t, res.Err)
	assert.Equal(t, model.MatchNone, res.Category)
	assert.Equal(t, "Error", res.Status())
	assert.Equal(t, 2, session.navCalls)
}

func TestRunPropagatesSessionCrash(t *testing.T) {
	t.Parallel()

	session := &scriptedSession{
		navErrs: []error{&resilience.SessionCrashError{Err: errors.New("tab gone")}},
	}
	w := newTestWorkflow(3)

	_, err := w.Run(context.Background(), session, model.SearchQuery{Name: "John Smith"})
	require.Error(t, err)
	assert.True(t, resilience.IsSessionCrash(err))
	assert.Equal(t, 1, session.navCalls, "crashes are not retried in place")
}

func TestRunStuckDialogWithoutRecords(t *testing.T) {
	t.Parallel()

	session := &scriptedSession{
		overlays: map[string]bool{".modal": true},
		surface:  extract.Surface{},
	}
	w := newTestWorkflow(1)

	res, err := w.Run(context.Background(), session, model.SearchQuery{Name: "John Smith"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Err)
	assert.Contains(t, res.Err, "dialog")
}

func TestRunStuckDialogWithRecordsSucceeds(t *testing.T) {
	t.Parallel()

	session := &scriptedSession{
		overlays: map[string]bool{".modal": true},
		surface:  resultsSurface("JOHN SMITH | Date of Birth: 15/03/1980 | Sydney NSW"),
	}
	w := newTestWorkflow(1)

	res, err := w.Run(context.Background(), session, model.SearchQuery{Name: "John Smith"})
	require.NoError(t, err)
	assert.Empty(t, res.Err, "readable results make the stuck dialog non-fatal")
	assert.Equal(t, model.MatchExact, res.Category)
}
