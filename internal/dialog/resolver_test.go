package dialog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aaronvstory/ReadySearch/internal/browser"
	"github.com/aaronvstory/ReadySearch/internal/extract"
	"github.com/aaronvstory/ReadySearch/internal/resilience"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type control struct {
	visible bool
	enabled bool
}

// fakePage scripts a page the resolver can probe and poke at. Mutation
// hooks let tests decide which strategy actually clears the overlay.
type fakePage struct {
	mu       sync.Mutex
	overlays map[string]bool
	controls map[string]control
	dialogs  []browser.Dialog

	clicks    []string
	clickAts  int
	escapes   int
	onClick   func(p *fakePage, sel string)
	onClickAt func(p *fakePage)
	onEscape  func(p *fakePage)

	visibleErr error
}

func (p *fakePage) Navigate(context.Context, string) error             { return nil }
func (p *fakePage) WaitVisible(context.Context, string) error          { return nil }
func (p *fakePage) Fill(context.Context, string, string) error         { return nil }
func (p *fakePage) SelectOption(context.Context, string, string) error { return nil }

func (p *fakePage) Click(_ context.Context, sel string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicks = append(p.clicks, sel)
	if p.onClick != nil {
		p.onClick(p, sel)
	}
	return nil
}

func (p *fakePage) ClickAt(context.Context, float64, float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clickAts++
	if p.onClickAt != nil {
		p.onClickAt(p)
	}
	return nil
}

func (p *fakePage) SendEscape(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.escapes++
	if p.onEscape != nil {
		p.onEscape(p)
	}
	return nil
}

func (p *fakePage) Visible(_ context.Context, sel string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.visibleErr != nil {
		return false, p.visibleErr
	}
	if p.overlays[sel] {
		return true, nil
	}
	return p.controls[sel].visible, nil
}

func (p *fakePage) Enabled(_ context.Context, sel string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.controls[sel].enabled, nil
}

func (p *fakePage) Text(context.Context, string) (string, error) { return "", nil }
func (p *fakePage) Snapshot(context.Context) (extract.Surface, error) {
	return extract.Surface{}, nil
}

func (p *fakePage) PendingDialog() (browser.Dialog, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.dialogs) == 0 {
		return browser.Dialog{}, false
	}
	d := p.dialogs[0]
	p.dialogs = p.dialogs[1:]
	return d, true
}

func (p *fakePage) Crashed() bool { return false }
func (p *fakePage) Close() error  { return nil }

func quickConfig() Config {
	return Config{
		ProbeInterval: 2 * time.Millisecond,
		Deadline:      500 * time.Millisecond,
		MaxRounds:     2,
	}
}

func TestResolveQuietPage(t *testing.T) {
	t.Parallel()

	page := &fakePage{}
	r := NewResolver(quickConfig())

	out, err := r.Resolve(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, StateResolved, out.State)
	assert.Zero(t, out.Dismissed)
	assert.Empty(t, out.Strategy)
}

func TestResolveAffirmativeClick(t *testing.T) {
	t.Parallel()

	page := &fakePage{
		overlays: map[string]bool{".modal": true},
		controls: map[string]control{".close": {visible: true, enabled: true}},
		onClick: func(p *fakePage, sel string) {
			if sel == ".close" {
				p.overlays[".modal"] = false
			}
		},
	}
	r := NewResolver(quickConfig())

	out, err := r.Resolve(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, StateResolved, out.State)
	assert.Equal(t, 1, out.Dismissed)
	assert.Equal(t, "affirmative", out.Strategy)
	assert.Contains(t, page.clicks, ".close")
	assert.Zero(t, page.clickAts, "backdrop should not be needed")
}

func TestResolveEscalatesToBackdrop(t *testing.T) {
	t.Parallel()

	page := &fakePage{
		overlays:  map[string]bool{".popup": true},
		onClickAt: func(p *fakePage) { p.overlays[".popup"] = false },
	}
	r := NewResolver(quickConfig())

	out, err := r.Resolve(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, "backdrop", out.Strategy)
	assert.Equal(t, 1, out.Dismissed)
	assert.Empty(t, page.clicks, "no control was available to click")
}

func TestResolveEscalatesToEscape(t *testing.T) {
	t.Parallel()

	page := &fakePage{
		overlays: map[string]bool{`[role="dialog"]`: true},
		onEscape: func(p *fakePage) { p.overlays[`[role="dialog"]`] = false },
	}
	r := NewResolver(quickConfig())

	out, err := r.Resolve(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, "escape", out.Strategy)
	assert.Equal(t, 1, page.clickAts, "backdrop should be tried before escape")
	assert.Equal(t, 1, page.escapes)
}

func TestResolveSkipsDisabledControl(t *testing.T) {
	t.Parallel()

	page := &fakePage{
		overlays: map[string]bool{".modal": true},
		controls: map[string]control{".close": {visible: true, enabled: false}},
		onClickAt: func(p *fakePage) {
			p.overlays[".modal"] = false
		},
	}
	r := NewResolver(quickConfig())

	out, err := r.Resolve(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, "backdrop", out.Strategy)
	assert.NotContains(t, page.clicks, ".close")
}

func TestResolveStubbornDialogFails(t *testing.T) {
	t.Parallel()

	page := &fakePage{
		overlays: map[string]bool{".overlay": true},
	}
	r := NewResolver(quickConfig())

	out, err := r.Resolve(context.Background(), page)
	require.Error(t, err)

	var dte *resilience.DialogTimeoutError
	require.True(t, errors.As(err, &dte))
	assert.Equal(t, "FAILED", dte.State)
	assert.Equal(t, StateFailed, out.State)
}

func TestResolveDeadlineFails(t *testing.T) {
	t.Parallel()

	page := &fakePage{
		overlays: map[string]bool{".overlay": true},
	}
	cfg := quickConfig()
	cfg.Deadline = 10 * time.Millisecond
	cfg.ProbeInterval = 4 * time.Millisecond
	cfg.MaxRounds = 100
	r := NewResolver(cfg)

	_, err := r.Resolve(context.Background(), page)
	var dte *resilience.DialogTimeoutError
	require.True(t, errors.As(err, &dte))
}

func TestResolveReportsNativeDialogs(t *testing.T) {
	t.Parallel()

	page := &fakePage{
		dialogs: []browser.Dialog{
			{Message: "One person may have multiple records", Kind: "alert"},
		},
	}
	r := NewResolver(quickConfig())

	out, err := r.Resolve(context.Background(), page)
	require.NoError(t, err)
	require.Len(t, out.Native, 1)
	assert.True(t, IsMultiRecord(out.Native[0]))
}

func TestResolvePropagatesSessionCrash(t *testing.T) {
	t.Parallel()

	page := &fakePage{
		visibleErr: &resilience.SessionCrashError{Err: errors.New("target gone")},
	}
	r := NewResolver(quickConfig())

	_, err := r.Resolve(context.Background(), page)
	require.Error(t, err)
	assert.True(t, resilience.IsSessionCrash(err))
}

func TestIsMultiRecordCaseInsensitive(t *testing.T) {
	t.Parallel()

	assert.True(t, IsMultiRecord(browser.Dialog{Message: "ONE PERSON MAY HAVE MULTIPLE RECORDS"}))
	assert.True(t, IsMultiRecord(browser.Dialog{Message: "Note: one person may have multiple records."}))
	assert.False(t, IsMultiRecord(browser.Dialog{Message: "Are you sure?"}))
}
