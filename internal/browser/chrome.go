package browser

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/chromedp/cdproto/inspector"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aaronvstory/ReadySearch/internal/extract"
	"github.com/aaronvstory/ReadySearch/internal/resilience"
)

// ChromeConfig tunes the Chrome instance backing a session.
type ChromeConfig struct {
	Headless  bool
	UserAgent string
	WindowW   int
	WindowH   int
	Locale    string
}

// DefaultChromeConfig returns the settings used against the production site.
func DefaultChromeConfig() ChromeConfig {
	return ChromeConfig{
		Headless: true,
		WindowW:  1280,
		WindowH:  960,
		Locale:   "en-AU",
	}
}

// ChromeSession drives a single Chrome tab through chromedp. Native
// JavaScript dialogs are accepted as they open and recorded on a bounded
// queue so the dialog resolver can observe them after the fact.
type ChromeSession struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	dialogs     chan Dialog
	crashed     atomic.Bool
}

// NewChromeSession launches a Chrome instance and attaches a tab to it.
func NewChromeSession(ctx context.Context, cfg ChromeConfig) (*ChromeSession, error) {
	if cfg.WindowW <= 0 || cfg.WindowH <= 0 {
		cfg.WindowW, cfg.WindowH = 1280, 960
	}
	if cfg.Locale == "" {
		cfg.Locale = "en-AU"
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("lang", cfg.Locale),
		chromedp.WindowSize(cfg.WindowW, cfg.WindowH),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &ChromeSession{
		ctx:         tabCtx,
		cancel:      tabCancel,
		allocCancel: allocCancel,
		dialogs:     make(chan Dialog, 8),
	}
	chromedp.ListenTarget(tabCtx, s.onTargetEvent)

	// An empty Run materializes the browser process before the first use.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, eris.Wrap(err, "browser: start chrome")
	}
	zap.L().Debug("chrome session started",
		zap.Bool("headless", cfg.Headless),
		zap.String("locale", cfg.Locale))
	return s, nil
}

func (s *ChromeSession) onTargetEvent(ev interface{}) {
	switch e := ev.(type) {
	case *page.EventJavascriptDialogOpening:
		d := Dialog{Message: e.Message, Kind: string(e.Type)}
		select {
		case s.dialogs <- d:
		default:
		}
		zap.L().Debug("native dialog accepted",
			zap.String("kind", d.Kind),
			zap.String("message", d.Message))
		// Handling must not run inside the listener goroutine.
		go func() {
			_ = chromedp.Run(s.ctx, page.HandleJavaScriptDialog(true))
		}()
	case *inspector.EventTargetCrashed:
		s.crashed.Store(true)
		zap.L().Warn("chrome target crashed")
	case *inspector.EventDetached:
		s.crashed.Store(true)
		zap.L().Warn("chrome target detached", zap.String("reason", string(e.Reason)))
	}
}

// bound derives a chromedp-rooted context that also honors the caller's
// deadline and cancellation.
func (s *ChromeSession) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	var bctx context.Context
	var cancel context.CancelFunc
	if dl, ok := ctx.Deadline(); ok {
		bctx, cancel = context.WithDeadline(s.ctx, dl)
	} else {
		bctx, cancel = context.WithCancel(s.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return bctx, func() {
		stop()
		cancel()
	}
}

func (s *ChromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	if s.Crashed() {
		return &resilience.SessionCrashError{Err: eris.New("browser: session already crashed")}
	}
	bctx, cancel := s.bound(ctx)
	defer cancel()
	err := chromedp.Run(bctx, actions...)
	if err == nil {
		return nil
	}
	if s.Crashed() || s.ctx.Err() != nil {
		s.crashed.Store(true)
		return &resilience.SessionCrashError{Err: err}
	}
	return err
}

// Navigate implements Session.
func (s *ChromeSession) Navigate(ctx context.Context, url string) error {
	err := s.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err == nil {
		return nil
	}
	if resilience.IsSessionCrash(err) {
		return err
	}
	return &resilience.NavigationError{URL: url, Err: err}
}

// WaitVisible implements Session.
func (s *ChromeSession) WaitVisible(ctx context.Context, sel string) error {
	err := s.run(ctx, chromedp.WaitVisible(sel, chromedp.ByQuery))
	if err == nil {
		return nil
	}
	if resilience.IsSessionCrash(err) {
		return err
	}
	return &resilience.ElementNotFoundError{Selector: sel, Err: err}
}

// Fill implements Session.
func (s *ChromeSession) Fill(ctx context.Context, sel, value string) error {
	err := s.run(ctx,
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.SetValue(sel, value, chromedp.ByQuery),
	)
	if err == nil {
		return nil
	}
	if resilience.IsSessionCrash(err) {
		return err
	}
	return &resilience.ElementNotFoundError{Selector: sel, Err: err}
}

// SelectOption implements Session. The change event is dispatched manually
// so listeners attached by the page fire as they would on a real selection.
func (s *ChromeSession) SelectOption(ctx context.Context, sel, value string) error {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		el.value = %q;
		el.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	})()`, sel, value)
	var ok bool
	err := s.run(ctx, chromedp.Evaluate(script, &ok))
	if err != nil {
		if resilience.IsSessionCrash(err) {
			return err
		}
		return &resilience.ElementNotFoundError{Selector: sel, Err: err}
	}
	if !ok {
		return &resilience.ElementNotFoundError{Selector: sel}
	}
	return nil
}

// Click implements Session.
func (s *ChromeSession) Click(ctx context.Context, sel string) error {
	err := s.run(ctx, chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible))
	if err == nil {
		return nil
	}
	if resilience.IsSessionCrash(err) {
		return err
	}
	return &resilience.ElementNotFoundError{Selector: sel, Err: err}
}

// ClickAt implements Session.
func (s *ChromeSession) ClickAt(ctx context.Context, x, y float64) error {
	return s.run(ctx, chromedp.MouseClickXY(x, y))
}

// SendEscape implements Session.
func (s *ChromeSession) SendEscape(ctx context.Context) error {
	return s.run(ctx, chromedp.KeyEvent(kb.Escape))
}

// Visible implements Session.
func (s *ChromeSession) Visible(ctx context.Context, sel string) (bool, error) {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		const r = el.getBoundingClientRect();
		const st = window.getComputedStyle(el);
		return r.width > 0 && r.height > 0 && st.visibility !== 'hidden' && st.display !== 'none';
	})()`, sel)
	var shown bool
	if err := s.run(ctx, chromedp.Evaluate(script, &shown)); err != nil {
		return false, err
	}
	return shown, nil
}

// Enabled implements Session.
func (s *ChromeSession) Enabled(ctx context.Context, sel string) (bool, error) {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		return !!el && !el.disabled;
	})()`, sel)
	var enabled bool
	if err := s.run(ctx, chromedp.Evaluate(script, &enabled)); err != nil {
		return false, err
	}
	return enabled, nil
}

// Text implements Session.
func (s *ChromeSession) Text(ctx context.Context, sel string) (string, error) {
	var out string
	err := s.run(ctx, chromedp.Text(sel, &out, chromedp.ByQuery))
	if err != nil {
		if resilience.IsSessionCrash(err) {
			return "", err
		}
		return "", &resilience.ElementNotFoundError{Selector: sel, Err: err}
	}
	return out, nil
}

// snapshotJS serializes everything the extraction strategies read in a
// single round trip: table cell grids, candidate result containers, and
// the flattened body text.
const snapshotJS = `(() => {
	const tables = Array.from(document.querySelectorAll('table')).map(t =>
		Array.from(t.querySelectorAll('tr')).map(r =>
			Array.from(r.querySelectorAll('td,th')).map(c => (c.innerText || '').trim())
		)
	);
	const probes = ['[class*="result"]', '[class*="person"]', '[class*="record"]', '.search-results li'];
	const seen = new Set();
	const containers = [];
	for (const probe of probes) {
		for (const el of document.querySelectorAll(probe)) {
			const text = (el.innerText || '').trim();
			if (text && !seen.has(text)) {
				seen.add(text);
				containers.push(text);
			}
		}
	}
	return {
		url: location.href,
		tables: tables,
		containers: containers.slice(0, 50),
		bodyText: document.body ? document.body.innerText : ''
	};
})()`

// Snapshot implements Session.
func (s *ChromeSession) Snapshot(ctx context.Context) (extract.Surface, error) {
	var snap struct {
		URL        string       `json:"url"`
		Tables     [][][]string `json:"tables"`
		Containers []string     `json:"containers"`
		BodyText   string       `json:"bodyText"`
	}
	if err := s.run(ctx, chromedp.Evaluate(snapshotJS, &snap)); err != nil {
		if resilience.IsSessionCrash(err) {
			return extract.Surface{}, err
		}
		return extract.Surface{}, &resilience.ExtractionError{
			Strategies: []string{"snapshot"},
			Err:        err,
		}
	}
	return extract.Surface{
		URL:        snap.URL,
		Tables:     snap.Tables,
		Containers: snap.Containers,
		BodyText:   snap.BodyText,
	}, nil
}

// PendingDialog implements Session.
func (s *ChromeSession) PendingDialog() (Dialog, bool) {
	select {
	case d := <-s.dialogs:
		return d, true
	default:
		return Dialog{}, false
	}
}

// Crashed implements Session.
func (s *ChromeSession) Crashed() bool {
	return s.crashed.Load()
}

// Close implements Session. Cancel asks the browser to shut down cleanly
// before the allocator tears the process down.
func (s *ChromeSession) Close() error {
	err := chromedp.Cancel(s.ctx)
	s.cancel()
	s.allocCancel()
	if err != nil && s.ctx.Err() == nil {
		return eris.Wrap(err, "browser: close chrome")
	}
	return nil
}

var _ Session = (*ChromeSession)(nil)
