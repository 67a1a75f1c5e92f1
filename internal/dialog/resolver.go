package dialog

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aaronvstory/ReadySearch/internal/browser"
	"github.com/aaronvstory/ReadySearch/internal/resilience"
)

// MultiRecordMarker is the text of the interstitial the search site shows
// before rendering results for a person with several records.
const MultiRecordMarker = "ONE PERSON MAY HAVE MULTIPLE RECORDS"

// IsMultiRecord reports whether a native dialog was the multiple-records
// interstitial.
func IsMultiRecord(d browser.Dialog) bool {
	return strings.Contains(strings.ToUpper(d.Message), MultiRecordMarker)
}

// DefaultProbes are the overlay selectors checked for blocking dialogs.
var DefaultProbes = []string{
	".modal",
	".popup",
	".overlay",
	`[role="dialog"]`,
	".ui-dialog",
	".swal-overlay",
}

// DefaultControls are the dismiss controls tried by the affirmative
// strategy, most specific first.
var DefaultControls = []string{
	`[aria-label="Close"]`,
	".modal-close",
	".swal-button--confirm",
	".close",
	".btn-ok",
}

// Config tunes the resolver. Zero values fall back to defaults.
type Config struct {
	Probes        []string
	Controls      []string
	ProbeInterval time.Duration
	Deadline      time.Duration
	MaxRounds     int
	BackdropX     float64
	BackdropY     float64
}

// DefaultConfig returns the resolver settings used in production.
func DefaultConfig() Config {
	return Config{
		Probes:        DefaultProbes,
		Controls:      DefaultControls,
		ProbeInterval: 250 * time.Millisecond,
		Deadline:      5 * time.Second,
		MaxRounds:     3,
		BackdropX:     10,
		BackdropY:     10,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if len(c.Probes) == 0 {
		c.Probes = d.Probes
	}
	if len(c.Controls) == 0 {
		c.Controls = d.Controls
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = d.ProbeInterval
	}
	if c.Deadline <= 0 {
		c.Deadline = d.Deadline
	}
	if c.MaxRounds <= 0 {
		c.MaxRounds = d.MaxRounds
	}
	if c.BackdropX == 0 && c.BackdropY == 0 {
		c.BackdropX, c.BackdropY = d.BackdropX, d.BackdropY
	}
	return c
}

// Strategy is one way of dismissing an on-page dialog. Strategies only act;
// the resolver verifies the outcome by re-probing.
type Strategy struct {
	Name string
	Run  func(ctx context.Context, s browser.Session) error
}

// Outcome summarizes a resolution pass.
type Outcome struct {
	State     State
	Dismissed int
	Strategy  string
	Native    []browser.Dialog
	Elapsed   time.Duration
}

// Resolver watches for blocking dialogs and dismisses them, escalating
// through its strategies until the page is clear or the deadline passes.
type Resolver struct {
	cfg        Config
	strategies []Strategy
}

// NewResolver builds a resolver with the standard strategy order:
// affirmative control click, backdrop click, escape key.
func NewResolver(cfg Config) *Resolver {
	cfg = cfg.withDefaults()
	r := &Resolver{cfg: cfg}
	r.strategies = []Strategy{
		{Name: "affirmative", Run: r.clickAffirmative},
		{Name: "backdrop", Run: func(ctx context.Context, s browser.Session) error {
			return s.ClickAt(ctx, cfg.BackdropX, cfg.BackdropY)
		}},
		{Name: "escape", Run: func(ctx context.Context, s browser.Session) error {
			return s.SendEscape(ctx)
		}},
	}
	return r
}

// Strategies exposes the escalation order, mostly for logging.
func (r *Resolver) Strategies() []string {
	names := make([]string, len(r.strategies))
	for i, st := range r.strategies {
		names[i] = st.Name
	}
	return names
}

// Resolve drives the dialog state machine until the page is free of
// blocking overlays. A page that never shows a dialog resolves after a
// short watch window. Failure to clear a stubborn dialog returns a
// DialogTimeoutError; callers decide whether that is fatal.
func (r *Resolver) Resolve(ctx context.Context, s browser.Session) (Outcome, error) {
	start := time.Now()
	out := Outcome{}
	m := newMachine()
	defer func() {
		out.State = m.state
		out.Elapsed = time.Since(start)
	}()

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Deadline)
	defer cancel()

	m.to(StateWatching)
	idleProbes := 0
	failedRounds := 0

	for {
		out.Native = append(out.Native, drainNative(s)...)

		if ctx.Err() != nil {
			m.to(StateFailed)
			return out, &resilience.DialogTimeoutError{State: m.state.String(), Err: ctx.Err()}
		}

		overlay, found, err := r.firstOverlay(ctx, s)
		if err != nil {
			return out, err
		}
		if !found {
			idleProbes++
			if out.Dismissed > 0 || idleProbes >= 2 {
				m.to(StateResolved)
				return out, nil
			}
			if err := sleepCtx(ctx, r.cfg.ProbeInterval); err != nil {
				m.to(StateResolved)
				return out, nil
			}
			continue
		}
		idleProbes = 0
		zap.L().Debug("blocking dialog detected", zap.String("selector", overlay))

		m.to(StateDismissing)
		dismissed, err := r.dismiss(ctx, s, &out)
		if err != nil {
			return out, err
		}
		m.to(StateWatching)
		if !dismissed {
			failedRounds++
			if failedRounds >= r.cfg.MaxRounds {
				m.to(StateFailed)
				return out, &resilience.DialogTimeoutError{
					State: m.state.String(),
					Err:   eris.New("dialog: dismissal strategies exhausted"),
				}
			}
		}
	}
}

// dismiss runs the strategies in order and re-probes after each. Strategy
// errors other than a session crash mean "try the next one".
func (r *Resolver) dismiss(ctx context.Context, s browser.Session, out *Outcome) (bool, error) {
	for _, strat := range r.strategies {
		if err := strat.Run(ctx, s); err != nil {
			if resilience.IsSessionCrash(err) {
				return false, err
			}
			continue
		}
		if err := sleepCtx(ctx, r.cfg.ProbeInterval); err != nil {
			break
		}
		_, still, err := r.firstOverlay(ctx, s)
		if err != nil {
			return false, err
		}
		if !still {
			out.Dismissed++
			out.Strategy = strat.Name
			zap.L().Debug("dialog dismissed", zap.String("strategy", strat.Name))
			return true, nil
		}
	}
	return false, nil
}

// clickAffirmative clicks the first control that is both visible and
// enabled. No usable control is an error so the resolver escalates.
func (r *Resolver) clickAffirmative(ctx context.Context, s browser.Session) error {
	for _, sel := range r.cfg.Controls {
		shown, err := s.Visible(ctx, sel)
		if err != nil {
			return err
		}
		if !shown {
			continue
		}
		enabled, err := s.Enabled(ctx, sel)
		if err != nil {
			return err
		}
		if !enabled {
			continue
		}
		return s.Click(ctx, sel)
	}
	return &resilience.ElementNotFoundError{Selector: "dismiss control"}
}

// firstOverlay returns the first probe selector with a visible match.
func (r *Resolver) firstOverlay(ctx context.Context, s browser.Session) (string, bool, error) {
	for _, sel := range r.cfg.Probes {
		shown, err := s.Visible(ctx, sel)
		if err != nil {
			if resilience.IsSessionCrash(err) {
				return "", false, err
			}
			continue
		}
		if shown {
			return sel, true, nil
		}
	}
	return "", false, nil
}

func drainNative(s browser.Session) []browser.Dialog {
	var out []browser.Dialog
	for {
		d, ok := s.PendingDialog()
		if !ok {
			return out
		}
		out = append(out, d)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
