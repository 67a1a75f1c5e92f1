package search

import (
	"context"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aaronvstory/ReadySearch/internal/browser"
	"github.com/aaronvstory/ReadySearch/internal/dialog"
	"github.com/aaronvstory/ReadySearch/internal/extract"
	"github.com/aaronvstory/ReadySearch/internal/match"
	"github.com/aaronvstory/ReadySearch/internal/model"
	"github.com/aaronvstory/ReadySearch/internal/resilience"
)

// Phase names one stage of the search workflow.
type Phase string

const (
	PhaseNavigate     Phase = "NAVIGATE"
	PhaseFillForm     Phase = "FILL_FORM"
	PhaseSubmit       Phase = "SUBMIT"
	PhaseAwaitResults Phase = "AWAIT_RESULTS"
	PhaseExtract      Phase = "EXTRACT"
	PhaseMatch        Phase = "MATCH"
	PhaseDone         Phase = "DONE"
)

// Config holds the site contract: where the form lives, which controls to
// drive, and how long each phase may take.
type Config struct {
	BaseURL        string
	SearchInput    string
	YearStartSel   string
	YearEndSel     string
	SubmitControls []string

	// YearSpan widens a birth-year query to [year-span, year+span].
	YearSpan int

	NavigateTimeout time.Duration
	ElementTimeout  time.Duration
	ResultsTimeout  time.Duration

	StrictFirstName bool
	Retry           resilience.RetryConfig
}

// DefaultConfig returns the production site contract.
func DefaultConfig() Config {
	return Config{
		BaseURL:      "https://readysearch.com.au/products?person",
		SearchInput:  `input[name="search"]`,
		YearStartSel: `select[name="yobs"]`,
		YearEndSel:   `select[name="yobe"]`,
		SubmitControls: []string{
			".sch_but",
			`button[type="submit"]`,
			`input[type="submit"]`,
		},
		YearSpan:        2,
		NavigateTimeout: 30 * time.Second,
		ElementTimeout:  10 * time.Second,
		ResultsTimeout:  30 * time.Second,
		Retry:           resilience.DefaultRetryConfig(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BaseURL == "" {
		c.BaseURL = d.BaseURL
	}
	if c.SearchInput == "" {
		c.SearchInput = d.SearchInput
	}
	if c.YearStartSel == "" {
		c.YearStartSel = d.YearStartSel
	}
	if c.YearEndSel == "" {
		c.YearEndSel = d.YearEndSel
	}
	if len(c.SubmitControls) == 0 {
		c.SubmitControls = d.SubmitControls
	}
	if c.YearSpan < 0 {
		c.YearSpan = d.YearSpan
	}
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = d.NavigateTimeout
	}
	if c.ElementTimeout <= 0 {
		c.ElementTimeout = d.ElementTimeout
	}
	if c.ResultsTimeout <= 0 {
		c.ResultsTimeout = d.ResultsTimeout
	}
	return c
}

// Workflow runs one query end to end through a browser session: navigate,
// fill the form, submit, clear interstitials, extract, and match.
type Workflow struct {
	cfg       Config
	resolver  *dialog.Resolver
	extractor *extract.Extractor
	matcher   *match.Matcher
}

// NewWorkflow wires a workflow. Nil collaborators fall back to defaults.
func NewWorkflow(cfg Config, resolver *dialog.Resolver, extractor *extract.Extractor, matcher *match.Matcher) *Workflow {
	if resolver == nil {
		resolver = dialog.NewResolver(dialog.DefaultConfig())
	}
	if extractor == nil {
		extractor = extract.NewExtractor(nil, nil)
	}
	if matcher == nil {
		matcher = match.NewMatcher(nil)
	}
	return &Workflow{
		cfg:       cfg.withDefaults(),
		resolver:  resolver,
		extractor: extractor,
		matcher:   matcher,
	}
}

// Run executes the workflow for one query, retrying transient failures from
// the top. The result always carries the query and elapsed time. A failed
// query is reported inside the result; only a session crash or resource
// exhaustion comes back as an error, because those need the batch layer to
// react, not a per-query retry.
func (w *Workflow) Run(ctx context.Context, s browser.Session, q model.SearchQuery) (model.MatchResult, error) {
	start := time.Now()

	cfg := w.cfg.Retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("search", q.Name)
	}
	res, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (model.MatchResult, error) {
		return w.attempt(ctx, s, q)
	})

	res.Query = q
	res.Duration = time.Since(start)

	if err != nil {
		if resilience.IsSessionCrash(err) || resilience.IsResourceExhaustion(err) {
			return res, err
		}
		res.Category = model.MatchNone
		res.Err = err.Error()
		zap.L().Warn("query failed",
			zap.String("name", q.Name),
			zap.Duration("elapsed", res.Duration),
			zap.Error(err))
		return res, nil
	}

	zap.L().Info("query complete",
		zap.String("name", q.Name),
		zap.String("status", res.Status()),
		zap.Int("records", res.TotalRecords),
		zap.Duration("elapsed", res.Duration))
	return res, nil
}

// attempt is one pass through the phase sequence.
func (w *Workflow) attempt(ctx context.Context, s browser.Session, q model.SearchQuery) (model.MatchResult, error) {
	var zero model.MatchResult

	err := w.phase(ctx, PhaseNavigate, w.cfg.NavigateTimeout, func(ctx context.Context) error {
		return s.Navigate(ctx, w.cfg.BaseURL)
	})
	if err != nil {
		return zero, err
	}

	err = w.phase(ctx, PhaseFillForm, w.cfg.ElementTimeout, func(ctx context.Context) error {
		return w.fillForm(ctx, s, q)
	})
	if err != nil {
		return zero, err
	}

	err = w.phase(ctx, PhaseSubmit, w.cfg.ElementTimeout, func(ctx context.Context) error {
		return w.submit(ctx, s)
	})
	if err != nil {
		return zero, err
	}

	var interstitial error
	err = w.phase(ctx, PhaseAwaitResults, w.cfg.ResultsTimeout, func(ctx context.Context) error {
		if err := s.WaitVisible(ctx, "body"); err != nil {
			return err
		}
		out, rerr := w.resolver.Resolve(ctx, s)
		for _, d := range out.Native {
			if dialog.IsMultiRecord(d) {
				zap.L().Debug("multiple-records notice accepted", zap.String("name", q.Name))
			}
		}
		if rerr != nil {
			if resilience.IsSessionCrash(rerr) {
				return rerr
			}
			// A stuck overlay may still leave results readable underneath.
			// Hold the error and let extraction decide.
			interstitial = rerr
			zap.L().Warn("dialog unresolved, attempting extraction anyway",
				zap.String("name", q.Name), zap.Error(rerr))
		}
		return nil
	})
	if err != nil {
		return zero, err
	}

	var records []model.PersonRecord
	err = w.phase(ctx, PhaseExtract, w.cfg.ElementTimeout, func(ctx context.Context) error {
		surface, serr := s.Snapshot(ctx)
		if serr != nil {
			return serr
		}
		records, serr = w.extractor.Extract(surface)
		return serr
	})
	if err != nil {
		if interstitial != nil && !resilience.IsSessionCrash(err) {
			// Nothing readable behind the overlay, so the dialog failure is
			// the real story.
			return zero, interstitial
		}
		return zero, err
	}
	if len(records) == 0 && interstitial != nil {
		return zero, interstitial
	}

	var verdict model.MatchResult
	err = w.phase(ctx, PhaseMatch, w.cfg.ElementTimeout, func(context.Context) error {
		verdict = w.matcher.Verdict(q, records, w.cfg.StrictFirstName)
		return nil
	})
	if err != nil {
		return zero, err
	}

	zap.L().Debug("workflow phase", zap.String("phase", string(PhaseDone)), zap.String("name", q.Name))
	return verdict, nil
}

func (w *Workflow) fillForm(ctx context.Context, s browser.Session, q model.SearchQuery) error {
	if err := s.WaitVisible(ctx, w.cfg.SearchInput); err != nil {
		return err
	}
	if err := s.Fill(ctx, w.cfg.SearchInput, q.Name); err != nil {
		return err
	}
	if q.BirthYear <= 0 {
		return nil
	}
	from := strconv.Itoa(q.BirthYear - w.cfg.YearSpan)
	to := strconv.Itoa(q.BirthYear + w.cfg.YearSpan)
	if err := s.SelectOption(ctx, w.cfg.YearStartSel, from); err != nil {
		return err
	}
	return s.SelectOption(ctx, w.cfg.YearEndSel, to)
}

// submit clicks the first working submit control. The site has renamed its
// button class before, hence the fallback list.
func (w *Workflow) submit(ctx context.Context, s browser.Session) error {
	var lastErr error
	for _, sel := range w.cfg.SubmitControls {
		err := s.Click(ctx, sel)
		if err == nil {
			return nil
		}
		if resilience.IsSessionCrash(err) {
			return err
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = eris.New("search: no submit control configured")
	}
	return lastErr
}

// phase runs fn under its own deadline and logs the elapsed time.
func (w *Workflow) phase(ctx context.Context, p Phase, timeout time.Duration, fn func(ctx context.Context) error) error {
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := fn(pctx)
	elapsed := time.Since(start)

	if err != nil {
		zap.L().Debug("workflow phase failed",
			zap.String("phase", string(p)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return eris.Wrapf(err, "search: phase %s", p)
	}
	zap.L().Debug("workflow phase",
		zap.String("phase", string(p)),
		zap.Duration("elapsed", elapsed))
	return nil
}
