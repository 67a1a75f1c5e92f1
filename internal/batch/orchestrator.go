package batch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/mem"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/aaronvstory/ReadySearch/internal/browser"
	"github.com/aaronvstory/ReadySearch/internal/model"
	"github.com/aaronvstory/ReadySearch/internal/resilience"
)

// Runner executes one query on a session. Satisfied by search.Workflow.
type Runner interface {
	Run(ctx context.Context, s browser.Session, q model.SearchQuery) (model.MatchResult, error)
}

// SessionPool supplies browser sessions. Satisfied by browser.Pool.
type SessionPool interface {
	Acquire(ctx context.Context) (browser.Session, error)
	Release(s browser.Session)
	Size() int
}

// MemorySampler reports system memory use as a fraction in [0, 1].
type MemorySampler func(ctx context.Context) (float64, error)

func systemMemory(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent / 100, nil
}

// Config tunes batch execution.
type Config struct {
	Chunk model.ChunkConfig

	// RunID labels the report. Empty means a fresh UUID per run, which is
	// right everywhere except when a store has already minted the ID.
	RunID string

	// MaxConcurrent bounds simultaneous workflows within a chunk. The
	// effective bound never exceeds the session pool size.
	MaxConcurrent int

	// SearchDelay is the minimum spacing between query starts, shared
	// across all workers so the site sees one steady client.
	SearchDelay time.Duration

	// ChunkRestarts caps session-crash recoveries within one chunk before
	// its unfinished queries are written off as errors.
	ChunkRestarts int

	// DirectLimit is the batch size at or below which everything runs as a
	// single chunk with no memory governance.
	DirectLimit int

	Sampler    MemorySampler
	OnProgress func(done, total int)
}

// DefaultConfig returns production batch settings.
func DefaultConfig() Config {
	return Config{
		Chunk:         model.DefaultChunkConfig(),
		MaxConcurrent: 3,
		SearchDelay:   2500 * time.Millisecond,
		ChunkRestarts: 3,
		DirectLimit:   10,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Chunk == (model.ChunkConfig{}) {
		c.Chunk = d.Chunk
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = d.MaxConcurrent
	}
	if c.SearchDelay < 0 {
		c.SearchDelay = d.SearchDelay
	}
	if c.ChunkRestarts <= 0 {
		c.ChunkRestarts = d.ChunkRestarts
	}
	if c.DirectLimit <= 0 {
		c.DirectLimit = d.DirectLimit
	}
	if c.Sampler == nil {
		c.Sampler = systemMemory
	}
	return c
}

// Orchestrator runs a batch of queries in memory-governed chunks over a
// session pool. Every query gets exactly one slot in the report, written
// only by its own workflow, so output order always mirrors input order.
type Orchestrator struct {
	cfg       Config
	pool      SessionPool
	runner    Runner
	limiter   *rate.Limiter
	completed atomic.Int64
}

// New builds an orchestrator over the given pool and runner.
func New(cfg Config, pool SessionPool, runner Runner) *Orchestrator {
	cfg = cfg.withDefaults()
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.SearchDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.SearchDelay), 1)
	}
	return &Orchestrator{
		cfg:     cfg,
		pool:    pool,
		runner:  runner,
		limiter: limiter,
	}
}

// Run processes queries and returns a report with one result per query, in
// input order. A single failed query never stops the batch; only resource
// exhaustion aborts, and even then every remaining slot is filled with an
// abort marker so the report stays rectangular.
func (o *Orchestrator) Run(ctx context.Context, queries []model.SearchQuery) model.BatchReport {
	runID := o.cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	report := model.BatchReport{
		RunID:   runID,
		Started: time.Now(),
	}
	results := make([]model.MatchResult, len(queries))
	filled := make([]bool, len(queries))
	o.completed.Store(0)

	chunked := len(queries) > o.cfg.DirectLimit
	current := o.cfg.Chunk.Max
	peakMem := 0.0

	zap.L().Info("batch started",
		zap.String("run_id", report.RunID),
		zap.Int("queries", len(queries)),
		zap.Bool("chunked", chunked))

	abort := func(reason string) {
		report.Aborted = true
		report.AbortReason = reason
		for i := range results {
			if !filled[i] {
				results[i] = errResult(queries[i], "batch aborted: "+reason)
				filled[i] = true
			}
		}
	}

	chunkIdx := 0
	for lo := 0; lo < len(queries); {
		if ctx.Err() != nil {
			abort("canceled")
			break
		}

		size := len(queries) - lo
		if chunked {
			size = o.cfg.Chunk.Clamp(current)
			if size > len(queries)-lo {
				size = len(queries) - lo
			}
		}
		hi := lo + size

		zap.L().Info("chunk started",
			zap.String("run_id", report.RunID),
			zap.Int("chunk", chunkIdx),
			zap.Int("from", lo),
			zap.Int("size", size))
		report.ChunksUsed++

		if err := o.runChunk(ctx, queries, results, filled, lo, hi); err != nil {
			if resilience.IsResourceExhaustion(err) {
				zap.L().Error("batch aborted", zap.String("run_id", report.RunID), zap.Error(err))
				abort("resource exhaustion")
				break
			}
			// Cancellation surfaces here; anything else was already folded
			// into per-query results.
			abort("canceled")
			break
		}

		lo = hi
		chunkIdx++

		exact, partial, none, errs := tally(results, filled)
		zap.L().Info("chunk finished",
			zap.String("run_id", report.RunID),
			zap.Int("chunk", chunkIdx-1),
			zap.Int("done", int(o.completed.Load())),
			zap.Int("total", len(queries)),
			zap.Int("exact", exact),
			zap.Int("partial", partial),
			zap.Int("none", none),
			zap.Int("errors", errs))

		if lo >= len(queries) {
			break
		}

		if chunked {
			next, used, err := o.governChunkSize(ctx, current)
			if used > peakMem {
				peakMem = used
			}
			if err != nil {
				zap.L().Error("batch aborted", zap.String("run_id", report.RunID), zap.Error(err))
				abort("resource exhaustion")
				break
			}
			current = next
		}
		if err := sleepCtx(ctx, o.cfg.Chunk.Pause); err != nil {
			abort("canceled")
			break
		}
	}

	// Rectangular report even on paths that never reached a slot.
	for i := range results {
		if !filled[i] {
			reason := "not processed"
			if report.Aborted {
				reason = "batch aborted: " + report.AbortReason
			}
			results[i] = errResult(queries[i], reason)
		}
	}

	report.Results = results
	report.PeakMemory = peakMem
	report.Finished = time.Now()
	report.Summarize()
	zap.L().Info("batch finished",
		zap.String("run_id", report.RunID),
		zap.Int("exact", report.Exact),
		zap.Int("partial", report.Partial),
		zap.Int("none", report.None),
		zap.Int("errors", report.Errors),
		zap.Duration("elapsed", report.Finished.Sub(report.Started)))
	return report
}

// runChunk drives one chunk to completion, restarting on session crashes
// with only the unfinished queries requeued.
func (o *Orchestrator) runChunk(ctx context.Context, queries []model.SearchQuery, results []model.MatchResult, filled []bool, lo, hi int) error {
	pending := make([]int, 0, hi-lo)
	for i := lo; i < hi; i++ {
		pending = append(pending, i)
	}

	restarts := 0
	for len(pending) > 0 {
		crashed, err := o.dispatch(ctx, queries, results, filled, pending)
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		pending = unfinished(pending, filled)
		if len(pending) == 0 {
			return nil
		}
		restarts++
		if restarts > o.cfg.ChunkRestarts {
			zap.L().Error("chunk restarts exhausted",
				zap.Int("unfinished", len(pending)),
				zap.Int("restarts", restarts-1))
			for _, i := range pending {
				results[i] = errResult(queries[i], "session crashed and restarts exhausted")
				filled[i] = true
				o.noteProgress(len(queries))
			}
			return nil
		}
		zap.L().Warn("requeueing unfinished queries",
			zap.Bool("session_crash", crashed),
			zap.Int("unfinished", len(pending)),
			zap.Int("restart", restarts))
	}
	return nil
}

// dispatch fans the given query indices out over the pool. It reports
// whether a session crash left work unfinished. Fatal errors (resource
// exhaustion) come back as the error.
func (o *Orchestrator) dispatch(ctx context.Context, queries []model.SearchQuery, results []model.MatchResult, filled []bool, idxs []int) (bool, error) {
	g, gctx := errgroup.WithContext(ctx)
	limit := o.cfg.MaxConcurrent
	if ps := o.pool.Size(); ps < limit {
		limit = ps
	}
	g.SetLimit(limit)

	var crashed atomic.Bool
	for _, i := range idxs {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := o.limiter.Wait(gctx); err != nil {
				return nil
			}
			sess, err := o.pool.Acquire(gctx)
			if err != nil {
				if gctx.Err() == nil {
					crashed.Store(true)
					zap.L().Warn("session acquire failed", zap.Error(err))
				}
				return nil
			}
			res, err := o.runner.Run(gctx, sess, queries[i])
			o.pool.Release(sess)
			if err != nil {
				if resilience.IsResourceExhaustion(err) {
					return err
				}
				if resilience.IsSessionCrash(err) {
					crashed.Store(true)
					zap.L().Warn("session crashed mid-query",
						zap.String("name", queries[i].Name))
					return nil
				}
				res = errResult(queries[i], err.Error())
			}
			if res.Err != "" && gctx.Err() != nil {
				// Interrupted, not failed. Leave the slot open for requeue
				// or the abort filler.
				return nil
			}
			results[i] = res
			filled[i] = true
			o.noteProgress(len(queries))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return crashed.Load(), err
	}
	return crashed.Load(), nil
}

// governChunkSize samples memory after a chunk and reports the reading.
// Over the threshold the next chunk is halved; over the threshold at the
// minimum size the batch is out of headroom and must stop.
func (o *Orchestrator) governChunkSize(ctx context.Context, current int) (int, float64, error) {
	used, err := o.cfg.Sampler(ctx)
	if err != nil {
		zap.L().Warn("memory sample failed", zap.Error(err))
		return current, 0, nil
	}
	zap.L().Debug("memory sampled", zap.Float64("used", used))
	if used <= o.cfg.Chunk.MemoryThreshold {
		return current, used, nil
	}
	if o.cfg.Chunk.Clamp(current) > o.cfg.Chunk.Min {
		next := o.cfg.Chunk.Clamp(current / 2)
		zap.L().Warn("memory pressure, halving chunk size",
			zap.Float64("used", used),
			zap.Float64("threshold", o.cfg.Chunk.MemoryThreshold),
			zap.Int("from", o.cfg.Chunk.Clamp(current)),
			zap.Int("to", next))
		return next, used, nil
	}
	return current, used, &resilience.ResourceExhaustionError{UsedFraction: used}
}

func (o *Orchestrator) noteProgress(total int) {
	n := o.completed.Add(1)
	if o.cfg.OnProgress != nil {
		o.cfg.OnProgress(int(n), total)
	}
}

// Completed returns how many queries have finished so far.
func (o *Orchestrator) Completed() int {
	return int(o.completed.Load())
}

func unfinished(idxs []int, filled []bool) []int {
	var out []int
	for _, i := range idxs {
		if !filled[i] {
			out = append(out, i)
		}
	}
	return out
}

// tally counts verdicts over the slots filled so far. Safe between chunks
// only, when no workers are writing.
func tally(results []model.MatchResult, filled []bool) (exact, partial, none, errs int) {
	for i, ok := range filled {
		if !ok {
			continue
		}
		switch {
		case results[i].Err != "":
			errs++
		case results[i].Category == model.MatchExact:
			exact++
		case results[i].Category == model.MatchPartial:
			partial++
		default:
			none++
		}
	}
	return exact, partial, none, errs
}

func errResult(q model.SearchQuery, msg string) model.MatchResult {
	return model.MatchResult{Query: q, Category: model.MatchNone, Err: msg}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
