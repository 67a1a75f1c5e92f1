package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aaronvstory/ReadySearch/internal/batch"
	"github.com/aaronvstory/ReadySearch/internal/browser"
	"github.com/aaronvstory/ReadySearch/internal/config"
	"github.com/aaronvstory/ReadySearch/internal/dialog"
	"github.com/aaronvstory/ReadySearch/internal/model"
	"github.com/aaronvstory/ReadySearch/internal/resilience"
	"github.com/aaronvstory/ReadySearch/internal/search"
	"github.com/aaronvstory/ReadySearch/internal/store"
)

// engineEnv holds the session pool, the wired workflow, and the optional
// store needed by the search, batch, and serve commands.
type engineEnv struct {
	Pool     *browser.Pool
	Workflow *search.Workflow
	Store    store.Store // nil when store.driver is "none"
}

// Close releases browser sessions and the store connection.
func (e *engineEnv) Close() {
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEngine validates the config for mode, launches the session pool, and
// wires the workflow. Callers should defer env.Close(). Sessions are rooted
// at appCtx so they survive individual acquires and die with the process.
func initEngine(appCtx context.Context, mode string) (*engineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(appCtx)
	if err != nil {
		return nil, err
	}
	if st != nil {
		if err := st.Migrate(appCtx); err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "migrate store")
		}
	}

	chromeCfg := chromeConfig(cfg.Browser)
	factory := func(context.Context) (browser.Session, error) {
		return browser.NewChromeSession(appCtx, chromeCfg)
	}
	pool := browser.NewPool(cfg.Browser.PoolSize, factory)

	wf := search.NewWorkflow(searchConfig(cfg.Search), dialog.NewResolver(dialogConfig(cfg.Dialog)), nil, nil)

	zap.L().Debug("engine initialized",
		zap.Int("pool_size", cfg.Browser.PoolSize),
		zap.String("store", cfg.Store.Driver))

	return &engineEnv{Pool: pool, Workflow: wf, Store: st}, nil
}

// initStore builds the configured store, or nil for driver "none".
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.Path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "none":
		return nil, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func chromeConfig(c config.BrowserConfig) browser.ChromeConfig {
	return browser.ChromeConfig{
		Headless:  c.Headless,
		UserAgent: c.UserAgent,
		WindowW:   c.WindowWidth,
		WindowH:   c.WindowHeight,
		Locale:    c.Locale,
	}
}

func searchConfig(c config.SearchConfig) search.Config {
	sc := search.DefaultConfig()
	sc.BaseURL = c.BaseURL
	sc.YearSpan = c.YearSpan
	sc.NavigateTimeout = time.Duration(c.NavigateTimeoutSecs) * time.Second
	sc.ElementTimeout = time.Duration(c.ElementTimeoutSecs) * time.Second
	sc.ResultsTimeout = time.Duration(c.ResultsTimeoutSecs) * time.Second
	sc.StrictFirstName = c.StrictFirstName
	sc.Retry = resilience.FromConfig(c.Retries, c.BackoffMS, c.MaxBackoffMS)
	return sc
}

func dialogConfig(c config.DialogConfig) dialog.Config {
	return dialog.Config{
		ProbeInterval: time.Duration(c.ProbeIntervalMS) * time.Millisecond,
		Deadline:      time.Duration(c.DeadlineSecs) * time.Second,
		MaxRounds:     c.MaxRounds,
	}
}

func batchConfig(c config.BatchConfig) batch.Config {
	return batch.Config{
		Chunk: model.ChunkConfig{
			Min:             c.ChunkMin,
			Max:             c.ChunkMax,
			MemoryThreshold: c.MemoryThreshold,
			Pause:           time.Duration(c.PauseSecs) * time.Second,
		},
		MaxConcurrent: c.MaxConcurrent,
		SearchDelay:   time.Duration(c.SearchDelayMS) * time.Millisecond,
		ChunkRestarts: c.ChunkRestarts,
		DirectLimit:   c.DirectLimit,
	}
}
