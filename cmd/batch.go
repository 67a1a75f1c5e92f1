package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aaronvstory/ReadySearch/internal/batch"
	"github.com/aaronvstory/ReadySearch/internal/export"
	"github.com/aaronvstory/ReadySearch/internal/input"
	"github.com/aaronvstory/ReadySearch/internal/model"
)

var (
	batchIn    string
	batchNames string
	batchOut   string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run a batch of queries in memory-governed chunks",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		queries, err := gatherQueries()
		if err != nil {
			return err
		}
		zap.L().Info("batch input loaded", zap.Int("queries", len(queries)))

		env, err := initEngine(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		bcfg := batchConfig(cfg.Batch)
		bcfg.OnProgress = func(done, total int) {
			zap.L().Info("progress", zap.Int("done", done), zap.Int("total", total))
		}

		var runID string
		if env.Store != nil {
			run, err := env.Store.CreateRun(ctx, queries)
			if err != nil {
				return eris.Wrap(err, "create run")
			}
			runID = run.ID
			bcfg.RunID = runID
			if err := env.Store.UpdateRunStatus(ctx, runID, model.RunStatusRunning); err != nil {
				zap.L().Warn("mark run running failed", zap.Error(err))
			}
		}

		orch := batch.New(bcfg, env.Pool, env.Workflow)
		report := orch.Run(ctx, queries)

		if env.Store != nil {
			persistReport(env, runID, &report)
		}
		if batchOut != "" {
			if err := export.Write(&report, batchOut); err != nil {
				return err
			}
			zap.L().Info("report written", zap.String("path", batchOut))
		}

		printSummary(os.Stdout, &report)
		if report.Aborted {
			return eris.Errorf("batch aborted: %s", report.AbortReason)
		}
		return nil
	},
}

// gatherQueries resolves the batch input source: a file or inline names.
func gatherQueries() ([]model.SearchQuery, error) {
	switch {
	case batchIn != "" && batchNames != "":
		return nil, eris.New("--in and --names are mutually exclusive")
	case batchIn != "":
		queries, err := input.Load(batchIn)
		if err != nil {
			return nil, err
		}
		if len(queries) == 0 {
			return nil, eris.Errorf("no valid queries in %s", batchIn)
		}
		return queries, nil
	case batchNames != "":
		queries := input.ParseInline(batchNames)
		if len(queries) == 0 {
			return nil, eris.New("no valid queries in --names")
		}
		return queries, nil
	default:
		return nil, eris.New("one of --in or --names is required")
	}
}

// persistReport saves results and the final status on a fresh context, so
// an interrupted run still lands in the store.
func persistReport(env *engineEnv, runID string, report *model.BatchReport) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := env.Store.SaveResults(ctx, runID, report.Results); err != nil {
		zap.L().Error("save results failed", zap.String("run_id", runID), zap.Error(err))
	}
	if err := env.Store.CompleteRun(ctx, runID, report); err != nil {
		zap.L().Error("complete run failed", zap.String("run_id", runID), zap.Error(err))
	}
}

func printSummary(out io.Writer, report *model.BatchReport) {
	elapsed := report.Finished.Sub(report.Started).Round(time.Second)
	rate := 0.0
	if report.Total() > 0 {
		rate = float64(report.Exact+report.Partial) / float64(report.Total())
	}
	_, _ = fmt.Fprintf(out, "\nRun %s: %d queries in %s\n", report.RunID, report.Total(), elapsed)
	_, _ = fmt.Fprintf(out, "  exact %d, partial %d, none %d, errors %d (match rate %.0f%%)\n",
		report.Exact, report.Partial, report.None, report.Errors, rate*100)
	if report.Aborted {
		_, _ = fmt.Fprintf(out, "  ABORTED: %s\n", report.AbortReason)
	}
}

func init() {
	batchCmd.Flags().StringVar(&batchIn, "in", "", "input file (.csv or .txt, one name[,year] per row)")
	batchCmd.Flags().StringVar(&batchNames, "names", "", "inline queries, semicolon-separated (\"a;b,1980;c\")")
	batchCmd.Flags().StringVar(&batchOut, "out", "", "write the report to a file (.json, .csv, or .xlsx)")
	rootCmd.AddCommand(batchCmd)
}
