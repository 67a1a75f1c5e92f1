package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aaronvstory/ReadySearch/internal/export"
	"github.com/aaronvstory/ReadySearch/internal/input"
	"github.com/aaronvstory/ReadySearch/internal/model"
)

var searchOut string

var searchCmd = &cobra.Command{
	Use:   "search \"Name[,YYYY]\"",
	Short: "Look up a single person",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		queries := input.ParseInline(args[0])
		if len(queries) != 1 {
			return eris.Errorf("expected one query, got %d", len(queries))
		}
		q := queries[0]

		env, err := initEngine(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		sess, err := env.Pool.Acquire(ctx)
		if err != nil {
			return eris.Wrap(err, "acquire session")
		}
		started := time.Now()
		res, err := env.Workflow.Run(ctx, sess, q)
		env.Pool.Release(sess)
		if err != nil {
			return eris.Wrapf(err, "search %q", q.Name)
		}

		zap.L().Info("search finished",
			zap.String("name", q.Name),
			zap.String("status", res.Status()),
			zap.String("category", string(res.Category)),
			zap.Float64("confidence", res.Confidence),
			zap.Int("total_records", res.TotalRecords),
			zap.Duration("elapsed", time.Since(started)))

		if searchOut != "" {
			report := &model.BatchReport{
				Started:  started,
				Finished: time.Now(),
				Results:  []model.MatchResult{res},
			}
			report.Summarize()
			if err := export.Write(report, searchOut); err != nil {
				return err
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchOut, "out", "", "write the result to a file (.json, .csv, or .xlsx)")
	rootCmd.AddCommand(searchCmd)
}
