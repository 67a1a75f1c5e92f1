package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aaronvstory/ReadySearch/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		addr := serveAddr
		if addr == "" {
			addr = fmt.Sprintf(":%d", cfg.Server.Port)
		}

		srv := server.New(server.Config{
			Addr:        addr,
			CORSOrigins: cfg.Server.CORSOrigins,
			Version:     version,
		}, env.Pool, env.Workflow, batchConfig(cfg.Batch), env.Store)

		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config port)")
	rootCmd.AddCommand(serveCmd)
}
