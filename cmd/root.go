package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aaronvstory/ReadySearch/internal/config"
)

// version is stamped at build time via -ldflags.
var version = "dev"

var (
	cfg         *config.Config
	configPath  string
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "readysearch",
	Short: "Automated person search against ReadySearch.com.au",
	Long:  "Drives the ReadySearch person-search site through headless Chrome: single lookups, chunked batch runs with persistent history, and a REST API.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if verboseFlag {
			cfg.Log.Level = "debug"
		}
		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "debug logging")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
