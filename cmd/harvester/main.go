package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	config "harvester/configs"
	"harvester/pkg/logger"
)

// version is set at build time.
var version = "dev"

var (
	cfg *config.Config

	flagSourcesFile string
	flagVerbose     bool
)

var rootCmd = &cobra.Command{
	Use:          "harvester",
	Short:        "Runs crawl jobs and reports the outcome",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if flagSourcesFile != "" {
			cfg.SourcesFile = flagSourcesFile
		}
		if flagVerbose {
			cfg.Log.Level = "debug"
		}

		_, err = logger.Init(logger.Config{
			Level:      cfg.Log.Level,
			Encoding:   cfg.Log.Encoding,
			OutputPath: cfg.Log.OutputPath,
			Service:    "harvester",
		})
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagSourcesFile, "sources", "", "sources file (overrides SOURCES_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Get().Error("harvester failed", zap.Error(err))
		os.Exit(1)
	}
}
