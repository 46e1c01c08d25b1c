package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/chromedriver-publisher/internal/config"
	"github.com/oshokin/chromedriver-publisher/internal/logger"
	"github.com/oshokin/chromedriver-publisher/internal/service/guard"
	"github.com/oshokin/chromedriver-publisher/internal/service/pipeline"
	"github.com/oshokin/chromedriver-publisher/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// logLevel overrides the default logging level.
	logLevel string

	// rootCmd represents the base command for checking and publishing releases.
	rootCmd = &cobra.Command{
		Use:          "chromedriver-publisher",
		Short:        "Download and publish new stable ChromeDriver releases",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			ctx = logger.WithName(ctx, "chromedriver-publisher")

			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			// Single-flight protection around the pipeline: the pipeline
			// itself takes no lock.
			release, err := guard.Acquire(ctx, cfg.ArtifactDir)
			if err != nil {
				return err
			}

			defer release()

			outcome, err := pipeline.Run(ctx, &pipeline.Options{Config: cfg})
			if err != nil {
				return err
			}

			logger.InfoKV(ctx, "Run finished", "outcome", string(outcome))

			return nil
		},
	}
)

// Execute runs the chromedriver-publisher CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "logging level (debug, info, warn, error)")
}
