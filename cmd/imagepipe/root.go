package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kara-analytics/image-pipeline/internal/config"
	"github.com/kara-analytics/image-pipeline/pkg/runner"
)

// app carries the flags and lazily-loaded configuration shared by all
// subcommands.
type app struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "imagepipe",
		Short:         "Object-detection ingestion pipeline for scraped channel images",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newRunCommand(a))
	rootCmd.AddCommand(newSummaryCommand(a))
	rootCmd.AddCommand(newLoadMessagesCommand(a))

	return rootCmd
}

// setup loads configuration and builds the process logger.
func (a *app) setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, nil, err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, nil, fmt.Errorf("invalid log_level %q: %w", cfg.LogLevel, err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return cfg, logger, nil
}

// runnerConfig maps the loaded configuration onto the runner's surface.
func runnerConfig(cfg *config.Config) runner.Config {
	return runner.Config{
		CorpusRoot:          cfg.CorpusRoot,
		Channels:            cfg.Channels,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		ModelVersion:        cfg.ModelVersion,
		Workers:             cfg.Workers,
		ManifestPath:        cfg.ManifestPath,
		DatabaseDriver:      cfg.Database.Driver,
		DatabaseDSN:         cfg.Database.DSN,
		DetectorURL:         cfg.Detector.URL,
		DetectTimeout:       time.Duration(cfg.Detector.TimeoutSeconds) * time.Second,
		MaxUploadDim:        cfg.Detector.MaxUploadDim,
	}
}
