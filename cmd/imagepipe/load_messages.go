package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kara-analytics/image-pipeline/pkg/runner"
)

func newLoadMessagesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "load-messages <dir>",
		Short: "Import the scraper's JSON message exports into the message store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := a.setup()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			r, err := runner.New(ctx, runnerConfig(cfg), logger)
			if err != nil {
				return err
			}
			defer r.Close()

			count, err := r.LoadMessages(ctx, args[0])
			if err != nil {
				return err
			}

			logger.Info("messages loaded", slog.String("dir", args[0]), slog.Int("count", count))
			return nil
		},
	}
}
