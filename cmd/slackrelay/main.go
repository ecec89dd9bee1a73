package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/slackrelay/slackrelay/pkg/config"
	"github.com/slackrelay/slackrelay/pkg/logger"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "slackrelay",
	Short: "Bridge Slack webhook events to a generative AI backend through SQS",
	Long: `slackrelay is a two-stage pipeline: an ingestion server that
authenticates and filters Slack webhook calls before queueing them, and a
consumer that deduplicates deliveries, rebuilds thread context, asks a
generative AI backend, and posts the answer back into the thread.`,
	SilenceUsage: true,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run the webhook ingestion server only",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()
		return runIngest(ctx, cfg)
	},
}

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Run the queue consumer only",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()
		return runConsume(ctx, cfg)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run both stages in one process",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()
		return runServe(ctx, cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to optional JSON config file")
	rootCmd.AddCommand(ingestCmd, consumeCmd, serveCmd)
}

func setup() (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	if cfg.Logging.FileEnabled && cfg.Logging.FilePath != "" {
		if err := logger.EnableFileLogging(cfg.Logging.FilePath); err != nil {
			logger.WarnCF("main", "File logging unavailable", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
