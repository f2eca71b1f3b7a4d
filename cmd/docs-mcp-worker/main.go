package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"docs-mcp-server/internal/config"
	"docs-mcp-server/internal/dbpool"
	"docs-mcp-server/internal/docsengine"
	"docs-mcp-server/internal/jobs"
	"docs-mcp-server/internal/logging"
)

var logLevel string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "docs-mcp-worker",
	Short: "Background worker that pops queued ingestion and crate-management jobs",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the worker loop",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	slog.SetDefault(logging.New(logLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workerCfg, err := config.LoadWorkerConfigFromEnv()
	if err != nil {
		return fmt.Errorf("loading worker config: %w", err)
	}

	poolCfg, err := dbpool.LoadConfigFromEnv()
	if err != nil {
		return fmt.Errorf("loading pool config: %w", err)
	}
	retryCfg, err := dbpool.LoadRetryConfigFromEnv()
	if err != nil {
		return fmt.Errorf("loading retry config: %w", err)
	}

	pool, err := dbpool.Open(ctx, poolCfg, retryCfg)
	if err != nil {
		return fmt.Errorf("opening database pool: %w", err)
	}
	defer pool.Close()

	store := jobs.NewStore(pool.Raw())

	queue, err := jobs.NewQueueFromURL(workerCfg.RedisURL)
	if err != nil {
		return fmt.Errorf("opening job queue: %w", err)
	}
	defer queue.Close()

	worker := jobs.NewWorker(
		jobs.WorkerConfig{JobTypes: workerCfg.JobTypes},
		store,
		queue,
		docsengine.FixedPlanAnalyzer{},
		&docsengine.HashEmbeddingProvider{},
	)

	slog.Info("starting docs-mcp-worker", "job_types", workerCfg.JobTypes)
	worker.Run(ctx)
	slog.Info("worker exited")
	return nil
}
