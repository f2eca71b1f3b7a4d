package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"docs-mcp-server/internal/config"
	"docs-mcp-server/internal/dbpool"
	"docs-mcp-server/internal/docsengine"
	"docs-mcp-server/internal/health"
	"docs-mcp-server/internal/jobs"
	"docs-mcp-server/internal/logging"
	"docs-mcp-server/internal/metrics"
	"docs-mcp-server/internal/protocolver"
	"docs-mcp-server/internal/security"
	"docs-mcp-server/internal/session"
	"docs-mcp-server/internal/tools"
	"docs-mcp-server/internal/transport"
)

var logLevel string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "docs-mcp-server",
	Short: "Documentation query service exposing a versioned JSON-RPC-over-HTTP protocol",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations for the jobs table",
	RunE: func(cmd *cobra.Command, args []string) error {
		slog.SetDefault(logging.New(logLevel))
		ctx := context.Background()

		poolCfg, err := dbpool.LoadConfigFromEnv()
		if err != nil {
			return err
		}
		retryCfg, err := dbpool.LoadRetryConfigFromEnv()
		if err != nil {
			return err
		}
		pool, err := dbpool.Open(ctx, poolCfg, retryCfg)
		if err != nil {
			return err
		}
		defer pool.Close()

		store := jobs.NewStore(pool.Raw())
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		slog.Info("migrations applied")
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := logging.New(logLevel)
	slog.SetDefault(logger)

	ctx := context.Background()

	serverCfg, err := config.LoadServerConfigFromEnv()
	if err != nil {
		return fmt.Errorf("loading server config: %w", err)
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
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating jobs table: %w", err)
	}

	recovered, err := store.RecoverStale(ctx)
	if err != nil {
		slog.Error("failed to recover stale jobs", "error", err)
	} else if recovered > 0 {
		slog.Warn("recovered stale running jobs at startup", "count", recovered)
	}

	var queue *jobs.Queue
	if serverCfg.UseRedisQueue {
		queue, err = jobs.NewQueueFromURL(serverCfg.RedisURL)
		if err != nil {
			return fmt.Errorf("opening job queue: %w", err)
		}
		defer queue.Close()
	}

	secGate := security.New(security.DefaultConfig())
	listenAddr := ":" + serverCfg.Port
	if err := secGate.ValidateBindAddress(listenAddr); err != nil {
		slog.Warn("bind address validation skipped for wildcard port-only address", "addr", listenAddr)
	}

	sessions := session.New(session.DefaultConfig())
	sessions.StartCleanupLoop()
	defer sessions.Stop()

	registry := buildRegistry(store, queue)

	counters := &metrics.Counters{}
	handler := transport.New(registry, sessions, secGate, counters)

	healthHandler := &health.Handler{
		Pool:        pool,
		Store:       store,
		ServiceName: "docs-mcp-server",
		Version:     transport.ServerInfo.Version,
	}

	mux := http.NewServeMux()
	mux.Handle("/mcp", handler)
	mux.HandleFunc("/health", healthHandler.Health)
	mux.HandleFunc("/health/live", healthHandler.Live)
	mux.HandleFunc("/health/ready", healthHandler.Ready)
	mux.HandleFunc("/health/detailed", healthHandler.Detailed)
	mux.Handle("/metrics", pool.Handler())

	server := &http.Server{
		Addr:         listenAddr,
		Handler:      http.TimeoutHandler(mux, 30*time.Second, transport.TimeoutBody(protocolver.Registry{})),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// runCtx supervises every background task (the pool monitor, the HTTP
	// server, and the signal-triggered shutdown) as one errgroup so a
	// failure or a shutdown signal in any of them tears down the rest.
	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		pool.Monitor(gctx, 60*time.Second)
		return nil
	})

	g.Go(func() error {
		slog.Info("starting docs-mcp-server", "addr", listenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			slog.Info("shutting down server...")
		case <-gctx.Done():
			return nil
		}
		cancelRun()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("server exited with error", "error", err)
		return err
	}
	slog.Info("server exited")
	return nil
}

func buildRegistry(store *jobs.Store, queue *jobs.Queue) *tools.Registry {
	registry := tools.NewRegistry()

	engine := docsengine.NewFixtureQueryEngine(map[string]string{
		"rust": "Rust standard library and crate documentation index.",
	})

	mustRegister(registry, &tools.RustQueryTool{Engine: engine})
	mustRegister(registry, &tools.IngestTool{Store: store, Queue: queue})

	configs, err := tools.LoadToolConfigs()
	if err != nil {
		slog.Error("failed to load dynamic tool configuration", "error", err)
	} else {
		tools.RegisterDynamicTools(registry, configs, engine)
	}

	mustRegister(registry, &tools.AddRustCrateTool{Store: store, Queue: queue})
	mustRegister(registry, &tools.RemoveRustCrateTool{})
	mustRegister(registry, &tools.ListRustCratesTool{})
	mustRegister(registry, &tools.CheckRustStatusTool{Store: store})

	return registry
}

func mustRegister(registry *tools.Registry, tool tools.Tool) {
	if err := registry.Register(tool); err != nil {
		slog.Error("failed to register tool", "name", tool.Definition().Name, "error", err)
	}
}
