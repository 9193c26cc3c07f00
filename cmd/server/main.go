package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vytor/chessinsight/internal/api"
	"github.com/vytor/chessinsight/internal/app"
	"github.com/vytor/chessinsight/internal/config"
	"github.com/vytor/chessinsight/internal/jobs"
	"github.com/vytor/chessinsight/internal/logger"
	"github.com/vytor/chessinsight/internal/metrics"
	"github.com/vytor/chessinsight/internal/services"
	"github.com/vytor/chessinsight/internal/tasks"
	"github.com/vytor/chessinsight/internal/worker"
)

const maintenanceInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration: %v", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
		logger.WithColors(true),
	)
	logger.SetDefault(log)
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}

	log.Info("===========================================")
	log.Info("ChessInsight Server Starting")
	log.Info("===========================================")
	log.Info("configuration loaded")
	log.Debug("addr=%s", cfg.Addr)
	log.Debug("eval_cache_path=%s", cfg.EvalCachePath)
	log.Debug("stockfish_path=%s", cfg.StockfishPath)
	log.Debug("stockfish_depth=%d", cfg.StockfishDepth)
	log.Debug("log_level=%s", cfg.LogLevel)
	log.Debug("cloud_eval_enabled=%t", cfg.CloudEvalEnabled)
	log.Debug("analysis_worker_count=%d", cfg.AnalysisWorkerCount)
	log.Debug("analysis_queue_size=%d", cfg.AnalysisQueueSize)
	log.Debug("archive_limit=%d", cfg.ArchiveLimit)
	log.Debug("max_concurrent_archive=%d", cfg.MaxConcurrentArchive)

	collector := metrics.NewPrometheus(prometheus.DefaultRegisterer)

	stack, err := app.New(cfg, collector)
	if err != nil {
		log.Error("failed to build evaluation stack: %v", err)
		os.Exit(1)
	}
	defer func() {
		log.Debug("closing eval cache")
		stack.Close()
	}()

	taskStore := tasks.NewStore(
		tasks.WithTTL(cfg.TaskTTL()),
		tasks.WithSecondsPerItem(cfg.TaskSecondsPerItem),
		tasks.WithMetrics(collector),
	)

	// Initialize worker pool
	analysisPool := worker.NewPool(cfg.AnalysisWorkerCount, cfg.AnalysisQueueSize)
	queue := jobs.NewWorkerQueue(analysisPool, taskStore, stack.Aggregator, cfg.MaxAnalysisGames)

	// Fetched games are capped well above the analysis sample so the
	// selection still spans the player's recent history.
	analysisService := services.NewAnalysisService(
		queue,
		taskStore,
		stack.Aggregator,
		stack.OracleStats(),
		stack.GameSource(cfg.MaxAnalysisGames*10),
	)

	srv := &api.Server{
		AnalysisService: analysisService,
		MetricsHandler:  promhttp.Handler(),
		Metrics:         collector,
	}
	if stack.DB != nil {
		srv.DB = stack.DB.DB
	}

	ctx, cancel := context.WithCancel(context.Background())
	analysisPool.Start(ctx)
	go runMaintenance(ctx, log, taskStore, stack)

	// Configure HTTP server
	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server
	go func() {
		log.Info("HTTP server listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error: %v", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop

	log.Info("received signal %v, initiating graceful shutdown", sig)

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Debug("stopping workers")
	cancel()

	log.Debug("shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error: %v", err)
	}

	log.Debug("stopping analysis pool")
	analysisPool.Stop()

	log.Info("===========================================")
	log.Info("ChessInsight Server Stopped")
	log.Info("===========================================")
}

// runMaintenance evicts expired tasks every minute and prunes the eval cache
// at startup and then hourly.
func runMaintenance(ctx context.Context, log *logger.Logger, store *tasks.Store, stack *app.App) {
	log = log.WithPrefix("maintenance")

	prune := func() {
		n, err := stack.PruneEvalCache(ctx)
		if err != nil {
			log.Warn("failed to prune eval cache: %v", err)
			return
		}
		if n > 0 {
			log.Info("pruned %d cached evaluations", n)
		}
	}
	prune()

	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for ticks := 1; ; ticks++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Sweep(); n > 0 {
				log.Debug("evicted %d expired tasks", n)
			}
			if ticks%60 == 0 {
				prune()
			}
		}
	}
}
