package app

import (
	"context"
	"fmt"
	"time"

	"github.com/vytor/chessinsight/internal/analysis"
	"github.com/vytor/chessinsight/internal/chesscom"
	"github.com/vytor/chessinsight/internal/config"
	"github.com/vytor/chessinsight/internal/db"
	"github.com/vytor/chessinsight/internal/logger"
	"github.com/vytor/chessinsight/internal/metrics"
	"github.com/vytor/chessinsight/internal/oracle"
	"github.com/vytor/chessinsight/internal/repository"
	"github.com/vytor/chessinsight/internal/repository/sqlite"
	"github.com/vytor/chessinsight/internal/services"
)

// App holds the evaluation stack shared by the server and the CLI. DB and
// Evals are nil without a persistent cache, Memo is nil when EvalMemoSize is
// 0 and Cloud is nil when cloud evaluation is disabled.
type App struct {
	Config     config.Config
	Metrics    metrics.Collector
	DB         *db.DB
	Evals      repository.EvalRepository
	Memo       *oracle.LRUCache
	Cloud      *oracle.CloudEvaluator
	Aggregator *analysis.Aggregator
}

// New builds the evaluation stack from cfg. The caller must Close it.
func New(cfg config.Config, m metrics.Collector) (*App, error) {
	log := logger.Default().WithPrefix("app")
	a := &App{Config: cfg, Metrics: metrics.OrNoop(m)}

	opts := []analysis.Option{
		analysis.WithEngineStarter(analysis.StartProcess(cfg.StockfishPath)),
		analysis.WithEnginePool(cfg.PositionEngines),
		analysis.WithMetrics(a.Metrics),
	}

	if cfg.EvalMemoSize > 0 {
		memo, err := oracle.NewLRUCache(cfg.EvalMemoSize, a.Metrics)
		if err != nil {
			return nil, fmt.Errorf("create eval memo: %w", err)
		}
		a.Memo = memo
		opts = append(opts, analysis.WithCache(memo))
	}

	if cfg.EvalCachePath != "" {
		database, err := db.Open(cfg.EvalCachePath)
		if err != nil {
			return nil, fmt.Errorf("open eval cache: %w", err)
		}
		a.DB = database
		a.Evals = sqlite.NewEvalRepository(database.DB)
		opts = append(opts, analysis.WithCache(oracle.NewStoreCache(a.Evals, "oracle")))
	} else {
		log.Info("persistent eval cache disabled")
	}

	if cfg.CloudEvalEnabled {
		cloudCfg := cfg.Cloud()
		cloudCfg.Metrics = a.Metrics
		a.Cloud = oracle.NewCloudEvaluator(cloudCfg)
		opts = append(opts, analysis.WithCloud(a.Cloud), analysis.WithOracleStats(a.Cloud.Stats))
	} else {
		log.Info("cloud evaluation disabled")
	}

	a.Aggregator = analysis.NewAggregator(cfg.Analysis(), opts...)
	return a, nil
}

// OracleStats returns the cloud counters, or nil when the cloud is disabled.
func (a *App) OracleStats() services.OracleStatsProvider {
	if a.Cloud == nil {
		return nil
	}
	return a.Cloud
}

// GameSource returns a chess.com source bounded by the archive settings.
func (a *App) GameSource(maxGames int) chesscom.Source {
	return chesscom.Source{
		Client: chesscom.New(),
		Options: chesscom.FetchOptions{
			ArchiveLimit:  a.Config.ArchiveLimit,
			MaxConcurrent: a.Config.MaxConcurrentArchive,
			MaxGames:      maxGames,
		},
	}
}

// PruneEvalCache drops stored evaluations older than the configured maximum
// age. It is a no-op when the cache or the retention is disabled.
func (a *App) PruneEvalCache(ctx context.Context) (int64, error) {
	maxAge := a.Config.EvalCacheMaxAge()
	if a.Evals == nil || maxAge <= 0 {
		return 0, nil
	}
	return a.Evals.Prune(ctx, time.Now().Add(-maxAge))
}

func (a *App) Close() error {
	if a.Aggregator != nil {
		a.Aggregator.Close()
	}
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}
