package jobs

import (
	"fmt"

	"github.com/vytor/chessinsight/internal/analysis"
	"github.com/vytor/chessinsight/internal/logger"
	"github.com/vytor/chessinsight/internal/models"
	"github.com/vytor/chessinsight/internal/tasks"
	"github.com/vytor/chessinsight/internal/worker"
)

// WorkerQueue implements JobQueue using a worker pool and the task store.
type WorkerQueue struct {
	analysisPool *worker.Pool
	store        *tasks.Store
	aggregator   worker.Aggregator
	maxGames     int
	log          *logger.Logger
}

// NewWorkerQueue creates a new WorkerQueue implementation
func NewWorkerQueue(analysisPool *worker.Pool, store *tasks.Store, aggregator worker.Aggregator, maxGames int) *WorkerQueue {
	if maxGames <= 0 {
		maxGames = analysis.MaxAnalysisGames
	}
	return &WorkerQueue{
		analysisPool: analysisPool,
		store:        store,
		aggregator:   aggregator,
		maxGames:     maxGames,
		log:          logger.Default().WithPrefix("jobs"),
	}
}

var _ JobQueue = (*WorkerQueue)(nil)

// EnqueueMistakeAnalysis sweeps expired tasks, creates a new one and hands the
// run to the pool. A rejected submission marks the task as failed.
func (q *WorkerQueue) EnqueueMistakeAnalysis(games []models.GameRecord, player string) (string, error) {
	if swept := q.store.Sweep(); swept > 0 {
		q.log.Debug("swept %d expired tasks", swept)
	}

	total := min(len(games), q.maxGames)
	id := q.store.Submit(total, map[string]any{
		"player":      player,
		"total_games": len(games),
	})

	err := q.analysisPool.Submit(&worker.MistakeAnalysisJob{
		TaskID:     id,
		Player:     player,
		Games:      games,
		Aggregator: q.aggregator,
		Tracker:    q.store,
	})
	if err != nil {
		q.store.Fail(id, err.Error())
		return id, fmt.Errorf("enqueue mistake analysis: %w", err)
	}
	return id, nil
}
