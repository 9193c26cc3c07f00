package worker

import (
	"context"
	"fmt"

	"github.com/vytor/chessinsight/internal/analysis"
	"github.com/vytor/chessinsight/internal/logger"
	"github.com/vytor/chessinsight/internal/models"
)

// Aggregator runs one mistake analysis over a set of games.
type Aggregator interface {
	Aggregate(ctx context.Context, games []models.GameRecord, player string, progress analysis.ProgressFunc) (*models.AggregatedAnalysis, error)
}

// Tracker receives the progress and outcome of a task.
type Tracker interface {
	ReportProgress(id string, current, total int)
	Complete(id string, result *models.AggregatedAnalysis)
	Fail(id string, message string)
}

// MistakeAnalysisJob runs an aggregation off the request path and reports
// into the task tracker. Partial results are discarded on failure.
type MistakeAnalysisJob struct {
	TaskID     string
	Player     string
	Games      []models.GameRecord
	Aggregator Aggregator
	Tracker    Tracker
}

func (j *MistakeAnalysisJob) Name() string { return "mistake_analysis" }

func (j *MistakeAnalysisJob) Run(ctx context.Context) (err error) {
	log := logger.FromContext(ctx).WithFields(map[string]any{
		"task_id": j.TaskID,
		"player":  j.Player,
	})
	log.Info("starting mistake analysis of %d games", len(j.Games))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mistake analysis panicked: %v", r)
			j.Tracker.Fail(j.TaskID, err.Error())
		}
	}()

	result, err := j.Aggregator.Aggregate(logger.NewContext(ctx, log), j.Games, j.Player, func(done, total int) {
		j.Tracker.ReportProgress(j.TaskID, done, total)
	})
	if err != nil {
		log.Error("mistake analysis failed: %v", err)
		j.Tracker.Fail(j.TaskID, err.Error())
		return err
	}

	j.Tracker.Complete(j.TaskID, result)
	log.Info("mistake analysis done: weakest stage %s", result.WeakestStage)
	return nil
}
