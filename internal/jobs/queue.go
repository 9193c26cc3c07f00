package jobs

import "github.com/vytor/chessinsight/internal/models"

// JobQueue provides an abstraction for enqueueing background jobs
type JobQueue interface {
	// EnqueueMistakeAnalysis registers a task for the games and returns its id.
	EnqueueMistakeAnalysis(games []models.GameRecord, player string) (string, error)
}
