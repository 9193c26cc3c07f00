package repository

import (
	"context"
	"time"

	"github.com/vytor/chessinsight/internal/models"
)

// EvalRepository handles persisted position evaluations.
// Get returns nil, nil when the position is unknown.
type EvalRepository interface {
	Get(ctx context.Context, fen string) (*models.CachedEval, error)
	Put(ctx context.Context, eval models.CachedEval) error
	Count(ctx context.Context) (int, error)
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}
