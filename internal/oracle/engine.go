package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/vytor/chessinsight/internal/engine"
	"github.com/vytor/chessinsight/internal/logger"
	"github.com/vytor/chessinsight/internal/metrics"
)

// DefaultFallbackMoveTime is the search time used when the engine only
// covers cloud misses.
const DefaultFallbackMoveTime = 100 * time.Millisecond

// Engine is the part of engine.Engine the oracle needs.
type Engine interface {
	Evaluate(ctx context.Context, fen string, limit engine.Limit) (engine.Result, error)
}

var _ Engine = (*engine.Engine)(nil)

// Budget decides how much effort each engine query may spend.
type Budget struct {
	Nodes            int
	Depth            int
	MoveTime         time.Duration
	FallbackMoveTime time.Duration
	// CloudPrimary is set when a cloud evaluator sits in front of the engine.
	CloudPrimary bool
}

// Limit picks a node budget when one is configured, a short fixed-time
// search when the engine is only a cloud fallback, and depth plus time otherwise.
func (b Budget) Limit() engine.Limit {
	switch {
	case b.Nodes > 0:
		return engine.Limit{Nodes: b.Nodes}
	case b.CloudPrimary:
		mt := b.FallbackMoveTime
		if mt <= 0 {
			mt = DefaultFallbackMoveTime
		}
		return engine.Limit{MoveTime: mt}
	default:
		return engine.Limit{Depth: b.Depth, MoveTime: b.MoveTime}
	}
}

// EngineEvaluator scores positions with a local engine process.
type EngineEvaluator struct {
	engine  Engine
	limit   engine.Limit
	metrics metrics.Collector
}

// NewEngineEvaluator wraps eng with the given budget. A nil engine never evaluates.
func NewEngineEvaluator(eng Engine, budget Budget, m metrics.Collector) *EngineEvaluator {
	return &EngineEvaluator{
		engine:  eng,
		limit:   budget.Limit(),
		metrics: metrics.OrNoop(m),
	}
}

// Limit returns the per-query limit in use.
func (e *EngineEvaluator) Limit() engine.Limit {
	return e.limit
}

func (e *EngineEvaluator) Evaluate(ctx context.Context, fen string) (int, error) {
	if e.engine == nil {
		return 0, ErrNoEvaluation
	}

	start := time.Now()
	res, err := e.engine.Evaluate(ctx, fen, e.limit)
	e.metrics.IncCounter(metrics.EngineQueries, 1)
	e.metrics.ObserveHistogram(metrics.EngineQuerySeconds, time.Since(start).Seconds())
	if err != nil {
		logger.FromContext(ctx).WithPrefix("oracle").Warn("engine evaluation failed: %v", err)
		return 0, fmt.Errorf("%w: %v", ErrNoEvaluation, err)
	}
	return res.CP, nil
}
