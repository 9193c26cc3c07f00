package analysis

import (
	"context"
	"errors"
	"sync"

	"github.com/vytor/chessinsight/internal/engine"
)

var errNoEngine = errors.New("analysis: no engine configured")

// lazyEngine starts the engine on its first query, so positions answered by
// a cache or the cloud never spawn a process.
type lazyEngine struct {
	start EngineStarter

	once sync.Once
	eng  EngineHandle
	err  error
}

func (l *lazyEngine) Evaluate(ctx context.Context, fen string, limit engine.Limit) (engine.Result, error) {
	l.once.Do(func() {
		if l.start == nil {
			l.err = errNoEngine
			return
		}
		l.eng, l.err = l.start(ctx)
	})
	if l.err != nil {
		return engine.Result{}, l.err
	}
	return l.eng.Evaluate(ctx, fen, limit)
}

func (l *lazyEngine) Close() error {
	if l.eng == nil {
		return nil
	}
	return l.eng.Close()
}

// EvaluatePosition scores a single FEN through the same caches, cloud and
// engine a run uses. Without an engine pool the engine only lives for this call.
func (a *Aggregator) EvaluatePosition(ctx context.Context, fen string) (int, error) {
	if a.positions != nil {
		return a.evaluator(a.positions).Evaluate(ctx, fen)
	}
	eng := &lazyEngine{start: a.startEngine}
	defer eng.Close()
	return a.evaluator(eng).Evaluate(ctx, fen)
}
