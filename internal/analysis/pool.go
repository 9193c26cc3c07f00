package analysis

import (
	"context"
	"errors"
	"sync"

	"github.com/vytor/chessinsight/internal/engine"
	"github.com/vytor/chessinsight/internal/logger"
)

var errPoolClosed = errors.New("analysis: engine pool closed")

// EnginePool keeps up to size engines alive between single-position
// queries. Engines are started on demand and never pre-warmed.
type EnginePool struct {
	start  EngineStarter
	size   int
	idle   chan EngineHandle
	slots  chan struct{}
	mu     sync.Mutex
	closed bool
	log    *logger.Logger
}

// NewEnginePool creates a pool that starts engines with start.
func NewEnginePool(start EngineStarter, size int) *EnginePool {
	if size <= 0 {
		size = 1
	}
	return &EnginePool{
		start: start,
		size:  size,
		idle:  make(chan EngineHandle, size),
		slots: make(chan struct{}, size),
		log:   logger.Default().WithPrefix("engine-pool"),
	}
}

// Acquire returns an idle engine or starts a new one, blocking while all
// size engines are in use.
func (p *EnginePool) Acquire(ctx context.Context) (EngineHandle, error) {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case eng, ok := <-p.idle:
		if !ok {
			<-p.slots
			return nil, errPoolClosed
		}
		return eng, nil
	default:
	}

	if p.start == nil {
		<-p.slots
		return nil, errNoEngine
	}
	p.log.Debug("starting engine")
	eng, err := p.start(ctx)
	if err != nil {
		<-p.slots
		return nil, err
	}
	return eng, nil
}

// Release hands an engine back. Broken engines, and any engine released
// after Close, are shut down instead of kept.
func (p *EnginePool) Release(eng EngineHandle, broken bool) {
	defer func() { <-p.slots }()
	if eng == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || broken {
		if err := eng.Close(); err != nil {
			p.log.Warn("engine close: %v", err)
		}
		return
	}
	select {
	case p.idle <- eng:
	default:
		eng.Close()
	}
}

// Evaluate runs one query on a pooled engine. An engine whose query failed,
// cancellation included, may still have a search in flight and is discarded.
func (p *EnginePool) Evaluate(ctx context.Context, fen string, limit engine.Limit) (engine.Result, error) {
	eng, err := p.Acquire(ctx)
	if err != nil {
		return engine.Result{}, err
	}
	res, err := eng.Evaluate(ctx, fen, limit)
	p.Release(eng, err != nil)
	return res, err
}

// Close shuts down every idle engine. Engines still in use are closed when
// they are released.
func (p *EnginePool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	p.log.Info("closing engine pool")
	close(p.idle)
	for eng := range p.idle {
		eng.Close()
	}
}

// Available returns how many engines are currently idle.
func (p *EnginePool) Available() int {
	return len(p.idle)
}
