package oracle

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vytor/chessinsight/internal/logger"
	"github.com/vytor/chessinsight/internal/metrics"
	"github.com/vytor/chessinsight/internal/models"
)

// Cache stores resolved scores keyed by position.
type Cache interface {
	Get(ctx context.Context, fen string) (int, bool)
	Put(ctx context.Context, fen string, cp int)
}

// Cached serves scores from a cache and fills it from next on a miss.
// Failed evaluations are never cached.
type Cached struct {
	cache Cache
	next  Evaluator
}

// WithCache wraps next with cache.
func WithCache(cache Cache, next Evaluator) *Cached {
	return &Cached{cache: cache, next: next}
}

func (c *Cached) Evaluate(ctx context.Context, fen string) (int, error) {
	if cp, ok := c.cache.Get(ctx, fen); ok {
		return cp, nil
	}
	cp, err := c.next.Evaluate(ctx, fen)
	if err != nil {
		return 0, err
	}
	c.cache.Put(ctx, fen, cp)
	return cp, nil
}

// LRUCache is a bounded in-process cache.
type LRUCache struct {
	cache   *lru.Cache[string, int]
	metrics metrics.Collector
}

var _ Cache = (*LRUCache)(nil)

// NewLRUCache creates a cache holding at most size positions.
func NewLRUCache(size int, m metrics.Collector) (*LRUCache, error) {
	c, err := lru.New[string, int](size)
	if err != nil {
		return nil, err
	}
	return &LRUCache{cache: c, metrics: metrics.OrNoop(m)}, nil
}

func (c *LRUCache) Get(_ context.Context, fen string) (int, bool) {
	cp, ok := c.cache.Get(PositionKey(fen))
	if ok {
		c.metrics.IncCounter(metrics.MemoHits, 1)
	}
	return cp, ok
}

func (c *LRUCache) Put(_ context.Context, fen string, cp int) {
	c.cache.Add(PositionKey(fen), cp)
	c.metrics.SetGauge(metrics.MemoSize, int64(c.cache.Len()))
}

// Len returns the number of cached positions.
func (c *LRUCache) Len() int {
	return c.cache.Len()
}

// EvalStore persists evaluations. Get returns nil, nil when the position is unknown.
type EvalStore interface {
	Get(ctx context.Context, fen string) (*models.CachedEval, error)
	Put(ctx context.Context, eval models.CachedEval) error
}

// StoreCache adapts an EvalStore to Cache. Store errors degrade to misses.
type StoreCache struct {
	store  EvalStore
	source string
	now    func() time.Time
}

var _ Cache = (*StoreCache)(nil)

// NewStoreCache tags every stored evaluation with source.
func NewStoreCache(store EvalStore, source string) *StoreCache {
	return &StoreCache{store: store, source: source, now: time.Now}
}

func (c *StoreCache) Get(ctx context.Context, fen string) (int, bool) {
	ev, err := c.store.Get(ctx, PositionKey(fen))
	if err != nil {
		logger.FromContext(ctx).WithPrefix("oracle").Warn("eval store lookup failed: %v", err)
		return 0, false
	}
	if ev == nil {
		return 0, false
	}
	return ev.CP, true
}

func (c *StoreCache) Put(ctx context.Context, fen string, cp int) {
	err := c.store.Put(ctx, models.CachedEval{
		FEN:       PositionKey(fen),
		CP:        cp,
		Source:    c.source,
		UpdatedAt: c.now().UTC(),
	})
	if err != nil {
		logger.FromContext(ctx).WithPrefix("oracle").Warn("eval store write failed: %v", err)
	}
}
