package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vytor/chessinsight/internal/engine"
)

type countingStarter struct {
	eng    *fakeEngine
	starts int
	err    error
}

func (c *countingStarter) start(context.Context) (EngineHandle, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.starts++
	return c.eng, nil
}

type brokenEngine struct{ fakeEngine }

func (b *brokenEngine) Evaluate(context.Context, string, engine.Limit) (engine.Result, error) {
	b.queries++
	return engine.Result{}, errors.New("engine: broken pipe")
}

func TestEnginePool_ReusesEngines(t *testing.T) {
	s := &countingStarter{eng: &fakeEngine{evals: map[string]int{positionFEN: 25}}}
	p := NewEnginePool(s.start, 1)

	for range 3 {
		res, err := p.Evaluate(context.Background(), positionFEN, engine.Limit{Depth: 10})
		require.NoError(t, err)
		assert.Equal(t, 25, res.CP)
	}
	assert.Equal(t, 1, s.starts)
	assert.Equal(t, 3, s.eng.queries)
	assert.Equal(t, 1, p.Available())

	p.Close()
	assert.Equal(t, 1, s.eng.closed)
	assert.Equal(t, 0, p.Available())
}

func TestEnginePool_DiscardsBrokenEngines(t *testing.T) {
	broken := &brokenEngine{}
	starts := 0
	p := NewEnginePool(func(context.Context) (EngineHandle, error) {
		starts++
		return broken, nil
	}, 2)

	_, err := p.Evaluate(context.Background(), positionFEN, engine.Limit{})
	require.Error(t, err)
	assert.Equal(t, 1, broken.closed)
	assert.Equal(t, 0, p.Available())

	_, err = p.Evaluate(context.Background(), positionFEN, engine.Limit{})
	require.Error(t, err)
	assert.Equal(t, 2, starts)
}

type stalledEngine struct{ fakeEngine }

func (s *stalledEngine) Evaluate(ctx context.Context, _ string, _ engine.Limit) (engine.Result, error) {
	s.queries++
	<-ctx.Done()
	return engine.Result{}, ctx.Err()
}

func TestEnginePool_DiscardsCancelledEngines(t *testing.T) {
	stalled := &stalledEngine{}
	p := NewEnginePool(func(context.Context) (EngineHandle, error) {
		return stalled, nil
	}, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Evaluate(ctx, positionFEN, engine.Limit{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, stalled.closed, "engine with an abandoned search is not reused")
	assert.Equal(t, 0, p.Available())
}

func TestEnginePool_AcquireBlocksWhenExhausted(t *testing.T) {
	s := &countingStarter{eng: &fakeEngine{}}
	p := NewEnginePool(s.start, 1)

	eng, err := p.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	p.Release(eng, false)
	again, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, eng, again)
	assert.Equal(t, 1, s.starts)
	p.Release(again, false)
}

func TestEnginePool_StartFailureFreesSlot(t *testing.T) {
	s := &countingStarter{err: errors.New("exec: stockfish not found")}
	p := NewEnginePool(s.start, 1)

	for range 2 {
		_, err := p.Acquire(context.Background())
		assert.EqualError(t, err, "exec: stockfish not found")
	}

	_, err := NewEnginePool(nil, 1).Acquire(context.Background())
	assert.ErrorIs(t, err, errNoEngine)
}

func TestEnginePool_Closed(t *testing.T) {
	s := &countingStarter{eng: &fakeEngine{}}
	p := NewEnginePool(s.start, 1)

	eng, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Close()
	p.Close()

	p.Release(eng, false)
	assert.Equal(t, 1, s.eng.closed, "engine released after close is shut down")

	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, errPoolClosed)
}

func TestEvaluatePosition_WithEnginePool(t *testing.T) {
	cloud := newMapOracle()
	cloud.missing[positionFEN] = true
	s := &countingStarter{eng: &fakeEngine{evals: map[string]int{positionFEN: 12}}}

	a := NewAggregator(DefaultConfig(), WithCloud(cloud), WithEngineStarter(s.start), WithEnginePool(2))

	for range 2 {
		cp, err := a.EvaluatePosition(context.Background(), positionFEN)
		require.NoError(t, err)
		assert.Equal(t, 12, cp)
	}
	assert.Equal(t, 1, s.starts)
	assert.Zero(t, s.eng.closed, "pooled engine stays alive")

	a.Close()
	assert.Equal(t, 1, s.eng.closed)
}
