package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vytor/chessinsight/internal/metrics"
	"github.com/vytor/chessinsight/internal/oracle"
)

const positionFEN = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"

func TestEvaluatePosition_CloudHitSkipsEngine(t *testing.T) {
	cloud := newMapOracle()
	cloud.evals[positionFEN] = -30
	eng := &fakeEngine{evals: map[string]int{}}

	a := NewAggregator(DefaultConfig(), WithCloud(cloud), WithEngineStarter(starterFor(eng)))

	cp, err := a.EvaluatePosition(context.Background(), positionFEN)
	require.NoError(t, err)
	assert.Equal(t, -30, cp)
	assert.Zero(t, eng.queries)
	assert.Zero(t, eng.closed, "engine never started")
}

func TestEvaluatePosition_EngineFallbackIsClosed(t *testing.T) {
	cloud := newMapOracle()
	cloud.missing[positionFEN] = true
	eng := &fakeEngine{evals: map[string]int{positionFEN: 18}}

	memo, err := oracle.NewLRUCache(16, metrics.Noop{})
	require.NoError(t, err)

	a := NewAggregator(DefaultConfig(), WithCloud(cloud), WithCache(memo), WithEngineStarter(starterFor(eng)))

	cp, err := a.EvaluatePosition(context.Background(), positionFEN)
	require.NoError(t, err)
	assert.Equal(t, 18, cp)
	assert.Equal(t, 1, eng.queries)
	assert.Equal(t, 1, eng.closed)

	cp, err = a.EvaluatePosition(context.Background(), positionFEN)
	require.NoError(t, err)
	assert.Equal(t, 18, cp)
	assert.Equal(t, 1, eng.queries, "second lookup served from the memo")
}

func TestEvaluatePosition_NoSource(t *testing.T) {
	a := NewAggregator(DefaultConfig())

	_, err := a.EvaluatePosition(context.Background(), positionFEN)
	assert.ErrorIs(t, err, oracle.ErrNoEvaluation)

	failing := NewAggregator(DefaultConfig(), WithEngineStarter(func(context.Context) (EngineHandle, error) {
		return nil, errors.New("exec: stockfish not found")
	}))
	_, err = failing.EvaluatePosition(context.Background(), positionFEN)
	assert.ErrorIs(t, err, oracle.ErrNoEvaluation)
}
