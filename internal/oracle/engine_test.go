package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vytor/chessinsight/internal/engine"
)

type stubEngine struct {
	res    engine.Result
	err    error
	limits []engine.Limit
}

func (s *stubEngine) Evaluate(_ context.Context, _ string, limit engine.Limit) (engine.Result, error) {
	s.limits = append(s.limits, limit)
	return s.res, s.err
}

func TestBudget_Limit(t *testing.T) {
	tests := []struct {
		name   string
		budget Budget
		want   engine.Limit
	}{
		{"nodes configured", Budget{Nodes: 50000, Depth: 15, CloudPrimary: true}, engine.Limit{Nodes: 50000}},
		{"cloud primary default", Budget{Depth: 15, MoveTime: time.Second, CloudPrimary: true}, engine.Limit{MoveTime: 100 * time.Millisecond}},
		{"cloud primary custom", Budget{CloudPrimary: true, FallbackMoveTime: 250 * time.Millisecond}, engine.Limit{MoveTime: 250 * time.Millisecond}},
		{"traditional", Budget{Depth: 15, MoveTime: time.Second}, engine.Limit{Depth: 15, MoveTime: time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.budget.Limit())
		})
	}
}

func TestEngineEvaluator(t *testing.T) {
	eng := &stubEngine{res: engine.Result{CP: -120}}
	e := NewEngineEvaluator(eng, Budget{Nodes: 1000}, nil)

	cp, err := e.Evaluate(context.Background(), startFEN)
	require.NoError(t, err)
	assert.Equal(t, -120, cp)
	require.Len(t, eng.limits, 1)
	assert.Equal(t, engine.Limit{Nodes: 1000}, eng.limits[0])
	assert.Equal(t, engine.Limit{Nodes: 1000}, e.Limit())
}

func TestEngineEvaluator_ErrorsBecomeNoEvaluation(t *testing.T) {
	e := NewEngineEvaluator(&stubEngine{err: engine.ErrTimeout}, Budget{}, nil)
	_, err := e.Evaluate(context.Background(), startFEN)
	assert.ErrorIs(t, err, ErrNoEvaluation)
	assert.False(t, errors.Is(err, engine.ErrTimeout))
}

func TestEngineEvaluator_NilEngine(t *testing.T) {
	e := NewEngineEvaluator(nil, Budget{}, nil)
	_, err := e.Evaluate(context.Background(), startFEN)
	assert.ErrorIs(t, err, ErrNoEvaluation)
}
