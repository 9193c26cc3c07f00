// Package oracle resolves positions to centipawn scores relative to the side to move.
package oracle

import (
	"context"
	"errors"
	"strings"

	"github.com/vytor/chessinsight/internal/logger"
)

// ErrNoEvaluation means no source could score the position. Callers skip the
// move rather than treating it as a zero score.
var ErrNoEvaluation = errors.New("oracle: no evaluation")

// Evaluator scores a FEN position relative to the side to move.
type Evaluator interface {
	Evaluate(ctx context.Context, fen string) (int, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, fen string) (int, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, fen string) (int, error) {
	return f(ctx, fen)
}

// Chain asks each evaluator in turn and returns the first score.
type Chain []Evaluator

// NewChain builds a chain, dropping nil evaluators.
func NewChain(evaluators ...Evaluator) Chain {
	c := make(Chain, 0, len(evaluators))
	for _, e := range evaluators {
		if e != nil {
			c = append(c, e)
		}
	}
	return c
}

func (c Chain) Evaluate(ctx context.Context, fen string) (int, error) {
	log := logger.FromContext(ctx).WithPrefix("oracle")
	for i, e := range c {
		cp, err := e.Evaluate(ctx, fen)
		if err == nil {
			return cp, nil
		}
		log.Debug("source %d had no evaluation: %v", i, err)
		if ctx.Err() != nil {
			break
		}
	}
	return 0, ErrNoEvaluation
}

// PositionKey strips the move counters from fen so transpositions share a key.
func PositionKey(fen string) string {
	fields := strings.Fields(fen)
	if len(fields) > 4 {
		fields = fields[:4]
	}
	return strings.Join(fields, " ")
}

// BlackToMove reports whether the active color field of fen is black.
func BlackToMove(fen string) bool {
	fields := strings.Fields(fen)
	return len(fields) > 1 && fields[1] == "b"
}
