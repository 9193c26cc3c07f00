package analysis

import (
	"context"
	"fmt"
	"testing"

	"github.com/corentings/chess/v2"
	"github.com/stretchr/testify/require"

	"github.com/vytor/chessinsight/internal/engine"
	"github.com/vytor/chessinsight/internal/models"
	"github.com/vytor/chessinsight/internal/oracle"
)

// Twenty quiet full moves: pawns lock up, then the minor pieces develop.
const openingMoves = "1. a3 a6 2. b3 b6 3. c3 c6 4. d3 d6 5. e3 e6 6. f3 f6 7. g3 g6 8. h3 h6 " +
	"9. a4 a5 10. b4 b5 11. c4 c5 12. d4 d5 13. e4 e5 14. f4 f5 15. g4 g5 16. h4 h5 " +
	"17. Nc3 Nc6 18. Nf3 Nf6 19. Bb2 Bb7 20. Bg2 Bg7"

const (
	rookShuffle   = "21. Rb1 Rb8 22. Rg1 Rg8 23. Ra1 Ra8 24. Rh1 Rh8"
	kingShuffle   = "21. Kf1 Kf8 22. Ke1 Ke8 23. Kf1 Kf8 24. Ke1 Ke8"
	kingToE2      = "21. Ke2 Kf8 22. Ke1 Ke8 23. Kf1 Kf8 24. Ke1 Ke8"
	playerName    = "alice"
	opponentName  = "bob"
	plyBeforeMv21 = 40
)

func buildPGN(tail, result, termination string) string {
	return fmt.Sprintf("[Event \"Live Chess\"]\n[White \"%s\"]\n[Black \"%s\"]\n[Result \"%s\"]\n[Termination \"%s\"]\n\n%s %s %s\n",
		playerName, opponentName, result, termination, openingMoves, tail, result)
}

func winPGN() string {
	return buildPGN(rookShuffle, "1-0", playerName+" won by resignation")
}

func resignedPGN(tail string) string {
	return buildPGN(tail, "0-1", opponentName+" won by resignation")
}

func positionsOf(t *testing.T, pgnText string) []*chess.Position {
	t.Helper()
	g, err := parseGame(pgnText)
	require.NoError(t, err)
	return g.positions
}

func fenAt(t *testing.T, pgnText string, ply int) string {
	t.Helper()
	return positionsOf(t, pgnText)[ply].String()
}

// mapOracle scores listed positions and everything else as level.
type mapOracle struct {
	evals   map[string]int
	missing map[string]bool
	calls   []string
}

func newMapOracle() *mapOracle {
	return &mapOracle{evals: map[string]int{}, missing: map[string]bool{}}
}

func (m *mapOracle) Evaluate(_ context.Context, fen string) (int, error) {
	m.calls = append(m.calls, fen)
	if m.missing[fen] {
		return 0, oracle.ErrNoEvaluation
	}
	return m.evals[fen], nil
}

type fakeEngine struct {
	evals   map[string]int
	queries int
	closed  int
}

func (f *fakeEngine) Evaluate(_ context.Context, fen string, _ engine.Limit) (engine.Result, error) {
	f.queries++
	return engine.Result{CP: f.evals[fen]}, nil
}

func (f *fakeEngine) Close() error {
	f.closed++
	return nil
}

func starterFor(f *fakeEngine) EngineStarter {
	return func(context.Context) (EngineHandle, error) { return f, nil }
}

func record(i int, pgnText, whiteResult, blackResult string) models.GameRecord {
	return models.GameRecord{
		URL:   fmt.Sprintf("https://www.chess.com/game/live/%d", i+1),
		PGN:   pgnText,
		White: models.Participant{Username: "Alice", Result: whiteResult},
		Black: models.Participant{Username: opponentName, Result: blackResult},
	}
}
