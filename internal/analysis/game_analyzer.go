package analysis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"

	"github.com/vytor/chessinsight/internal/logger"
	"github.com/vytor/chessinsight/internal/models"
	"github.com/vytor/chessinsight/internal/oracle"
)

// ErrEmptyGame is returned for a PGN without moves.
var ErrEmptyGame = errors.New("analysis: game has no moves")

// GameResult holds the per-stage statistics of one game.
type GameResult struct {
	Stages       map[models.Stage]*models.StageStats
	PlayerMoves  int
	SampledMoves int
	// Opening is the ECO name of the deepest known opening line, if any.
	Opening string
}

func newGameResult() *GameResult {
	r := &GameResult{Stages: make(map[models.Stage]*models.StageStats, len(models.Stages))}
	for _, s := range models.Stages {
		r.Stages[s] = &models.StageStats{CPLosses: []int{}}
	}
	return r
}

// GameAnalyzer evaluates the sampled player moves of a single game.
type GameAnalyzer struct {
	oracle        oracle.Evaluator
	sampler       Sampler
	skipThreshold int
	earlyStop     int
}

// NewGameAnalyzer creates an analyzer. Zero thresholds fall back to the defaults.
func NewGameAnalyzer(ev oracle.Evaluator, sampler Sampler, skipThreshold, earlyStop int) *GameAnalyzer {
	if skipThreshold <= 0 {
		skipThreshold = SkipEvalThreshold
	}
	if earlyStop <= 0 {
		earlyStop = EarlyStopThreshold
	}
	return &GameAnalyzer{
		oracle:        ev,
		sampler:       sampler,
		skipThreshold: skipThreshold,
		earlyStop:     earlyStop,
	}
}

type replay struct {
	positions []*chess.Position
	moves     []*chess.Move
}

func parseGame(pgnText string) (*replay, error) {
	opt, err := chess.PGN(strings.NewReader(pgnText))
	if err != nil {
		return nil, fmt.Errorf("parse pgn: %w", err)
	}
	game := chess.NewGame(opt)
	r := &replay{positions: game.Positions(), moves: game.Moves()}
	if len(r.moves) == 0 {
		return nil, ErrEmptyGame
	}
	if len(r.positions) < len(r.moves)+1 {
		return nil, fmt.Errorf("replay: %d positions for %d moves", len(r.positions), len(r.moves))
	}
	return r, nil
}

var ecoBook = sync.OnceValue(opening.NewBookECO)

func openingName(moves []*chess.Move) string {
	if o := ecoBook().Find(moves); o != nil {
		return o.Title()
	}
	return ""
}

func sideOf(pos *chess.Position) models.Color {
	if pos.Turn() == chess.White {
		return models.White
	}
	return models.Black
}

// fullMoveNumber reads the FEN full-move counter, falling back to the ply count.
func fullMoveNumber(fen string, ply int) int {
	fields := strings.Fields(fen)
	if len(fields) >= 6 {
		if n, err := strconv.Atoi(fields[5]); err == nil && n > 0 {
			return n
		}
	}
	return ply/2 + 1
}

// Analyze replays pgnText and evaluates the sampled moves of the player with
// the given color. Evaluation failures skip the move; only an unreadable game
// is an error.
func (a *GameAnalyzer) Analyze(ctx context.Context, pgnText string, color models.Color) (*GameResult, error) {
	log := logger.FromContext(ctx).WithPrefix("analysis")

	g, err := parseGame(pgnText)
	if err != nil {
		return nil, err
	}

	res := newGameResult()
	res.Opening = openingName(g.moves)
	for i := range g.moves {
		if sideOf(g.positions[i]) == color {
			res.PlayerMoves++
		}
	}

	sample := a.sampler.Select(res.PlayerMoves)
	log.Debug("player has %d moves, sampling %d", res.PlayerMoves, len(sample))

	playerIdx := -1
	for i := range g.moves {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		before := g.positions[i]
		if sideOf(before) != color {
			continue
		}
		playerIdx++

		fenBefore := before.String()
		moveNumber := fullMoveNumber(fenBefore, i)
		stats := res.Stages[StageFor(moveNumber)]
		stats.TotalMoves++

		if !sample.Contains(playerIdx) {
			continue
		}
		res.SampledMoves++

		pre, err := a.oracle.Evaluate(ctx, fenBefore)
		if err != nil {
			log.Debug("no evaluation before move %d: %v", moveNumber, err)
			continue
		}
		if abs(pre) > a.skipThreshold {
			continue
		}

		postOpp, err := a.oracle.Evaluate(ctx, g.positions[i+1].String())
		if err != nil {
			log.Debug("no evaluation after move %d: %v", moveNumber, err)
			continue
		}
		post := -postOpp
		loss := pre - post

		sev := models.SeverityBlunder
		if loss < a.earlyStop {
			sev = ClassifyLoss(loss)
		}

		stats.EvaluatedMoves++
		stats.Quality.Add(ClassifyChange(post - pre))
		stats.Record(sev, loss)

		if sev != models.SeverityNone && (stats.WorstMistake == nil || loss > stats.WorstMistake.CPLoss) {
			stats.WorstMistake = &models.MistakeRecord{
				MoveNumber: moveNumber,
				Ply:        i + 1,
				CPLoss:     loss,
				Severity:   sev,
			}
		}
	}

	return res, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
