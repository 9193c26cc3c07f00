package services

import (
	"context"
	stderrors "errors"
	"regexp"
	"time"

	"github.com/corentings/chess/v2"
	"github.com/vytor/chessinsight/internal/chesscom"
	"github.com/vytor/chessinsight/internal/errors"
	"github.com/vytor/chessinsight/internal/jobs"
	"github.com/vytor/chessinsight/internal/logger"
	"github.com/vytor/chessinsight/internal/models"
	"github.com/vytor/chessinsight/internal/oracle"
	"github.com/vytor/chessinsight/internal/tasks"
	"github.com/vytor/chessinsight/internal/worker"
)

const evaluateTimeout = 5 * time.Second

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,25}$`)

// MistakeAnalysisRequest asks for a mistake analysis of player. When Games is
// empty the player's recent games are downloaded, starting from StartDate
// (YYYY-MM-DD) when given.
type MistakeAnalysisRequest struct {
	Player    string              `json:"player"`
	Games     []models.GameRecord `json:"games,omitempty"`
	StartDate string              `json:"start_date,omitempty"`
}

// AnalysisService handles mistake analysis and position evaluation business logic
type AnalysisService interface {
	SubmitMistakeAnalysis(ctx context.Context, req MistakeAnalysisRequest) (string, error)
	TaskStatus(ctx context.Context, id string) (tasks.Status, error)
	EvaluatePosition(ctx context.Context, fen string) (int, error)
	OracleStats(ctx context.Context) models.OracleStats
	ResetOracleStats(ctx context.Context)
}

// TaskReader reads task state.
type TaskReader interface {
	Status(id string) (tasks.Status, error)
}

// PositionEvaluator scores a single position.
type PositionEvaluator interface {
	EvaluatePosition(ctx context.Context, fen string) (int, error)
}

// OracleStatsProvider exposes the remote evaluation cache counters.
type OracleStatsProvider interface {
	Stats() models.OracleStats
	ResetStats()
}

// GameSource downloads a player's recent games.
type GameSource interface {
	RecentGames(ctx context.Context, username string, since time.Time) ([]models.GameRecord, error)
}

type analysisService struct {
	queue     jobs.JobQueue
	tasks     TaskReader
	positions PositionEvaluator
	stats     OracleStatsProvider
	games     GameSource
	now       func() time.Time
}

// NewAnalysisService creates a new AnalysisService. stats and games may be nil.
func NewAnalysisService(
	queue jobs.JobQueue,
	taskReader TaskReader,
	positions PositionEvaluator,
	stats OracleStatsProvider,
	games GameSource,
) AnalysisService {
	return &analysisService{
		queue:     queue,
		tasks:     taskReader,
		positions: positions,
		stats:     stats,
		games:     games,
		now:       time.Now,
	}
}

func (s *analysisService) SubmitMistakeAnalysis(ctx context.Context, req MistakeAnalysisRequest) (string, error) {
	log := logger.FromContext(ctx).WithField("player", req.Player)

	if req.Player == "" {
		return "", errors.NewValidationError("player", "cannot be empty")
	}
	if !usernameRe.MatchString(req.Player) {
		return "", errors.NewValidationError("player", "must be 3-25 letters, digits, '_' or '-'")
	}

	games := req.Games
	if len(games) == 0 {
		fetched, err := s.fetchGames(ctx, req)
		if err != nil {
			return "", err
		}
		games = fetched
	}

	log.Info("submitting mistake analysis: games=%d", len(games))
	id, err := s.queue.EnqueueMistakeAnalysis(games, req.Player)
	if err != nil {
		log.Error("failed to enqueue mistake analysis: %v", err)
		switch {
		case stderrors.Is(err, worker.ErrQueueFull):
			return "", errors.NewUnavailableError("analysis queue is full", err)
		case stderrors.Is(err, worker.ErrPoolStopped):
			return "", errors.NewUnavailableError("analysis workers are shutting down", err)
		default:
			return "", errors.NewInternalError(err)
		}
	}
	return id, nil
}

func (s *analysisService) fetchGames(ctx context.Context, req MistakeAnalysisRequest) ([]models.GameRecord, error) {
	if s.games == nil {
		return nil, errors.NewValidationError("games", "cannot be empty")
	}

	var since time.Time
	if req.StartDate != "" {
		d, err := time.Parse(time.DateOnly, req.StartDate)
		if err != nil {
			return nil, errors.NewValidationError("start_date", "must be formatted as YYYY-MM-DD")
		}
		if d.After(s.now()) {
			return nil, errors.NewValidationError("start_date", "cannot be in the future")
		}
		since = d
	}

	games, err := s.games.RecentGames(ctx, req.Player, since)
	if err != nil {
		if stderrors.Is(err, chesscom.ErrNoGames) {
			return nil, errors.NewNotFoundError("games for player", req.Player)
		}
		logger.FromContext(ctx).Error("failed to fetch games: %v", err)
		return nil, errors.NewUnavailableError("game source unavailable", err)
	}
	return games, nil
}

func (s *analysisService) TaskStatus(ctx context.Context, id string) (tasks.Status, error) {
	st, err := s.tasks.Status(id)
	if err != nil {
		if stderrors.Is(err, tasks.ErrNotFound) {
			return tasks.Status{}, errors.NewNotFoundError("task", id)
		}
		logger.FromContext(ctx).Error("failed to read task %s: %v", id, err)
		return tasks.Status{}, errors.NewInternalError(err)
	}
	return st, nil
}

func (s *analysisService) EvaluatePosition(ctx context.Context, fen string) (int, error) {
	log := logger.FromContext(ctx)
	log.Debug("evaluating position: fen=%s", fen)

	if fen == "" {
		return 0, errors.NewValidationError("fen", "cannot be empty")
	}
	if _, err := chess.FEN(fen); err != nil {
		return 0, errors.NewValidationError("fen", err.Error())
	}

	evalCtx, cancel := context.WithTimeout(ctx, evaluateTimeout)
	defer cancel()

	cp, err := s.positions.EvaluatePosition(evalCtx, fen)
	if err != nil {
		if stderrors.Is(err, oracle.ErrNoEvaluation) {
			return 0, errors.NewUnavailableError("no evaluation available for position", err)
		}
		log.Error("failed to evaluate position: %v", err)
		return 0, errors.NewInternalError(err)
	}
	return cp, nil
}

func (s *analysisService) OracleStats(_ context.Context) models.OracleStats {
	if s.stats == nil {
		return models.OracleStats{}
	}
	return s.stats.Stats()
}

func (s *analysisService) ResetOracleStats(ctx context.Context) {
	if s.stats == nil {
		return
	}
	s.stats.ResetStats()
	logger.FromContext(ctx).Info("oracle statistics reset")
}
