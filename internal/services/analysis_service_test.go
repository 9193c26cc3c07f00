package services_test

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vytor/chessinsight/internal/chesscom"
	"github.com/vytor/chessinsight/internal/errors"
	"github.com/vytor/chessinsight/internal/models"
	"github.com/vytor/chessinsight/internal/oracle"
	"github.com/vytor/chessinsight/internal/services"
	"github.com/vytor/chessinsight/internal/tasks"
	"github.com/vytor/chessinsight/internal/testutil/mocks"
	"github.com/vytor/chessinsight/internal/worker"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

type fixture struct {
	queue     *mocks.MockJobQueue
	tasks     *mocks.MockTaskReader
	positions *mocks.MockPositionEvaluator
	stats     *mocks.MockOracleStats
	games     *mocks.MockGameSource
	svc       services.AnalysisService
}

func newFixture(withSource bool) *fixture {
	f := &fixture{
		queue:     new(mocks.MockJobQueue),
		tasks:     new(mocks.MockTaskReader),
		positions: new(mocks.MockPositionEvaluator),
		stats:     new(mocks.MockOracleStats),
		games:     new(mocks.MockGameSource),
	}
	var source services.GameSource
	if withSource {
		source = f.games
	}
	f.svc = services.NewAnalysisService(f.queue, f.tasks, f.positions, f.stats, source)
	return f
}

func requireAppError(t *testing.T, err error, code string) *errors.AppError {
	t.Helper()
	var appErr *errors.AppError
	require.True(t, stderrors.As(err, &appErr), "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

func TestSubmitMistakeAnalysis_Validation(t *testing.T) {
	tests := []struct {
		name   string
		player string
	}{
		{"empty player", ""},
		{"too short", "ab"},
		{"invalid characters", "alice smith"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(false)
			_, err := f.svc.SubmitMistakeAnalysis(context.Background(), services.MistakeAnalysisRequest{Player: tt.player})
			requireAppError(t, err, errors.ErrCodeValidation)
			f.queue.AssertNotCalled(t, "EnqueueMistakeAnalysis", mock.Anything, mock.Anything)
		})
	}
}

func TestSubmitMistakeAnalysis_WithGames(t *testing.T) {
	f := newFixture(false)
	games := []models.GameRecord{{URL: "https://www.chess.com/game/live/1"}}
	f.queue.On("EnqueueMistakeAnalysis", games, "alice").Return("task-1", nil)

	id, err := f.svc.SubmitMistakeAnalysis(context.Background(), services.MistakeAnalysisRequest{Player: "alice", Games: games})
	require.NoError(t, err)
	assert.Equal(t, "task-1", id)
	f.queue.AssertExpectations(t)
}

func TestSubmitMistakeAnalysis_QueueErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"queue full", worker.ErrQueueFull, errors.ErrCodeUnavailable},
		{"pool stopped", worker.ErrPoolStopped, errors.ErrCodeUnavailable},
		{"other", stderrors.New("boom"), errors.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(false)
			games := []models.GameRecord{{URL: "u"}}
			f.queue.On("EnqueueMistakeAnalysis", games, "alice").Return("task-1", tt.err)

			_, err := f.svc.SubmitMistakeAnalysis(context.Background(), services.MistakeAnalysisRequest{Player: "alice", Games: games})
			requireAppError(t, err, tt.code)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestSubmitMistakeAnalysis_NoGamesWithoutSource(t *testing.T) {
	f := newFixture(false)

	_, err := f.svc.SubmitMistakeAnalysis(context.Background(), services.MistakeAnalysisRequest{Player: "alice"})
	appErr := requireAppError(t, err, errors.ErrCodeValidation)
	assert.Contains(t, appErr.Message, "games")
}

func TestSubmitMistakeAnalysis_FetchesGames(t *testing.T) {
	f := newFixture(true)
	games := []models.GameRecord{{URL: "a"}, {URL: "b"}}
	since := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	f.games.On("RecentGames", mock.Anything, "alice", since).Return(games, nil)
	f.queue.On("EnqueueMistakeAnalysis", games, "alice").Return("task-2", nil)

	id, err := f.svc.SubmitMistakeAnalysis(context.Background(), services.MistakeAnalysisRequest{Player: "alice", StartDate: "2025-03-01"})
	require.NoError(t, err)
	assert.Equal(t, "task-2", id)
	f.games.AssertExpectations(t)
}

func TestSubmitMistakeAnalysis_FetchErrors(t *testing.T) {
	t.Run("bad date", func(t *testing.T) {
		f := newFixture(true)
		_, err := f.svc.SubmitMistakeAnalysis(context.Background(), services.MistakeAnalysisRequest{Player: "alice", StartDate: "03/01/2025"})
		requireAppError(t, err, errors.ErrCodeValidation)
	})

	t.Run("future date", func(t *testing.T) {
		f := newFixture(true)
		_, err := f.svc.SubmitMistakeAnalysis(context.Background(), services.MistakeAnalysisRequest{Player: "alice", StartDate: "2999-01-01"})
		requireAppError(t, err, errors.ErrCodeValidation)
	})

	t.Run("no games", func(t *testing.T) {
		f := newFixture(true)
		f.games.On("RecentGames", mock.Anything, "alice", time.Time{}).Return(nil, chesscom.ErrNoGames)
		_, err := f.svc.SubmitMistakeAnalysis(context.Background(), services.MistakeAnalysisRequest{Player: "alice"})
		requireAppError(t, err, errors.ErrCodeNotFound)
	})

	t.Run("source down", func(t *testing.T) {
		f := newFixture(true)
		f.games.On("RecentGames", mock.Anything, "alice", time.Time{}).Return(nil, stderrors.New("dial tcp: timeout"))
		_, err := f.svc.SubmitMistakeAnalysis(context.Background(), services.MistakeAnalysisRequest{Player: "alice"})
		requireAppError(t, err, errors.ErrCodeUnavailable)
	})
}

func TestChessComSource_WithMockClient(t *testing.T) {
	client := new(mocks.MockArchiveClient)
	archive := "https://api.chess.com/pub/player/alice/games/2026/01"
	client.On("FetchArchives", mock.Anything, "alice").Return([]string{archive}, nil)
	client.On("FetchMonthly", mock.Anything, archive).Return([]chesscom.MonthlyGame{
		{URL: "https://www.chess.com/game/live/2", EndTime: 20},
		{URL: "https://www.chess.com/game/live/1", EndTime: 10},
	}, nil)

	var source services.GameSource = chesscom.Source{Client: client}
	games, err := source.RecentGames(context.Background(), "alice", time.Time{})
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, "https://www.chess.com/game/live/1", games[0].URL)
	client.AssertExpectations(t)
}

func TestTaskStatus(t *testing.T) {
	f := newFixture(false)
	f.tasks.On("Status", "known").Return(tasks.Status{ID: "known", State: tasks.StateProcessing}, nil)
	f.tasks.On("Status", "missing").Return(tasks.Status{}, tasks.ErrNotFound)

	st, err := f.svc.TaskStatus(context.Background(), "known")
	require.NoError(t, err)
	assert.Equal(t, tasks.StateProcessing, st.State)

	_, err = f.svc.TaskStatus(context.Background(), "missing")
	appErr := requireAppError(t, err, errors.ErrCodeNotFound)
	assert.Equal(t, 404, appErr.Status)
}

func TestEvaluatePosition(t *testing.T) {
	t.Run("empty fen", func(t *testing.T) {
		f := newFixture(false)
		_, err := f.svc.EvaluatePosition(context.Background(), "")
		requireAppError(t, err, errors.ErrCodeValidation)
	})

	t.Run("invalid fen", func(t *testing.T) {
		f := newFixture(false)
		_, err := f.svc.EvaluatePosition(context.Background(), "not a fen")
		requireAppError(t, err, errors.ErrCodeValidation)
		f.positions.AssertNotCalled(t, "EvaluatePosition", mock.Anything, mock.Anything)
	})

	t.Run("evaluated", func(t *testing.T) {
		f := newFixture(false)
		f.positions.On("EvaluatePosition", mock.Anything, startFEN).Return(24, nil)

		cp, err := f.svc.EvaluatePosition(context.Background(), startFEN)
		require.NoError(t, err)
		assert.Equal(t, 24, cp)
	})

	t.Run("no evaluation", func(t *testing.T) {
		f := newFixture(false)
		f.positions.On("EvaluatePosition", mock.Anything, startFEN).Return(0, oracle.ErrNoEvaluation)

		_, err := f.svc.EvaluatePosition(context.Background(), startFEN)
		requireAppError(t, err, errors.ErrCodeUnavailable)
	})
}

func TestOracleStats(t *testing.T) {
	f := newFixture(false)
	want := models.OracleStats{APICalls: 4, Hits: 3, Misses: 1, HitRate: 75}
	f.stats.On("Stats").Return(want)
	f.stats.On("ResetStats").Return()

	assert.Equal(t, want, f.svc.OracleStats(context.Background()))
	f.svc.ResetOracleStats(context.Background())
	f.stats.AssertCalled(t, "ResetStats")

	bare := services.NewAnalysisService(f.queue, f.tasks, f.positions, nil, nil)
	assert.Equal(t, models.OracleStats{}, bare.OracleStats(context.Background()))
	bare.ResetOracleStats(context.Background())
}
