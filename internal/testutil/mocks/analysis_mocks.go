package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/chessinsight/internal/chesscom"
	"github.com/vytor/chessinsight/internal/models"
	"github.com/vytor/chessinsight/internal/services"
	"github.com/vytor/chessinsight/internal/tasks"
)

// MockAnalysisService is a mock implementation of services.AnalysisService
type MockAnalysisService struct {
	mock.Mock
}

func (m *MockAnalysisService) SubmitMistakeAnalysis(ctx context.Context, req services.MistakeAnalysisRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockAnalysisService) TaskStatus(ctx context.Context, id string) (tasks.Status, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(tasks.Status), args.Error(1)
}

func (m *MockAnalysisService) EvaluatePosition(ctx context.Context, fen string) (int, error) {
	args := m.Called(ctx, fen)
	return args.Int(0), args.Error(1)
}

func (m *MockAnalysisService) OracleStats(ctx context.Context) models.OracleStats {
	args := m.Called(ctx)
	return args.Get(0).(models.OracleStats)
}

func (m *MockAnalysisService) ResetOracleStats(ctx context.Context) {
	m.Called(ctx)
}

// MockTaskReader is a mock implementation of services.TaskReader
type MockTaskReader struct {
	mock.Mock
}

func (m *MockTaskReader) Status(id string) (tasks.Status, error) {
	args := m.Called(id)
	return args.Get(0).(tasks.Status), args.Error(1)
}

// MockPositionEvaluator is a mock implementation of services.PositionEvaluator
type MockPositionEvaluator struct {
	mock.Mock
}

func (m *MockPositionEvaluator) EvaluatePosition(ctx context.Context, fen string) (int, error) {
	args := m.Called(ctx, fen)
	return args.Int(0), args.Error(1)
}

// MockOracleStats is a mock implementation of services.OracleStatsProvider
type MockOracleStats struct {
	mock.Mock
}

func (m *MockOracleStats) Stats() models.OracleStats {
	args := m.Called()
	return args.Get(0).(models.OracleStats)
}

func (m *MockOracleStats) ResetStats() {
	m.Called()
}

// MockGameSource is a mock implementation of services.GameSource
type MockGameSource struct {
	mock.Mock
}

func (m *MockGameSource) RecentGames(ctx context.Context, username string, since time.Time) ([]models.GameRecord, error) {
	args := m.Called(ctx, username, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.GameRecord), args.Error(1)
}

// MockArchiveClient is a mock implementation of chesscom.ArchiveClient
type MockArchiveClient struct {
	mock.Mock
}

func (m *MockArchiveClient) FetchArchives(ctx context.Context, username string) ([]string, error) {
	args := m.Called(ctx, username)
	archives, _ := args.Get(0).([]string)
	return archives, args.Error(1)
}

func (m *MockArchiveClient) FetchMonthly(ctx context.Context, archiveURL string) ([]chesscom.MonthlyGame, error) {
	args := m.Called(ctx, archiveURL)
	games, _ := args.Get(0).([]chesscom.MonthlyGame)
	return games, args.Error(1)
}
