package mocks

import (
	"github.com/stretchr/testify/mock"
	"github.com/vytor/chessinsight/internal/models"
)

// MockJobQueue is a mock implementation of jobs.JobQueue
type MockJobQueue struct {
	mock.Mock
}

func (m *MockJobQueue) EnqueueMistakeAnalysis(games []models.GameRecord, player string) (string, error) {
	args := m.Called(games, player)
	return args.String(0), args.Error(1)
}
