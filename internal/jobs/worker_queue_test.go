package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vytor/chessinsight/internal/analysis"
	"github.com/vytor/chessinsight/internal/models"
	"github.com/vytor/chessinsight/internal/tasks"
	"github.com/vytor/chessinsight/internal/worker"
)

type stubAggregator struct {
	release chan struct{}
}

func (s *stubAggregator) Aggregate(ctx context.Context, games []models.GameRecord, _ string, progress analysis.ProgressFunc) (*models.AggregatedAnalysis, error) {
	if s.release != nil {
		<-s.release
	}
	for i := range games {
		progress(i+1, len(games))
	}
	out := models.NewAggregatedAnalysis(len(games))
	out.AnalyzedGames = len(games)
	return out, nil
}

func waitForState(t *testing.T, store *tasks.Store, id string, want tasks.State) tasks.Status {
	t.Helper()
	var st tasks.Status
	require.Eventually(t, func() bool {
		var err error
		st, err = store.Status(id)
		return err == nil && st.State == want
	}, 2*time.Second, 5*time.Millisecond)
	return st
}

func TestWorkerQueue_RunsAnalysis(t *testing.T) {
	pool := worker.NewPool(1, 4)
	pool.Start(context.Background())
	defer pool.Stop()

	store := tasks.NewStore()
	q := NewWorkerQueue(pool, store, &stubAggregator{}, 10)

	id, err := q.EnqueueMistakeAnalysis(make([]models.GameRecord, 3), "alice")
	require.NoError(t, err)

	st := waitForState(t, store, id, tasks.StateCompleted)
	require.NotNil(t, st.Result)
	assert.Equal(t, 3, st.Result.AnalyzedGames)
	assert.Equal(t, "alice", st.Metadata["player"])
}

func TestWorkerQueue_ProcessingWhileRunning(t *testing.T) {
	pool := worker.NewPool(1, 4)
	pool.Start(context.Background())
	defer pool.Stop()

	store := tasks.NewStore()
	agg := &stubAggregator{release: make(chan struct{})}
	q := NewWorkerQueue(pool, store, agg, 10)

	id, err := q.EnqueueMistakeAnalysis(make([]models.GameRecord, 25), "alice")
	require.NoError(t, err)

	st, err := store.Status(id)
	require.NoError(t, err)
	assert.Equal(t, tasks.StateProcessing, st.State)
	assert.Equal(t, 0, st.Progress.Current)
	assert.Equal(t, 10, st.Progress.Total, "total is capped at the game sample size")

	close(agg.release)
	waitForState(t, store, id, tasks.StateCompleted)
}

func TestWorkerQueue_QueueFullFailsTask(t *testing.T) {
	pool := worker.NewPool(1, 1)
	// Not started: the single slot fills and stays full.
	store := tasks.NewStore()
	q := NewWorkerQueue(pool, store, &stubAggregator{}, 10)

	_, err := q.EnqueueMistakeAnalysis(nil, "alice")
	require.NoError(t, err)

	id, err := q.EnqueueMistakeAnalysis(nil, "bob")
	assert.ErrorIs(t, err, worker.ErrQueueFull)

	st, err := store.Status(id)
	require.NoError(t, err)
	assert.Equal(t, tasks.StateError, st.State)
	assert.Contains(t, st.Error, "queue full")

	pool.Stop()
}

func TestWorkerQueue_SweepsOnSubmit(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := tasks.NewStore(tasks.WithClock(func() time.Time { return now }))

	old := store.Submit(1, nil)
	store.Complete(old, nil)
	now = now.Add(2 * time.Hour)

	pool := worker.NewPool(1, 4)
	q := NewWorkerQueue(pool, store, &stubAggregator{}, 10)
	_, err := q.EnqueueMistakeAnalysis(nil, "alice")
	require.NoError(t, err)

	_, err = store.Status(old)
	assert.ErrorIs(t, err, tasks.ErrNotFound)
	pool.Stop()
}
