// Package tasks tracks background analysis runs so clients can poll them.
package tasks

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vytor/chessinsight/internal/logger"
	"github.com/vytor/chessinsight/internal/metrics"
	"github.com/vytor/chessinsight/internal/models"
)

const (
	// DefaultTTL is how long finished tasks stay queryable.
	DefaultTTL = time.Hour
	// DefaultSecondsPerItem drives the remaining-time estimate.
	DefaultSecondsPerItem = 2.5
)

// ErrNotFound is returned for unknown and expired task ids.
var ErrNotFound = errors.New("tasks: not found")

// State is the lifecycle state of a task.
type State string

const (
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

// Progress reports how many items a running task has finished.
type Progress struct {
	Current    int `json:"current"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// Status is a snapshot of a task returned to pollers.
type Status struct {
	ID                 string                     `json:"task_id"`
	State              State                      `json:"status"`
	Progress           *Progress                  `json:"progress,omitempty"`
	EstimatedRemaining string                     `json:"estimated_remaining,omitempty"`
	Metadata           map[string]any             `json:"metadata,omitempty"`
	CreatedAt          time.Time                  `json:"created_at"`
	CompletedAt        *time.Time                 `json:"completed_at,omitempty"`
	Result             *models.AggregatedAnalysis `json:"data,omitempty"`
	Error              string                     `json:"error,omitempty"`
}

type liveTask struct {
	progress  Progress
	metadata  map[string]any
	createdAt time.Time
	updatedAt time.Time
}

type finishedTask struct {
	state       State
	result      *models.AggregatedAnalysis
	err         string
	metadata    map[string]any
	createdAt   time.Time
	completedAt time.Time
}

// Store holds live and finished tasks. A single mutex covers both maps so a
// task is always observed in exactly one of them.
type Store struct {
	mu       sync.Mutex
	live     map[string]*liveTask
	finished map[string]*finishedTask

	ttl            time.Duration
	secondsPerItem float64
	now            func() time.Time
	newID          func() string
	metrics        metrics.Collector
	log            *logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the retention window for finished tasks.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSecondsPerItem sets the per-item time used for estimates.
func WithSecondsPerItem(sec float64) Option {
	return func(s *Store) {
		if sec > 0 {
			s.secondsPerItem = sec
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator replaces the random id source.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m metrics.Collector) Option {
	return func(s *Store) { s.metrics = metrics.OrNoop(m) }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		live:           make(map[string]*liveTask),
		finished:       make(map[string]*finishedTask),
		ttl:            DefaultTTL,
		secondsPerItem: DefaultSecondsPerItem,
		now:            time.Now,
		newID:          uuid.NewString,
		metrics:        metrics.Noop{},
		log:            logger.Default().WithPrefix("tasks"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit registers a new processing task and returns its id.
func (s *Store) Submit(totalItems int, metadata map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	now := s.now()
	s.live[id] = &liveTask{
		progress:  Progress{Total: totalItems},
		metadata:  metadata,
		createdAt: now,
		updatedAt: now,
	}
	s.metrics.SetGauge(metrics.TasksActive, int64(len(s.live)))
	s.log.Info("created task %s with %d items", id, totalItems)
	return id
}

// ReportProgress updates a live task. Unknown or finished ids are ignored.
func (s *Store) ReportProgress(id string, current, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.live[id]
	if !ok {
		return
	}
	t.progress = Progress{Current: current, Total: total, Percentage: percentage(current, total)}
	t.updatedAt = s.now()
}

func percentage(current, total int) int {
	if total <= 0 {
		return 0
	}
	return int(float64(current) / float64(total) * 100)
}

// Complete moves a live task to the finished set with its result. Unknown
// and already finished ids are ignored.
func (s *Store) Complete(id string, result *models.AggregatedAnalysis) {
	if !s.finish(id, &finishedTask{state: StateCompleted, result: result}) {
		s.log.Warn("ignoring completion of unknown task %s", id)
		return
	}
	s.metrics.IncCounter(metrics.TasksCompleted, 1)
	s.log.Info("task %s completed", id)
}

// Fail moves a live task to the finished set with an error message. Unknown
// and already finished ids are ignored.
func (s *Store) Fail(id string, message string) {
	if !s.finish(id, &finishedTask{state: StateError, err: message}) {
		s.log.Warn("ignoring failure of unknown task %s: %s", id, message)
		return
	}
	s.metrics.IncCounter(metrics.TasksFailed, 1)
	s.log.Error("task %s failed: %s", id, message)
}

func (s *Store) finish(id string, ft *finishedTask) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.live[id]
	if !ok {
		return false
	}
	ft.completedAt = s.now()
	ft.createdAt = t.createdAt
	ft.metadata = t.metadata
	delete(s.live, id)
	s.finished[id] = ft
	s.metrics.SetGauge(metrics.TasksActive, int64(len(s.live)))
	return true
}

// Status returns the live progress or the finished record for id, or ErrNotFound.
func (s *Store) Status(id string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.live[id]; ok {
		p := t.progress
		remaining := float64(p.Total-p.Current) * s.secondsPerItem
		return Status{
			ID:                 id,
			State:              StateProcessing,
			Progress:           &p,
			EstimatedRemaining: fmt.Sprintf("%d seconds", int(remaining)),
			Metadata:           t.metadata,
			CreatedAt:          t.createdAt,
		}, nil
	}

	if ft, ok := s.finished[id]; ok {
		completed := ft.completedAt
		return Status{
			ID:          id,
			State:       ft.state,
			Metadata:    ft.metadata,
			CreatedAt:   ft.createdAt,
			CompletedAt: &completed,
			Result:      ft.result,
			Error:       ft.err,
		}, nil
	}

	return Status{}, ErrNotFound
}

// Sweep drops finished tasks older than the retention window and returns how many went.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for id, ft := range s.finished {
		if ft.completedAt.Before(cutoff) {
			delete(s.finished, id)
			removed++
		}
	}
	if removed > 0 {
		s.metrics.IncCounter(metrics.TasksSwept, int64(removed))
		s.log.Info("swept %d expired tasks", removed)
	}
	return removed
}

// ActiveCount returns the number of processing tasks.
func (s *Store) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// CompletedCount returns the number of finished tasks still retained.
func (s *Store) CompletedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.finished)
}
