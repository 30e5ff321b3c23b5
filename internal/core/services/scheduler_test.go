package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry-cli/internal/core/domain"
)

// memoryTaskStore is an in-memory SchedulerStore.
type memoryTaskStore struct {
	mu    sync.Mutex
	tasks map[string]domain.ScheduledTask
}

func newMemoryTaskStore() *memoryTaskStore {
	return &memoryTaskStore{tasks: make(map[string]domain.ScheduledTask)}
}

func (s *memoryTaskStore) GetTask(_ context.Context, id string) (*domain.ScheduledTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, nil
	}
	return &task, nil
}

func (s *memoryTaskStore) SaveTask(_ context.Context, task *domain.ScheduledTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = *task
	return nil
}

func (s *memoryTaskStore) ListTasks(_ context.Context) ([]domain.ScheduledTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ScheduledTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		out = append(out, task)
	}
	return out, nil
}

// countingIngestor records RunSource calls.
type countingIngestor struct {
	mu   sync.Mutex
	runs map[string]int
}

func newCountingIngestor() *countingIngestor {
	return &countingIngestor{runs: make(map[string]int)}
}

func (i *countingIngestor) RunSource(_ context.Context, name string) (domain.Summary, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.runs[name]++
	return domain.Summary{SourceName: name, Ingested: 1}, nil
}

func (i *countingIngestor) RunAll(context.Context) ([]domain.Summary, error) {
	return nil, nil
}

func (i *countingIngestor) Sources() []domain.SourceConfig { return nil }

func (i *countingIngestor) count(name string) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.runs[name]
}

// blockingIngestor holds every RunSource call open until released.
type blockingIngestor struct {
	countingIngestor
	release chan struct{}
}

func newBlockingIngestor() *blockingIngestor {
	return &blockingIngestor{
		countingIngestor: countingIngestor{runs: make(map[string]int)},
		release:          make(chan struct{}),
	}
}

func (i *blockingIngestor) RunSource(_ context.Context, name string) (domain.Summary, error) {
	i.mu.Lock()
	i.runs[name]++
	i.mu.Unlock()
	<-i.release
	return domain.Summary{SourceName: name, Ingested: 1}, nil
}

func TestScheduler(t *testing.T) {
	t.Run("creates tasks for scheduled sources only", func(t *testing.T) {
		sources := []domain.SourceConfig{
			{Name: "scheduled", Type: "fake", Schedule: time.Hour},
			{Name: "manual", Type: "fake"},
		}
		store := newMemoryTaskStore()
		sched := NewScheduler(sources, store, newCountingIngestor(), nil)
		sched.SetTick(10 * time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_ = sched.Start(ctx)

		task, err := store.GetTask(context.Background(), "ingest:scheduled")
		require.NoError(t, err)
		require.NotNil(t, task)
		assert.Equal(t, "scheduled", task.SourceName)
		assert.Equal(t, time.Hour, task.Interval)
		assert.True(t, task.Enabled)

		manual, err := store.GetTask(context.Background(), "ingest:manual")
		require.NoError(t, err)
		assert.Nil(t, manual)
	})

	t.Run("runs due tasks and advances next run", func(t *testing.T) {
		sources := []domain.SourceConfig{
			{Name: "docs", Type: "fake", Schedule: time.Hour},
		}
		store := newMemoryTaskStore()
		// Pre-seed an overdue task so the first check fires immediately.
		require.NoError(t, store.SaveTask(context.Background(), &domain.ScheduledTask{
			ID:         "ingest:docs",
			SourceName: "docs",
			Interval:   time.Hour,
			Enabled:    true,
			NextRun:    time.Now().Add(-time.Minute),
		}))

		ingestor := newCountingIngestor()
		sched := NewScheduler(sources, store, ingestor, nil)
		sched.SetTick(10 * time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			_ = sched.Start(ctx)
			close(done)
		}()

		require.Eventually(t, func() bool {
			return ingestor.count("docs") >= 1
		}, time.Second, 10*time.Millisecond)

		cancel()
		<-done
		require.NoError(t, sched.Stop())

		task, err := store.GetTask(context.Background(), "ingest:docs")
		require.NoError(t, err)
		require.NotNil(t, task)
		assert.False(t, task.LastRun.IsZero())
		assert.True(t, task.NextRun.After(time.Now()))
		assert.Contains(t, task.LastResult, "[docs] completed")
	})

	t.Run("does not run disabled or future tasks", func(t *testing.T) {
		store := newMemoryTaskStore()
		require.NoError(t, store.SaveTask(context.Background(), &domain.ScheduledTask{
			ID:         "ingest:disabled",
			SourceName: "disabled",
			Interval:   time.Hour,
			Enabled:    false,
			NextRun:    time.Now().Add(-time.Minute),
		}))
		require.NoError(t, store.SaveTask(context.Background(), &domain.ScheduledTask{
			ID:         "ingest:future",
			SourceName: "future",
			Interval:   time.Hour,
			Enabled:    true,
			NextRun:    time.Now().Add(time.Hour),
		}))

		ingestor := newCountingIngestor()
		sched := NewScheduler(nil, store, ingestor, nil)
		sched.SetTick(10 * time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
		defer cancel()
		_ = sched.Start(ctx)
		require.NoError(t, sched.Stop())

		assert.Equal(t, 0, ingestor.count("disabled"))
		assert.Equal(t, 0, ingestor.count("future"))
	})

	t.Run("updates the interval when the schedule changes", func(t *testing.T) {
		store := newMemoryTaskStore()
		require.NoError(t, store.SaveTask(context.Background(), &domain.ScheduledTask{
			ID:         "ingest:docs",
			SourceName: "docs",
			Interval:   time.Hour,
			Enabled:    true,
			NextRun:    time.Now().Add(time.Hour),
		}))

		sources := []domain.SourceConfig{
			{Name: "docs", Type: "fake", Schedule: 2 * time.Hour},
		}
		sched := NewScheduler(sources, store, newCountingIngestor(), nil)
		sched.SetTick(10 * time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_ = sched.Start(ctx)

		task, err := store.GetTask(context.Background(), "ingest:docs")
		require.NoError(t, err)
		require.NotNil(t, task)
		assert.Equal(t, 2*time.Hour, task.Interval)
	})

	t.Run("does not start a second run while one is in flight", func(t *testing.T) {
		store := newMemoryTaskStore()
		// Overdue task that stays due for every tick while the run blocks.
		require.NoError(t, store.SaveTask(context.Background(), &domain.ScheduledTask{
			ID:         "ingest:slow",
			SourceName: "slow",
			Interval:   time.Hour,
			Enabled:    true,
			NextRun:    time.Now().Add(-time.Minute),
		}))

		ingestor := newBlockingIngestor()
		sched := NewScheduler(nil, store, ingestor, nil)
		sched.SetTick(10 * time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			_ = sched.Start(ctx)
			close(done)
		}()

		require.Eventually(t, func() bool {
			return ingestor.count("slow") == 1
		}, time.Second, 10*time.Millisecond)

		// Let several ticks fire while the first run is still blocked.
		time.Sleep(80 * time.Millisecond)
		assert.Equal(t, 1, ingestor.count("slow"))

		close(ingestor.release)
		cancel()
		<-done
		require.NoError(t, sched.Stop())
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		sched := NewScheduler(nil, newMemoryTaskStore(), newCountingIngestor(), nil)

		require.NoError(t, sched.Stop())
		require.NoError(t, sched.Stop())
	})
}
