package services

import (
	"context"
	"sync"
	"time"

	"github.com/quarrylabs/quarry-cli/internal/core/domain"
	"github.com/quarrylabs/quarry-cli/internal/core/ports/driven"
	"github.com/quarrylabs/quarry-cli/internal/core/ports/driving"
	"github.com/quarrylabs/quarry-cli/internal/logger"
)

// DefaultTick is the interval at which the scheduler checks for due
// tasks.
const DefaultTick = time.Minute

// watchCooldown is the minimum gap between watch-triggered runs of
// the same source.
const watchCooldown = 30 * time.Second

// Scheduler runs ingestion for each configured source on its
// interval. Task state (last run, next run, last result) is persisted
// through the scheduler store so restarts do not reset schedules.
// Sources whose connector can push change events additionally trigger
// early runs in between intervals.
type Scheduler struct {
	sources  []domain.SourceConfig
	store    driven.SchedulerStore
	ingestor driving.Ingestor
	factory  driven.SourceFactory
	tick     time.Duration

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
	inFlight map[string]struct{}

	lastTriggered map[string]time.Time
}

// NewScheduler creates a scheduler. The factory is used only to probe
// sources for watch support; pass nil to disable watching.
func NewScheduler(
	sources []domain.SourceConfig,
	store driven.SchedulerStore,
	ingestor driving.Ingestor,
	factory driven.SourceFactory,
) *Scheduler {
	return &Scheduler{
		sources:       sources,
		store:         store,
		ingestor:      ingestor,
		factory:       factory,
		tick:          DefaultTick,
		inFlight:      make(map[string]struct{}),
		lastTriggered: make(map[string]time.Time),
	}
}

// SetTick overrides the due-task check interval. Useful for testing.
func (s *Scheduler) SetTick(d time.Duration) {
	if d > 0 {
		s.tick = d
	}
}

// Start begins the scheduler loop. It blocks until Stop is called or
// the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	if err := s.initialiseTasks(ctx); err != nil {
		logger.Warn("scheduler: failed to initialise tasks: %v", err)
	}

	s.startWatchers(ctx)

	return s.run(ctx)
}

// Stop gracefully shuts down the scheduler and waits for in-flight
// runs to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// initialiseTasks ensures every scheduled source has a task row.
func (s *Scheduler) initialiseTasks(ctx context.Context) error {
	for _, cfg := range s.sources {
		if cfg.Schedule <= 0 {
			continue
		}
		if err := s.ensureTask(ctx, cfg); err != nil {
			return err
		}
	}
	return nil
}

// ensureTask creates or updates the task for a source.
func (s *Scheduler) ensureTask(ctx context.Context, cfg domain.SourceConfig) error {
	id := "ingest:" + cfg.Name

	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	if task == nil {
		task = &domain.ScheduledTask{
			ID:         id,
			SourceName: cfg.Name,
			Interval:   cfg.Schedule,
			Enabled:    true,
			NextRun:    time.Now().Add(cfg.Schedule),
		}
	} else if task.Interval != cfg.Schedule {
		task.Interval = cfg.Schedule
		task.NextRun = time.Now().Add(cfg.Schedule)
	}

	return s.store.SaveTask(ctx, task)
}

// run is the main scheduler loop.
func (s *Scheduler) run(ctx context.Context) error {
	s.checkAndRunDueTasks(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			s.checkAndRunDueTasks(ctx)
		}
	}
}

// checkAndRunDueTasks runs every enabled task whose next-run time has
// passed. Each task runs in its own goroutine; different sources are
// independent and the tracker isolates their writes.
func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Warn("scheduler: failed to list tasks: %v", err)
		return
	}

	now := time.Now()
	for i := range tasks {
		task := tasks[i]
		if !task.Enabled || task.NextRun.After(now) {
			continue
		}

		// NextRun only advances once the run completes, so a task
		// still in flight stays due; skip it until it finishes.
		s.mu.Lock()
		if _, busy := s.inFlight[task.ID]; busy {
			s.mu.Unlock()
			continue
		}
		s.inFlight[task.ID] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.clearInFlight(task.ID)
			s.runTask(ctx, task)
		}()
	}
}

func (s *Scheduler) clearInFlight(id string) {
	s.mu.Lock()
	delete(s.inFlight, id)
	s.mu.Unlock()
}

// runTask runs one source and persists the task's updated state.
func (s *Scheduler) runTask(ctx context.Context, task domain.ScheduledTask) {
	logger.Info("scheduler: running %s", task.SourceName)

	summary, err := s.ingestor.RunSource(ctx, task.SourceName)
	if err != nil {
		task.LastResult = err.Error()
	} else {
		task.LastResult = summary.String()
	}

	now := time.Now()
	task.LastRun = now
	task.NextRun = now.Add(task.Interval)

	if err := s.store.SaveTask(ctx, &task); err != nil {
		logger.Warn("scheduler: failed to save task %s: %v", task.ID, err)
	}
}

// startWatchers probes each scheduled source for watch support and
// subscribes to its change events. Events trigger an early run,
// rate-limited by watchCooldown; interval polling remains the
// correctness backstop.
func (s *Scheduler) startWatchers(ctx context.Context) {
	if s.factory == nil {
		return
	}

	for _, cfg := range s.sources {
		if cfg.Schedule <= 0 {
			continue
		}

		source, err := s.factory.Create(cfg)
		if err != nil {
			logger.Debug("scheduler: not watching %s: %v", cfg.Name, err)
			continue
		}

		watcher, ok := source.(driven.Watcher)
		if !ok {
			source.Close()
			continue
		}

		events, err := watcher.Watch(ctx)
		if err != nil {
			logger.Debug("scheduler: watch unavailable for %s: %v", cfg.Name, err)
			source.Close()
			continue
		}

		name := cfg.Name
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer source.Close()
			for {
				select {
				case <-ctx.Done():
					return
				case <-s.stopCh:
					return
				case _, ok := <-events:
					if !ok {
						return
					}
					s.triggerEarlyRun(ctx, name)
				}
			}
		}()
	}
}

// triggerEarlyRun runs a source in response to a change event unless
// one was triggered too recently.
func (s *Scheduler) triggerEarlyRun(ctx context.Context, name string) {
	s.mu.Lock()
	if time.Since(s.lastTriggered[name]) < watchCooldown {
		s.mu.Unlock()
		return
	}
	s.lastTriggered[name] = time.Now()
	s.mu.Unlock()

	logger.Info("scheduler: change detected, running %s", name)
	summary, err := s.ingestor.RunSource(ctx, name)
	if err != nil {
		logger.Warn("scheduler: watch-triggered run of %s failed: %v", name, err)
		return
	}
	logger.Info("%s", summary.String())
}
