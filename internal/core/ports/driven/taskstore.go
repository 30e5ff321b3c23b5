package driven

import (
	"context"

	"github.com/quarrylabs/quarry-cli/internal/core/domain"
)

// SchedulerStore persists scheduled task state across restarts.
type SchedulerStore interface {
	// GetTask returns a task by ID, or nil when it does not exist.
	GetTask(ctx context.Context, id string) (*domain.ScheduledTask, error)

	// SaveTask creates or updates a task.
	SaveTask(ctx context.Context, task *domain.ScheduledTask) error

	// ListTasks returns all tasks.
	ListTasks(ctx context.Context) ([]domain.ScheduledTask, error)
}
