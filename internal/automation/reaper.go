package automation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"donna/internal/model"
	"donna/internal/repository"
)

type staleTaskStore interface {
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]model.PendingTask, error)
	Fail(ctx context.Context, id string) error
}

// Reaper fails pending tasks nobody completed within maxAge. A parked
// task whose awaited event never arrives should not wait forever.
type Reaper struct {
	tasks  staleTaskStore
	maxAge time.Duration
	logger *zap.Logger
}

func NewReaper(tasks *repository.TaskRepository, maxAge time.Duration, logger *zap.Logger) *Reaper {
	return &Reaper{tasks: tasks, maxAge: maxAge, logger: logger}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-r.maxAge)
	stale, err := r.tasks.ListPendingBefore(ctx, cutoff)
	if err != nil {
		r.logger.Error("Failed to list stale tasks", zap.Error(err))
		return
	}

	for _, task := range stale {
		if err := r.tasks.Fail(ctx, task.ID); err != nil {
			r.logger.Error("Failed to expire stale task",
				zap.String("task_id", task.ID),
				zap.Error(err),
			)
			continue
		}
		r.logger.Info("Expired stale pending task",
			zap.String("task_id", task.ID),
			zap.Time("created_at", task.CreatedAt),
		)
	}
}
