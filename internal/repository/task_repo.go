package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"donna/internal/model"
)

type TaskRepository struct {
	db *pgxpool.Pool
}

func NewTaskRepository(db *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Insert(ctx context.Context, task *model.PendingTask) error {
	contextJSON, err := json.Marshal(task.Context)
	if err != nil {
		return fmt.Errorf("marshal task context: %w", err)
	}

	query := `
        INSERT INTO pending_tasks (id, owner_id, status, context, scheduled_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
    `
	_, err = r.db.Exec(ctx, query,
		task.ID, task.OwnerID, string(task.Status), contextJSON, task.ScheduledAt,
	)
	return err
}

func (r *TaskRepository) ListPending(ctx context.Context, ownerID int) ([]model.PendingTask, error) {
	query := `
        SELECT id, owner_id, status, context, scheduled_at, created_at, updated_at
        FROM pending_tasks
        WHERE owner_id = $1 AND status = 'pending'
        ORDER BY created_at ASC
    `
	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ListPendingBefore lists tasks that have been pending since before the
// cutoff. Used by the stale-task reaper.
func (r *TaskRepository) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]model.PendingTask, error) {
	query := `
        SELECT id, owner_id, status, context, scheduled_at, created_at, updated_at
        FROM pending_tasks
        WHERE status = 'pending' AND created_at < $1
        ORDER BY created_at ASC
    `
	rows, err := r.db.Query(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

// Complete marks a task completed. The status predicate makes the
// transition safe under concurrent deliveries: only one caller wins.
func (r *TaskRepository) Complete(ctx context.Context, id string) (bool, error) {
	query := `
        UPDATE pending_tasks
        SET status = 'completed', updated_at = NOW()
        WHERE id = $1 AND status = 'pending'
    `
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *TaskRepository) Fail(ctx context.Context, id string) error {
	query := `
        UPDATE pending_tasks
        SET status = 'failed', updated_at = NOW()
        WHERE id = $1 AND status = 'pending'
    `
	_, err := r.db.Exec(ctx, query, id)
	return err
}

func collectTasks(rows pgx.Rows) ([]model.PendingTask, error) {
	var tasks []model.PendingTask
	for rows.Next() {
		var t model.PendingTask
		var status string
		var contextJSON []byte

		err := rows.Scan(&t.ID, &t.OwnerID, &status, &contextJSON, &t.ScheduledAt, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return nil, err
		}
		t.Status = model.TaskStatus(status)
		if len(contextJSON) > 0 {
			if err := json.Unmarshal(contextJSON, &t.Context); err != nil {
				return nil, fmt.Errorf("unmarshal task context: %w", err)
			}
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
