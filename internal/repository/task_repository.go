package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// TaskRepository persists agent work items.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error
	ListOpenByAgent(ctx context.Context, agentID string) ([]domain.Task, error)
}

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository builds the repository.
func NewTaskRepository(pool *pgxpool.Pool) TaskRepository {
	return &taskRepository{pool: pool}
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) error {
	const query = `
        INSERT INTO tasks (request_id, agent_id, title, due_at, status)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		task.RequestID,
		task.AgentID,
		task.Title,
		task.DueAt,
		task.Status,
	).Scan(&task.ID, &task.CreatedAt)
}

func (r *taskRepository) ListOpenByAgent(ctx context.Context, agentID string) ([]domain.Task, error) {
	const query = `
        SELECT id, request_id, agent_id, title, due_at, status, created_at
        FROM tasks WHERE agent_id=$1 AND status=$2 ORDER BY due_at`
	rows, err := r.pool.Query(ctx, query, agentID, domain.TaskOpen)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Task
	for rows.Next() {
		var task domain.Task
		if err := rows.Scan(&task.ID, &task.RequestID, &task.AgentID, &task.Title, &task.DueAt, &task.Status, &task.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, task)
	}
	return result, rows.Err()
}
