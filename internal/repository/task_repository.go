package repository

import (
	"context"
	"fmt"

	"github.com/DIvanCode/CoDuels-Backend-sub001/internal/models"
	"github.com/DIvanCode/CoDuels-Backend-sub001/pkg/database"
	"github.com/lib/pq"
)

type TaskRepository struct {
	db *database.DB
}

func NewTaskRepository(db *database.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// ListTasks 과제 목록
func (r *TaskRepository) ListTasks(ctx context.Context) ([]models.DuelTask, error) {
	query := `SELECT id, level, topics FROM tasks ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.DuelTask
	for rows.Next() {
		var task models.DuelTask
		if err := rows.Scan(&task.ID, &task.Level, pq.Array(&task.Topics)); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// Upsert 과제 추가 또는 갱신
func (r *TaskRepository) Upsert(ctx context.Context, task models.DuelTask) error {
	query := `
		INSERT INTO tasks (id, level, topics)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
		    level = EXCLUDED.level,
		    topics = EXCLUDED.topics
	`

	topics := task.Topics
	if topics == nil {
		topics = []string{}
	}
	if _, err := r.db.ExecContext(ctx, query, task.ID, task.Level, pq.Array(topics)); err != nil {
		return fmt.Errorf("failed to upsert task %s: %w", task.ID, err)
	}
	return nil
}
