package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/DIvanCode/CoDuels-Backend-sub001/internal/models"
	"github.com/DIvanCode/CoDuels-Backend-sub001/pkg/database"
	"github.com/lib/pq"
)

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID ID로 사용자 찾기 (과제 이력 포함, 없으면 nil)
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	user, err := findUser(ctx, r.db, id, false)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func findUser(ctx context.Context, q queryer, id int64, forUpdate bool) (*models.User, error) {
	query := `
		SELECT id, nickname, rating, created_at
		FROM users
		WHERE id = $1
	`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	user := &models.User{}
	err := q.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Nickname,
		&user.Rating,
		&user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	user.TaskHistory, err = taskHistory(ctx, q, id)
	if err != nil {
		return nil, err
	}

	return user, nil
}

// taskHistory 사용자가 참가한 모든 대결에 배정된 과제 ID
func taskHistory(ctx context.Context, q queryer, userID int64) ([]string, error) {
	query := `
		SELECT COALESCE(array_agg(DISTINCT t.value->>'id'), '{}')
		FROM duels d, jsonb_each(d.tasks) t
		WHERE d.user1_id = $1 OR d.user2_id = $1
	`

	var ids []string
	if err := q.QueryRowContext(ctx, query, userID).Scan(pq.Array(&ids)); err != nil {
		return nil, fmt.Errorf("failed to load task history: %w", err)
	}
	return ids, nil
}
