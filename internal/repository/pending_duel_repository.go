package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/DIvanCode/CoDuels-Backend-sub001/internal/models"
	"github.com/DIvanCode/CoDuels-Backend-sub001/pkg/database"
)

type PendingDuelRepository struct {
	db *database.DB
}

func NewPendingDuelRepository(db *database.DB) *PendingDuelRepository {
	return &PendingDuelRepository{db: db}
}

const pendingDuelColumns = `id, type, user_id, rating, opponent_id, configuration_id, created_at`

// ListPending 모든 대기 요청 (오래된 순)
func (r *PendingDuelRepository) ListPending(ctx context.Context) ([]models.PendingDuel, error) {
	query := `SELECT ` + pendingDuelColumns + ` FROM pending_duels ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending duels: %w", err)
	}
	defer rows.Close()

	var pending []models.PendingDuel
	for rows.Next() {
		p, err := scanPendingDuel(rows)
		if err != nil {
			return nil, err
		}
		pending = append(pending, *p)
	}

	return pending, rows.Err()
}

// FindRankedByUser 사용자의 레이팅 대결 검색 요청 (없으면 nil)
func (r *PendingDuelRepository) FindRankedByUser(ctx context.Context, userID int64) (*models.PendingDuel, error) {
	query := `SELECT ` + pendingDuelColumns + ` FROM pending_duels WHERE type = $1 AND user_id = $2`

	p, err := scanPendingDuel(r.db.QueryRowContext(ctx, query, models.PendingDuelRanked, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find pending duel: %w", err)
	}
	return p, nil
}

// CreateRanked 레이팅 대결 검색 요청 생성 (이미 있으면 기존 요청 유지)
func (r *PendingDuelRepository) CreateRanked(ctx context.Context, userID int64, rating int) (*models.PendingDuel, error) {
	query := `
		INSERT INTO pending_duels (type, user_id, rating)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) WHERE type = 'ranked' DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, models.PendingDuelRanked, userID, rating); err != nil {
		return nil, fmt.Errorf("failed to create pending duel: %w", err)
	}

	p, err := r.FindRankedByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("pending duel for user %d disappeared after insert", userID)
	}
	return p, nil
}

// DeleteRankedByUser 레이팅 대결 검색 요청 삭제
func (r *PendingDuelRepository) DeleteRankedByUser(ctx context.Context, userID int64) (bool, error) {
	query := `DELETE FROM pending_duels WHERE type = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, models.PendingDuelRanked, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete pending duel: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPendingDuel(row rowScanner) (*models.PendingDuel, error) {
	p := &models.PendingDuel{}
	var opponentID, configurationID sql.NullInt64
	err := row.Scan(
		&p.ID,
		&p.Type,
		&p.UserID,
		&p.Rating,
		&opponentID,
		&configurationID,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if opponentID.Valid {
		p.OpponentID = &opponentID.Int64
	}
	if configurationID.Valid {
		p.ConfigurationID = &configurationID.Int64
	}
	return p, nil
}
