package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/DIvanCode/CoDuels-Backend-sub001/internal/models"
	"github.com/DIvanCode/CoDuels-Backend-sub001/pkg/database"
	"github.com/lib/pq"
)

type DuelRepository struct {
	db *database.DB
}

func NewDuelRepository(db *database.DB) *DuelRepository {
	return &DuelRepository{db: db}
}

// queryer *sql.DB와 *sql.Tx 공통
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

const duelColumns = `
	id, status, configuration, tasks, user1_id, user2_id,
	user1_init_rating, user2_init_rating, user1_final_rating, user2_final_rating,
	user1_rating_delta, user2_rating_delta, winner_id, start_time, deadline_time, end_time
`

// FindByID ID로 대결 조회 (참가자, 제출 포함, 없으면 nil)
func (r *DuelRepository) FindByID(ctx context.Context, duelID int64) (*models.Duel, error) {
	duel, err := loadDuel(ctx, r.db, duelID, false)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find duel: %w", err)
	}
	return duel, nil
}

// FindConfiguration 대결 설정 조회 (없으면 nil)
func (r *DuelRepository) FindConfiguration(ctx context.Context, configurationID int64) (*models.DuelConfiguration, error) {
	query := `
		SELECT id, owner_id, is_rated, show_opponent_code, max_duration_minutes,
		       tasks_count, tasks_order, tasks_configurations
		FROM duel_configurations
		WHERE id = $1
	`

	configuration := &models.DuelConfiguration{}
	var id int64
	var ownerID sql.NullInt64
	var tasksConfigurations []byte
	err := r.db.QueryRowContext(ctx, query, configurationID).Scan(
		&id,
		&ownerID,
		&configuration.IsRated,
		&configuration.ShowOpponentCode,
		&configuration.MaxDurationMinutes,
		&configuration.TasksCount,
		&configuration.TasksOrder,
		&tasksConfigurations,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find configuration: %w", err)
	}

	configuration.ID = &id
	if ownerID.Valid {
		configuration.OwnerID = &ownerID.Int64
	}
	if err := json.Unmarshal(tasksConfigurations, &configuration.TasksConfigurations); err != nil {
		return nil, fmt.Errorf("failed to decode tasks configurations: %w", err)
	}

	return configuration, nil
}

// HasActiveDuel 진행 중인 대결이 있는지
func (r *DuelRepository) HasActiveDuel(ctx context.Context, userID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM duels
			WHERE status = $1 AND (user1_id = $2 OR user2_id = $2)
		)
	`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, models.DuelStatusInProgress, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check active duel: %w", err)
	}
	return exists, nil
}

// CreateDuel 대결 생성 + 사용된 대기 요청 삭제 (한 트랜잭션)
func (r *DuelRepository) CreateDuel(ctx context.Context, duel *models.Duel, consumedPendingIDs []int64) error {
	configuration, err := json.Marshal(duel.Configuration)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	tasks, err := json.Marshal(duel.Tasks)
	if err != nil {
		return fmt.Errorf("failed to encode tasks: %w", err)
	}

	var configurationID *int64
	if duel.Configuration != nil {
		configurationID = duel.Configuration.ID
	}

	return r.db.InTx(ctx, func(tx *sql.Tx) error {
		// 다른 사이클이 같은 요청을 먼저 소비했으면 중단
		result, err := tx.ExecContext(ctx, `DELETE FROM pending_duels WHERE id = ANY($1)`, pq.Array(consumedPendingIDs))
		if err != nil {
			return fmt.Errorf("failed to delete pending duels: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected != int64(len(consumedPendingIDs)) {
			return fmt.Errorf("pending duels already consumed: deleted %d of %d", affected, len(consumedPendingIDs))
		}

		query := `
			INSERT INTO duels (
				status, configuration_id, configuration, tasks, user1_id, user2_id,
				user1_init_rating, user2_init_rating, start_time, deadline_time
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id
		`
		err = tx.QueryRowContext(ctx, query,
			duel.Status,
			configurationID,
			configuration,
			tasks,
			duel.User1.ID,
			duel.User2.ID,
			duel.User1InitRating,
			duel.User2InitRating,
			duel.StartTime,
			duel.DeadlineTime,
		).Scan(&duel.ID)
		if err != nil {
			return fmt.Errorf("failed to insert duel: %w", err)
		}
		return nil
	})
}

// FinishDuel 대결 행을 잠그고 finish 호출 후 대결과 두 사용자 레이팅 저장 (대결이 없으면 nil)
func (r *DuelRepository) FinishDuel(ctx context.Context, duelID int64, finish func(duel *models.Duel) error) (*models.Duel, error) {
	var finished *models.Duel
	err := r.db.InTx(ctx, func(tx *sql.Tx) error {
		duel, err := loadDuel(ctx, tx, duelID, true)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to lock duel: %w", err)
		}

		if err := finish(duel); err != nil {
			return err
		}

		query := `
			UPDATE duels
			SET status = $1, winner_id = $2, end_time = $3,
			    user1_final_rating = $4, user2_final_rating = $5,
			    user1_rating_delta = $6, user2_rating_delta = $7
			WHERE id = $8
		`
		_, err = tx.ExecContext(ctx, query,
			duel.Status,
			duel.WinnerID,
			duel.EndTime,
			duel.User1FinalRating,
			duel.User2FinalRating,
			duel.User1RatingDelta,
			duel.User2RatingDelta,
			duel.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update duel: %w", err)
		}

		for _, user := range []*models.User{duel.User1, duel.User2} {
			if _, err := tx.ExecContext(ctx, `UPDATE users SET rating = $1 WHERE id = $2`, user.Rating, user.ID); err != nil {
				return fmt.Errorf("failed to update user rating: %w", err)
			}
		}

		finished = duel
		return nil
	})
	if err != nil {
		return nil, err
	}
	return finished, nil
}

func loadDuel(ctx context.Context, q queryer, duelID int64, forUpdate bool) (*models.Duel, error) {
	query := `SELECT ` + duelColumns + ` FROM duels WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	duel := &models.Duel{}
	var (
		configuration, tasks   []byte
		user1ID, user2ID       int64
		user1Final, user2Final sql.NullInt64
		winnerID               sql.NullInt64
		endTime                sql.NullTime
	)
	err := q.QueryRowContext(ctx, query, duelID).Scan(
		&duel.ID,
		&duel.Status,
		&configuration,
		&tasks,
		&user1ID,
		&user2ID,
		&duel.User1InitRating,
		&duel.User2InitRating,
		&user1Final,
		&user2Final,
		&duel.User1RatingDelta,
		&duel.User2RatingDelta,
		&winnerID,
		&duel.StartTime,
		&duel.DeadlineTime,
		&endTime,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(configuration, &duel.Configuration); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := json.Unmarshal(tasks, &duel.Tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}
	if user1Final.Valid {
		v := int(user1Final.Int64)
		duel.User1FinalRating = &v
	}
	if user2Final.Valid {
		v := int(user2Final.Int64)
		duel.User2FinalRating = &v
	}
	if winnerID.Valid {
		duel.WinnerID = &winnerID.Int64
	}
	if endTime.Valid {
		duel.EndTime = &endTime.Time
	}

	if duel.User1, err = findUser(ctx, q, user1ID, forUpdate); err != nil {
		return nil, err
	}
	if duel.User2, err = findUser(ctx, q, user2ID, forUpdate); err != nil {
		return nil, err
	}

	duel.Submissions, err = listSubmissions(ctx, q, duelID)
	if err != nil {
		return nil, err
	}

	return duel, nil
}

func listSubmissions(ctx context.Context, q queryer, duelID int64) ([]models.Submission, error) {
	query := `
		SELECT id, user_id, task_key, status, COALESCE(verdict, ''), submit_time
		FROM submissions
		WHERE duel_id = $1
		ORDER BY submit_time ASC, id ASC
	`

	rows, err := q.QueryContext(ctx, query, duelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var submissions []models.Submission
	for rows.Next() {
		var s models.Submission
		if err := rows.Scan(&s.ID, &s.UserID, &s.TaskKey, &s.Status, &s.Verdict, &s.SubmitTime); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		submissions = append(submissions, s)
	}

	return submissions, rows.Err()
}
