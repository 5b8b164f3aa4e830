package models

import "time"

type DuelStatus string

const (
	DuelStatusInProgress DuelStatus = "in_progress"
	DuelStatusFinished   DuelStatus = "finished"
)

type DuelResult string

const (
	DuelResultWin  DuelResult = "win"
	DuelResultDraw DuelResult = "draw"
	DuelResultLose DuelResult = "lose"
)

type DuelTasksOrder string

const (
	DuelTasksOrderSequential DuelTasksOrder = "sequential"
	DuelTasksOrderParallel   DuelTasksOrder = "parallel"
)

type DuelTaskConfiguration struct {
	Level  int      `json:"level"`
	Topics []string `json:"topics"`
}

type DuelConfiguration struct {
	ID                  *int64                           `db:"id" json:"id,omitempty"`
	OwnerID             *int64                           `db:"owner_id" json:"ownerId,omitempty"`
	IsRated             bool                             `db:"is_rated" json:"isRated"`
	ShowOpponentCode    bool                             `db:"show_opponent_code" json:"showOpponentCode"`
	MaxDurationMinutes  int                              `db:"max_duration_minutes" json:"maxDurationMinutes"`
	TasksCount          int                              `db:"tasks_count" json:"tasksCount"`
	TasksOrder          DuelTasksOrder                   `db:"tasks_order" json:"tasksOrder"`
	TasksConfigurations map[string]DuelTaskConfiguration `db:"tasks_configurations" json:"tasksConfigurations"`
}

type SubmissionStatus string

const (
	SubmissionStatusQueued  SubmissionStatus = "queued"
	SubmissionStatusRunning SubmissionStatus = "running"
	SubmissionStatusDone    SubmissionStatus = "done"
)

const VerdictAccepted = "Accepted"

type Submission struct {
	ID         int64            `db:"id" json:"id"`
	UserID     int64            `db:"user_id" json:"userId"`
	TaskKey    string           `db:"task_key" json:"taskKey"`
	Status     SubmissionStatus `db:"status" json:"status"`
	Verdict    string           `db:"verdict" json:"verdict,omitempty"`
	SubmitTime time.Time        `db:"submit_time" json:"submitTime"`
}

// IsAccepted 채점 완료 + 정답 여부
func (s Submission) IsAccepted() bool {
	return s.Status == SubmissionStatusDone && s.Verdict == VerdictAccepted
}

type Duel struct {
	ID               int64               `db:"id" json:"id"`
	Status           DuelStatus          `db:"status" json:"status"`
	Configuration    *DuelConfiguration  `json:"configuration"`
	Tasks            map[string]DuelTask `json:"tasks"`
	User1            *User               `json:"user1"`
	User2            *User               `json:"user2"`
	User1InitRating  int                 `db:"user1_init_rating" json:"user1InitRating"`
	User2InitRating  int                 `db:"user2_init_rating" json:"user2InitRating"`
	User1FinalRating *int                `db:"user1_final_rating" json:"user1FinalRating,omitempty"`
	User2FinalRating *int                `db:"user2_final_rating" json:"user2FinalRating,omitempty"`
	User1RatingDelta int                 `db:"user1_rating_delta" json:"user1RatingDelta"`
	User2RatingDelta int                 `db:"user2_rating_delta" json:"user2RatingDelta"`
	WinnerID         *int64              `db:"winner_id" json:"winnerId,omitempty"`
	Submissions      []Submission        `json:"-"`
	StartTime        time.Time           `db:"start_time" json:"startTime"`
	DeadlineTime     time.Time           `db:"deadline_time" json:"deadlineTime"`
	EndTime          *time.Time          `db:"end_time" json:"endTime,omitempty"`
}

// ResultFor 해당 사용자 기준 결과 (승자가 없으면 무승부)
func (d *Duel) ResultFor(userID int64) DuelResult {
	switch {
	case d.WinnerID == nil:
		return DuelResultDraw
	case *d.WinnerID == userID:
		return DuelResultWin
	default:
		return DuelResultLose
	}
}

// IsRated 레이팅 반영 대상인지
func (d *Duel) IsRated() bool {
	return d.Configuration != nil && d.Configuration.IsRated
}
