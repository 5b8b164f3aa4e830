package models

import "time"

// WaitingUser 대기열에 등록된 사용자
type WaitingUser struct {
	UserID             int64     `json:"userId"`
	Rating             int       `json:"rating"`
	EnqueuedAt         time.Time `json:"enqueuedAt"`
	ExpectedOpponentID *int64    `json:"expectedOpponentId,omitempty"`
	ConfigurationID    *int64    `json:"configurationId,omitempty"`

	// IsOpponentAssigned는 조회 시점의 대기열 상태로부터 계산된다
	IsOpponentAssigned bool `json:"isOpponentAssigned"`
}

// DuelPair 매칭 결과
type DuelPair struct {
	User1ID         int64          `json:"user1Id"`
	User2ID         int64          `json:"user2Id"`
	ConfigurationID *int64         `json:"configurationId,omitempty"`
	Entries         [2]WaitingUser `json:"-"`
}

type PendingDuelType string

const (
	PendingDuelRanked   PendingDuelType = "ranked"
	PendingDuelFriendly PendingDuelType = "friendly"
	PendingDuelGroup    PendingDuelType = "group"
)

// PendingDuel 저장된 대결 검색/초대 요청
type PendingDuel struct {
	ID              int64           `db:"id" json:"id"`
	Type            PendingDuelType `db:"type" json:"type"`
	UserID          int64           `db:"user_id" json:"userId"`
	Rating          int             `db:"rating" json:"rating"`
	OpponentID      *int64          `db:"opponent_id" json:"opponentId,omitempty"`
	ConfigurationID *int64          `db:"configuration_id" json:"configurationId,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
}

// WaitingUser 대기열 항목으로 변환
func (p PendingDuel) WaitingUser() WaitingUser {
	return WaitingUser{
		UserID:             p.UserID,
		Rating:             p.Rating,
		EnqueuedAt:         p.CreatedAt,
		ExpectedOpponentID: p.OpponentID,
		ConfigurationID:    p.ConfigurationID,
	}
}
