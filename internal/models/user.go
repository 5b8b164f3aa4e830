package models

import "time"

type User struct {
	ID        int64     `json:"id" db:"id"`
	Nickname  string    `json:"nickname" db:"nickname"`
	Rating    int       `json:"rating" db:"rating"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// TaskHistory 지금까지 참가한 모든 대결에 배정된 과제 ID
	TaskHistory []string `json:"-"`
}
