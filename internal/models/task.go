package models

type DuelTask struct {
	ID     string   `db:"id" json:"id"`
	Level  int      `db:"level" json:"level"`
	Topics []string `db:"topics" json:"topics"`
}

// RatingInterval 레이팅 구간 -> 과제 난이도
type RatingInterval struct {
	MinRating int `json:"minRating"`
	MaxRating int `json:"maxRating"`
	Level     int `json:"level"`
}

// Contains 구간 포함 여부 (양 끝 포함)
func (i RatingInterval) Contains(rating int) bool {
	return i.MinRating <= rating && rating <= i.MaxRating
}
