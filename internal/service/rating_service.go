package service

import (
	"math"

	"github.com/DIvanCode/CoDuels-Backend-sub001/internal/models"
)

// DefaultTaskLevel 어떤 구간에도 속하지 않는 레이팅의 과제 난이도
const DefaultTaskLevel = 1

// KFactorBand 레이팅이 Below 미만이면 K 적용
type KFactorBand struct {
	Below int
	K     float64
}

// DefaultKFactorBands <1600 → 40, <2000 → 32, <2200 → 24 (그 이상은 DefaultKFactor)
func DefaultKFactorBands() []KFactorBand {
	return []KFactorBand{
		{Below: 1600, K: 40},
		{Below: 2000, K: 32},
		{Below: 2200, K: 24},
	}
}

const DefaultKFactor = 16.0

// RatingService 대결 결과에 따른 ELO 레이팅 계산 서비스
type RatingService struct {
	kFactorBands   []KFactorBand
	defaultKFactor float64
	taskLevels     []models.RatingInterval
}

// NewRatingService 레이팅 서비스 생성
// taskLevels는 설정 로드 시점에 파싱된 구간 목록 (순서대로 검사)
func NewRatingService(kFactorBands []KFactorBand, defaultKFactor float64, taskLevels []models.RatingInterval) *RatingService {
	if len(kFactorBands) == 0 {
		kFactorBands = DefaultKFactorBands()
	}
	if defaultKFactor <= 0 {
		defaultKFactor = DefaultKFactor
	}
	return &RatingService{
		kFactorBands:   kFactorBands,
		defaultKFactor: defaultKFactor,
		taskLevels:     taskLevels,
	}
}

// GetKFactor 현재 레이팅 기준 K-factor
// 낮은 레이팅일수록 변동 폭이 크다.
func (s *RatingService) GetKFactor(rating int) float64 {
	for _, band := range s.kFactorBands {
		if rating < band.Below {
			return band.K
		}
	}
	return s.defaultKFactor
}

// UpdateRatings 종료된 대결의 결과를 두 참가자 레이팅에 반영하고 변화량을 기록
//
// 항상 대결 시작 시점 레이팅(User*InitRating)에서 계산하므로 같은 대결에 다시 호출해도
// 결과가 누적되지 않는다. 한 대결에 한 번만 호출하는 것은 호출자가 보장한다.
func (s *RatingService) UpdateRatings(duel *models.Duel) {
	rating1 := duel.User1InitRating
	rating2 := duel.User2InitRating

	if !duel.IsRated() {
		duel.User1FinalRating = &rating1
		duel.User2FinalRating = &rating2
		duel.User1RatingDelta = 0
		duel.User2RatingDelta = 0
		return
	}

	changes1 := s.GetRatingChanges(duel, rating1, rating2)
	changes2 := s.GetRatingChanges(duel, rating2, rating1)

	delta1 := changes1[duel.ResultFor(duel.User1.ID)]
	delta2 := changes2[duel.ResultFor(duel.User2.ID)]

	newRating1 := rating1 + delta1
	newRating2 := rating2 + delta2

	duel.User1RatingDelta = delta1
	duel.User2RatingDelta = delta2
	duel.User1FinalRating = &newRating1
	duel.User2FinalRating = &newRating2
	duel.User1.Rating = newRating1
	duel.User2.Rating = newRating2
}

// GetRatingChanges rating 플레이어가 anotherRating 상대에게 승/무/패 했을 때의 변화량 (미리보기)
func (s *RatingService) GetRatingChanges(duel *models.Duel, rating, anotherRating int) map[models.DuelResult]int {
	if duel != nil && !duel.IsRated() {
		return map[models.DuelResult]int{
			models.DuelResultWin:  0,
			models.DuelResultDraw: 0,
			models.DuelResultLose: 0,
		}
	}

	expected := s.expectedScore(float64(rating), float64(anotherRating))
	k := s.GetKFactor(rating)

	return map[models.DuelResult]int{
		models.DuelResultWin:  int(math.Round(k * (1.0 - expected))),
		models.DuelResultDraw: int(math.Round(k * (0.5 - expected))),
		models.DuelResultLose: int(math.Round(k * (0.0 - expected))),
	}
}

// GetTaskLevel 레이팅에 맞는 과제 난이도 (첫 번째로 포함하는 구간)
func (s *RatingService) GetTaskLevel(rating int) int {
	for _, interval := range s.taskLevels {
		if interval.Contains(rating) {
			return interval.Level
		}
	}
	return DefaultTaskLevel
}

// expectedScore ELO에 기반한 기대 승률 계산
func (s *RatingService) expectedScore(ratingA, ratingB float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (ratingB-ratingA)/400.0))
}
