package service

import (
	"context"
	"fmt"
	"time"

	"github.com/DIvanCode/CoDuels-Backend-sub001/internal/models"
	"go.uber.org/zap"
)

// SearchStatus 사용자의 대결 검색 상태
type SearchStatus struct {
	Searching          bool       `json:"searching"`
	InPool             bool       `json:"inPool"`
	IsOpponentAssigned bool       `json:"isOpponentAssigned"`
	Rating             int        `json:"rating,omitempty"`
	EnqueuedAt         *time.Time `json:"enqueuedAt,omitempty"`
}

// DuelService 대결 검색, 종료, 레이팅 미리보기
type DuelService struct {
	duelManager   *DuelManager
	ratingService *RatingService
	taskService   *TaskService
	pendingStore  PendingDuelStore
	duelStore     DuelStore
	userStore     UserStore
	notifier      Notifier
	publisher     SearchPublisher
	logger        *zap.Logger
	now           func() time.Time
}

// DuelServiceDeps DuelService 의존성
type DuelServiceDeps struct {
	DuelManager   *DuelManager
	RatingService *RatingService
	TaskService   *TaskService
	PendingStore  PendingDuelStore
	DuelStore     DuelStore
	UserStore     UserStore
	Notifier      Notifier
	Publisher     SearchPublisher // nil이면 이벤트 발행 안 함
	Logger        *zap.Logger
}

func NewDuelService(deps DuelServiceDeps, now func() time.Time) *DuelService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}

	return &DuelService{
		duelManager:   deps.DuelManager,
		ratingService: deps.RatingService,
		taskService:   deps.TaskService,
		pendingStore:  deps.PendingStore,
		duelStore:     deps.DuelStore,
		userStore:     deps.UserStore,
		notifier:      deps.Notifier,
		publisher:     deps.Publisher,
		logger:        logger,
		now:           now,
	}
}

// StartSearch 레이팅 대결 검색 시작
func (s *DuelService) StartSearch(ctx context.Context, userID int64) error {
	user, err := s.userStore.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}

	active, err := s.duelStore.HasActiveDuel(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to check active duel: %w", err)
	}
	if active {
		return ErrActiveDuelExists
	}

	existing, err := s.pendingStore.FindRankedByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find pending duel: %w", err)
	}
	if existing != nil {
		// 이미 검색 중
		return nil
	}

	pending, err := s.pendingStore.CreateRanked(ctx, userID, user.Rating)
	if err != nil {
		return fmt.Errorf("failed to create pending duel: %w", err)
	}

	waiting := pending.WaitingUser()
	s.duelManager.AddUser(waiting.UserID, waiting.Rating, waiting.EnqueuedAt, nil, nil)

	s.logger.Info("Duel search started",
		zap.Int64("userId", userID),
		zap.Int("rating", user.Rating))

	if s.publisher != nil {
		if err := s.publisher.NotifySearchStarted(ctx, userID); err != nil {
			// 다음 주기에 어차피 매칭되므로 실패해도 진행
			s.logger.Warn("Failed to publish search event", zap.Int64("userId", userID), zap.Error(err))
		}
	}

	return nil
}

// CancelSearch 레이팅 대결 검색 취소
func (s *DuelService) CancelSearch(ctx context.Context, userID int64) error {
	deleted, err := s.pendingStore.DeleteRankedByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to delete pending duel: %w", err)
	}
	if !deleted {
		return ErrNotSearching
	}

	// 초대나 설정이 걸린 항목은 건드리지 않는다
	if entry, ok := s.duelManager.GetWaitingUser(userID); ok &&
		entry.ExpectedOpponentID == nil && entry.ConfigurationID == nil {
		s.duelManager.RemoveUser(userID)
	}

	s.logger.Info("Duel search canceled", zap.Int64("userId", userID))
	return nil
}

// SearchStatus 검색 상태 조회
func (s *DuelService) SearchStatus(ctx context.Context, userID int64) (*SearchStatus, error) {
	pending, err := s.pendingStore.FindRankedByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find pending duel: %w", err)
	}

	status := &SearchStatus{Searching: pending != nil}
	if pending != nil {
		createdAt := pending.CreatedAt
		status.Rating = pending.Rating
		status.EnqueuedAt = &createdAt
	}

	if entry, ok := s.duelManager.GetWaitingUser(userID); ok {
		status.InPool = true
		status.IsOpponentAssigned = entry.IsOpponentAssigned
	}

	return status, nil
}

// Finish 대결 종료 및 레이팅 반영
//
// 이미 종료된 대결이면 ErrDuelAlreadyFinished. 상태 확인과 변경은 저장소의 잠금 안에서 이루어진다.
func (s *DuelService) Finish(ctx context.Context, duelID int64) (*models.Duel, error) {
	duel, err := s.duelStore.FinishDuel(ctx, duelID, func(duel *models.Duel) error {
		if duel.Status != models.DuelStatusInProgress {
			return ErrDuelAlreadyFinished
		}

		endTime := s.now()
		duel.WinnerID = DetermineWinner(duel)
		duel.Status = models.DuelStatusFinished
		duel.EndTime = &endTime

		s.ratingService.UpdateRatings(duel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if duel == nil {
		return nil, ErrDuelNotFound
	}

	winner := int64(0)
	if duel.WinnerID != nil {
		winner = *duel.WinnerID
	}
	s.logger.Info("Duel finished",
		zap.Int64("duelId", duel.ID),
		zap.Int64("winnerId", winner),
		zap.Int("user1Delta", duel.User1RatingDelta),
		zap.Int("user2Delta", duel.User2RatingDelta))

	if s.notifier != nil {
		s.notifier.DuelFinished(duel.User1.ID, duel.ID)
		s.notifier.DuelFinished(duel.User2.ID, duel.ID)
	}

	return duel, nil
}

// RatingPreview userID가 opponentID와 레이팅 대결을 했을 때 결과별 변화량
func (s *DuelService) RatingPreview(ctx context.Context, userID, opponentID int64) (map[models.DuelResult]int, error) {
	if userID == opponentID {
		return nil, ErrSameUser
	}

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	opponent, err := s.findUser(ctx, opponentID)
	if err != nil {
		return nil, err
	}

	duel := &models.Duel{Configuration: &models.DuelConfiguration{IsRated: true}}
	return s.ratingService.GetRatingChanges(duel, user.Rating, opponent.Rating), nil
}

// VisibleTasks 참가자에게 보이는 과제
func (s *DuelService) VisibleTasks(ctx context.Context, duelID, userID int64) (map[string]models.DuelTask, error) {
	duel, err := s.duelStore.FindByID(ctx, duelID)
	if err != nil {
		return nil, fmt.Errorf("failed to find duel: %w", err)
	}
	if duel == nil {
		return nil, ErrDuelNotFound
	}
	if duel.User1 == nil || duel.User2 == nil ||
		(duel.User1.ID != userID && duel.User2.ID != userID) {
		return nil, ErrNotParticipant
	}

	return s.taskService.GetVisibleTasks(duel, userID), nil
}

func (s *DuelService) findUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.userStore.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// DetermineWinner 마감 전 각자의 첫 정답 제출 시각을 비교 (먼저 푼 쪽 승리, 같거나 둘 다 없으면 무승부)
func DetermineWinner(duel *models.Duel) *int64 {
	first1 := firstAccepted(duel, duel.User1.ID)
	first2 := firstAccepted(duel, duel.User2.ID)

	switch {
	case first1 == nil && first2 == nil:
		return nil
	case first2 == nil, first1 != nil && first1.Before(*first2):
		id := duel.User1.ID
		return &id
	case first1 == nil, first2.Before(*first1):
		id := duel.User2.ID
		return &id
	default:
		return nil
	}
}

func firstAccepted(duel *models.Duel, userID int64) *time.Time {
	var first *time.Time
	for _, submission := range duel.Submissions {
		if submission.UserID != userID || !submission.IsAccepted() {
			continue
		}
		if submission.SubmitTime.After(duel.DeadlineTime) {
			continue
		}
		if first == nil || submission.SubmitTime.Before(*first) {
			t := submission.SubmitTime
			first = &t
		}
	}
	return first
}
