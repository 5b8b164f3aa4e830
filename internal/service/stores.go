package service

import (
	"context"
	"time"

	"github.com/DIvanCode/CoDuels-Backend-sub001/internal/models"
)

// PendingDuelStore 대결 검색/초대 요청 저장소
type PendingDuelStore interface {
	ListPending(ctx context.Context) ([]models.PendingDuel, error)
	FindRankedByUser(ctx context.Context, userID int64) (*models.PendingDuel, error)
	CreateRanked(ctx context.Context, userID int64, rating int) (*models.PendingDuel, error)
	DeleteRankedByUser(ctx context.Context, userID int64) (bool, error)
}

// DuelStore 대결 저장소
type DuelStore interface {
	FindByID(ctx context.Context, duelID int64) (*models.Duel, error)
	FindConfiguration(ctx context.Context, configurationID int64) (*models.DuelConfiguration, error)
	HasActiveDuel(ctx context.Context, userID int64) (bool, error)
	// CreateDuel 대결 생성과 사용된 대기 요청 삭제를 한 트랜잭션으로 처리
	CreateDuel(ctx context.Context, duel *models.Duel, consumedPendingIDs []int64) error
	// FinishDuel 대결 행을 잠근 상태에서 finish를 호출하고 결과(대결, 두 사용자 레이팅)를 저장
	// 대결이 없으면 nil, nil
	FinishDuel(ctx context.Context, duelID int64, finish func(duel *models.Duel) error) (*models.Duel, error)
}

// UserStore 사용자 조회 (TaskHistory 포함)
type UserStore interface {
	FindByID(ctx context.Context, userID int64) (*models.User, error)
}

// TaskCatalog 과제 목록
type TaskCatalog interface {
	ListTasks(ctx context.Context) ([]models.DuelTask, error)
}

// Notifier 사용자 알림 (실시간 푸시)
type Notifier interface {
	DuelStarted(userID, duelID int64)
	DuelFinished(userID, duelID int64)
}

// SearchPublisher 검색 시작 이벤트 발행 (다른 인스턴스의 매칭 사이클을 앞당김)
type SearchPublisher interface {
	NotifySearchStarted(ctx context.Context, userID int64) error
}

// Locker 여러 인스턴스 중 하나만 fn을 실행하도록 보장
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error
}
