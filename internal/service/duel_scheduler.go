package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/DIvanCode/CoDuels-Backend-sub001/internal/models"
	"github.com/DIvanCode/CoDuels-Backend-sub001/pkg/distributed"
	"go.uber.org/zap"
)

const (
	defaultTaskKey      = "A"
	schedulerLockKey    = "matchmaking:lock:duels"
	schedulerLockTTL    = 30 * time.Second
	defaultCycleTimeout = 20 * time.Second
)

// DuelScheduler 주기적으로 대기 요청을 불러와 매칭하고 대결을 생성
type DuelScheduler struct {
	duelManager   *DuelManager
	ratingService *RatingService
	taskService   *TaskService
	pendingStore  PendingDuelStore
	duelStore     DuelStore
	userStore     UserStore
	taskCatalog   TaskCatalog
	notifier      Notifier
	locker        Locker
	logger        *zap.Logger

	interval           time.Duration
	defaultMaxDuration time.Duration
	now                func() time.Time

	trigger  chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
	mu       sync.Mutex
}

// SchedulerDeps DuelScheduler 의존성
type SchedulerDeps struct {
	DuelManager   *DuelManager
	RatingService *RatingService
	TaskService   *TaskService
	PendingStore  PendingDuelStore
	DuelStore     DuelStore
	UserStore     UserStore
	TaskCatalog   TaskCatalog
	Notifier      Notifier
	Locker        Locker // nil이면 단일 인스턴스로 간주
	Logger        *zap.Logger
}

func NewDuelScheduler(deps SchedulerDeps, interval, defaultMaxDuration time.Duration, now func() time.Time) *DuelScheduler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}

	return &DuelScheduler{
		duelManager:        deps.DuelManager,
		ratingService:      deps.RatingService,
		taskService:        deps.TaskService,
		pendingStore:       deps.PendingStore,
		duelStore:          deps.DuelStore,
		userStore:          deps.UserStore,
		taskCatalog:        deps.TaskCatalog,
		notifier:           deps.Notifier,
		locker:             deps.Locker,
		logger:             logger,
		interval:           interval,
		defaultMaxDuration: defaultMaxDuration,
		now:                now,
		trigger:            make(chan struct{}, 1),
		stopChan:           make(chan struct{}),
	}
}

// Start 매칭 루프 시작
func (s *DuelScheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("Starting DuelScheduler", zap.Duration("interval", s.interval))

	s.wg.Add(1)
	go s.loop()
}

// Stop 매칭 루프 중지
func (s *DuelScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Stopping DuelScheduler")
	close(s.stopChan)
	s.wg.Wait()
	s.logger.Info("DuelScheduler stopped")
}

// Trigger 다음 주기를 기다리지 않고 사이클 실행 요청 (이미 요청돼 있으면 무시)
func (s *DuelScheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *DuelScheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// 시작 시 한번 실행
	s.runOnce()

	for {
		select {
		case <-ticker.C:
			s.runOnce()
		case <-s.trigger:
			s.runOnce()
		case <-s.stopChan:
			return
		}
	}
}

func (s *DuelScheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultCycleTimeout)
	defer cancel()

	if _, err := s.RunCycle(ctx); err != nil {
		s.logger.Error("Duel scheduling cycle failed", zap.Error(err))
	}
}

// RunCycle 대기 요청을 대기열에 반영하고 더 이상 쌍이 없을 때까지 대결 생성
// 생성된 대결 수를 반환한다.
func (s *DuelScheduler) RunCycle(ctx context.Context) (int, error) {
	if s.locker == nil {
		return s.cycle(ctx)
	}

	created := 0
	err := s.locker.WithLock(ctx, schedulerLockKey, schedulerLockTTL, func(ctx context.Context) error {
		var err error
		created, err = s.cycle(ctx)
		return err
	})
	if errors.Is(err, distributed.ErrLockNotAcquired) {
		// 다른 인스턴스가 이미 처리 중
		s.logger.Debug("Duel scheduling lock held by another instance")
		return 0, nil
	}
	return created, err
}

func (s *DuelScheduler) cycle(ctx context.Context) (int, error) {
	pending, err := s.pendingStore.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending duels: %w", err)
	}

	entries := make([]models.WaitingUser, 0, len(pending))
	for _, p := range pending {
		entries = append(entries, p.WaitingUser())
	}
	s.duelManager.Sync(entries)

	if waiting := s.duelManager.Count(); waiting > 1 {
		s.logger.Debug("Starting duel matching", zap.Int("waiting", waiting))
	}

	created := 0
	for {
		pair, ok := s.duelManager.TryGetPair()
		if !ok {
			break
		}

		duel, err := s.createDuel(ctx, pair, pending)
		if err != nil {
			// 대기 요청은 그대로 남아 다음 사이클에 다시 매칭된다
			s.logger.Error("Failed to create duel",
				zap.Int64("user1", pair.User1ID),
				zap.Int64("user2", pair.User2ID),
				zap.Error(err))
			continue
		}
		created++

		s.logger.Info("Duel started",
			zap.Int64("duelId", duel.ID),
			zap.Int64("user1", duel.User1.ID),
			zap.Int64("user2", duel.User2.ID),
			zap.Int("ratingDiff", abs(duel.User1InitRating-duel.User2InitRating)),
			zap.Time("deadline", duel.DeadlineTime))
	}

	return created, nil
}

func (s *DuelScheduler) createDuel(ctx context.Context, pair *models.DuelPair, pending []models.PendingDuel) (*models.Duel, error) {
	pendingIDs, err := consumedPendingIDs(pair, pending)
	if err != nil {
		return nil, err
	}

	user1, err := s.findUser(ctx, pair.User1ID)
	if err != nil {
		return nil, err
	}
	user2, err := s.findUser(ctx, pair.User2ID)
	if err != nil {
		return nil, err
	}

	catalog, err := s.taskCatalog.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	configuration, tasks, err := s.chooseTasks(ctx, pair, user1, user2, catalog)
	if err != nil {
		return nil, err
	}

	startTime := s.now()
	duel := &models.Duel{
		Status:          models.DuelStatusInProgress,
		Configuration:   configuration,
		Tasks:           tasks,
		User1:           user1,
		User2:           user2,
		User1InitRating: user1.Rating,
		User2InitRating: user2.Rating,
		StartTime:       startTime,
		DeadlineTime:    startTime.Add(time.Duration(configuration.MaxDurationMinutes) * time.Minute),
	}

	if err := s.duelStore.CreateDuel(ctx, duel, pendingIDs); err != nil {
		return nil, fmt.Errorf("failed to create duel: %w", err)
	}

	if s.notifier != nil {
		s.notifier.DuelStarted(user1.ID, duel.ID)
		s.notifier.DuelStarted(user2.ID, duel.ID)
	}

	return duel, nil
}

// chooseTasks 설정이 없으면 두 사람 평균 레이팅으로 난이도를 정해 과제 하나, 있으면 설정대로
func (s *DuelScheduler) chooseTasks(
	ctx context.Context,
	pair *models.DuelPair,
	user1, user2 *models.User,
	catalog []models.DuelTask,
) (*models.DuelConfiguration, map[string]models.DuelTask, error) {
	if pair.ConfigurationID != nil {
		configuration, err := s.duelStore.FindConfiguration(ctx, *pair.ConfigurationID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to find configuration: %w", err)
		}
		if configuration == nil {
			return nil, nil, fmt.Errorf("configuration %d: %w", *pair.ConfigurationID, ErrConfigurationNotFound)
		}

		tasks, ok := s.taskService.TryChooseTasks(user1, user2, configuration, catalog)
		if !ok {
			return nil, nil, fmt.Errorf("configuration %d: %w", *pair.ConfigurationID, ErrNoTaskAvailable)
		}
		return configuration, tasks, nil
	}

	level := s.ratingService.GetTaskLevel((user1.Rating + user2.Rating) / 2)
	task, ok := s.taskService.ChooseTask(user1, user2, level, catalog)
	if !ok {
		return nil, nil, fmt.Errorf("level %d: %w", level, ErrNoTaskAvailable)
	}

	configuration := &models.DuelConfiguration{
		IsRated:            isRankedPair(pair),
		ShowOpponentCode:   true,
		MaxDurationMinutes: int(s.defaultMaxDuration / time.Minute),
		TasksCount:         1,
		TasksOrder:         models.DuelTasksOrderSequential,
		TasksConfigurations: map[string]models.DuelTaskConfiguration{
			defaultTaskKey: {Level: level, Topics: []string{}},
		},
	}
	return configuration, map[string]models.DuelTask{defaultTaskKey: *task}, nil
}

func (s *DuelScheduler) findUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.userStore.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user %d: %w", userID, err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %d: %w", userID, ErrUserNotFound)
	}
	return user, nil
}

// isRankedPair 초대 없이 공개 대기열에서 만난 쌍만 레이팅에 반영
func isRankedPair(pair *models.DuelPair) bool {
	return pair.Entries[0].ExpectedOpponentID == nil && pair.Entries[1].ExpectedOpponentID == nil
}

// consumedPendingIDs 쌍을 만든 대기 요청 ID.
// 사이클 시작 때 읽은 요청과 정확히 대응하지 않는 항목이 있으면 에러
func consumedPendingIDs(pair *models.DuelPair, pending []models.PendingDuel) ([]int64, error) {
	ids := make([]int64, 0, len(pair.Entries))
	for _, entry := range pair.Entries {
		found := false
		for _, p := range pending {
			if p.UserID == entry.UserID &&
				p.CreatedAt.Equal(entry.EnqueuedAt) &&
				equalID(p.OpponentID, entry.ExpectedOpponentID) &&
				equalID(p.ConfigurationID, entry.ConfigurationID) {
				ids = append(ids, p.ID)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("user %d: %w", entry.UserID, ErrPendingRequestMissing)
		}
	}
	return ids, nil
}
