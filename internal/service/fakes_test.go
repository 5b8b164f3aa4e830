package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/DIvanCode/CoDuels-Backend-sub001/internal/models"
	"github.com/DIvanCode/CoDuels-Backend-sub001/pkg/distributed"
)

type fakePendingStore struct {
	mu     sync.Mutex
	items  []models.PendingDuel
	nextID int64
	now    func() time.Time
	err    error
}

func newFakePendingStore(now func() time.Time) *fakePendingStore {
	return &fakePendingStore{now: now}
}

func (s *fakePendingStore) add(p models.PendingDuel) models.PendingDuel {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	p.ID = s.nextID
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	s.items = append(s.items, p)
	return p
}

func (s *fakePendingStore) ListPending(ctx context.Context) ([]models.PendingDuel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.PendingDuel, len(s.items))
	copy(out, s.items)
	return out, nil
}

func (s *fakePendingStore) FindRankedByUser(ctx context.Context, userID int64) (*models.PendingDuel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.items {
		if p.Type == models.PendingDuelRanked && p.UserID == userID {
			found := p
			return &found, nil
		}
	}
	return nil, nil
}

func (s *fakePendingStore) CreateRanked(ctx context.Context, userID int64, rating int) (*models.PendingDuel, error) {
	p := s.add(models.PendingDuel{Type: models.PendingDuelRanked, UserID: userID, Rating: rating})
	return &p, nil
}

func (s *fakePendingStore) DeleteRankedByUser(ctx context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range s.items {
		if p.Type == models.PendingDuelRanked && p.UserID == userID {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *fakePendingStore) deleteIDs(ids []int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	remove := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		remove[id] = struct{}{}
	}
	kept := s.items[:0]
	deleted := 0
	for _, p := range s.items {
		if _, ok := remove[p.ID]; ok {
			deleted++
			continue
		}
		kept = append(kept, p)
	}
	s.items = kept
	return deleted
}

func (s *fakePendingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

type fakeDuelStore struct {
	mu             sync.Mutex
	duels          map[int64]*models.Duel
	configurations map[int64]*models.DuelConfiguration
	pending        *fakePendingStore
	nextID         int64
}

func newFakeDuelStore(pending *fakePendingStore) *fakeDuelStore {
	return &fakeDuelStore{
		duels:          make(map[int64]*models.Duel),
		configurations: make(map[int64]*models.DuelConfiguration),
		pending:        pending,
	}
}

func (s *fakeDuelStore) FindByID(ctx context.Context, duelID int64) (*models.Duel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duels[duelID], nil
}

func (s *fakeDuelStore) FindConfiguration(ctx context.Context, configurationID int64) (*models.DuelConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configurations[configurationID], nil
}

func (s *fakeDuelStore) HasActiveDuel(ctx context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, duel := range s.duels {
		if duel.Status == models.DuelStatusInProgress && (duel.User1.ID == userID || duel.User2.ID == userID) {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeDuelStore) CreateDuel(ctx context.Context, duel *models.Duel, consumedPendingIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if deleted := s.pending.deleteIDs(consumedPendingIDs); deleted != len(consumedPendingIDs) {
		return fmt.Errorf("pending duels already consumed: deleted %d of %d", deleted, len(consumedPendingIDs))
	}
	s.nextID++
	duel.ID = s.nextID
	s.duels[duel.ID] = duel
	return nil
}

func (s *fakeDuelStore) FinishDuel(ctx context.Context, duelID int64, finish func(duel *models.Duel) error) (*models.Duel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	duel, ok := s.duels[duelID]
	if !ok {
		return nil, nil
	}
	if err := finish(duel); err != nil {
		return nil, err
	}
	return duel, nil
}

func (s *fakeDuelStore) all() []*models.Duel {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Duel, 0, len(s.duels))
	for i := int64(1); i <= s.nextID; i++ {
		if duel, ok := s.duels[i]; ok {
			out = append(out, duel)
		}
	}
	return out
}

type fakeUserStore struct {
	users  map[int64]*models.User
	err    error
	onFind func(userID int64)
}

func newFakeUserStore(users ...*models.User) *fakeUserStore {
	s := &fakeUserStore{users: make(map[int64]*models.User)}
	for _, user := range users {
		s.users[user.ID] = user
	}
	return s
}

func (s *fakeUserStore) FindByID(ctx context.Context, userID int64) (*models.User, error) {
	if s.onFind != nil {
		s.onFind(userID)
	}
	if s.err != nil {
		return nil, s.err
	}
	user, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

type fakeCatalog struct {
	tasks []models.DuelTask
}

func (c *fakeCatalog) ListTasks(ctx context.Context) ([]models.DuelTask, error) {
	return c.tasks, nil
}

type notification struct {
	kind   string
	userID int64
	duelID int64
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notification
}

func (n *fakeNotifier) DuelStarted(userID, duelID int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notification{kind: "started", userID: userID, duelID: duelID})
}

func (n *fakeNotifier) DuelFinished(userID, duelID int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notification{kind: "finished", userID: userID, duelID: duelID})
}

func (n *fakeNotifier) recorded() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notification, len(n.events))
	copy(out, n.events)
	return out
}

type fakePublisher struct {
	mu    sync.Mutex
	users []int64
	err   error
}

func (p *fakePublisher) NotifySearchStarted(ctx context.Context, userID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users = append(p.users, userID)
	return p.err
}

type fakeLocker struct {
	mu    sync.Mutex
	held  bool
	calls int
	keys  []string
}

var errFakeStore = errors.New("store unavailable")

func (l *fakeLocker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	l.calls++
	l.keys = append(l.keys, key)
	held := l.held
	l.mu.Unlock()

	if held {
		return distributed.ErrLockNotAcquired
	}
	return fn(ctx)
}
