package service

import (
	"sort"
	"sync"
	"time"

	"github.com/DIvanCode/CoDuels-Backend-sub001/internal/models"
)

// MatchmakingOptions 매칭 윈도우 설정
type MatchmakingOptions struct {
	BaseWindow      int           // 대기 0초일 때 허용 레이팅 차이
	GrowthPerSecond int           // 대기 1초당 늘어나는 허용 차이
	FallbackAfter   time.Duration // 이 시간 이상 기다린 그룹은 윈도우 무시
}

// DefaultMatchmakingOptions 기본 매칭 설정
func DefaultMatchmakingOptions() MatchmakingOptions {
	return MatchmakingOptions{
		BaseWindow:      50,
		GrowthPerSecond: 5,
		FallbackAfter:   120 * time.Second,
	}
}

// DuelManager 대기열과 매칭 알고리즘
//
// 대기열 변경과 스냅샷 복사만 mu 안에서 수행한다. 정렬과 인접 쌍 탐색은
// 복사본에서 수행하고, 선택된 두 항목은 다시 락을 잡은 뒤 그대로 남아 있을 때만 제거한다.
type DuelManager struct {
	mu      sync.Mutex
	waiting map[int64]models.WaitingUser
	opts    MatchmakingOptions
	now     func() time.Time
}

// NewDuelManager DuelManager 생성 (now가 nil이면 time.Now)
func NewDuelManager(opts MatchmakingOptions, now func() time.Time) *DuelManager {
	if now == nil {
		now = time.Now
	}
	return &DuelManager{
		waiting: make(map[int64]models.WaitingUser),
		opts:    opts,
		now:     now,
	}
}

// AddUser 대기열에 추가 (이미 있으면 무시, 먼저 등록된 값 유지)
func (m *DuelManager) AddUser(userID int64, rating int, enqueuedAt time.Time, expectedOpponentID, configurationID *int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.addLocked(models.WaitingUser{
		UserID:             userID,
		Rating:             rating,
		EnqueuedAt:         enqueuedAt,
		ExpectedOpponentID: expectedOpponentID,
		ConfigurationID:    configurationID,
	})
}

func (m *DuelManager) addLocked(user models.WaitingUser) {
	if _, exists := m.waiting[user.UserID]; exists {
		return
	}
	user.ExpectedOpponentID = cloneID(user.ExpectedOpponentID)
	user.ConfigurationID = cloneID(user.ConfigurationID)
	user.IsOpponentAssigned = false
	m.waiting[user.UserID] = user
}

// RemoveUser 대기열에서 제거 (없으면 무시)
func (m *DuelManager) RemoveUser(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.waiting, userID)
}

// TryRemoveInvitation 초대한 상대가 그대로일 때만 초대자를 제거
func (m *DuelManager) TryRemoveInvitation(inviterID, expectedOpponentID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, exists := m.waiting[inviterID]
	if !exists || user.ExpectedOpponentID == nil || *user.ExpectedOpponentID != expectedOpponentID {
		return false
	}

	delete(m.waiting, inviterID)
	return true
}

// Sync 저장소의 대기 요청 목록에 맞춰 대기열을 맞춘다.
// 목록에 없는 항목은 제거하고, 새 항목은 등록 시각 순으로 추가한다.
func (m *DuelManager) Sync(entries []models.WaitingUser) {
	ordered := make([]models.WaitingUser, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].EnqueuedAt.Before(ordered[j].EnqueuedAt)
	})

	present := make(map[int64]struct{}, len(ordered))
	for _, entry := range ordered {
		present[entry.UserID] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for userID := range m.waiting {
		if _, ok := present[userID]; !ok {
			delete(m.waiting, userID)
		}
	}
	for _, entry := range ordered {
		m.addLocked(entry)
	}
}

// IsUserWaiting 대기 중인지 확인
func (m *DuelManager) IsUserWaiting(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, exists := m.waiting[userID]
	return exists
}

// IsOpponentAssigned 서로를 초대한 상대가 지금 대기열에 있는지
func (m *DuelManager) IsOpponentAssigned(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, exists := m.waiting[userID]
	return exists && opponentAssigned(m.waiting, user)
}

// GetWaitingUser 대기 항목 조회 (복사본)
func (m *DuelManager) GetWaitingUser(userID int64) (models.WaitingUser, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, exists := m.waiting[userID]
	if !exists {
		return models.WaitingUser{}, false
	}
	return exportUser(m.waiting, user), true
}

// GetWaitingUsers 전체 대기 목록 (사용자 ID 순)
func (m *DuelManager) GetWaitingUsers() []models.WaitingUser {
	m.mu.Lock()
	users := make([]models.WaitingUser, 0, len(m.waiting))
	for _, user := range m.waiting {
		users = append(users, exportUser(m.waiting, user))
	}
	m.mu.Unlock()

	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })
	return users
}

// Count 대기 인원
func (m *DuelManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.waiting)
}

// TryGetPair 매칭 가능한 한 쌍을 찾아 대기열에서 제거하고 반환
func (m *DuelManager) TryGetPair() (*models.DuelPair, bool) {
	for {
		snapshot := m.snapshot()
		if len(snapshot) < 2 {
			return nil, false
		}

		first, second, ok := m.findPair(snapshot, m.now())
		if !ok {
			return nil, false
		}

		// 스캔 도중 대기열이 바뀌었으면 다시 스캔
		if m.consume(first, second) {
			return &models.DuelPair{
				User1ID:         first.UserID,
				User2ID:         second.UserID,
				ConfigurationID: cloneID(first.ConfigurationID),
				Entries:         [2]models.WaitingUser{first, second},
			}, true
		}
	}
}

func (m *DuelManager) snapshot() map[int64]models.WaitingUser {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make(map[int64]models.WaitingUser, len(m.waiting))
	for id, user := range m.waiting {
		snapshot[id] = user
	}
	return snapshot
}

// consume 두 항목이 스냅샷 그대로 남아 있을 때만 함께 제거
func (m *DuelManager) consume(first, second models.WaitingUser) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	current1, ok1 := m.waiting[first.UserID]
	current2, ok2 := m.waiting[second.UserID]
	if !ok1 || !ok2 || !sameEntry(current1, first) || !sameEntry(current2, second) {
		return false
	}

	delete(m.waiting, first.UserID)
	delete(m.waiting, second.UserID)
	return true
}

func (m *DuelManager) findPair(snapshot map[int64]models.WaitingUser, now time.Time) (models.WaitingUser, models.WaitingUser, bool) {
	if a, b, ok := findInvitedPair(snapshot, now); ok {
		return a, b, true
	}

	groups := groupByConfiguration(snapshot)

	var best candidatePair
	for _, group := range groups {
		candidate := m.scanGroup(group, now, true)
		if candidate.found && candidate.betterThan(best) {
			best = candidate
		}
	}
	if best.found {
		return best.a, best.b, true
	}

	for _, group := range groups {
		if len(group) < 2 || !m.fallbackReached(group, now) {
			continue
		}
		if candidate := m.scanGroup(group, now, false); candidate.found {
			return candidate.a, candidate.b, true
		}
	}

	return models.WaitingUser{}, models.WaitingUser{}, false
}

// findInvitedPair 서로를 초대한 쌍 중 두 사람의 등록 시각 합이 가장 이른 쌍
func findInvitedPair(snapshot map[int64]models.WaitingUser, now time.Time) (models.WaitingUser, models.WaitingUser, bool) {
	var (
		bestA, bestB models.WaitingUser
		bestWait     time.Duration
		found        bool
	)

	for _, user := range snapshot {
		if user.ExpectedOpponentID == nil {
			continue
		}
		opponent, exists := snapshot[*user.ExpectedOpponentID]
		if !exists || opponent.ExpectedOpponentID == nil || *opponent.ExpectedOpponentID != user.UserID {
			continue
		}
		if user.UserID >= opponent.UserID || !sameConfiguration(user, opponent) {
			continue
		}

		combinedWait := now.Sub(user.EnqueuedAt) + now.Sub(opponent.EnqueuedAt)
		if !found || combinedWait > bestWait || (combinedWait == bestWait && user.UserID < bestA.UserID) {
			bestA, bestB, bestWait, found = user, opponent, combinedWait, true
		}
	}

	return bestA, bestB, found
}

type configurationKey struct {
	set bool
	id  int64
}

// groupByConfiguration 초대가 없는 항목을 설정별로 묶고 (rating, enqueuedAt) 순으로 정렬
func groupByConfiguration(snapshot map[int64]models.WaitingUser) [][]models.WaitingUser {
	byKey := make(map[configurationKey][]models.WaitingUser)
	for _, user := range snapshot {
		if user.ExpectedOpponentID != nil {
			continue
		}
		key := configurationKey{}
		if user.ConfigurationID != nil {
			key = configurationKey{set: true, id: *user.ConfigurationID}
		}
		byKey[key] = append(byKey[key], user)
	}

	keys := make([]configurationKey, 0, len(byKey))
	for key := range byKey {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].set != keys[j].set {
			return !keys[i].set
		}
		return keys[i].id < keys[j].id
	})

	groups := make([][]models.WaitingUser, 0, len(keys))
	for _, key := range keys {
		group := byKey[key]
		sort.Slice(group, func(i, j int) bool {
			if group[i].Rating != group[j].Rating {
				return group[i].Rating < group[j].Rating
			}
			if !group[i].EnqueuedAt.Equal(group[j].EnqueuedAt) {
				return group[i].EnqueuedAt.Before(group[j].EnqueuedAt)
			}
			return group[i].UserID < group[j].UserID
		})
		groups = append(groups, group)
	}
	return groups
}

type candidatePair struct {
	a, b    models.WaitingUser
	diff    int
	minWait time.Duration
	found   bool
}

// betterThan 차이가 작을수록, 같으면 둘 중 짧은 대기 시간이 길수록 우선
func (c candidatePair) betterThan(other candidatePair) bool {
	if !other.found {
		return true
	}
	if c.diff != other.diff {
		return c.diff < other.diff
	}
	return c.minWait > other.minWait
}

// scanGroup 정렬된 그룹의 인접 쌍 중 최적 쌍 (useWindow=false면 폴백)
func (m *DuelManager) scanGroup(group []models.WaitingUser, now time.Time, useWindow bool) candidatePair {
	var best candidatePair
	for i := 0; i+1 < len(group); i++ {
		a, b := group[i], group[i+1]
		diff := abs(a.Rating - b.Rating)

		if useWindow {
			allowed := min(m.windowFor(a, now), m.windowFor(b, now))
			if diff > allowed {
				continue
			}
		}

		candidate := candidatePair{
			a:       a,
			b:       b,
			diff:    diff,
			minWait: min(waited(a, now), waited(b, now)),
			found:   true,
		}
		if candidate.betterThan(best) {
			best = candidate
		}
	}
	return best
}

// windowFor 허용 레이팅 차이 = base + growth * 대기 초
func (m *DuelManager) windowFor(user models.WaitingUser, now time.Time) int {
	seconds := waited(user, now).Seconds()
	return m.opts.BaseWindow + int(seconds*float64(m.opts.GrowthPerSecond))
}

// fallbackReached 그룹에서 가장 오래 기다린 사용자가 FallbackAfter를 넘겼는지
func (m *DuelManager) fallbackReached(group []models.WaitingUser, now time.Time) bool {
	var longest time.Duration
	for _, user := range group {
		if w := waited(user, now); w > longest {
			longest = w
		}
	}
	return longest >= m.opts.FallbackAfter
}

func waited(user models.WaitingUser, now time.Time) time.Duration {
	if d := now.Sub(user.EnqueuedAt); d > 0 {
		return d
	}
	return 0
}

func opponentAssigned(waiting map[int64]models.WaitingUser, user models.WaitingUser) bool {
	if user.ExpectedOpponentID == nil {
		return false
	}
	opponent, exists := waiting[*user.ExpectedOpponentID]
	return exists && opponent.ExpectedOpponentID != nil && *opponent.ExpectedOpponentID == user.UserID
}

func exportUser(waiting map[int64]models.WaitingUser, user models.WaitingUser) models.WaitingUser {
	user.ExpectedOpponentID = cloneID(user.ExpectedOpponentID)
	user.ConfigurationID = cloneID(user.ConfigurationID)
	user.IsOpponentAssigned = opponentAssigned(waiting, user)
	return user
}

func sameConfiguration(a, b models.WaitingUser) bool {
	return equalID(a.ConfigurationID, b.ConfigurationID)
}

func sameEntry(a, b models.WaitingUser) bool {
	return a.UserID == b.UserID &&
		a.Rating == b.Rating &&
		a.EnqueuedAt.Equal(b.EnqueuedAt) &&
		equalID(a.ExpectedOpponentID, b.ExpectedOpponentID) &&
		equalID(a.ConfigurationID, b.ConfigurationID)
}

func equalID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
