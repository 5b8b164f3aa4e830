package service

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/DIvanCode/CoDuels-Backend-sub001/internal/models"
)

// TaskService 대결 과제 선택
type TaskService struct {
	mu  sync.Mutex // rand.Rand는 동시 사용에 안전하지 않음
	rnd *rand.Rand
}

// NewTaskService 과제 선택 서비스 생성 (rnd가 nil이면 현재 시각으로 시드)
func NewTaskService(rnd *rand.Rand) *TaskService {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &TaskService{rnd: rnd}
}

// ChooseTask 두 사용자 모두 받아본 적 없는 과제 중 level에 가장 가까운 난이도 그룹에서 무작위로 하나 선택
func (s *TaskService) ChooseTask(user1, user2 *models.User, level int, tasks []models.DuelTask) (*models.DuelTask, bool) {
	solved := solvedTaskIDs(user1, user2)

	bestDiff := -1
	var best []models.DuelTask
	for _, task := range tasks {
		if _, ok := solved[task.ID]; ok {
			continue
		}
		diff := abs(task.Level - level)
		switch {
		case bestDiff < 0 || diff < bestDiff:
			bestDiff = diff
			best = []models.DuelTask{task}
		case diff == bestDiff && task.Level == best[0].Level:
			best = append(best, task)
		case diff == bestDiff && task.Level < best[0].Level:
			// 위아래로 같은 거리면 쉬운 쪽
			best = []models.DuelTask{task}
		}
	}

	if len(best) == 0 {
		return nil, false
	}

	chosen := best[s.intn(len(best))]
	return &chosen, true
}

// TryChooseTasks 설정의 과제 키마다 하나씩 과제 선택
//
// 키 순서대로 주제 일치 수가 많고 난이도 차이가 작은 과제를 고르며, 같은 과제는 두 번 쓰지 않는다.
// 두 사용자가 모든 과제를 받아본 경우 전체 목록에서 고른다.
func (s *TaskService) TryChooseTasks(user1, user2 *models.User, configuration *models.DuelConfiguration, tasks []models.DuelTask) (map[string]models.DuelTask, bool) {
	chosen := make(map[string]models.DuelTask)
	if len(tasks) == 0 || configuration == nil || len(configuration.TasksConfigurations) == 0 {
		return chosen, false
	}

	solved := solvedTaskIDs(user1, user2)
	available := make([]models.DuelTask, 0, len(tasks))
	for _, task := range tasks {
		if _, ok := solved[task.ID]; !ok {
			available = append(available, task)
		}
	}
	if len(available) == 0 {
		available = append(available, tasks...)
	}

	keys := make([]string, 0, len(configuration.TasksConfigurations))
	for key := range configuration.TasksConfigurations {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if len(available) == 0 {
			return chosen, false
		}
		idx := s.selectBestTask(available, configuration.TasksConfigurations[key])
		chosen[key] = available[idx]
		available = append(available[:idx], available[idx+1:]...)
	}

	return chosen, true
}

// selectBestTask 주제 일치 수 desc, 난이도 차이 asc, 동률이면 무작위
func (s *TaskService) selectBestTask(tasks []models.DuelTask, config models.DuelTaskConfiguration) int {
	bestMatches, bestDiff := -1, 0
	var candidates []int
	for i, task := range tasks {
		matches := countTopicMatches(task.Topics, config.Topics)
		diff := abs(task.Level - config.Level)
		switch {
		case matches > bestMatches || (matches == bestMatches && diff < bestDiff):
			bestMatches, bestDiff = matches, diff
			candidates = []int{i}
		case matches == bestMatches && diff == bestDiff:
			candidates = append(candidates, i)
		}
	}
	return candidates[s.intn(len(candidates))]
}

// GetSolvedTaskWinners 과제 키별 승자
// 마감 전 가장 먼저 정답 처리된 제출의 작성자. 그보다 먼저 낸 제출이 아직 채점 중이면 미정.
func (s *TaskService) GetSolvedTaskWinners(duel *models.Duel) map[string]int64 {
	winners := make(map[string]int64)
	if len(duel.Submissions) == 0 {
		return winners
	}

	for key := range duel.Tasks {
		var submissions []models.Submission
		for _, submission := range duel.Submissions {
			if submission.TaskKey == key && !submission.SubmitTime.After(duel.DeadlineTime) {
				submissions = append(submissions, submission)
			}
		}
		sort.Slice(submissions, func(i, j int) bool {
			if !submissions[i].SubmitTime.Equal(submissions[j].SubmitTime) {
				return submissions[i].SubmitTime.Before(submissions[j].SubmitTime)
			}
			return submissions[i].ID < submissions[j].ID
		})

		accepted := -1
		for i, submission := range submissions {
			if submission.IsAccepted() {
				accepted = i
				break
			}
		}
		if accepted < 0 {
			continue
		}

		pendingBefore := false
		for _, submission := range submissions {
			if submission.Status != models.SubmissionStatusDone &&
				!submission.SubmitTime.After(submissions[accepted].SubmitTime) {
				pendingBefore = true
				break
			}
		}
		if pendingBefore {
			continue
		}

		winners[key] = submissions[accepted].UserID
	}

	return winners
}

// GetVisibleTasks 사용자에게 보이는 과제
// 병렬 모드는 전부, 순차 모드는 본인이 먼저 푼 과제 + 아직 아무도 못 푼 첫 과제.
func (s *TaskService) GetVisibleTasks(duel *models.Duel, userID int64) map[string]models.DuelTask {
	visible := make(map[string]models.DuelTask)
	if duel.Configuration != nil && duel.Configuration.TasksOrder == models.DuelTasksOrderParallel {
		for key, task := range duel.Tasks {
			visible[key] = task
		}
		return visible
	}

	winners := s.GetSolvedTaskWinners(duel)
	keys := make([]string, 0, len(duel.Tasks))
	for key := range duel.Tasks {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if _, solved := winners[key]; !solved {
			visible[key] = duel.Tasks[key]
			break
		}
	}
	for key, winner := range winners {
		if winner == userID {
			visible[key] = duel.Tasks[key]
		}
	}

	return visible
}

// IsTaskVisible 과제 키가 사용자에게 보이는지
func (s *TaskService) IsTaskVisible(duel *models.Duel, userID int64, taskKey string) bool {
	_, ok := s.GetVisibleTasks(duel, userID)[taskKey]
	return ok
}

func (s *TaskService) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Intn(n)
}

func solvedTaskIDs(user1, user2 *models.User) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, user := range []*models.User{user1, user2} {
		if user == nil {
			continue
		}
		for _, id := range user.TaskHistory {
			ids[id] = struct{}{}
		}
	}
	return ids
}

func countTopicMatches(taskTopics, requiredTopics []string) int {
	if len(taskTopics) == 0 || len(requiredTopics) == 0 {
		return 0
	}
	topics := make(map[string]struct{}, len(taskTopics))
	for _, topic := range taskTopics {
		topics[topic] = struct{}{}
	}
	count := 0
	for _, topic := range requiredTopics {
		if _, ok := topics[topic]; ok {
			count++
		}
	}
	return count
}
