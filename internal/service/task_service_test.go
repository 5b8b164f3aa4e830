package service

import (
	"math/rand"
	"testing"
	"time"

	"github.com/DIvanCode/CoDuels-Backend-sub001/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTaskService() *TaskService {
	return NewTaskService(rand.New(rand.NewSource(1)))
}

func sampleTasks() []models.DuelTask {
	return []models.DuelTask{
		{ID: "t1", Level: 1, Topics: []string{"math"}},
		{ID: "t2", Level: 2, Topics: []string{"graphs"}},
		{ID: "t3", Level: 3, Topics: []string{"dp", "graphs"}},
		{ID: "t4", Level: 3, Topics: []string{"strings"}},
		{ID: "t5", Level: 5, Topics: []string{"dp"}},
	}
}

func TestTaskService_ChooseTask(t *testing.T) {
	tests := []struct {
		name      string
		history1  []string
		history2  []string
		level     int
		wantOneOf []string
	}{
		{name: "exact level", level: 3, wantOneOf: []string{"t3", "t4"}},
		{name: "excludes history of both users", history1: []string{"t3"}, history2: []string{"t4"}, level: 3, wantOneOf: []string{"t2"}},
		{name: "closest level above", level: 4, history1: []string{"t3", "t4"}, wantOneOf: []string{"t5"}},
		{name: "tie prefers easier", level: 4, wantOneOf: []string{"t3", "t4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestTaskService()
			user1 := &models.User{ID: 1, TaskHistory: tt.history1}
			user2 := &models.User{ID: 2, TaskHistory: tt.history2}

			for i := 0; i < 20; i++ {
				task, ok := s.ChooseTask(user1, user2, tt.level, sampleTasks())
				require.True(t, ok)
				assert.Contains(t, tt.wantOneOf, task.ID)
			}
		})
	}
}

func TestTaskService_ChooseTaskTieIgnoresCatalogOrder(t *testing.T) {
	s := newTestTaskService()
	tasks := sampleTasks()
	reversed := make([]models.DuelTask, 0, len(tasks))
	for i := len(tasks) - 1; i >= 0; i-- {
		reversed = append(reversed, tasks[i])
	}

	// 레벨 4 기준으로 3과 5가 같은 거리
	for i := 0; i < 20; i++ {
		task, ok := s.ChooseTask(&models.User{ID: 1}, &models.User{ID: 2}, 4, reversed)
		require.True(t, ok)
		assert.Equal(t, 3, task.Level)
	}
}

func TestTaskService_ChooseTaskNoneAvailable(t *testing.T) {
	s := newTestTaskService()
	user1 := &models.User{ID: 1, TaskHistory: []string{"t1", "t2", "t3"}}
	user2 := &models.User{ID: 2, TaskHistory: []string{"t4", "t5"}}

	task, ok := s.ChooseTask(user1, user2, 2, sampleTasks())
	assert.False(t, ok)
	assert.Nil(t, task)

	_, ok = s.ChooseTask(user1, user2, 2, nil)
	assert.False(t, ok)
}

func TestTaskService_TryChooseTasks(t *testing.T) {
	s := newTestTaskService()
	configuration := &models.DuelConfiguration{
		TasksCount: 2,
		TasksConfigurations: map[string]models.DuelTaskConfiguration{
			"A": {Level: 2, Topics: []string{"graphs"}},
			"B": {Level: 5, Topics: []string{"dp"}},
		},
	}

	chosen, ok := s.TryChooseTasks(&models.User{ID: 1}, &models.User{ID: 2}, configuration, sampleTasks())
	require.True(t, ok)
	assert.Equal(t, "t2", chosen["A"].ID)
	assert.Equal(t, "t5", chosen["B"].ID)
}

func TestTaskService_TryChooseTasksDoesNotReuse(t *testing.T) {
	s := newTestTaskService()
	configuration := &models.DuelConfiguration{
		TasksConfigurations: map[string]models.DuelTaskConfiguration{
			"A": {Level: 5, Topics: []string{"dp"}},
			"B": {Level: 5, Topics: []string{"dp"}},
		},
	}

	chosen, ok := s.TryChooseTasks(&models.User{ID: 1}, &models.User{ID: 2}, configuration, sampleTasks())
	require.True(t, ok)
	assert.Equal(t, "t5", chosen["A"].ID)
	assert.Equal(t, "t3", chosen["B"].ID)
}

func TestTaskService_TryChooseTasksFailures(t *testing.T) {
	s := newTestTaskService()
	twoKeys := &models.DuelConfiguration{
		TasksConfigurations: map[string]models.DuelTaskConfiguration{
			"A": {Level: 1},
			"B": {Level: 1},
		},
	}

	_, ok := s.TryChooseTasks(&models.User{ID: 1}, &models.User{ID: 2}, twoKeys, nil)
	assert.False(t, ok, "empty catalog")

	_, ok = s.TryChooseTasks(&models.User{ID: 1}, &models.User{ID: 2}, twoKeys, sampleTasks()[:1])
	assert.False(t, ok, "more keys than tasks")

	_, ok = s.TryChooseTasks(&models.User{ID: 1}, &models.User{ID: 2}, nil, sampleTasks())
	assert.False(t, ok, "no configuration")
}

func TestTaskService_TryChooseTasksFallsBackToSolved(t *testing.T) {
	s := newTestTaskService()
	configuration := &models.DuelConfiguration{
		TasksConfigurations: map[string]models.DuelTaskConfiguration{"A": {Level: 1, Topics: []string{"math"}}},
	}
	user := &models.User{ID: 1, TaskHistory: []string{"t1", "t2", "t3", "t4", "t5"}}

	chosen, ok := s.TryChooseTasks(user, &models.User{ID: 2}, configuration, sampleTasks())
	require.True(t, ok)
	assert.Equal(t, "t1", chosen["A"].ID)
}

func sequentialDuel(deadline time.Time, submissions ...models.Submission) *models.Duel {
	return &models.Duel{
		Configuration: &models.DuelConfiguration{TasksOrder: models.DuelTasksOrderSequential},
		Tasks: map[string]models.DuelTask{
			"A": {ID: "t1"},
			"B": {ID: "t2"},
			"C": {ID: "t3"},
		},
		Submissions:  submissions,
		DeadlineTime: deadline,
	}
}

func submission(id, userID int64, key string, at time.Time, status models.SubmissionStatus, verdict string) models.Submission {
	return models.Submission{ID: id, UserID: userID, TaskKey: key, SubmitTime: at, Status: status, Verdict: verdict}
}

func TestTaskService_GetSolvedTaskWinners(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	deadline := start.Add(30 * time.Minute)
	done := models.SubmissionStatusDone

	tests := []struct {
		name        string
		submissions []models.Submission
		expected    map[string]int64
	}{
		{
			name:     "no submissions",
			expected: map[string]int64{},
		},
		{
			name: "first accepted wins",
			submissions: []models.Submission{
				submission(1, 1, "A", start.Add(5*time.Minute), done, "Wrong Answer"),
				submission(2, 2, "A", start.Add(6*time.Minute), done, models.VerdictAccepted),
				submission(3, 1, "A", start.Add(7*time.Minute), done, models.VerdictAccepted),
			},
			expected: map[string]int64{"A": 2},
		},
		{
			name: "earlier pending submission blocks the winner",
			submissions: []models.Submission{
				submission(1, 1, "A", start.Add(5*time.Minute), models.SubmissionStatusRunning, ""),
				submission(2, 2, "A", start.Add(6*time.Minute), done, models.VerdictAccepted),
			},
			expected: map[string]int64{},
		},
		{
			name: "submission after deadline is ignored",
			submissions: []models.Submission{
				submission(1, 1, "B", deadline.Add(time.Second), done, models.VerdictAccepted),
			},
			expected: map[string]int64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestTaskService()
			winners := s.GetSolvedTaskWinners(sequentialDuel(deadline, tt.submissions...))
			assert.Equal(t, tt.expected, winners)
		})
	}
}

func TestTaskService_GetVisibleTasks(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	deadline := start.Add(30 * time.Minute)
	s := newTestTaskService()

	duel := sequentialDuel(deadline)
	assert.Equal(t, []string{"A"}, keysOf(s.GetVisibleTasks(duel, 1)))

	// 1번이 A를 풀면 1번은 A와 B, 2번은 B만 본다
	duel = sequentialDuel(deadline,
		submission(1, 1, "A", start.Add(time.Minute), models.SubmissionStatusDone, models.VerdictAccepted))
	assert.ElementsMatch(t, []string{"A", "B"}, keysOf(s.GetVisibleTasks(duel, 1)))
	assert.ElementsMatch(t, []string{"B"}, keysOf(s.GetVisibleTasks(duel, 2)))
	assert.True(t, s.IsTaskVisible(duel, 1, "A"))
	assert.False(t, s.IsTaskVisible(duel, 2, "A"))
	assert.False(t, s.IsTaskVisible(duel, 2, "C"))

	duel.Configuration.TasksOrder = models.DuelTasksOrderParallel
	assert.ElementsMatch(t, []string{"A", "B", "C"}, keysOf(s.GetVisibleTasks(duel, 2)))
}

func keysOf(tasks map[string]models.DuelTask) []string {
	keys := make([]string, 0, len(tasks))
	for key := range tasks {
		keys = append(keys, key)
	}
	return keys
}
