// seedtasks 과제 카탈로그를 JSON 파일에서 읽어 tasks 테이블에 반영한다.
//
//	go run ./cmd/seedtasks -file tasks.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/DIvanCode/CoDuels-Backend-sub001/internal/config"
	"github.com/DIvanCode/CoDuels-Backend-sub001/internal/models"
	"github.com/DIvanCode/CoDuels-Backend-sub001/internal/repository"
	"github.com/DIvanCode/CoDuels-Backend-sub001/pkg/database"
	"github.com/DIvanCode/CoDuels-Backend-sub001/pkg/logger"
)

func main() {
	file := flag.String("file", "tasks.json", "JSON array of {id, level, topics}")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)
	defer logger.Sync()

	tasks, err := readTasks(*file)
	if err != nil {
		logger.Fatal("Failed to read tasks", "file", *file, "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	taskRepo := repository.NewTaskRepository(db)
	for _, task := range tasks {
		if err := taskRepo.Upsert(ctx, task); err != nil {
			logger.Fatal("Failed to save task", "error", err)
		}
	}
	logger.Info("Tasks saved", "count", len(tasks))

	// 저장 결과 확인
	saved, err := taskRepo.ListTasks(ctx)
	if err != nil {
		logger.Fatal("Failed to list tasks", "error", err)
	}
	for _, task := range saved {
		fmt.Printf("  - %s: level %d %v\n", task.ID, task.Level, task.Topics)
	}
}

func readTasks(path string) ([]models.DuelTask, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tasks []models.DuelTask
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("invalid task file: %w", err)
	}
	for _, task := range tasks {
		if task.ID == "" || task.Level <= 0 {
			return nil, fmt.Errorf("invalid task %q: id and positive level required", task.ID)
		}
	}
	return tasks, nil
}
