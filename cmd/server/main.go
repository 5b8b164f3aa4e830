package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DIvanCode/CoDuels-Backend-sub001/internal/api"
	"github.com/DIvanCode/CoDuels-Backend-sub001/internal/config"
	"github.com/DIvanCode/CoDuels-Backend-sub001/internal/repository"
	"github.com/DIvanCode/CoDuels-Backend-sub001/internal/service"
	"github.com/DIvanCode/CoDuels-Backend-sub001/internal/websocket"
	"github.com/DIvanCode/CoDuels-Backend-sub001/pkg/database"
	"github.com/DIvanCode/CoDuels-Backend-sub001/pkg/distributed"
	jwtutil "github.com/DIvanCode/CoDuels-Backend-sub001/pkg/jwt"
	"github.com/DIvanCode/CoDuels-Backend-sub001/pkg/logger"
	"github.com/DIvanCode/CoDuels-Backend-sub001/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
)

func main() {
	// 설정 로드
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 로거 초기화
	logger.Init(cfg.LogLevel)
	defer logger.Sync()

	zapLogger := logger.L()

	logger.Info("Starting CoDuels Backend",
		"port", cfg.Port,
		"env", cfg.Env,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 데이터베이스 연결
	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	// Redis 연결 (락, 이벤트, 검색 레이트 리밋)
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal("Invalid Redis URL", "error", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", "error", err)
	}
	logger.Info("Redis connection established")

	// Repository
	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	pendingRepo := repository.NewPendingDuelRepository(db)
	duelRepo := repository.NewDuelRepository(db)

	// Service
	duelManager := service.NewDuelManager(service.MatchmakingOptions{
		BaseWindow:      cfg.MatchmakingBaseWindow,
		GrowthPerSecond: cfg.MatchmakingWindowGrowth,
		FallbackAfter:   cfg.MatchmakingFallback,
	}, nil)
	ratingService := service.NewRatingService(service.DefaultKFactorBands(), service.DefaultKFactor, cfg.RatingTaskLevels)
	taskService := service.NewTaskService(rand.New(rand.NewSource(time.Now().UnixNano())))

	hub := websocket.NewHub(zapLogger.Named("hub"))
	go hub.Run()

	lockManager := distributed.NewRedisLockManager(redisClient)
	coordinator := distributed.NewMatchmakingCoordinator(redisClient, zapLogger.Named("coordinator"))

	scheduler := service.NewDuelScheduler(service.SchedulerDeps{
		DuelManager:   duelManager,
		RatingService: ratingService,
		TaskService:   taskService,
		PendingStore:  pendingRepo,
		DuelStore:     duelRepo,
		UserStore:     userRepo,
		TaskCatalog:   taskRepo,
		Notifier:      hub,
		Locker:        lockManager,
		Logger:        zapLogger.Named("scheduler"),
	}, cfg.MatchmakingInterval, cfg.DuelDefaultMaxDuration, nil)

	duelService := service.NewDuelService(service.DuelServiceDeps{
		DuelManager:   duelManager,
		RatingService: ratingService,
		TaskService:   taskService,
		PendingStore:  pendingRepo,
		DuelStore:     duelRepo,
		UserStore:     userRepo,
		Notifier:      hub,
		Publisher:     coordinator,
		Logger:        zapLogger.Named("duel"),
	}, nil)

	// 다른 인스턴스에서 검색이 시작되면 다음 틱을 기다리지 않고 매칭
	go func() {
		err := coordinator.Start(ctx, func(event distributed.MatchmakingEvent) error {
			scheduler.Trigger()
			return nil
		})
		if err != nil {
			logger.Error("Matchmaking coordinator stopped", "error", err)
		}
	}()

	scheduler.Start()

	apiLimiter := ratelimit.NewRateLimiter(int64(cfg.APIRateCapacity), int64(cfg.APIRateRefill))
	defer apiLimiter.Stop()

	router := api.SetupRouter(cfg, api.RouterDeps{
		DuelService:      duelService,
		Hub:              hub,
		JWTManager:       jwtutil.NewJWTManager(cfg.JWTSecret),
		APILimiter:       apiLimiter,
		SearchLimiter:    ratelimit.NewRedisRateLimiter(redisClient, "ratelimit:search"),
		SearchRateLimit:  cfg.SearchRateLimit,
		SearchRateWindow: time.Minute,
	})

	// 서버 설정
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 서버 시작 (고루틴)
	go func() {
		logger.Info("Server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown 대기
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	scheduler.Stop()
	coordinator.Stop()

	// 10초 타임아웃으로 종료
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	hub.Stop()

	logger.Info("Server exited")
}
