package api

import (
	"time"

	"github.com/DIvanCode/CoDuels-Backend-sub001/internal/api/handlers"
	"github.com/DIvanCode/CoDuels-Backend-sub001/internal/api/middleware"
	"github.com/DIvanCode/CoDuels-Backend-sub001/internal/config"
	"github.com/DIvanCode/CoDuels-Backend-sub001/internal/websocket"
	jwtutil "github.com/DIvanCode/CoDuels-Backend-sub001/pkg/jwt"
	"github.com/DIvanCode/CoDuels-Backend-sub001/pkg/ratelimit"
	"github.com/gin-gonic/gin"
)

// RouterDeps 라우터 의존성
type RouterDeps struct {
	DuelService      handlers.DuelUseCases
	Hub              *websocket.Hub
	JWTManager       *jwtutil.JWTManager
	APILimiter       *ratelimit.RateLimiter
	SearchLimiter    *ratelimit.RedisRateLimiter // nil이면 검색 엔드포인트도 APILimiter만 적용
	SearchRateLimit  int
	SearchRateWindow time.Duration
}

// SetupRouter API 라우터 설정
func SetupRouter(cfg *config.Config, deps RouterDeps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 전역 미들웨어
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	duelHandler := handlers.NewDuelHandler(deps.DuelService)
	wsHandler := handlers.NewWebSocketHandler(deps.Hub)

	auth := middleware.Auth(deps.JWTManager)
	apiLimit := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Limiter: deps.APILimiter,
		KeyFunc: middleware.DefaultKeyFunc,
	})

	searchLimit := []gin.HandlerFunc{}
	if deps.SearchLimiter != nil {
		searchLimit = append(searchLimit, middleware.RedisRateLimitMiddleware(middleware.RedisRateLimitConfig{
			Limiter: deps.SearchLimiter,
			Limit:   deps.SearchRateLimit,
			Window:  deps.SearchRateWindow,
			KeyFunc: middleware.UserKeyFunc,
		}))
	}

	// Health check
	router.GET("/health", handlers.HealthCheck)

	// API v1
	v1 := router.Group("/api/v1")
	{
		// WebSocket endpoint (브라우저는 ?token= 으로 인증)
		v1.GET("/ws", auth, wsHandler.HandleWebSocket)

		duels := v1.Group("/duels")
		duels.Use(auth, apiLimit)
		{
			search := duels.Group("/search")
			search.Use(searchLimit...)
			{
				search.POST("", duelHandler.StartSearch)
				search.DELETE("", duelHandler.CancelSearch)
			}
			duels.GET("/search", duelHandler.GetSearchStatus)

			duels.GET("/rating-changes", duelHandler.GetRatingChanges)
			duels.GET("/:id/tasks", duelHandler.GetVisibleTasks)
			duels.POST("/:id/finish", duelHandler.FinishDuel)
		}
	}

	return router
}
