package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DIvanCode/CoDuels-Backend-sub001/internal/models"
	"github.com/joho/godotenv"
)

var ErrInvalidRatingInterval = errors.New("invalid rating interval")

const defaultRatingTaskLevels = "0-1199:1,1200-1499:2,1500-1799:3,1800-2099:4,2100-9999:5"

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// CORS
	CORSAllowedOrigins []string

	// Matchmaking
	MatchmakingInterval     time.Duration
	MatchmakingBaseWindow   int
	MatchmakingWindowGrowth int
	MatchmakingFallback     time.Duration

	// Duel
	DuelDefaultMaxDuration time.Duration
	RatingTaskLevels       []models.RatingInterval

	// Rate limit
	SearchRateLimit int // 검색 요청, 사용자당 분당 횟수 (Redis, 인스턴스 공유)
	APIRateCapacity int // 일반 API, 클라이언트당 버킷 크기 (인스턴스 로컬)
	APIRateRefill   int // 초당 충전 토큰
}

func Load() (*Config, error) {
	// .env 파일 로드 (있는 경우)
	_ = godotenv.Load()

	taskLevels, err := ParseRatingIntervals(getEnv("RATING_TASK_LEVELS", defaultRatingTaskLevels))
	if err != nil {
		return nil, err
	}

	baseWindow, err := parseInt("MATCHMAKING_BASE_WINDOW", 50)
	if err != nil {
		return nil, err
	}
	windowGrowth, err := parseInt("MATCHMAKING_WINDOW_GROWTH", 5)
	if err != nil {
		return nil, err
	}
	searchRateLimit, err := parseInt("SEARCH_RATE_LIMIT", 10)
	if err != nil {
		return nil, err
	}
	apiRateCapacity, err := parseInt("API_RATE_CAPACITY", 30)
	if err != nil {
		return nil, err
	}
	apiRateRefill, err := parseInt("API_RATE_REFILL", 5)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:                    getEnv("PORT", "8080"),
		Env:                     getEnv("ENV", "development"),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		DatabaseURL:             getEnv("DATABASE_URL", ""),
		RedisURL:                getEnv("REDIS_URL", "redis://localhost:6379"),
		JWTSecret:               getEnv("JWT_SECRET", "your-secret-key"),
		MatchmakingInterval:     parseDuration(getEnv("MATCHMAKING_INTERVAL", "1s"), time.Second),
		MatchmakingBaseWindow:   baseWindow,
		MatchmakingWindowGrowth: windowGrowth,
		MatchmakingFallback:     parseDuration(getEnv("MATCHMAKING_FALLBACK_AFTER", "120s"), 120*time.Second),
		DuelDefaultMaxDuration:  parseDuration(getEnv("DUEL_DEFAULT_MAX_DURATION", "30m"), 30*time.Minute),
		RatingTaskLevels:        taskLevels,
		SearchRateLimit:         searchRateLimit,
		APIRateCapacity:         apiRateCapacity,
		APIRateRefill:           apiRateRefill,
		CORSAllowedOrigins:      strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"), ","),
	}

	return cfg, nil
}

// ParseRatingIntervals "min-max:level" 목록 파싱 (쉼표 구분, 순서 유지)
func ParseRatingIntervals(s string) ([]models.RatingInterval, error) {
	var intervals []models.RatingInterval
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		bounds, level, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRatingInterval, part)
		}
		minStr, maxStr, ok := cutBounds(bounds)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRatingInterval, part)
		}

		minRating, err := strconv.Atoi(strings.TrimSpace(minStr))
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRatingInterval, part, err)
		}
		maxRating, err := strconv.Atoi(strings.TrimSpace(maxStr))
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRatingInterval, part, err)
		}
		lvl, err := strconv.Atoi(strings.TrimSpace(level))
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRatingInterval, part, err)
		}
		if minRating > maxRating {
			return nil, fmt.Errorf("%w: %q: min greater than max", ErrInvalidRatingInterval, part)
		}

		intervals = append(intervals, models.RatingInterval{
			MinRating: minRating,
			MaxRating: maxRating,
			Level:     lvl,
		})
	}
	return intervals, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseDuration(s string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultValue
	}
	return d
}

// cutBounds "min-max"를 나눈다. 첫 글자의 '-'는 음수 부호로 본다
func cutBounds(bounds string) (string, string, bool) {
	bounds = strings.TrimSpace(bounds)
	if len(bounds) < 2 {
		return "", "", false
	}
	sep := strings.Index(bounds[1:], "-")
	if sep < 0 {
		return "", "", false
	}
	sep++
	return bounds[:sep], bounds[sep+1:], true
}
