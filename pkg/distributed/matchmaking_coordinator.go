package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	EventSearchStarted = "search_started"

	defaultEventChannel = "matchmaking:duel_events"
)

// MatchmakingEvent 매칭 이벤트
type MatchmakingEvent struct {
	Type       string    `json:"type"`
	UserID     int64     `json:"user_id,omitempty"`
	InstanceID string    `json:"instance_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// MatchmakingCoordinator Redis Pub/Sub 기반 인스턴스 간 매칭 이벤트 전달
//
// 어느 인스턴스에서 검색이 시작되든 모든 인스턴스가 이벤트를 받아 매칭 사이클을 앞당긴다.
// 사이클 자체의 배타 실행은 RedisLockManager.WithLock이 보장한다.
type MatchmakingCoordinator struct {
	client     *redis.Client
	logger     *zap.Logger
	instanceID string // 인스턴스 고유 ID

	eventChannel string
	stopChan     chan struct{}
	stopOnce     sync.Once
	mu           sync.Mutex
	cancelSub    context.CancelFunc
}

// NewMatchmakingCoordinator 분산 매칭 조정자 생성
func NewMatchmakingCoordinator(client *redis.Client, logger *zap.Logger) *MatchmakingCoordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatchmakingCoordinator{
		client:       client,
		logger:       logger,
		instanceID:   uuid.New().String(),
		eventChannel: defaultEventChannel,
		stopChan:     make(chan struct{}),
	}
}

// InstanceID 인스턴스 고유 ID
func (c *MatchmakingCoordinator) InstanceID() string {
	return c.instanceID
}

// Start 이벤트 수신 시작 (Stop 또는 ctx 취소까지 블록)
func (c *MatchmakingCoordinator) Start(ctx context.Context, handler func(event MatchmakingEvent) error) error {
	subCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelSub = cancel
	c.mu.Unlock()
	defer cancel()

	// Redis Pub/Sub 구독
	pubsub := c.client.Subscribe(subCtx, c.eventChannel)
	defer pubsub.Close()

	// 구독 확인
	if _, err := pubsub.Receive(subCtx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	c.logger.Info("Matchmaking coordinator started",
		zap.String("instance_id", c.instanceID),
		zap.String("channel", c.eventChannel))

	// 메시지 수신 루프
	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if msg == nil {
				continue
			}

			var event MatchmakingEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				c.logger.Error("Failed to unmarshal event", zap.Error(err))
				continue
			}

			c.logger.Debug("Received matchmaking event",
				zap.String("type", event.Type),
				zap.Int64("user_id", event.UserID),
				zap.String("from", event.InstanceID))

			if err := handler(event); err != nil {
				c.logger.Error("Failed to handle event", zap.String("type", event.Type), zap.Error(err))
			}

		case <-c.stopChan:
			c.logger.Info("Matchmaking coordinator stopped")
			return nil

		case <-subCtx.Done():
			select {
			case <-c.stopChan:
				c.logger.Info("Matchmaking coordinator stopped")
				return nil
			default:
				return subCtx.Err()
			}
		}
	}
}

// Stop 이벤트 수신 중지
func (c *MatchmakingCoordinator) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelSub != nil {
		c.cancelSub()
	}
}

// PublishEvent 매칭 이벤트 발행
func (c *MatchmakingCoordinator) PublishEvent(ctx context.Context, event MatchmakingEvent) error {
	event.InstanceID = c.instanceID
	event.Timestamp = time.Now()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := c.client.Publish(ctx, c.eventChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	c.logger.Debug("Published matchmaking event",
		zap.String("type", event.Type),
		zap.Int64("user_id", event.UserID))

	return nil
}

// NotifySearchStarted 사용자가 대결 검색을 시작했음을 알림
func (c *MatchmakingCoordinator) NotifySearchStarted(ctx context.Context, userID int64) error {
	return c.PublishEvent(ctx, MatchmakingEvent{
		Type:   EventSearchStarted,
		UserID: userID,
	})
}
