package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StateChangeChannel 상태 변경이 중계되는 Redis 채널
const StateChangeChannel = "matches:state-changes"

// StateChange 인스턴스 간에 전달되는 매치 상태 변경
type StateChange struct {
	InstanceID string    `json:"instance_id"`
	MatchID    string    `json:"match_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	OccurredAt time.Time `json:"occurred_at"`
}

// StateChangeRelay Redis Pub/Sub 기반 상태 변경 중계기
type StateChangeRelay struct {
	client     *redis.Client
	logger     *zap.Logger
	instanceID string
	channel    string
}

// NewStateChangeRelay 중계기 생성
func NewStateChangeRelay(client *redis.Client, logger *zap.Logger) *StateChangeRelay {
	return &StateChangeRelay{
		client:     client,
		logger:     logger,
		instanceID: uuid.New().String(),
		channel:    StateChangeChannel,
	}
}

// InstanceID 이 인스턴스의 고유 ID
func (r *StateChangeRelay) InstanceID() string {
	return r.instanceID
}

// Publish 상태 변경 발행
func (r *StateChangeRelay) Publish(ctx context.Context, change StateChange) error {
	change.InstanceID = r.instanceID
	if change.OccurredAt.IsZero() {
		change.OccurredAt = time.Now()
	}

	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal state change: %w", err)
	}

	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish state change: %w", err)
	}

	r.logger.Debug("Published state change",
		zap.String("match_id", change.MatchID),
		zap.String("from", change.From),
		zap.String("to", change.To))

	return nil
}

// Listen 다른 인스턴스의 상태 변경 수신. ctx 가 끝날 때까지 블록한다.
func (r *StateChangeRelay) Listen(ctx context.Context, handler func(change StateChange)) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	// 구독 확인
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	r.logger.Info("State change relay started",
		zap.String("instance_id", r.instanceID),
		zap.String("channel", r.channel))

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

			var change StateChange
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				r.logger.Error("Failed to unmarshal state change", zap.Error(err))
				continue
			}

			// 자기 자신이 발행한 변경은 무시
			if change.InstanceID == r.instanceID {
				continue
			}

			handler(change)

		case <-ctx.Done():
			r.logger.Info("State change relay stopped")
			return nil
		}
	}
}
