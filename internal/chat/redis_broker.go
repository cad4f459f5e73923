package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroker fans events out through Redis Pub/Sub so every API replica
// serving a dashboard sees webhook deliveries received by any other replica.
type RedisBroker struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisBroker wraps a connected client.
func NewRedisBroker(client *redis.Client, logger *zap.Logger) *RedisBroker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBroker{client: client, logger: logger.With(zap.String("component", "chat-broker"))}
}

// Publish implements Broker.
func (b *RedisBroker) Publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(MessageEvent{Message: msg, ReceivedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("chat broker: marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, conversationKey(msg.ReceiverUID, msg.SenderUID), payload).Err(); err != nil {
		return fmt.Errorf("chat broker: publish: %w", err)
	}
	if msg.SenderUID != msg.ReceiverUID {
		if err := b.client.Publish(ctx, conversationKey(msg.SenderUID, msg.ReceiverUID), payload).Err(); err != nil {
			return fmt.Errorf("chat broker: publish: %w", err)
		}
	}
	return nil
}

// Subscribe implements Broker. It returns once Redis confirmed the subscription.
func (b *RedisBroker) Subscribe(ctx context.Context, ownerUID, peerUID string) (*Subscription, error) {
	channel := conversationKey(ownerUID, peerUID)
	pubsub := b.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("chat broker: subscribe %s: %w", channel, err)
	}

	s := newSubscription(pubsub.Close)
	go pump(ctx, s, pubsub.Channel(), func(m *redis.Message) (MessageEvent, bool) {
		var ev MessageEvent
		if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
			b.logger.Warn("dropping undecodable chat event", zap.String("channel", channel), zap.Error(err))
			return MessageEvent{}, false
		}
		return ev, true
	})
	return s, nil
}
