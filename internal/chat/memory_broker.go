package chat

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// MemoryBroker is an in-process Broker for single-instance runs and tests.
type MemoryBroker struct {
	mu      sync.RWMutex
	subs    map[string]map[*memorySub]struct{}
	dropped atomic.Int64
	logger  *zap.Logger
}

type memorySub struct {
	inbox chan MessageEvent
	done  <-chan struct{}
}

// NewMemoryBroker returns an empty broker.
func NewMemoryBroker(logger *zap.Logger) *MemoryBroker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryBroker{
		subs:   make(map[string]map[*memorySub]struct{}),
		logger: logger.With(zap.String("component", "chat-broker")),
	}
}

// Publish implements Broker. It never waits on a subscriber: an event for a
// subscriber whose buffer is full is dropped for that subscriber only.
func (b *MemoryBroker) Publish(_ context.Context, msg Message) error {
	ev := MessageEvent{Message: msg, ReceivedAt: time.Now().UTC()}
	keys := []string{conversationKey(msg.ReceiverUID, msg.SenderUID)}
	if msg.SenderUID != msg.ReceiverUID {
		keys = append(keys, conversationKey(msg.SenderUID, msg.ReceiverUID))
	}

	for _, key := range keys {
		b.mu.RLock()
		targets := make([]*memorySub, 0, len(b.subs[key]))
		for sub := range b.subs[key] {
			targets = append(targets, sub)
		}
		b.mu.RUnlock()

		for _, sub := range targets {
			select {
			case sub.inbox <- ev:
			case <-sub.done:
			default:
				b.dropped.Add(1)
				b.logger.Warn("dropping chat event for slow subscriber",
					zap.String("conversation", key), zap.String("message_id", msg.ID))
			}
		}
	}
	return nil
}

// Dropped reports how many events were discarded for slow subscribers.
func (b *MemoryBroker) Dropped() int64 {
	return b.dropped.Load()
}

// Subscribe implements Broker.
func (b *MemoryBroker) Subscribe(ctx context.Context, ownerUID, peerUID string) (*Subscription, error) {
	key := conversationKey(ownerUID, peerUID)
	var entry *memorySub
	s := newSubscription(func() error {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[key], entry)
		if len(b.subs[key]) == 0 {
			delete(b.subs, key)
		}
		return nil
	})
	entry = &memorySub{inbox: make(chan MessageEvent, subscriptionBuffer), done: s.done}

	b.mu.Lock()
	if b.subs[key] == nil {
		b.subs[key] = make(map[*memorySub]struct{})
	}
	b.subs[key][entry] = struct{}{}
	b.mu.Unlock()

	go pump(ctx, s, entry.inbox, func(ev MessageEvent) (MessageEvent, bool) { return ev, true })
	return s, nil
}

// Subscribers reports how many live subscriptions watch the conversation.
func (b *MemoryBroker) Subscribers(ownerUID, peerUID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[conversationKey(ownerUID, peerUID)])
}
