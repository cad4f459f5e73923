package chat

import (
	"context"
	"sync"
	"time"
)

const subscriptionBuffer = 64

// MessageEvent is one inbound message on a conversation.
type MessageEvent struct {
	Message    Message   `json:"message"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Broker fans message events out to the dashboards watching a conversation.
type Broker interface {
	// Publish delivers msg to both participants' views of the conversation.
	Publish(ctx context.Context, msg Message) error
	// Subscribe opens a stream of events for the conversation ownerUID has
	// with peerUID. The stream ends on Close or when ctx is cancelled;
	// subscribing again starts a fresh stream.
	Subscribe(ctx context.Context, ownerUID, peerUID string) (*Subscription, error)
}

// Subscription is a live feed for one conversation.
type Subscription struct {
	events    chan MessageEvent
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	cleanup   func() error
	err       error
}

func newSubscription(cleanup func() error) *Subscription {
	return &Subscription{
		events:  make(chan MessageEvent, subscriptionBuffer),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		cleanup: cleanup,
	}
}

// Events yields events in arrival order. It is closed once the subscription ends.
func (s *Subscription) Events() <-chan MessageEvent {
	return s.events
}

// Done is closed when the subscription has fully stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.stopped
}

// Close unsubscribes and waits for the feed to stop. Safe to call repeatedly.
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	<-s.stopped
	return s.err
}

// pump forwards decoded items from source until the subscription is closed,
// ctx ends or source is closed.
func pump[T any](ctx context.Context, s *Subscription, source <-chan T, decode func(T) (MessageEvent, bool)) {
	defer close(s.stopped)
	defer close(s.events)
	defer func() {
		if s.cleanup != nil {
			s.err = s.cleanup()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case item, ok := <-source:
			if !ok {
				return
			}
			ev, ok := decode(item)
			if !ok {
				continue
			}
			select {
			case s.events <- ev:
			case <-ctx.Done():
				return
			case <-s.done:
				return
			}
		}
	}
}

func conversationKey(ownerUID, peerUID string) string {
	return "desk:chat:" + ownerUID + ":" + peerUID
}
