// Package chattest provides an in-memory chat.Transport for tests.
package chattest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/vendor-desk/internal/chat"
)

// FakeTransport keeps users and messages in memory. Setting Err makes every
// call fail with a *chat.TransportError wrapping it.
type FakeTransport struct {
	mu       sync.Mutex
	users    map[string]chat.User
	messages []chat.Message
	tokens   map[string]int
	calls    map[string]int
	nextID   int

	Err error
}

// NewFakeTransport seeds the directory with users.
func NewFakeTransport(users ...chat.User) *FakeTransport {
	f := &FakeTransport{
		users:  make(map[string]chat.User),
		tokens: make(map[string]int),
		calls:  make(map[string]int),
	}
	for _, u := range users {
		if u.Status == "" {
			u.Status = chat.StatusOffline
		}
		f.users[u.UID] = u
	}
	return f
}

// SetErr swaps the injected failure.
func (f *FakeTransport) SetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Err = err
}

// Calls reports how many times op was invoked.
func (f *FakeTransport) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// HasUser reports whether uid is registered.
func (f *FakeTransport) HasUser(uid string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.users[uid]
	return ok
}

// DeleteUser removes uid from the directory, as if deleted upstream.
func (f *FakeTransport) DeleteUser(uid string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, uid)
}

func (f *FakeTransport) begin(op string) error {
	f.calls[op]++
	if f.Err != nil {
		return &chat.TransportError{Op: op, Err: f.Err}
	}
	return nil
}

// CreateUser implements chat.Transport.
func (f *FakeTransport) CreateUser(_ context.Context, user chat.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("create_user"); err != nil {
		return err
	}
	if _, ok := f.users[user.UID]; ok {
		return nil
	}
	if user.Status == "" {
		user.Status = chat.StatusOffline
	}
	f.users[user.UID] = user
	return nil
}

// GetUser implements chat.Transport.
func (f *FakeTransport) GetUser(_ context.Context, uid string) (*chat.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("get_user"); err != nil {
		return nil, err
	}
	u, ok := f.users[uid]
	if !ok {
		return nil, chat.ErrUserNotFound
	}
	return &u, nil
}

// ListUsers implements chat.Transport.
func (f *FakeTransport) ListUsers(_ context.Context) ([]chat.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("list_users"); err != nil {
		return nil, err
	}
	users := make([]chat.User, 0, len(f.users))
	for _, u := range f.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UID < users[j].UID })
	return users, nil
}

// CreateAuthToken implements chat.Transport.
func (f *FakeTransport) CreateAuthToken(_ context.Context, uid string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("create_auth_token"); err != nil {
		return "", err
	}
	if _, ok := f.users[uid]; !ok {
		return "", chat.ErrUserNotFound
	}
	f.tokens[uid]++
	return fmt.Sprintf("%s_token_%d", uid, f.tokens[uid]), nil
}

// SendMessage implements chat.Transport.
func (f *FakeTransport) SendMessage(_ context.Context, senderUID, receiverUID, text string) (*chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("send_message"); err != nil {
		return nil, err
	}
	if _, ok := f.users[receiverUID]; !ok {
		return nil, chat.ErrUserNotFound
	}
	f.nextID++
	msg := chat.Message{
		ID:          fmt.Sprintf("%d", f.nextID),
		SenderUID:   senderUID,
		ReceiverUID: receiverUID,
		Text:        text,
		SentAt:      time.Unix(int64(1_700_000_000+f.nextID), 0).UTC(),
	}
	f.messages = append(f.messages, msg)
	return &msg, nil
}

// ListMessages implements chat.Transport.
func (f *FakeTransport) ListMessages(_ context.Context, ownerUID, peerUID string, query chat.MessageQuery) ([]chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("list_messages"); err != nil {
		return nil, err
	}
	if _, ok := f.users[peerUID]; !ok {
		return nil, chat.ErrUserNotFound
	}
	query = query.Normalize()
	var out []chat.Message
	for i := len(f.messages) - 1; i >= 0 && len(out) < query.Limit; i-- {
		m := f.messages[i]
		inConversation := (m.SenderUID == ownerUID && m.ReceiverUID == peerUID) ||
			(m.SenderUID == peerUID && m.ReceiverUID == ownerUID)
		if !inConversation {
			continue
		}
		if !query.Before.IsZero() && !m.SentAt.Before(query.Before) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
