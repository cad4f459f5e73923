// Package chat adapts the external chat service (CometChat). Message
// delivery, ordering, history and presence belong to that service; this
// package only forwards identities and requests and reports failures.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUserNotFound is returned when the chat directory has no user with the uid.
var ErrUserNotFound = errors.New("chat user not found")

const (
	// DefaultHistoryLimit matches the page size the dashboard asks for.
	DefaultHistoryLimit = 50
	// MaxHistoryLimit is the largest page the chat service returns.
	MaxHistoryLimit = 100
)

// Role tags users created by this service in the chat directory.
const RoleVendor = "vendor"

// Status values reported for presence.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// User is a chat directory identity.
type User struct {
	UID      string            `json:"uid"`
	Name     string            `json:"name"`
	Role     string            `json:"role,omitempty"`
	Status   string            `json:"status,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Email returns the contact email stored in the user's metadata.
func (u User) Email() string {
	if u.Metadata == nil {
		return ""
	}
	return u.Metadata["email"]
}

// Message is a text message as reported by the chat service.
type Message struct {
	ID          string    `json:"id"`
	SenderUID   string    `json:"sender"`
	ReceiverUID string    `json:"receiver"`
	Text        string    `json:"text"`
	SentAt      time.Time `json:"sentAt"`
}

// MessageQuery pages backwards through a conversation.
type MessageQuery struct {
	Limit  int
	Before time.Time
}

// Normalize clamps the limit into the supported range.
func (q MessageQuery) Normalize() MessageQuery {
	if q.Limit <= 0 {
		q.Limit = DefaultHistoryLimit
	}
	if q.Limit > MaxHistoryLimit {
		q.Limit = MaxHistoryLimit
	}
	return q
}

// Transport is the subset of the chat service this system consumes.
type Transport interface {
	// CreateUser registers a chat identity. An existing uid is not an error.
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, uid string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	CreateAuthToken(ctx context.Context, uid string) (string, error)
	SendMessage(ctx context.Context, senderUID, receiverUID, text string) (*Message, error)
	// ListMessages returns the conversation between ownerUID and peerUID,
	// most recent first.
	ListMessages(ctx context.Context, ownerUID, peerUID string, query MessageQuery) ([]Message, error)
}

// TransportError describes a failed call to the chat service.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("chat %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("chat %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
