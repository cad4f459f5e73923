package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/vendor-desk/internal/chat"
	"github.com/spec-kit/vendor-desk/internal/domain"
	apperrors "github.com/spec-kit/vendor-desk/pkg/util/errorutil"
)

const maxMessageLength = 4000

// ConversationService proxies a vendor's conversations with their assigned
// customers to the chat service.
type ConversationService struct {
	assignments *AssignmentService
	transport   chat.Transport
	broker      chat.Broker
	logger      *zap.Logger
}

// NewConversationService creates the service.
func NewConversationService(assignments *AssignmentService, transport chat.Transport, broker chat.Broker, logger *zap.Logger) *ConversationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationService{assignments: assignments, transport: transport, broker: broker, logger: logger}
}

// History pages backwards through the conversation, most recent first.
func (s *ConversationService) History(ctx context.Context, vendor *domain.Vendor, customerUID string, query chat.MessageQuery) ([]chat.Message, error) {
	if err := s.authorize(ctx, vendor, customerUID); err != nil {
		return nil, err
	}
	messages, err := s.transport.ListMessages(ctx, vendor.UID, customerUID, query.Normalize())
	if err != nil {
		return nil, conversationFailure("list_messages", customerUID, err)
	}
	return messages, nil
}

// Send posts a text message from the vendor to the customer.
func (s *ConversationService) Send(ctx context.Context, vendor *domain.Vendor, customerUID, text string) (*chat.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewValidationError("message text required", map[string]any{"field": "text"})
	}
	if utf8.RuneCountInString(text) > maxMessageLength {
		return nil, apperrors.NewValidationError("message too long", map[string]any{
			"field":      "text",
			"max_length": maxMessageLength,
		})
	}
	if err := s.authorize(ctx, vendor, customerUID); err != nil {
		return nil, err
	}
	msg, err := s.transport.SendMessage(ctx, vendor.UID, customerUID, text)
	if err != nil {
		return nil, conversationFailure("send_message", customerUID, err)
	}
	return msg, nil
}

// Subscribe opens the live feed of inbound messages for the conversation.
// The caller must Close the subscription.
func (s *ConversationService) Subscribe(ctx context.Context, vendor *domain.Vendor, customerUID string) (*chat.Subscription, error) {
	if err := s.authorize(ctx, vendor, customerUID); err != nil {
		return nil, err
	}
	sub, err := s.broker.Subscribe(ctx, vendor.UID, customerUID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return sub, nil
}

// Receive feeds a message reported by the chat service to the subscribers of
// its conversation.
func (s *ConversationService) Receive(ctx context.Context, msg chat.Message) error {
	if msg.SenderUID == "" || msg.ReceiverUID == "" {
		return apperrors.NewValidationError("message sender and receiver required", nil)
	}
	if err := s.broker.Publish(ctx, msg); err != nil {
		s.logger.Error("publish inbound message", zap.String("message_id", msg.ID), zap.Error(err))
		return apperrors.MapError(err)
	}
	return nil
}

func (s *ConversationService) authorize(ctx context.Context, vendor *domain.Vendor, customerUID string) error {
	if vendor == nil {
		return apperrors.NewUnauthorized("vendor required")
	}
	ok, err := s.assignments.IsAssigned(ctx, customerUID, vendor.UID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewForbidden("customer not assigned to vendor")
	}
	return nil
}
